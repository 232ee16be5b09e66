// Command railctl is the host companion of the station firmware: a
// simulator with an interactive console and SocketCAN tools to drive and
// watch a real layout bus.
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"
)

func main() {
	defer glog.Flush()
	// glog reads its flags from the standard set; cobra parses them.
	_ = flag.CommandLine.Parse(nil)

	if err := NewRootCommand().Execute(); err != nil {
		glog.Error(err)
		glog.Flush()
		os.Exit(1)
	}
}
