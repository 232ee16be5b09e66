package main

import (
	"context"
	"time"

	"railcode-go/bus"
	"railcode-go/drivers/mcp2515"
	"railcode-go/drivers/motorola"
	"railcode-go/platform"
	"railcode-go/services/config"
	"railcode-go/services/gateway"
	"railcode-go/services/heartbeat"
	"railcode-go/services/station"
	"railcode-go/types"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	board, err := platform.Open()
	if err != nil {
		println("[main] board:", err.Error())
		halt()
	}
	cfg, err := config.Load(board.Name)
	if err != nil {
		println("[main] config:", err.Error())
		halt()
	}

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, board.Name)
	b := bus.NewBus(4)

	eng := motorola.New(board.EngineConfig())
	canCfg, err := board.CANConfig(cfg.CAN)
	if err != nil {
		println("[main] can:", err.Error())
		halt()
	}
	dev := mcp2515.New(canCfg)

	st := station.New(stationConfig(cfg, board), eng, dev, b.NewConnection("station"))
	if err := dev.Start(st.HandleFrame, st.HandleError); err != nil {
		println("[main] mcp2515:", err.Error())
		halt()
	}
	if err := platform.ApplyFilter(dev, cfg.CAN.Filter); err != nil {
		println("[main] filter:", err.Error())
	}
	if err := eng.Start(); err != nil {
		println("[main] motorola:", err.Error())
		halt()
	}

	gw := gateway.New(b.NewConnection("gateway"), dev, st.HandleFrame, cfg.CAN.Bitrate)
	go gw.Run(ctx)
	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	println("[main] station up on", board.Name)
	_ = st.Run(ctx)
}

func stationConfig(c types.StationConfig, b *platform.Board) station.Config {
	sc := station.FromTypes(c)
	sc.IRQ = b.IRQ
	return sc
}

func halt() {
	for {
		time.Sleep(time.Hour)
	}
}
