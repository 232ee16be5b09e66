// Package timex holds the wall-clock source used for frame and event stamps.
package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }
