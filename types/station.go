package types

// ---- Station state (retained) ----

// StationState is published on "station/state".
type StationState struct {
	Running  bool   `json:"running"`
	Enabled  uint8  `json:"enabled"` // bit n set: slot n is being played
	Faults   uint32 `json:"faults"`
	Dropped  uint32 `json:"dropped"`  // commands lost to a full inbox
	Rejected uint32 `json:"rejected"` // frames that failed to decode
	TS       int64  `json:"ts_ms"`
}

// LocoState is published on "station/loco/<addr>".
type LocoState struct {
	Addr     int   `json:"addr"`
	Speed    int   `json:"speed"`
	Function bool  `json:"function"`
	Slot     int   `json:"slot"`
	TS       int64 `json:"ts_ms"`
}

// TurnoutState is published on "station/turnout/<decoder>".
type TurnoutState struct {
	Decoder int   `json:"decoder"`
	Sub     int   `json:"sub"`
	On      bool  `json:"on"`
	Slot    int   `json:"slot"`
	TS      int64 `json:"ts_ms"`
}

// CANError is published on "can/error" for each controller error interrupt.
type CANError struct {
	Flags uint8    `json:"eflg"`
	Names []string `json:"names,omitempty"`
	TS    int64    `json:"ts_ms"`
}

// Heartbeat is published on "system/heartbeat".
type Heartbeat struct {
	UptimeMs  int64  `json:"uptime_ms"`
	HeapAlloc uint32 `json:"heap_alloc"`
	HeapInuse uint32 `json:"heap_inuse"`
	Mallocs   uint32 `json:"mallocs"`
	Frees     uint32 `json:"frees"`
	TS        int64  `json:"ts_ms"`
}
