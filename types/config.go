package types

// Station configuration supplied on topic "config/station".

type StationConfig struct {
	Board            string          `json:"board"`
	StatusIntervalMs int             `json:"status_interval_ms"`
	PollIntervalMs   int             `json:"poll_interval_ms"`
	LocoSlots        int             `json:"loco_slots"`
	CAN              CANConfig       `json:"can"`
	Gateway          SerialConfig    `json:"gateway"`
	Heartbeat        HeartbeatConfig `json:"heartbeat"`
}

// HeartbeatConfig is published on "config/heartbeat". Zero keeps the
// current interval.
type HeartbeatConfig struct {
	IntervalMs int `json:"interval_ms"`
}

type CANConfig struct {
	Bitrate uint32     `json:"bitrate"` // 100000, 125000 or 250000
	Filter  *CANFilter `json:"filter,omitempty"`
}

// CANFilter narrows the controller's acceptance filter. Nil accepts every
// standard frame.
type CANFilter struct {
	ID       uint32 `json:"id"`
	Mask     uint32 `json:"mask"`
	Extended bool   `json:"extended,omitempty"`
}

type SerialConfig struct {
	Enabled  bool   `json:"enabled"`
	Bus      string `json:"bus"` // "uart0", "uart1"
	Baud     uint32 `json:"baud"`
	DataBits uint8  `json:"data_bits,omitempty"`
	StopBits uint8  `json:"stop_bits,omitempty"`
	Parity   Parity `json:"parity,omitempty"`
}
