package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgPico = `{
  "board": "pico",
  "status_interval_ms": 1000,
  "poll_interval_ms": 5,
  "loco_slots": 6,
  "can": {
    "bitrate": 100000
  },
  "gateway": {
    "enabled": true,
    "bus": "uart0",
    "baud": 115200
  },
  "heartbeat": {
    "interval_ms": 10000
  }
}`

// The sensor board shares the bus but only watches station traffic.
const cfgSensor = `{
  "board": "sensor",
  "status_interval_ms": 5000,
  "loco_slots": 6,
  "can": {
    "bitrate": 100000,
    "filter": {"id": 144, "mask": 2047}
  },
  "gateway": {
    "enabled": false
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico":   []byte(cfgPico),
	"sensor": []byte(cfgSensor),
}
