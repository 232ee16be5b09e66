// Package gateway bridges the CAN bus to a serial link speaking SLCAN, so a
// PC can watch traffic and send station commands through the board.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"railcode-go/bus"
	"railcode-go/can"
	"railcode-go/types"
)

var (
	TopicConfig = bus.T("config", "gateway")
	TopicState  = bus.T("gateway", "state")
	// TopicRx carries every frame the controller received (payload can.Frame).
	TopicRx = bus.T("can", "rx")
)

const maxLine = 32

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn    *bus.Connection
	tx      Sender
	local   func(*can.Frame)
	bitrate uint32
	stats   counters

	mu     sync.Mutex
	curRun context.CancelFunc
}

// New returns a gateway sending on tx. Frames accepted from the link are also
// passed to local, when set, as if they had been received.
func New(conn *bus.Connection, tx Sender, local func(*can.Frame), bitrate uint32) *Service {
	return &Service{conn: conn, tx: tx, local: local, bitrate: bitrate}
}

func (s *Service) Stats() types.SerialStats { return s.stats.snapshot() }

// Run waits for configuration on TopicConfig and supervises one link at a
// time until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(TopicConfig)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg types.SerialConfig) {
	s.stopCurrent()
	if !cfg.Enabled {
		s.publishState("idle", "disabled", nil)
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.curRun = cancel
	s.mu.Unlock()
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision and I/O
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg types.SerialConfig) {
	tr, err := newTransport(cfg)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx, cfg)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		err = s.handleLink(ctx, rwc)
		_ = rwc.Close()
		if err == nil {
			return
		}
		delay := backoff()
		s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

// handleLink serves one open link until ctx ends or the link fails.
func (s *Service) handleLink(ctx context.Context, rwc io.ReadWriter) error {
	sess := newSession(s.tx, s.local, s.bitrate, &s.stats)
	rx := s.conn.Subscribe(TopicRx)
	defer s.conn.Unsubscribe(rx)

	// done releases the reader whichever way this returns. The caller closes
	// the link to unblock a pending Read.
	done := make(chan struct{})
	defer close(done)
	lines := make(chan []byte, 4)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		errCh <- readLines(rwc, lines, done)
	}()

	out := make([]byte, 0, maxLine)
	for {
		out = out[:0]
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errCh
			}
			out = sess.Handle(line, out)
		case m, ok := <-rx.Channel():
			if !ok {
				return errors.New("rx subscription closed")
			}
			f, isFrame := m.Payload.(can.Frame)
			if !isFrame || !sess.Open() {
				continue
			}
			out = Encode(out, &f, sess.Stamps())
		}
		if _, err := rwc.Write(out); err != nil {
			return err
		}
		s.stats.linesOut.Add(1)
	}
}

// readLines splits the input on CR (LF is ignored) and sends each line until
// done is closed.
func readLines(r io.Reader, lines chan<- []byte, done <-chan struct{}) error {
	br := bufio.NewReader(r)
	var line []byte
	for {
		c, err := br.ReadByte()
		if err != nil {
			return err
		}
		switch c {
		case '\n':
			continue
		case cr:
			select {
			case lines <- line:
			case <-done:
				return nil
			}
			line = nil
		default:
			if len(line) >= maxLine {
				// Overlong input cannot be a valid command; keep the tail short.
				line = line[:0]
			}
			line = append(line, c)
		}
	}
}

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

// Transport opens the serial link for a configuration.
type Transport interface {
	Open(ctx context.Context, cfg types.SerialConfig) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(types.SerialConfig) (Transport, error)

var (
	regMu     sync.RWMutex
	registry  = map[string]transportFactory{}
	errNoDial = errors.New("UARTDial not implemented")
)

// RegisterTransport adds a transport selected by SerialConfig.Bus.
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg types.SerialConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Bus]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	if strings.HasPrefix(cfg.Bus, "uart") {
		return uartTransport{}, nil
	}
	return nil, fmt.Errorf("unknown serial bus: %q", cfg.Bus)
}

// UARTDial is injected by platform code and opens the configured UART.
var UARTDial func(ctx context.Context, cfg types.SerialConfig) (io.ReadWriteCloser, error)

type uartTransport struct{}

func (uartTransport) Open(ctx context.Context, cfg types.SerialConfig) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, errNoDial
	}
	return UARTDial(ctx, cfg)
}

func (uartTransport) String() string { return "uart" }

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (types.SerialConfig, error) {
	var cfg types.SerialConfig
	switch v := p.(type) {
	case types.SerialConfig:
		return v, nil
	case *types.SerialConfig:
		if v == nil {
			return cfg, errors.New("nil config")
		}
		return *v, nil
	case []byte:
		return cfg, json.Unmarshal(v, &cfg)
	case string:
		return cfg, json.Unmarshal([]byte(v), &cfg)
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		return cfg, json.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,
		"status": status,
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(TopicState, payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
