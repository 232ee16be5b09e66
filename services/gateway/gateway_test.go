package gateway

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"railcode-go/bus"
	"railcode-go/can"
	"railcode-go/types"
)

type pipeTransport struct{ conn net.Conn }

func (p pipeTransport) Open(context.Context, types.SerialConfig) (io.ReadWriteCloser, error) {
	return p.conn, nil
}

func (pipeTransport) String() string { return "pipe" }

func readReply(t *testing.T, c net.Conn, r *bufio.Reader) string {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	var out []byte
	for {
		b, err := r.ReadByte()
		require.NoError(t, err)
		out = append(out, b)
		if b == cr || b == bel {
			return string(out)
		}
	}
}

func waitState(t *testing.T, sub *bus.Subscription, status string) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if m.Payload.(map[string]any)["status"] == status {
				return
			}
		case <-deadline:
			t.Fatalf("gateway never reached %q", status)
		}
	}
}

func TestGatewayBridgesLinkAndBus(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()
	RegisterTransport("pipe-test", func(types.SerialConfig) (Transport, error) {
		return pipeTransport{conn: dev}, nil
	})

	b := bus.NewBus(16)
	conn := b.NewConnection("gateway")
	tx := &fakeSender{}
	svc := New(conn, tx, nil, 100000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	state := conn.Subscribe(TopicState)
	conn.Publish(conn.NewMessage(TopicConfig, types.SerialConfig{Enabled: true, Bus: "pipe-test", Baud: 115200}, true))
	waitState(t, state, "link_established")

	r := bufio.NewReader(host)
	_, err := host.Write([]byte("S3\rO\r"))
	require.NoError(t, err)
	require.Equal(t, "\r", readReply(t, host, r))
	require.Equal(t, "\r", readReply(t, host, r))

	_, err = host.Write([]byte("t08030C0701\r"))
	require.NoError(t, err)
	require.Equal(t, "z\r", readReply(t, host, r))
	require.Equal(t, []can.Frame{can.Std(0x080, 0x0C, 0x07, 0x01)}, tx.frames())

	conn.Publish(conn.NewMessage(TopicRx, can.Std(0x090, 1, 1, 0, 0), false))
	require.Equal(t, "t090401010000\r", readReply(t, host, r))

	require.EqualValues(t, 3, svc.Stats().LinesIn)
	require.Eventually(t, func() bool { return svc.Stats().LinesOut == 4 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := decodeConfig(map[string]any{"enabled": true, "bus": "uart1", "baud": 115200, "parity": "even"})
	require.NoError(t, err)
	require.Equal(t, types.SerialConfig{Enabled: true, Bus: "uart1", Baud: 115200, Parity: types.ParityEven}, cfg)

	_, err = decodeConfig(42)
	require.Error(t, err)
}

func TestUnknownBus(t *testing.T) {
	_, err := newTransport(types.SerialConfig{Bus: "spi0"})
	require.Error(t, err)
	tr, err := newTransport(types.SerialConfig{Bus: "uart0"})
	require.NoError(t, err)
	_, err = tr.Open(context.Background(), types.SerialConfig{})
	require.ErrorIs(t, err, errNoDial)
}

func TestBackoffDoublesToMax(t *testing.T) {
	next := backoffSeq(100*time.Millisecond, 300*time.Millisecond)
	require.Equal(t, 100*time.Millisecond, next())
	require.Equal(t, 200*time.Millisecond, next())
	require.Equal(t, 300*time.Millisecond, next())
	require.Equal(t, 300*time.Millisecond, next())
}
