package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"railcode-go/bus"
)

var errWrite = errors.New("uart tx stuck")

// chattyLink supplies version requests forever and refuses every reply.
type chattyLink struct{}

func (chattyLink) Read(p []byte) (int, error) { return copy(p, "V\r"), nil }

func (chattyLink) Write([]byte) (int, error) { return 0, errWrite }

func TestHandleLinkReturnsWriteError(t *testing.T) {
	b := bus.NewBus(4)
	svc := New(b.NewConnection("gateway"), &fakeSender{}, nil, 100000)

	errc := make(chan error, 1)
	go func() { errc <- svc.handleLink(context.Background(), chattyLink{}) }()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, errWrite)
	case <-time.After(time.Second):
		t.Fatal("handleLink did not return")
	}
	require.Zero(t, svc.Stats().LinesOut)
}

func TestReadLinesStopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	close(done)
	lines := make(chan []byte)

	errc := make(chan error, 1)
	go func() { errc <- readLines(chattyLink{}, lines, done) }()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reader kept running after done")
	}
}
