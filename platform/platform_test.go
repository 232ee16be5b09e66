package platform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"railcode-go/can"
	"railcode-go/drivers/mcp2515"
	"railcode-go/drivers/motorola"
	"railcode-go/types"
)

func TestTimingFor(t *testing.T) {
	for _, tc := range []struct {
		rate uint32
		want mcp2515.Timing
	}{
		{0, mcp2515.Timing100k16MHz},
		{100000, mcp2515.Timing100k16MHz},
		{125000, mcp2515.Timing125k16MHz},
		{250000, mcp2515.Timing250k16MHz},
	} {
		got, err := TimingFor(tc.rate)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "rate %d", tc.rate)
	}
	_, err := TimingFor(500000)
	require.Error(t, err)
}

func TestSimBoardRunsEngineAndController(t *testing.T) {
	s := NewSim()

	eng := motorola.New(s.EngineConfig())
	require.NoError(t, eng.Start())
	require.False(t, s.GoPin.Get(), "rails on")
	s.Timer.Fire(4)
	require.Len(t, s.Timer.Trace(), 4)

	cfg, err := s.CANConfig(types.CANConfig{Bitrate: 125000})
	require.NoError(t, err)
	dev := mcp2515.New(cfg)

	var got []can.Frame
	require.NoError(t, dev.Start(func(f *can.Frame) { got = append(got, *f) }, nil))
	require.Equal(t, mcp2515.Timing125k16MHz.CNF1, s.Chip.Reg(0x2A))

	require.NoError(t, ApplyFilter(dev, &types.CANFilter{ID: 0x80, Mask: 0x7FF}))
	require.True(t, s.Chip.Inject(can.Std(0x080, 1)))
	require.False(t, s.Chip.Inject(can.Std(0x081, 1)))
	require.Len(t, got, 1)
	require.Zero(t, s.Mask.Depth())
}

func TestCANConfigRejectsUnknownRate(t *testing.T) {
	_, err := NewSim().CANConfig(types.CANConfig{Bitrate: 1})
	require.Error(t, err)
}

func TestApplyFilterNil(t *testing.T) {
	require.NoError(t, ApplyFilter(nil, nil))
}
