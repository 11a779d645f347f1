package layout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_HeadingBar_stackingBoundary(t *testing.T) {
	// Testable property 9: -4, -2, 0 form one stack; +15 is separate.
	devices := []DirectedDevice{
		{SSID: "a", BearingDeg: -4, SignalDBm: -50},
		{SSID: "b", BearingDeg: -2, SignalDBm: -40},
		{SSID: "c", BearingDeg: 0, SignalDBm: -60},
		{SSID: "d", BearingDeg: 15, SignalDBm: -30},
	}

	stacks := HeadingBar(devices, 0)

	require.Len(t, stacks, 2)

	grouped := stackSSIDs(stacks)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, grouped[0])
	assert.ElementsMatch(t, []string{"d"}, grouped[1])
}

func Test_Compass_stackingBoundary(t *testing.T) {
	// Testable property 10: 0, 10, 14 form one stack; +30 is separate.
	devices := []DirectedDevice{
		{SSID: "a", BearingDeg: 0, SignalDBm: -50},
		{SSID: "b", BearingDeg: 10, SignalDBm: -40},
		{SSID: "c", BearingDeg: 14, SignalDBm: -60},
		{SSID: "d", BearingDeg: 30, SignalDBm: -30},
	}

	stacks := Compass(devices, 0)

	require.Len(t, stacks, 2)

	grouped := stackSSIDs(stacks)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, grouped[0])
	assert.ElementsMatch(t, []string{"d"}, grouped[1])
}

func Test_HeadingBar_dropsDevicesBeyondMaxOffBar(t *testing.T) {
	devices := []DirectedDevice{
		{SSID: "near", BearingDeg: 30, SignalDBm: -50},
		{SSID: "far", BearingDeg: 160, SignalDBm: -50},
	}

	stacks := HeadingBar(devices, 0)

	require.Len(t, stacks, 1)
	assert.Equal(t, "near", stacks[0].Slots[0].SSID)
}

func Test_HeadingBar_strongestSignalIsTopmostSlot(t *testing.T) {
	devices := []DirectedDevice{
		{SSID: "weak", BearingDeg: 1, SignalDBm: -80},
		{SSID: "strong", BearingDeg: 0, SignalDBm: -30},
	}

	stacks := HeadingBar(devices, 0)

	require.Len(t, stacks, 1)
	require.Len(t, stacks[0].Slots, 2)
	assert.Equal(t, "strong", stacks[0].Slots[0].SSID)
	assert.Equal(t, 0, stacks[0].Slots[0].PerpIndex)
	assert.Equal(t, "weak", stacks[0].Slots[1].SSID)
	assert.Equal(t, 1, stacks[0].Slots[1].PerpIndex)
}

func stackSSIDs(stacks []Stack) [][]string {
	out := make([][]string, len(stacks))

	for i, s := range stacks {
		for _, slot := range s.Slots {
			out[i] = append(out[i], slot.SSID)
		}
	}

	return out
}

func Test_RotationWindow_rotatesAfterInterval(t *testing.T) {
	w := &RotationWindow{MaxVisible: 2, RotateEvery: time.Second}

	devices := []string{"a", "b", "c", "d"}

	start := time.Unix(1000, 0)

	first := w.Visible(devices, start)
	assert.Equal(t, []string{"a", "b"}, first)

	sameInstant := w.Visible(devices, start)
	assert.Equal(t, []string{"a", "b"}, sameInstant, "no rotation before the interval elapses")

	after := w.Visible(devices, start.Add(time.Second))
	assert.Equal(t, []string{"b", "c"}, after)
}

func Test_RotationWindow_noRotationWhenUnderCapacity(t *testing.T) {
	w := NewRotationWindow()

	devices := []string{"a", "b", "c"}

	assert.Equal(t, devices, w.Visible(devices, time.Unix(0, 0)))
}

func Test_EffectiveHeadingWithFallback(t *testing.T) {
	imu := 42.0
	gps := 99.0

	heading, fromFallback := EffectiveHeadingWithFallback(&imu, &gps)
	assert.Equal(t, 42.0, heading)
	assert.False(t, fromFallback)

	heading, fromFallback = EffectiveHeadingWithFallback(nil, &gps)
	assert.Equal(t, 99.0, heading)
	assert.True(t, fromFallback)

	heading, fromFallback = EffectiveHeadingWithFallback(nil, nil)
	assert.Equal(t, 0.0, heading)
	assert.True(t, fromFallback)
}
