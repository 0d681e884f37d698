package alert

import (
	"testing"

	"lanecam/units"
	"lanecam/zones"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, int(Green), int(Yellow))
	assert.Less(t, int(Yellow), int(Red))
	assert.Equal(t, "RED", Red.String())
	assert.Equal(t, "UNKNOWN", Severity(9).String())
}

func TestThresholdTable(t *testing.T) {
	th := DefaultThresholds
	cases := []struct {
		zone  zones.Name
		kmph  float64
		known bool
		want  Severity
	}{
		{zones.Green, 10, true, Green},
		{zones.Green, 10.001, true, Yellow},
		{zones.Yellow, 8, true, Yellow},
		{zones.Yellow, 8.5, true, Red},
		{zones.Red, 5, true, Yellow},
		{zones.Red, 6.372, true, Red},
		{zones.Red, 0, false, Yellow},
		{zones.Yellow, 99, false, Yellow},
		{zones.Green, 99, false, Green},
		{zones.Trapezoid, 99, true, Green},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, th.Severity(tc.zone, tc.kmph, tc.known), "%s at %v (known=%v)", tc.zone, tc.kmph, tc.known)
	}
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, Green, Aggregate(nil))
	assert.Equal(t, Yellow, Aggregate([]Vehicle{{Severity: Green}, {Severity: Yellow}}))
	assert.Equal(t, Red, Aggregate([]Vehicle{{Severity: Red}, {Severity: Yellow}, {Severity: Green}}))

	// Any order gives the same answer.
	vs := []Vehicle{{Severity: Yellow}, {Severity: Red}, {Severity: Green}}
	for i := 0; i < len(vs); i++ {
		rotated := append(append([]Vehicle{}, vs[i:]...), vs[:i]...)
		assert.Equal(t, Red, Aggregate(rotated))
	}
}

func TestSpeedLabel(t *testing.T) {
	v := Vehicle{SpeedKmph: 6.372, SpeedKnown: true}
	assert.Equal(t, "Speed: 6.372 km/h", v.SpeedLabel(units.KMPH))
	assert.Equal(t, "Speed: 1.770 m/s", v.SpeedLabel(units.MPS))
	assert.Equal(t, "Speed: Calculating", Vehicle{}.SpeedLabel(units.KMPH))
}

func TestNotifierReportsChangesOnly(t *testing.T) {
	n := NewNotifier()
	var seen [][2]Severity
	n.SetOnStateChanged(func(from, to Severity) {
		seen = append(seen, [2]Severity{from, to})
	})

	assert.False(t, n.Observe(Green))
	assert.True(t, n.Observe(Red))
	assert.False(t, n.Observe(Red))
	assert.True(t, n.Observe(Yellow))
	n.Reset()

	require.Len(t, seen, 3)
	assert.Equal(t, [2]Severity{Green, Red}, seen[0])
	assert.Equal(t, [2]Severity{Red, Yellow}, seen[1])
	assert.Equal(t, [2]Severity{Yellow, Green}, seen[2])
	assert.Equal(t, Green, n.Current())
}

func TestLogSinkFollowsNotifier(t *testing.T) {
	n := NewNotifier()
	sink := NewLogSink()
	Attach(n, sink)

	n.Observe(Yellow)
	playing, paused := sink.Playing()
	assert.Equal(t, Yellow, playing)
	assert.False(t, paused)

	sink.Pause()
	n.Observe(Red)
	playing, paused = sink.Playing()
	assert.Equal(t, Red, playing)
	assert.True(t, paused)

	sink.Resume()
	sink.Stop()
	n.Observe(Yellow)
	playing, _ = sink.Playing()
	assert.Equal(t, Green, playing, "stopped sink stays silent")
}
