package pipeline

import (
	"context"
	"testing"
	"time"

	"lanecam/alert"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "IDLE", Idle.String())
	assert.Equal(t, "RUNNING", Running.String())
	assert.Equal(t, "PAUSED", Paused.String())
	assert.Equal(t, "STOPPED", Stopped.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestNewSessionRequiresCollaborators(t *testing.T) {
	est := newEstimator(t)
	full := Deps[int]{Source: &countingSource{}, Detector: &laneDetector{}, Tracker: &fixedTracker{}, Estimator: est}

	_, err := NewSession(DefaultConfig(), full)
	require.NoError(t, err)

	for name, deps := range map[string]Deps[int]{
		"source":    {Detector: full.Detector, Tracker: full.Tracker, Estimator: est},
		"detector":  {Source: full.Source, Tracker: full.Tracker, Estimator: est},
		"tracker":   {Source: full.Source, Detector: full.Detector, Estimator: est},
		"estimator": {Source: full.Source, Detector: full.Detector, Tracker: full.Tracker},
	} {
		_, err := NewSession(DefaultConfig(), deps)
		assert.Error(t, err, "missing %s", name)
	}
}

// brokenSource delivers a few frames and then fails
type brokenSource struct {
	countingSource
	after int
}

func (s *brokenSource) Read() (int, error) {
	if int(s.next.Load()) >= s.after {
		return 0, errors.New("device unplugged")
	}
	return s.countingSource.Read()
}

func TestSourceFailureEndsStreamCleanly(t *testing.T) {
	src := &brokenSource{countingSource: countingSource{limit: -1}, after: 7}
	cfg := fastConfig()
	cfg.OutputCapacity = 64

	s, err := NewSession(cfg, Deps[int]{
		Source: src, Detector: &laneDetector{}, Tracker: &fixedTracker{}, Estimator: newEstimator(t),
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	outs := drain(t, s)
	assert.Len(t, outs, 7)
	assert.NoError(t, s.Err())
	assert.Equal(t, Stopped, s.State())
	assert.Equal(t, int32(1), src.closes.Load())
}

func TestFramesFlowInOrderToEndOfStream(t *testing.T) {
	src := &countingSource{limit: 20}
	ann := &markAnnotator{}
	cfg := fastConfig()
	cfg.OutputCapacity = 64

	s, err := NewSession(cfg, Deps[int]{
		Source: src, Detector: &laneDetector{}, Tracker: &fixedTracker{},
		Estimator: newEstimator(t), Annotator: ann,
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	outs := drain(t, s)
	require.Len(t, outs, 20)
	for i, out := range outs {
		assert.Equal(t, i, out.Index)
		assert.Equal(t, -i-1, out.Frame, "annotated frame %d", i)
		assert.Equal(t, alert.Green, out.Status)
		assert.Empty(t, out.Vehicles)
	}

	assert.Equal(t, Stopped, s.State())
	assert.NoError(t, s.Err())
	assert.Equal(t, int32(20), ann.calls.Load())
	assert.Equal(t, int32(1), src.closes.Load())

	st := s.Stats()
	assert.Equal(t, int64(20), st.FramesRead)
	assert.Equal(t, int64(20), st.Processed)
	assert.Zero(t, st.InputDropped)
	assert.Zero(t, st.OutputDropped)
}

func TestHazardReadingsPerFrame(t *testing.T) {
	// A car crossing the red band at 10 px per frame: 6.288 km/h with the
	// stock calibration, above the red zone limit of 5.
	det := &laneDetector{at: func(f int) (float64, float64, float64, float64, bool) {
		x := 250 + 10*float64(f)
		return x, 400, x + 60, 470, true
	}}
	notifier := alert.NewNotifier()
	var transitions [][2]alert.Severity
	notifier.SetOnStateChanged(func(from, to alert.Severity) {
		transitions = append(transitions, [2]alert.Severity{from, to})
	})
	est := newEstimator(t)
	cfg := fastConfig()
	cfg.OutputCapacity = 64

	s, err := NewSession(cfg, Deps[int]{
		Source: &countingSource{limit: 15}, Detector: det, Tracker: &fixedTracker{},
		Estimator: est, Notifier: notifier,
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	outs := drain(t, s)
	require.Len(t, outs, 15)

	first := outs[0]
	require.Len(t, first.Vehicles, 1)
	assert.False(t, first.Vehicles[0].SpeedKnown)
	assert.Equal(t, "red_zone", string(first.Vehicles[0].Zone))
	assert.Equal(t, alert.Yellow, first.Status, "unknown speed in the red zone")

	for _, out := range outs[1:] {
		require.Len(t, out.Vehicles, 1)
		v := out.Vehicles[0]
		assert.True(t, v.SpeedKnown)
		assert.InDelta(t, 6.288, v.SpeedKmph, 1e-3)
		assert.Equal(t, alert.Red, v.Severity)
		assert.Equal(t, alert.Red, out.Status)
	}

	assert.Equal(t, [][2]alert.Severity{{alert.Green, alert.Yellow}, {alert.Yellow, alert.Red}}, transitions)
	assert.Equal(t, 15, est.FrameIndex())
	assert.Len(t, est.History(first.Vehicles[0].Track.ID), 15)
}

func TestVehiclesOutsideZonesAreIgnored(t *testing.T) {
	det := &laneDetector{at: func(int) (float64, float64, float64, float64, bool) {
		return 0, 0, 50, 50, true
	}}
	est := newEstimator(t)
	cfg := fastConfig()
	cfg.OutputCapacity = 64
	s, err := NewSession(cfg, Deps[int]{Source: &countingSource{limit: 5}, Detector: det, Tracker: &fixedTracker{}, Estimator: est})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	for _, out := range drain(t, s) {
		assert.Empty(t, out.Vehicles)
		assert.Equal(t, alert.Green, out.Status)
	}
	assert.Zero(t, est.Tracks())
	assert.Equal(t, 5, est.FrameIndex())
}

func TestFullOutputQueueNeverBlocksProcessing(t *testing.T) {
	rel := &releaseLog{}
	cfg := fastConfig()
	cfg.OutputCapacity = 2

	s, err := NewSession(cfg, Deps[int]{
		Source: &countingSource{limit: 30}, Detector: &laneDetector{}, Tracker: &fixedTracker{},
		Estimator: newEstimator(t), Release: rel.release,
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	// Nobody polls until the session is over.
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("processor blocked on a full output queue")
	}

	st := s.Stats()
	assert.Equal(t, int64(30), st.Processed)
	assert.Equal(t, int64(28), st.OutputDropped)
	assert.Len(t, rel.snapshot(), 28)

	first, ok := s.Poll()
	require.True(t, ok)
	assert.Equal(t, 0, first.Index)
}

func TestPauseHoldsReaderAndProcessor(t *testing.T) {
	src := &countingSource{limit: -1}
	est := newEstimator(t)
	tracker := &fixedTracker{}
	det := &laneDetector{at: func(f int) (float64, float64, float64, float64, bool) {
		return 300, 400 - float64(f%50), 400, 470 - float64(f%50), true
	}}
	cfg := fastConfig()
	cfg.ReadInterval = time.Millisecond
	cfg.OutputCapacity = 4096

	s, err := NewSession(cfg, Deps[int]{Source: src, Detector: det, Tracker: tracker, Estimator: est})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return s.Processed() >= 5 }, 2*time.Second, time.Millisecond)

	s.Pause()
	assert.Equal(t, Paused, s.State())
	time.Sleep(50 * time.Millisecond)

	require.Len(t, tracker.ids, 1)
	id := tracker.ids[0]
	read, processed := src.next.Load(), s.Processed()
	queued, frameIndex, history := len(s.output), est.FrameIndex(), est.History(id)
	require.NotEmpty(t, history)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, read, src.next.Load(), "no frames read while paused")
	assert.Equal(t, processed, s.Processed(), "no frames consumed while paused")
	assert.Equal(t, queued, len(s.output), "no outputs queued while paused")
	assert.Equal(t, frameIndex, est.FrameIndex(), "frame index frozen while paused")
	assert.Equal(t, history, est.History(id), "no samples recorded while paused")

	s.Resume()
	assert.Equal(t, Running, s.State())
	require.Eventually(t, func() bool { return s.Processed() > processed }, 2*time.Second, time.Millisecond)
	assert.Greater(t, est.FrameIndex(), frameIndex)
}

func TestFullInputQueueDropsWhileRunning(t *testing.T) {
	det := &laneDetector{gate: func(int) { time.Sleep(15 * time.Millisecond) }}
	src := &countingSource{limit: 200}
	rel := &releaseLog{}
	cfg := fastConfig()
	cfg.InputCapacity = 2
	cfg.OutputCapacity = 256
	cfg.PushTimeout = 2 * time.Millisecond

	s, err := NewSession(cfg, Deps[int]{Source: src, Detector: det, Tracker: &fixedTracker{}, Estimator: newEstimator(t), Release: rel.release})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	outs := drain(t, s)
	assert.Equal(t, Stopped, s.State())
	assert.NoError(t, s.Err())
	assert.Equal(t, int32(1), src.closes.Load())

	st := s.Stats()
	assert.Equal(t, int64(200), st.FramesRead)
	assert.Greater(t, st.InputDropped, int64(0))
	assert.Zero(t, st.OutputDropped)
	assert.Equal(t, int64(200), st.Processed+st.InputDropped)
	assert.Len(t, rel.snapshot(), int(st.InputDropped), "dropped frames are released")

	require.Len(t, outs, int(st.Processed))
	for i, out := range outs {
		assert.Equal(t, i, out.Index, "indices count processed frames")
		if i > 0 {
			assert.Greater(t, out.Frame, outs[i-1].Frame, "frames stay in read order")
		}
	}
}

func TestTogglePause(t *testing.T) {
	s, err := NewSession(fastConfig(), Deps[int]{Source: &countingSource{limit: -1}, Detector: &laneDetector{}, Tracker: &fixedTracker{}, Estimator: newEstimator(t)})
	require.NoError(t, err)

	assert.Equal(t, Idle, s.TogglePause(), "idle sessions do not pause")
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Paused, s.TogglePause())
	assert.Equal(t, Running, s.TogglePause())

	s.Stop()
	assert.Equal(t, Stopped, s.TogglePause())
	s.Resume()
	assert.Equal(t, Stopped, s.State())
	<-s.Done()
}

func TestStopDrainsQueuedFrames(t *testing.T) {
	gate := make(chan struct{})
	det := &laneDetector{gate: func(f int) {
		if f == 0 {
			<-gate
		}
	}}
	src := &countingSource{limit: -1}
	rel := &releaseLog{}
	cfg := fastConfig()
	cfg.InputCapacity = 3
	cfg.OutputCapacity = 16
	cfg.PushTimeout = 10 * time.Second

	s, err := NewSession(cfg, Deps[int]{Source: src, Detector: det, Tracker: &fixedTracker{}, Estimator: newEstimator(t), Release: rel.release})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	// Frame 0 is held in the detector, 1-3 fill the queue, 4 waits for space.
	require.Eventually(t, func() bool { return s.stats.Snapshot().FramesRead == 5 }, 2*time.Second, time.Millisecond)
	s.Stop()
	close(gate)

	outs := drain(t, s)
	require.Len(t, outs, 4)
	for i, out := range outs {
		assert.Equal(t, i, out.Frame)
	}
	assert.Equal(t, []int{4}, rel.snapshot())
	assert.NoError(t, s.Err())
	assert.Equal(t, int32(1), src.closes.Load())
	assert.Equal(t, int64(1), s.Stats().InputDropped)
}

func TestDetectorFailureIsFatal(t *testing.T) {
	boom := errors.New("model exploded")
	det := &laneDetector{fail: func(f int) error {
		if f == 3 {
			return boom
		}
		return nil
	}}
	rel := &releaseLog{}
	cfg := fastConfig()
	cfg.OutputCapacity = 64

	s, err := NewSession(cfg, Deps[int]{
		Source: &countingSource{limit: 50}, Detector: det, Tracker: &fixedTracker{},
		Estimator: newEstimator(t), Release: rel.release,
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	outs := drain(t, s)
	require.Len(t, outs, 3)
	assert.Equal(t, Stopped, s.State())
	require.Error(t, s.Err())
	assert.ErrorIs(t, s.Err(), boom)
	assert.Contains(t, s.Err().Error(), "detecting vehicles")

	// Every frame read is either delivered or released.
	st := s.Stats()
	assert.Equal(t, int64(3), st.Processed)
	assert.Equal(t, int(st.FramesRead), len(outs)+len(rel.snapshot()))
	assert.Contains(t, rel.snapshot(), 3)
}

func TestStartTwice(t *testing.T) {
	s, err := NewSession(fastConfig(), Deps[int]{Source: &countingSource{limit: 1}, Detector: &laneDetector{}, Tracker: &fixedTracker{}, Estimator: newEstimator(t)})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrNotIdle)
	drain(t, s)
}

func TestStopBeforeStart(t *testing.T) {
	src := &countingSource{limit: 10}
	s, err := NewSession(fastConfig(), Deps[int]{Source: src, Detector: &laneDetector{}, Tracker: &fixedTracker{}, Estimator: newEstimator(t)})
	require.NoError(t, err)

	s.Stop()
	s.Stop()
	<-s.Done()
	_, ok := s.Poll()
	assert.False(t, ok)
	assert.Equal(t, int32(1), src.closes.Load())
	assert.ErrorIs(t, s.Start(context.Background()), ErrNotIdle)
}

func TestContextCancelStops(t *testing.T) {
	s, err := NewSession(fastConfig(), Deps[int]{Source: &countingSource{limit: -1}, Detector: &laneDetector{}, Tracker: &fixedTracker{}, Estimator: newEstimator(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session ignored context cancellation")
	}
	assert.Equal(t, Stopped, s.State())
	assert.NoError(t, s.Err())
}
