// Package pipeline runs the two-worker hazard loop: a reader that pulls frames
// from a source into a bounded queue and a processor that classifies, times
// and scores every tracked vehicle before handing annotated frames to the
// consumer through a second bounded queue.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"lanecam/alert"
	"lanecam/zones"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, trackID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, trackID...)
	}
}

// ErrNotIdle is returned by Start on a session that already ran
var ErrNotIdle = errors.New("pipeline: session already started")

// Output is one processed frame with its hazard readings
type Output[F any] struct {
	Index    int
	Frame    F
	Status   alert.Severity
	Vehicles []alert.Vehicle
}

// Session is one run of the pipeline over one source. Tracker and estimator
// state belong to the session and are only touched by the processor.
type Session[F any] struct {
	id    uuid.UUID
	cfg   Config
	deps  Deps[F]
	stats *PipelineStats

	state    atomic.Int32
	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}

	input  chan F
	output chan Output[F]

	closeSourceOnce sync.Once
	errMu           sync.Mutex
	err             error
	failed          bool
}

// NewSession validates deps and builds an idle session
func NewSession[F any](cfg Config, deps Deps[F]) (*Session[F], error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Session[F]{
		id:      uuid.New(),
		cfg:     cfg,
		deps:    deps,
		stats:   NewPipelineStats(),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
		input:   make(chan F, cfg.InputCapacity),
		output:  make(chan Output[F], cfg.OutputCapacity),
	}, nil
}

// ID identifies the session in logs
func (s *Session[F]) ID() uuid.UUID {
	return s.id
}

// Start launches the reader and processor. Cancelling ctx stops the session.
func (s *Session[F]) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrNotIdle
	}
	debugMsg("PIPELINE", fmt.Sprintf("session %s started", s.id))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.read()
	}()
	go func() {
		defer wg.Done()
		s.process()
	}()
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()
	go func() {
		wg.Wait()
		close(s.done)
		st := s.stats.Snapshot()
		debugMsg("PIPELINE", fmt.Sprintf("session %s finished: read=%d processed=%d dropped_in=%d dropped_out=%d",
			s.id, st.FramesRead, st.Processed, st.InputDropped, st.OutputDropped))
	}()
	return nil
}

// Pause stops reading and consuming frames until Resume. Queued frames are kept.
func (s *Session[F]) Pause() {
	if s.state.CompareAndSwap(int32(Running), int32(Paused)) {
		debugMsg("PIPELINE", "paused")
	}
}

// Resume continues a paused session
func (s *Session[F]) Resume() {
	if s.state.CompareAndSwap(int32(Paused), int32(Running)) {
		debugMsg("PIPELINE", "resumed")
	}
}

// TogglePause flips between Running and Paused and returns the new state.
// Other states are returned unchanged.
func (s *Session[F]) TogglePause() State {
	for {
		cur := State(s.state.Load())
		var next State
		switch cur {
		case Running:
			next = Paused
		case Paused:
			next = Running
		default:
			return cur
		}
		if s.state.CompareAndSwap(int32(cur), int32(next)) {
			debugMsg("PIPELINE", fmt.Sprintf("%s -> %s", cur, next))
			return next
		}
	}
}

// Stop ends the session. The reader exits after its current read, the
// processor drains what is already queued. Safe to call more than once and
// before Start.
func (s *Session[F]) Stop() {
	prev := State(s.state.Swap(int32(Stopped)))
	s.stopOnce.Do(func() {
		close(s.stopped)
		debugMsg("PIPELINE", fmt.Sprintf("stop requested in state %s", prev))
		if prev == Idle {
			s.closeSource()
			close(s.input)
			close(s.output)
			close(s.done)
		}
	})
}

// State returns the current lifecycle state
func (s *Session[F]) State() State {
	return State(s.state.Load())
}

// Poll returns the next processed frame without blocking. ok is false when
// nothing is queued or the session has finished.
func (s *Session[F]) Poll() (Output[F], bool) {
	select {
	case out, ok := <-s.output:
		return out, ok
	default:
		return Output[F]{}, false
	}
}

// Done is closed once both workers have exited and the output queue is closed
func (s *Session[F]) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal error that ended the session, or nil after a clean
// end of stream or Stop.
func (s *Session[F]) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Stats returns the session counters and resets the rate window
func (s *Session[F]) Stats() Stats {
	return s.stats.Report()
}

// Processed returns how many frames the processor has finished
func (s *Session[F]) Processed() int64 {
	return s.stats.Snapshot().Processed
}

func (s *Session[F]) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.failed = true
	s.errMu.Unlock()
	debugMsg("PIPELINE", fmt.Sprintf("fatal: %v", err))
	s.Stop()
}

func (s *Session[F]) hasFailed() bool {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.failed
}

func (s *Session[F]) release(f F) {
	if s.deps.Release != nil {
		s.deps.Release(f)
	}
}

func (s *Session[F]) closeSource() {
	s.closeSourceOnce.Do(func() {
		if err := s.deps.Source.Close(); err != nil {
			debugMsg("PIPELINE", fmt.Sprintf("closing source: %v", err))
		}
	})
}

// sleep waits for d or until the session stops
func (s *Session[F]) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.stopped:
	}
}

// read is the only sender on input and closes it on exit
func (s *Session[F]) read() {
	defer close(s.input)
	defer s.closeSource()

	for {
		switch s.State() {
		case Stopped:
			return
		case Paused:
			s.sleep(s.cfg.PausePoll)
			continue
		}

		start := time.Now()
		frame, err := s.deps.Source.Read()
		if err != nil {
			// A failing source ends the stream like io.EOF does.
			if errors.Is(err, io.EOF) {
				debugMsg("READER", "end of stream")
			} else {
				debugMsg("READER", fmt.Sprintf("read failed, ending stream: %v", err))
			}
			s.Stop()
			return
		}
		s.stats.UpdateRead(time.Since(start))

		if !s.push(frame) {
			s.release(frame)
			s.stats.DropInput()
			debugMsg("READER", "input queue full, frame dropped")
		}
		s.sleep(s.cfg.ReadInterval)
	}
}

func (s *Session[F]) push(frame F) bool {
	t := time.NewTimer(s.cfg.PushTimeout)
	defer t.Stop()
	select {
	case s.input <- frame:
		return true
	case <-t.C:
		return false
	case <-s.stopped:
		return false
	}
}

// process is the only sender on output and closes it on exit. It keeps
// consuming until the reader has closed input, so frames queued before a
// Stop are still processed. After a fatal error they are released instead.
func (s *Session[F]) process() {
	defer close(s.output)

	for {
		if s.State() == Paused {
			s.sleep(s.cfg.PausePoll)
			continue
		}

		frame, ok, timedOut := s.pop()
		if timedOut {
			continue
		}
		if !ok {
			return
		}
		if s.hasFailed() {
			s.release(frame)
			continue
		}
		if err := s.handle(frame); err != nil {
			s.fail(err)
		}
	}
}

func (s *Session[F]) pop() (frame F, ok bool, timedOut bool) {
	t := time.NewTimer(s.cfg.PopTimeout)
	defer t.Stop()
	select {
	case frame, ok = <-s.input:
		return frame, ok, false
	case <-t.C:
		return frame, false, true
	}
}

// handle runs one frame through the hazard computation and queues the result
func (s *Session[F]) handle(raw F) error {
	start := time.Now()

	frame, set := raw, s.cfg.Zones
	if s.deps.Preparer != nil {
		var err error
		frame, set, err = s.deps.Preparer.Prepare(raw)
		if err != nil {
			s.release(raw)
			return errors.Wrap(err, "preparing frame")
		}
	}

	detectStart := time.Now()
	dets, err := s.deps.Detector.Detect(frame, set)
	if err != nil {
		s.release(frame)
		return errors.Wrap(err, "detecting vehicles")
	}
	s.stats.UpdateDetect(time.Since(detectStart))

	trackStart := time.Now()
	tracks, err := s.deps.Tracker.Update(dets)
	if err != nil {
		s.release(frame)
		return errors.Wrap(err, "tracking vehicles")
	}
	s.stats.UpdateTrack(time.Since(trackStart))

	index := s.deps.Estimator.FrameIndex()
	vehicles := make([]alert.Vehicle, 0, len(tracks))
	for _, tr := range tracks {
		zone, ok := zones.Classify(tr.Box, set, s.cfg.MinOverlap)
		if !ok {
			continue
		}
		s.deps.Estimator.Update(tr.ID, tr.Box)
		kmph, known := s.deps.Estimator.ComputeSpeed(tr.ID)
		vehicles = append(vehicles, alert.Vehicle{
			Track:      tr,
			Zone:       zone,
			SpeedKmph:  kmph,
			SpeedKnown: known,
			Severity:   s.cfg.Thresholds.Severity(zone, kmph, known),
		})
	}
	status := alert.Aggregate(vehicles)
	if s.deps.Notifier != nil && s.deps.Notifier.Observe(status) {
		debugMsg("ALERT", fmt.Sprintf("frame %d status %s (%d vehicles)", index, status, len(vehicles)))
	}

	if s.deps.Annotator != nil {
		frame = s.deps.Annotator.Annotate(frame, set, vehicles, status)
	}
	s.deps.Estimator.AdvanceFrame()
	s.stats.UpdateProcess(time.Since(start))

	select {
	case s.output <- Output[F]{Index: index, Frame: frame, Status: status, Vehicles: vehicles}:
	default:
		s.release(frame)
		s.stats.DropOutput()
	}
	return nil
}
