package alert

import (
	"fmt"
	"sync"
)

// Sink is the alert playback collaborator. Play is only called on a status
// change and should loop the sound for that status until the next call.
type Sink interface {
	Play(status Severity)
	Pause()
	Resume()
	Stop()
}

// LogSink is a Sink that reports playback transitions through the debug
// logger instead of an audio device.
type LogSink struct {
	mu      sync.Mutex
	playing Severity
	paused  bool
	stopped bool
}

// NewLogSink creates a sink that starts silent on Green
func NewLogSink() *LogSink {
	return &LogSink{playing: Green}
}

// Play switches the looped alert to status
func (s *LogSink) Play(status Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.playing = status
	debugMsg("ALERT", fmt.Sprintf("looping %s alert (paused=%v)", status, s.paused))
}

// Pause suspends playback without forgetting the current alert
func (s *LogSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || s.stopped {
		return
	}
	s.paused = true
	debugMsg("ALERT", fmt.Sprintf("%s alert paused", s.playing))
}

// Resume continues the current alert after Pause
func (s *LogSink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused || s.stopped {
		return
	}
	s.paused = false
	debugMsg("ALERT", fmt.Sprintf("%s alert resumed", s.playing))
}

// Stop silences the sink and resets it to Green
func (s *LogSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.playing = Green
	debugMsg("ALERT", "alert playback stopped")
}

// Playing returns the current alert and whether it is paused
func (s *LogSink) Playing() (Severity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing, s.paused
}

// Attach wires the sink to a notifier so that every transition switches the
// looped alert.
func Attach(n *Notifier, sink Sink) {
	n.SetOnStateChanged(func(_, status Severity) {
		sink.Play(status)
	})
}
