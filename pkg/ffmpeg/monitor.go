package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"
)

var (
	frameRegex          = regexp.MustCompile(`frame=\s*(\d+)`)
	timestampErrorRegex = regexp.MustCompile(`(?i)((DTS|PTS)\s+\d+,\s+next:\d+.*invalid dropping|Non-monotonic DTS.*previous:.*current:.*changing to)`)
)

// timestampErrorLimit errors within timestampErrorWindow mark the encoder unhealthy
const (
	timestampErrorLimit  = 3
	timestampErrorWindow = 30 * time.Second
)

// HealthMonitor tracks encoder progress from its log lines. The clock is
// injectable so stalls can be checked deterministically.
type HealthMonitor struct {
	mutex sync.RWMutex
	now   func() time.Time

	outputTimeout time.Duration
	frameTimeout  time.Duration

	lastOutput      time.Time
	lastFrameNumber int
	lastFrameUpdate time.Time

	timestampErrors int
	lastErrorTime   time.Time
	forceUnhealthy  bool

	stderr *OutputBuffer
}

// NewHealthMonitor reports a stall when no output arrives for outputTimeout or
// the frame counter does not advance for frameTimeout.
func NewHealthMonitor(outputTimeout, frameTimeout time.Duration) *HealthMonitor {
	m := &HealthMonitor{
		now:           time.Now,
		outputTimeout: outputTimeout,
		frameTimeout:  frameTimeout,
		stderr:        NewOutputBuffer(100),
	}
	m.Reset()
	return m
}

// Reset restarts the timers, used when the process starts
func (m *HealthMonitor) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	now := m.now()
	m.lastOutput = now
	m.lastFrameUpdate = now
	m.lastFrameNumber = 0
	m.timestampErrors = 0
	m.forceUnhealthy = false
}

// Observe records one line of encoder output
func (m *HealthMonitor) Observe(line string) {
	m.stderr.Add(line)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	now := m.now()
	m.lastOutput = now

	if timestampErrorRegex.MatchString(line) {
		if now.Sub(m.lastErrorTime) > timestampErrorWindow {
			m.timestampErrors = 0
		}
		m.timestampErrors++
		m.lastErrorTime = now
		debugMsg("FFMPEG", fmt.Sprintf("timestamp error #%d: %s", m.timestampErrors, line))
		if m.timestampErrors >= timestampErrorLimit {
			m.forceUnhealthy = true
		}
		return
	}

	if matches := frameRegex.FindStringSubmatch(line); len(matches) > 1 {
		if frameNum, err := strconv.Atoi(matches[1]); err == nil && frameNum > m.lastFrameNumber {
			m.lastFrameNumber = frameNum
			m.lastFrameUpdate = now
		}
	}
}

// Healthy returns false with a reason once the encoder has stalled or failed
func (m *HealthMonitor) Healthy() (bool, string) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	now := m.now()

	switch {
	case m.forceUnhealthy:
		return false, fmt.Sprintf("%d timestamp errors within %v", m.timestampErrors, timestampErrorWindow)
	case now.Sub(m.lastOutput) > m.outputTimeout:
		return false, fmt.Sprintf("no output for %v", now.Sub(m.lastOutput).Round(time.Millisecond))
	case now.Sub(m.lastFrameUpdate) > m.frameTimeout:
		return false, fmt.Sprintf("no frame progress for %v (last frame %d)",
			now.Sub(m.lastFrameUpdate).Round(time.Millisecond), m.lastFrameNumber)
	}
	return true, ""
}

// Frames returns the last frame number the encoder reported
func (m *HealthMonitor) Frames() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.lastFrameNumber
}

// Recent returns the last lines of encoder output, oldest first
func (m *HealthMonitor) Recent() []string {
	return m.stderr.GetRecent()
}
