package pipeline

import (
	"sync"
	"time"
)

// Stats is a snapshot of session counters. Totals cover the whole session;
// the FPS and average fields cover the window since the previous Report.
type Stats struct {
	FramesRead    int64
	InputDropped  int64
	Processed     int64
	OutputDropped int64

	ReadFPS    float64
	ProcessFPS float64
	AvgRead    time.Duration
	AvgDetect  time.Duration
	AvgTrack   time.Duration
	AvgProcess time.Duration
}

// PipelineStats tracks performance metrics for the reader and processor
type PipelineStats struct {
	mu sync.Mutex

	framesRead    int64
	inputDropped  int64
	processed     int64
	outputDropped int64

	lastReportTime  time.Time
	windowRead      int64
	windowProcessed int64
	readTimeTotal   time.Duration
	detectTimeTotal time.Duration
	trackTimeTotal  time.Duration
	procTimeTotal   time.Duration
	detectCount     int64
	trackCount      int64
}

// NewPipelineStats creates a new pipeline statistics tracker
func NewPipelineStats() *PipelineStats {
	return &PipelineStats{lastReportTime: time.Now()}
}

// UpdateRead records one frame pulled from the source
func (ps *PipelineStats) UpdateRead(duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.framesRead++
	ps.windowRead++
	ps.readTimeTotal += duration
}

// DropInput records a frame discarded because the input queue stayed full
func (ps *PipelineStats) DropInput() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.inputDropped++
}

// DropOutput records an annotated frame discarded because the output queue was full
func (ps *PipelineStats) DropOutput() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.outputDropped++
}

// UpdateDetect records detector time for one frame
func (ps *PipelineStats) UpdateDetect(duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.detectTimeTotal += duration
	ps.detectCount++
}

// UpdateTrack records tracker time for one frame
func (ps *PipelineStats) UpdateTrack(duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.trackTimeTotal += duration
	ps.trackCount++
}

// UpdateProcess records one fully processed frame
func (ps *PipelineStats) UpdateProcess(duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.processed++
	ps.windowProcessed++
	ps.procTimeTotal += duration
}

// Snapshot returns the totals without touching the report window
func (ps *PipelineStats) Snapshot() Stats {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return Stats{
		FramesRead:    ps.framesRead,
		InputDropped:  ps.inputDropped,
		Processed:     ps.processed,
		OutputDropped: ps.outputDropped,
	}
}

// Report returns the totals plus rates and averages for the window since the
// last Report, then starts a new window.
func (ps *PipelineStats) Report() Stats {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	window := now.Sub(ps.lastReportTime).Seconds()
	if window <= 0 {
		window = 1.0
	}

	s := Stats{
		FramesRead:    ps.framesRead,
		InputDropped:  ps.inputDropped,
		Processed:     ps.processed,
		OutputDropped: ps.outputDropped,
		ReadFPS:       float64(ps.windowRead) / window,
		ProcessFPS:    float64(ps.windowProcessed) / window,
	}
	if ps.windowRead > 0 {
		s.AvgRead = ps.readTimeTotal / time.Duration(ps.windowRead)
	}
	if ps.detectCount > 0 {
		s.AvgDetect = ps.detectTimeTotal / time.Duration(ps.detectCount)
	}
	if ps.trackCount > 0 {
		s.AvgTrack = ps.trackTimeTotal / time.Duration(ps.trackCount)
	}
	if ps.windowProcessed > 0 {
		s.AvgProcess = ps.procTimeTotal / time.Duration(ps.windowProcessed)
	}

	ps.windowRead = 0
	ps.windowProcessed = 0
	ps.readTimeTotal = 0
	ps.detectTimeTotal = 0
	ps.trackTimeTotal = 0
	ps.procTimeTotal = 0
	ps.detectCount = 0
	ps.trackCount = 0
	ps.lastReportTime = now
	return s
}
