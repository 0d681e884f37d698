// Package ffmpeg pushes annotated frames to an ffmpeg process for live
// streaming and watches its output for stalls.
package ffmpeg

import (
	"sync"
)

// OutputBuffer keeps the most recent lines of process output for crash dumps
type OutputBuffer struct {
	lines    []string
	maxLines int
	index    int
	full     bool
	mutex    sync.RWMutex
}

// NewOutputBuffer creates a circular buffer holding maxLines lines
func NewOutputBuffer(maxLines int) *OutputBuffer {
	if maxLines < 1 {
		maxLines = 1
	}
	return &OutputBuffer{
		lines:    make([]string, maxLines),
		maxLines: maxLines,
	}
}

// Add stores a line, overwriting the oldest when full
func (ob *OutputBuffer) Add(line string) {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()

	ob.lines[ob.index] = line
	ob.index = (ob.index + 1) % ob.maxLines
	if ob.index == 0 {
		ob.full = true
	}
}

// GetRecent returns the stored lines, oldest first
func (ob *OutputBuffer) GetRecent() []string {
	ob.mutex.RLock()
	defer ob.mutex.RUnlock()

	if !ob.full {
		return append([]string(nil), ob.lines[:ob.index]...)
	}
	result := make([]string, 0, ob.maxLines)
	result = append(result, ob.lines[ob.index:]...)
	return append(result, ob.lines[:ob.index]...)
}
