package alert

import "sync"

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

// Notifier remembers the last aggregate status and reports transitions only.
// It starts at Green, so the first non-green status counts as a change.
type Notifier struct {
	mu       sync.Mutex
	current  Severity
	onChange []func(from, to Severity)
}

// NewNotifier creates a notifier in the Green state
func NewNotifier() *Notifier {
	return &Notifier{current: Green}
}

// SetOnStateChanged registers a callback for status transitions
func (n *Notifier) SetOnStateChanged(fn func(from, to Severity)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = append(n.onChange, fn)
}

// Observe records a frame's aggregate status and returns true when it differs
// from the previous one.
func (n *Notifier) Observe(status Severity) bool {
	n.mu.Lock()
	old := n.current
	if old == status {
		n.mu.Unlock()
		return false
	}
	n.current = status
	callbacks := append([]func(from, to Severity){}, n.onChange...)
	n.mu.Unlock()

	for _, cb := range callbacks {
		cb(old, status)
	}
	return true
}

// Current returns the last observed status
func (n *Notifier) Current() Severity {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Reset returns the notifier to Green, firing callbacks if it was not Green
func (n *Notifier) Reset() {
	n.Observe(Green)
}
