package main

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DebugLogger fans the packages' debug messages out to one zerolog logger
type DebugLogger struct {
	logger  zerolog.Logger
	verbose bool

	mu     sync.Mutex
	counts map[string]int // messages per component
}

// NewDebugLogger writes to w, as JSON lines when jsonOutput is set and as a
// console stream otherwise. debug lowers the level from info to debug.
func NewDebugLogger(w io.Writer, debug, verbose, jsonOutput bool) *DebugLogger {
	if w == nil {
		w = os.Stderr
	}
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	level := zerolog.InfoLevel
	if debug || verbose {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return &DebugLogger{
		logger:  zerolog.New(w).Level(level).With().Timestamp().Logger(),
		verbose: verbose,
		counts:  make(map[string]int),
	}
}

// levelFor maps the component tags used across the packages to log levels
func levelFor(component string) zerolog.Level {
	switch {
	case strings.Contains(component, "ERROR"), strings.Contains(component, "FATAL"):
		return zerolog.ErrorLevel
	case strings.Contains(component, "WARN"):
		return zerolog.WarnLevel
	case component == "INFO", component == "ALERT", component == "PERF", component == "PIPELINE":
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}

// debugMsg is the function handed to every package's SetDebugFunction
func (dl *DebugLogger) debugMsg(component, message string, trackID ...string) {
	dl.mu.Lock()
	dl.counts[component]++
	dl.mu.Unlock()

	event := dl.logger.WithLevel(levelFor(component)).Str("component", component)
	if len(trackID) > 0 && trackID[0] != "" {
		event = event.Str("track", trackID[0])
	}
	event.Msg(message)
}

// verboseMsg logs only with -debug-verbose
func (dl *DebugLogger) verboseMsg(component, message string, trackID ...string) {
	if !dl.verbose {
		return
	}
	dl.debugMsg(component, message, trackID...)
}

// Summary logs how many messages each component produced
func (dl *DebugLogger) Summary() {
	dl.mu.Lock()
	names := make([]string, 0, len(dl.counts))
	for name := range dl.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	dict := zerolog.Dict()
	for _, name := range names {
		dict = dict.Int(name, dl.counts[name])
	}
	dl.mu.Unlock()
	dl.logger.Debug().Dict("messages", dict).Msg("debug logger summary")
}

// debugMsg is the global convenience function for unified debug logging
func debugMsg(component, message string, trackID ...string) {
	if globalDebugLogger != nil {
		globalDebugLogger.debugMsg(component, message, trackID...)
		return
	}
	// Fallback if logger not initialized
	os.Stderr.WriteString("[" + time.Now().Format("15:04:05.000") + "][" + component + "] " + message + "\n")
}

// debugMsgVerbose only outputs if debug-verbose flag is enabled
func debugMsgVerbose(component, message string, trackID ...string) {
	if globalDebugLogger != nil {
		globalDebugLogger.verboseMsg(component, message, trackID...)
	}
}
