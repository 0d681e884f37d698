package main

import (
	"fmt"
	"time"

	"lanecam/alert"
	"lanecam/overlay"
	"lanecam/pipeline"
	"lanecam/pkg/ffmpeg"
	"lanecam/vehicle"
	"lanecam/video"

	"gocv.io/x/gocv"
)

// pollInterval is how often the consumer drains the output queue
const pollInterval = 30 * time.Millisecond

// consumer drains annotated frames from the session on the main goroutine,
// where the display window has to live.
type consumer struct {
	session  *pipeline.Session[gocv.Mat]
	renderer *overlay.Renderer
	sink     alert.Sink

	window    *gocv.Window
	recorder  *video.Recorder
	snapshots *video.Snapshotter
	streamer  *ffmpeg.Streamer

	perfInterval time.Duration
	toggle       chan struct{}

	lastFrame  gocv.Mat
	haveFrame  bool
	lastStatus alert.Severity
	delivered  int64
}

// run polls until the session has finished and its output is drained
func (c *consumer) run() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var perf <-chan time.Time
	if c.perfInterval > 0 {
		perfTicker := time.NewTicker(c.perfInterval)
		defer perfTicker.Stop()
		perf = perfTicker.C
	}

	for {
		select {
		case <-ticker.C:
			c.drain()
			c.handleKeys()
		case <-c.toggle:
			c.togglePause()
		case <-perf:
			c.reportPerf()
		case <-c.session.Done():
			c.drain()
			c.reportPerf()
			return
		}
	}
}

func (c *consumer) drain() {
	for {
		out, ok := c.session.Poll()
		if !ok {
			return
		}
		c.handle(out)
	}
}

func (c *consumer) handle(out pipeline.Output[gocv.Mat]) {
	c.delivered++

	if c.recorder != nil {
		if err := c.recorder.Write(out.Frame); err != nil {
			debugMsg("WARN", fmt.Sprintf("frame %d not recorded: %v", out.Index, err))
		}
	}
	if c.streamer != nil {
		if err := c.streamer.WriteFrame(out.Frame.ToBytes()); err != nil && err != ffmpeg.ErrClosed {
			debugMsg("WARN", fmt.Sprintf("frame %d not streamed: %v", out.Index, err))
		}
	}
	if out.Status != c.lastStatus {
		debugMsg("ALERT", fmt.Sprintf("frame %d: status %s -> %s (%d vehicles)", out.Index, c.lastStatus, out.Status, len(out.Vehicles)))
		if c.snapshots != nil {
			if path := c.snapshots.Save(out.Frame, out.Index, out.Status.String()); path != "" {
				debugMsg("SNAPSHOT", "queued "+path)
			}
		}
		c.lastStatus = out.Status
	}
	for _, v := range out.Vehicles {
		if v.SpeedKnown {
			debugMsgVerbose("VEHICLE", fmt.Sprintf("frame %d: %s in %s at %.3f km/h -> %s",
				out.Index, vehicle.ClassName(v.Track.ClassID), v.Zone, v.SpeedKmph, v.Severity), v.Track.ID.String())
		}
	}

	if c.window != nil {
		c.window.IMShow(out.Frame)
	}
	// Keep the newest frame for the paused display.
	if c.haveFrame {
		c.lastFrame.Close()
	}
	c.lastFrame = out.Frame
	c.haveFrame = true
}

func (c *consumer) handleKeys() {
	if c.window == nil {
		return
	}
	switch key := c.window.WaitKey(1); key {
	case 'p', 'P', ' ':
		c.togglePause()
	case 'q', 'Q', 27:
		debugMsg("INFO", "quit requested from window")
		c.session.Stop()
	}
}

// requestToggle asks the consumer loop to toggle pause. Safe from any
// goroutine.
func (c *consumer) requestToggle() {
	select {
	case c.toggle <- struct{}{}:
	default:
	}
}

// togglePause flips the session between running and paused and keeps the
// alert sink in step with it.
func (c *consumer) togglePause() {
	switch state := c.session.TogglePause(); state {
	case pipeline.Paused:
		c.sink.Pause()
		debugMsg("INFO", "paused")
		if c.window != nil && c.haveFrame {
			paused := c.lastFrame.Clone()
			c.renderer.DrawPaused(&paused)
			c.window.IMShow(paused)
			paused.Close()
		}
	case pipeline.Running:
		c.sink.Resume()
		debugMsg("INFO", "resumed")
	default:
		debugMsg("INFO", fmt.Sprintf("pause ignored in state %s", state))
	}
}

func (c *consumer) reportPerf() {
	st := c.session.Stats()
	debugMsg("PERF", fmt.Sprintf(
		"read %.1f fps, processed %.1f fps | frames read=%d processed=%d delivered=%d dropped in=%d out=%d | avg read=%v detect=%v track=%v total=%v",
		st.ReadFPS, st.ProcessFPS, st.FramesRead, st.Processed, c.delivered, st.InputDropped, st.OutputDropped,
		st.AvgRead, st.AvgDetect, st.AvgTrack, st.AvgProcess))
}

func (c *consumer) close() {
	if c.haveFrame {
		c.lastFrame.Close()
		c.haveFrame = false
	}
}
