package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Global debug function for ffmpeg package
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

// ErrClosed is returned by WriteFrame after the encoder has stopped
var ErrClosed = errors.New("ffmpeg: stream closed")

// Options describe the raw BGR frames fed to ffmpeg and the stream target
type Options struct {
	Binary string // defaults to "ffmpeg"
	Width  int
	Height int
	FPS    float64
	URL    string // e.g. rtmp://localhost/live/lanes
}

// Args builds the ffmpeg command line: raw bgr24 frames on stdin, low-latency
// H.264 in FLV on the output URL.
func (o Options) Args() []string {
	gop := fmt.Sprintf("%d", int(o.FPS+0.5))
	return []string{
		"-hide_banner",
		"-thread_queue_size", "512",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-r", fmt.Sprintf("%g", o.FPS),
		"-i", "-",
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-f", "flv",
		"-flvflags", "no_duration_filesize",
		o.URL,
	}
}

// Streamer owns one ffmpeg process
type Streamer struct {
	opts    Options
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	monitor *HealthMonitor

	mu       sync.Mutex
	closed   bool
	frames   int64
	done     chan struct{}
	waitErr  error
	stopOnce sync.Once
}

// Start launches ffmpeg. onUnhealthy, when set, is called once if the encoder
// stalls; the stream is closed afterwards.
func Start(opts Options, onUnhealthy func(reason string)) (*Streamer, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, errors.Errorf("invalid stream geometry %dx%d @ %v fps", opts.Width, opts.Height, opts.FPS)
	}
	if opts.URL == "" {
		return nil, errors.New("missing stream URL")
	}
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}

	cmd := exec.Command(opts.Binary, opts.Args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stdin pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stderr pipe")
	}

	s := &Streamer{
		opts:    opts,
		cmd:     cmd,
		stdin:   stdin,
		monitor: NewHealthMonitor(30*time.Second, 10*time.Second),
		done:    make(chan struct{}),
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting %s", opts.Binary)
	}
	s.monitor.Reset()
	debugMsg("FFMPEG", fmt.Sprintf("streaming %dx%d @ %g fps to %s (pid %d)",
		opts.Width, opts.Height, opts.FPS, opts.URL, cmd.Process.Pid))

	go s.readOutput(stderr)
	go func() {
		s.waitErr = cmd.Wait()
		close(s.done)
	}()
	go s.watch(onUnhealthy)
	return s, nil
}

func (s *Streamer) readOutput(pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	// Progress lines end in \r rather than \n.
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		for i, b := range data {
			if b == '\n' || b == '\r' {
				return i + 1, data[:i], nil
			}
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	})
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.monitor.Observe(line)
	}
}

func (s *Streamer) watch(onUnhealthy func(string)) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if ok, reason := s.monitor.Healthy(); !ok {
				debugMsg("FFMPEG_ERROR", "encoder unhealthy: "+reason)
				for _, line := range s.monitor.Recent() {
					debugMsg("FFMPEG", line)
				}
				if onUnhealthy != nil {
					onUnhealthy(reason)
				}
				s.Close()
				return
			}
		}
	}
}

// WriteFrame sends one bgr24 frame of Width*Height*3 bytes
func (s *Streamer) WriteFrame(data []byte) error {
	if want := s.opts.Width * s.opts.Height * 3; len(data) != want {
		return errors.Errorf("frame is %d bytes, want %d", len(data), want)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.stdin.Write(data); err != nil {
		return errors.Wrap(err, "writing frame to ffmpeg")
	}
	s.frames++
	return nil
}

// Close ends the stream and waits up to five seconds for ffmpeg to exit
func (s *Streamer) Close() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.stdin.Close()
		frames := s.frames
		s.mu.Unlock()

		select {
		case <-s.done:
		case <-time.After(5 * time.Second):
			debugMsg("FFMPEG", "ffmpeg did not exit, killing it")
			s.cmd.Process.Kill()
			<-s.done
		}
		debugMsg("FFMPEG", fmt.Sprintf("stream closed after %d frames (encoder reported %d)", frames, s.monitor.Frames()))
		if s.waitErr != nil {
			err = errors.Wrap(s.waitErr, "ffmpeg exited")
		}
	})
	return err
}
