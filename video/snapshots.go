package video

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

type saveTask struct {
	path  string
	image gocv.Mat
}

// Snapshotter saves JPEG frames on background workers. Save never blocks the
// caller; when the queue is full the frame is skipped.
type Snapshotter struct {
	dir     string
	queue   chan saveTask
	workers sync.WaitGroup
	stop    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	counter int
}

// NewSnapshotter creates dir and starts workers writers
func NewSnapshotter(dir string, workers, queueSize int) (*Snapshotter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating snapshot directory %s", dir)
	}
	s := &Snapshotter{
		dir:   dir,
		queue: make(chan saveTask, queueSize),
		stop:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		s.workers.Add(1)
		go s.worker(i)
	}
	return s, nil
}

func (s *Snapshotter) worker(id int) {
	defer s.workers.Done()
	for {
		select {
		case task := <-s.queue:
			s.write(id, task)
		case <-s.stop:
			for {
				select {
				case task := <-s.queue:
					s.write(id, task)
				default:
					return
				}
			}
		}
	}
}

func (s *Snapshotter) write(worker int, task saveTask) {
	if ok := gocv.IMWrite(task.path, task.image); !ok {
		debugMsg("SNAPSHOT", fmt.Sprintf("worker %d failed to save %s", worker, task.path))
	}
	task.image.Close()
}

// Save queues a copy of frame as <dir>/<time>_<frame>_<label>.jpg and returns
// the path, or "" when the frame was skipped.
func (s *Snapshotter) Save(frame gocv.Mat, index int, label string) string {
	s.mu.Lock()
	s.counter++
	name := fmt.Sprintf("%s_%06d_%s.jpg", time.Now().Format("20060102-150405.000"), index, label)
	s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	task := saveTask{path: path, image: frame.Clone()}
	select {
	case s.queue <- task:
		return path
	default:
		task.image.Close()
		debugMsg("SNAPSHOT", "save queue full, snapshot skipped")
		return ""
	}
}

// Close flushes queued snapshots and stops the workers
func (s *Snapshotter) Close() {
	s.once.Do(func() {
		close(s.stop)
		s.workers.Wait()
		debugMsg("SNAPSHOT", fmt.Sprintf("snapshot writer stopped after %d frames", s.counter))
	})
}
