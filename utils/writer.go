package utils

import (
	"image"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
)

type frame struct {
	name string
	img  image.Image
}

// AsyncWriter saves PNG frames on a single background goroutine so the
// solver loop never waits on disk. Frames submitted while the queue is full,
// or after Close, are dropped.
type AsyncWriter struct {
	dir    string
	logger *log.Logger
	queue  chan frame
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	err    error

	written atomic.Int64
	dropped atomic.Int64
}

// NewAsyncWriter starts a writer saving into dir with room for capacity
// pending frames.
func NewAsyncWriter(dir string, capacity int, logger *log.Logger) *AsyncWriter {
	if logger == nil {
		logger = log.Default()
	}
	w := &AsyncWriter{
		dir:    dir,
		logger: logger,
		queue:  make(chan frame, max(capacity, 1)),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *AsyncWriter) run() {
	defer close(w.done)
	for f := range w.queue {
		path := filepath.Join(w.dir, f.name)
		if err := SaveImage(f.img, path); err != nil {
			w.logger.Printf("writer: %s: %v", path, err)
			w.mu.Lock()
			if w.err == nil {
				w.err = err
			}
			w.mu.Unlock()
			continue
		}
		w.written.Add(1)
	}
}

// Submit queues img to be saved as name inside the writer's directory.
func (w *AsyncWriter) Submit(name string, img image.Image) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	select {
	case w.queue <- frame{name: name, img: img}:
	default:
		w.dropped.Add(1)
	}
}

// Close stops accepting frames, waits for the queued ones and returns the
// first write error.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	if n := w.dropped.Load(); n > 0 {
		w.logger.Printf("writer: dropped %d frame(s)", n)
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

// Written is the number of frames saved so far.
func (w *AsyncWriter) Written() int64 { return w.written.Load() }

// Dropped is the number of frames discarded so far.
func (w *AsyncWriter) Dropped() int64 { return w.dropped.Load() }
