// Package telemetry turns step spans into renderer events.
package telemetry

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultSizeLimit is the buffered size (4KB) that forces a flush.
	DefaultSizeLimit = 4096
	// DefaultTimeLimit is the interval (50ms) after which buffered output is flushed.
	DefaultTimeLimit = 50 * time.Millisecond
)

// ErrBatcherClosed is returned by Write after Close.
var ErrBatcherClosed = errors.New("batch processor is closed")

// BatchProcessor buffers step output and hands it to onFlush in chunks.
// Timed flushes only emit complete lines so a prefixing renderer never
// splits a line; size-triggered flushes and Close emit everything.
// It is safe for concurrent use.
type BatchProcessor struct {
	sizeLimit int
	timeLimit time.Duration
	onFlush   func([]byte)

	mu     sync.Mutex
	buffer bytes.Buffer
	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	closed bool
}

// NewBatchProcessor returns a running BatchProcessor.
// Non-positive limits select the defaults. Call Close to stop it.
func NewBatchProcessor(sizeLimit int, timeLimit time.Duration, onFlush func([]byte)) *BatchProcessor {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}

	bp := &BatchProcessor{
		sizeLimit: sizeLimit,
		timeLimit: timeLimit,
		onFlush:   onFlush,
		ticker:    time.NewTicker(timeLimit),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go bp.run()
	return bp
}

// Write buffers p, flushing synchronously once sizeLimit is reached.
func (bp *BatchProcessor) Write(p []byte) (int, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		return 0, ErrBatcherClosed
	}

	n, _ := bp.buffer.Write(p)
	if bp.buffer.Len() >= bp.sizeLimit {
		bp.flushLocked(false)
		bp.ticker.Reset(bp.timeLimit)
	}
	return n, nil
}

// Flush emits every complete line currently buffered.
func (bp *BatchProcessor) Flush() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.closed {
		return
	}
	bp.flushLocked(true)
}

// Close stops the ticker and flushes what is left, partial line included.
func (bp *BatchProcessor) Close() error {
	bp.mu.Lock()
	if bp.closed {
		bp.mu.Unlock()
		return nil
	}
	bp.closed = true
	close(bp.stopCh)
	bp.flushLocked(false)
	bp.mu.Unlock()

	<-bp.doneCh
	return nil
}

func (bp *BatchProcessor) run() {
	defer close(bp.doneCh)
	defer bp.ticker.Stop()
	for {
		select {
		case <-bp.ticker.C:
			bp.Flush()
		case <-bp.stopCh:
			return
		}
	}
}

// flushLocked must be called with mu held.
func (bp *BatchProcessor) flushLocked(linesOnly bool) {
	if bp.buffer.Len() == 0 {
		return
	}

	n := bp.buffer.Len()
	if linesOnly {
		n = bytes.LastIndexByte(bp.buffer.Bytes(), '\n') + 1
		if n == 0 {
			return
		}
	}

	data := make([]byte, n)
	copy(data, bp.buffer.Next(n))

	// Called under the lock to keep chunks ordered.
	if bp.onFlush != nil {
		bp.onFlush(data)
	}
}
