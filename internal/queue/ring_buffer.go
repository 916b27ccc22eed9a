// Package queue keeps a bounded window of recently observed alerts.
package queue

import (
	"sync"
	"sync/atomic"

	"kerneural/internal/event"
)

// DefaultSize is the window used when no capacity is configured.
const DefaultSize = 100

// RingBuffer is a thread-safe circular buffer of alerts. When full, a push
// overwrites the oldest entry.
type RingBuffer struct {
	buffer []event.Event
	size   int
	head   int // index of the oldest entry
	count  int
	mu     sync.Mutex

	// Metrics (accessed atomically)
	totalPushed  uint64
	totalDropped uint64
}

// NewRingBuffer creates a new RingBuffer with the specified capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &RingBuffer{
		buffer: make([]event.Event, size),
		size:   size,
	}
}

// Push records an alert, evicting the oldest one when the window is full.
func (rb *RingBuffer) Push(ev event.Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	tail := (rb.head + rb.count) % rb.size
	rb.buffer[tail] = ev
	if rb.count == rb.size {
		rb.head = (rb.head + 1) % rb.size
		atomic.AddUint64(&rb.totalDropped, 1)
	} else {
		rb.count++
	}
	atomic.AddUint64(&rb.totalPushed, 1)
}

// Recent returns up to n alerts, newest first. n <= 0 returns all of them.
func (rb *RingBuffer) Recent(n int) []event.Event {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	out := make([]event.Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (rb.head + rb.count - 1 - i) % rb.size
		out = append(out, rb.buffer[idx])
	}
	return out
}

// Len returns the current number of alerts in the window.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Cap returns the capacity of the window.
func (rb *RingBuffer) Cap() int {
	return rb.size
}

// Metrics returns buffer statistics.
func (rb *RingBuffer) Metrics() QueueMetrics {
	return QueueMetrics{
		Pushed:   atomic.LoadUint64(&rb.totalPushed),
		Dropped:  atomic.LoadUint64(&rb.totalDropped),
		Depth:    rb.Len(),
		Capacity: rb.size,
	}
}

// QueueMetrics holds statistics about buffer operations.
type QueueMetrics struct {
	Pushed   uint64 `json:"pushed"`
	Dropped  uint64 `json:"dropped"`
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
}
