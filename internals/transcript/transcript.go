// Package transcript keeps the most recent engine events in memory and hands
// them out by sequence number, so clients can follow a run by polling.
package transcript

import (
	"context"
	"sync"

	"github.com/Oudwins/shellrunner/internals/schemas"
)

const DefaultCapacity = 10000

type Buffer struct {
	mu       sync.Mutex
	events   []schemas.Event
	seq      uint64
	capacity int
	// closed and replaced on every publish
	changed chan struct{}
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		changed:  make(chan struct{}),
	}
}

// Publish stores event under the next sequence number. Safe for concurrent
// use.
func (b *Buffer) Publish(event schemas.Event) {
	b.mu.Lock()
	b.seq++
	event.Seq = b.seq
	b.events = append(b.events, event)
	if over := len(b.events) - b.capacity; over > 0 {
		b.events = append(b.events[:0], b.events[over:]...)
	}
	changed := b.changed
	b.changed = make(chan struct{})
	b.mu.Unlock()

	close(changed)
}

// Since returns the retained events with a sequence number above since and
// the cursor to pass next time. Events that fell out of the buffer are
// skipped silently.
func (b *Buffer) Since(since uint64) ([]schemas.Event, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sinceLocked(since)
}

// Wait is Since, but blocks until there is at least one new event or ctx is
// done.
func (b *Buffer) Wait(ctx context.Context, since uint64) ([]schemas.Event, uint64, error) {
	for {
		b.mu.Lock()
		events, next := b.sinceLocked(since)
		changed := b.changed
		b.mu.Unlock()
		if len(events) > 0 {
			return events, next, nil
		}

		select {
		case <-ctx.Done():
			return events, next, ctx.Err()
		case <-changed:
		}
	}
}

func (b *Buffer) Last() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

func (b *Buffer) sinceLocked(since uint64) ([]schemas.Event, uint64) {
	if since >= b.seq {
		return []schemas.Event{}, b.seq
	}
	start := 0
	if len(b.events) > 0 && b.events[0].Seq <= since {
		start = int(since - b.events[0].Seq + 1)
	}
	out := make([]schemas.Event, len(b.events)-start)
	copy(out, b.events[start:])
	return out, b.seq
}
