package streaming

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBatchInterval is used when a batcher is created with a non-positive interval.
const DefaultBatchInterval = 500 * time.Millisecond

type batchOp int

const (
	opPush batchOp = iota
	opSetInterval
	opSubscribe
	opComplete
	opDispose
)

type batchCommand struct {
	op       batchOp
	text     string
	interval time.Duration
	sub      func(string)
	ack      chan uint64
}

type batchSubscriber struct {
	id uint64
	fn func(string)
}

// ChunkBatcher accumulates text fragments and re-emits the cumulative text
// once per interval. Bursts of pushes collapse into a single emission and a
// tick with no new text emits nothing.
//
// All mutations go through a single loop goroutine, so Push, SetInterval,
// ticks and Complete are totally ordered. Subscriber callbacks run on that
// loop goroutine and must not call back into the batcher.
type ChunkBatcher struct {
	cmds chan batchCommand
	done chan struct{}

	mu       sync.Mutex
	subs     []batchSubscriber
	nextID   uint64
	last     string
	hasLast  bool
	disposed bool

	interval  atomic.Int64
	emissions atomic.Int64
	closing   sync.Once
}

// NewChunkBatcher starts a batcher ticking every interval.
func NewChunkBatcher(interval time.Duration) *ChunkBatcher {
	if interval <= 0 {
		interval = DefaultBatchInterval
	}
	b := &ChunkBatcher{
		cmds: make(chan batchCommand),
		done: make(chan struct{}),
	}
	b.interval.Store(int64(interval))
	go b.run(interval)
	return b
}

// Push appends a chunk to the accumulated text. Dropped once the batcher is completed.
func (b *ChunkBatcher) Push(chunk string) {
	b.submit(batchCommand{op: opPush, text: chunk})
}

// SetInterval changes the cadence of future ticks. The tick schedule restarts
// from now, so a shorter interval takes effect without waiting out the old one.
func (b *ChunkBatcher) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	b.submit(batchCommand{op: opSetInterval, interval: d})
}

// Interval returns the current tick interval.
func (b *ChunkBatcher) Interval() time.Duration {
	return time.Duration(b.interval.Load())
}

// Subscribe registers fn for future emissions. If a value was already emitted,
// fn receives it immediately. The returned function removes the subscription.
func (b *ChunkBatcher) Subscribe(fn func(string)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	ack := make(chan uint64, 1)
	select {
	case b.cmds <- batchCommand{op: opSubscribe, sub: fn, ack: ack}:
		id := <-ack
		return func() { b.removeSubscriber(id) }
	case <-b.done:
	}

	// Loop is gone: no further emissions, replay the last value only.
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return func() {}
	}
	last, has := b.last, b.hasLast
	b.mu.Unlock()
	if has {
		fn(last)
	}
	return func() {}
}

// Complete stops accepting pushes and interval changes and closes Done.
// It does not emit by itself. Safe to call more than once.
func (b *ChunkBatcher) Complete() {
	b.stop(opComplete)
}

// Dispose tears the batcher down and drops all subscribers. Safe to call more than once.
func (b *ChunkBatcher) Dispose() {
	b.stop(opDispose)
	b.mu.Lock()
	b.disposed = true
	b.subs = nil
	b.mu.Unlock()
}

// Done is closed once the batcher has completed or been disposed.
func (b *ChunkBatcher) Done() <-chan struct{} {
	return b.done
}

// Value returns the most recently emitted text.
func (b *ChunkBatcher) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Emissions returns how many values have been emitted so far.
func (b *ChunkBatcher) Emissions() int64 {
	return b.emissions.Load()
}

func (b *ChunkBatcher) submit(cmd batchCommand) {
	select {
	case b.cmds <- cmd:
	case <-b.done:
	}
}

func (b *ChunkBatcher) stop(op batchOp) {
	b.closing.Do(func() {
		select {
		case b.cmds <- batchCommand{op: op}:
		case <-b.done:
		}
	})
	<-b.done
}

func (b *ChunkBatcher) run(interval time.Duration) {
	defer close(b.done)

	var acc strings.Builder
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-b.cmds:
			switch cmd.op {
			case opPush:
				acc.WriteString(cmd.text)
			case opSetInterval:
				b.interval.Store(int64(cmd.interval))
				ticker.Reset(cmd.interval)
			case opSubscribe:
				cmd.ack <- b.addSubscriber(cmd.sub)
			case opComplete, opDispose:
				return
			}
		case <-ticker.C:
			b.tick(acc.String())
		}
	}
}

func (b *ChunkBatcher) tick(text string) {
	b.mu.Lock()
	if text == "" || (b.hasLast && text == b.last) {
		b.mu.Unlock()
		return
	}
	b.last, b.hasLast = text, true
	subs := make([]batchSubscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	b.emissions.Add(1)
	for _, s := range subs {
		s.fn(text)
	}
}

// addSubscriber runs on the loop goroutine so the replay is ordered before the next tick.
func (b *ChunkBatcher) addSubscriber(fn func(string)) uint64 {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, batchSubscriber{id: id, fn: fn})
	last, has := b.last, b.hasLast
	b.mu.Unlock()

	if has {
		fn(last)
	}
	return id
}

func (b *ChunkBatcher) removeSubscriber(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
