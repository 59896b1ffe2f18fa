package eventbus

import (
	"context"
	"sync"
	"time"

	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// DefaultHistory is the replay window used when none is configured.
const DefaultHistory = 1000

// Bus is the single UI channel. It numbers events, keeps a bounded replay
// history, and fans out to subscribers without blocking publishers.
type Bus struct {
	mu          sync.Mutex
	seq         uint64
	history     []schema.UIEvent
	historySize int
	subs        map[chan schema.UIEvent]struct{}
	log         pslog.Logger
	depth       int
	now         func() time.Time
}

// New constructs a Bus with the given history size.
func New(logger pslog.Logger, historySize int) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if historySize <= 0 {
		historySize = DefaultHistory
	}
	return &Bus{
		historySize: historySize,
		subs:        make(map[chan schema.UIEvent]struct{}),
		log:         logger,
		depth:       256,
		now:         time.Now,
	}
}

// Subscribe registers a subscriber and returns a channel, a cancel func, and
// the sequence number of the last published event.
func (b *Bus) Subscribe() (<-chan schema.UIEvent, func(), uint64) {
	if b == nil {
		return nil, func() {}, 0
	}
	ch := make(chan schema.UIEvent, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	seq := b.seq
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "subs", count, "seq", seq)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			remaining := len(b.subs)
			close(ch)
			b.mu.Unlock()
			b.log.Debug("eventbus unsubscribe", "subs", remaining)
		})
	}, seq
}

// Replay returns retained events with a sequence number greater than after.
func (b *Bus) Replay(after uint64) []schema.UIEvent {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	events := make([]schema.UIEvent, 0, len(b.history))
	for _, event := range b.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	b.log.Debug("eventbus replay", "after", after, "count", len(events))
	return events
}

// Publish implements core.EventSink.
func (b *Bus) Publish(event schema.UIEvent) {
	if b == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now()
	}
	b.mu.Lock()
	b.seq++
	event.Seq = b.seq
	b.history = append(b.history, event)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
	dropped := 0
	// Sends happen under the lock so a concurrent cancel cannot close a channel mid-send.
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.Warn("eventbus event dropped", "type", event.Type, "seq", event.Seq, "dropped", dropped)
	}
}
