package bus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

const (
	// DefaultHistorySize is the number of recent events retained for replay.
	DefaultHistorySize = 500

	// DefaultChannelBuffer is the buffer size for subscriber channels.
	DefaultChannelBuffer = 100
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus is closed")

// SubscriptionID is a unique identifier for event subscriptions.
type SubscriptionID string

// Filter selects events by type and owner. Empty Types matches every type;
// empty UserID matches every user.
type Filter struct {
	Types  []EventType
	UserID string
}

// AlertFilter matches the alert lifecycle events of one user, or of every
// user when userID is empty.
func AlertFilter(userID string) Filter {
	return Filter{Types: AlertEvents, UserID: userID}
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if f.UserID != "" && f.UserID != e.UserID {
		return false
	}
	return len(f.Types) == 0 || slices.Contains(f.Types, e.Type)
}

type subscription struct {
	id      SubscriptionID
	filter  Filter
	handler func(Event)
	ch      chan Event
	done    chan struct{}
}

// Bus carries session and alert lifecycle events between the companion and
// its observers (metrics, the websocket feed). Every subscription gets its
// own goroutine and buffer; a full buffer drops the event and counts it
// rather than blocking the message pipeline that published it.
type Bus struct {
	mu      sync.RWMutex
	subs    map[SubscriptionID]*subscription
	counter atomic.Uint64

	historyMu   sync.RWMutex
	history     []Event
	historySize int

	dropped atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewBus creates a bus with the default history size.
func NewBus() *Bus {
	return NewBusWithConfig(DefaultHistorySize)
}

// NewBusWithConfig creates a bus retaining historySize events.
func NewBusWithConfig(historySize int) *Bus {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subs:        make(map[SubscriptionID]*subscription),
		history:     make([]Event, 0, historySize),
		historySize: historySize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers a handler for one event type. EventType("") subscribes
// to every event. The returned id is empty when the bus is closed.
func (b *Bus) Subscribe(eventType EventType, handler func(Event)) SubscriptionID {
	var f Filter
	if eventType != "" {
		f.Types = []EventType{eventType}
	}
	return b.SubscribeFilter(f, handler)
}

// SubscribeFilter registers a handler for the events f matches.
func (b *Bus) SubscribeFilter(f Filter, handler func(Event)) SubscriptionID {
	if b.closed.Load() {
		return ""
	}

	sub := &subscription{
		id:      SubscriptionID(fmt.Sprintf("sub_%d", b.counter.Add(1))),
		filter:  Filter{Types: slices.Clone(f.Types), UserID: f.UserID},
		handler: handler,
		ch:      make(chan Event, DefaultChannelBuffer),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(sub)
	return sub.id
}

func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case e := <-sub.ch:
			sub.handler(e)
		case <-sub.done:
			return
		case <-b.ctx.Done():
			return
		}
	}
}

// Unsubscribe removes a subscription by id.
func (b *Bus) Unsubscribe(id SubscriptionID) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("subscription %s not found", id)
	}
	close(sub.done)
	return nil
}

// Publish records e in the history and hands it to every matching subscriber.
func (b *Bus) Publish(e Event) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.historyMu.Lock()
	b.history = append(b.history, e)
	if over := len(b.history) - b.historySize; over > 0 {
		b.history = b.history[over:]
	}
	b.historyMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.filter.Match(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()
	return slices.Clone(b.history)
}

// Recent returns the last n retained events.
func (b *Bus) Recent(n int) []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()
	n = max(0, min(n, len(b.history)))
	return slices.Clone(b.history[len(b.history)-n:])
}

// Replay returns up to n of the newest retained events that f matches,
// oldest first. A client joining the alert feed uses it to catch up on a
// user's open alerts.
func (b *Bus) Replay(f Filter, n int) []Event {
	if n <= 0 {
		return nil
	}
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	var out []Event
	for i := len(b.history) - 1; i >= 0 && len(out) < n; i-- {
		if f.Match(b.history[i]) {
			out = append(out, b.history[i])
		}
	}
	slices.Reverse(out)
	return out
}

// Dropped counts events discarded because a subscriber was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// SubscriptionsCount returns the number of active subscriptions.
func (b *Bus) SubscriptionsCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops every subscription and waits for their handlers to return.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	b.subs = make(map[SubscriptionID]*subscription)
	b.mu.Unlock()
	return nil
}
