// Package feed fans out message mutations to per-channel subscribers.
//
// A subscriber that cannot keep up is reset rather than blocking the
// publisher: its Done channel closes with ErrOverflow and it is expected to
// resubscribe and reload from the store.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/edgard/chatguard/internal/domain/model"
	"github.com/edgard/chatguard/internal/logger"
	"github.com/edgard/chatguard/internal/telemetry"
)

var (
	// ErrOverflow is reported when a subscriber's buffer filled up and events were dropped.
	ErrOverflow = errors.New("feed subscriber overflowed")
	// ErrHubClosed is reported to subscribers still attached when the hub shuts down.
	ErrHubClosed = errors.New("feed hub closed")
	// ErrClosed is reported after the subscriber released its own subscription.
	ErrClosed = errors.New("feed subscription closed")
)

// Hub is an in-process publish/subscribe broker keyed by channel ID.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[string]*Subscription
	buffer int
	closed bool
	logger *slog.Logger
}

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int, log *slog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[string]map[string]*Subscription),
		buffer: buffer,
		logger: logger.OrDiscard(log).With("component", "feed_hub"),
	}
}

// Subscribe attaches a new subscription for channelID. On a closed hub the
// returned subscription is already done with ErrHubClosed.
func (h *Hub) Subscribe(channelID string) *Subscription {
	sub := &Subscription{
		id:        uuid.NewString(),
		channelID: channelID,
		events:    make(chan model.Event, h.buffer),
		done:      make(chan struct{}),
		hub:       h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.finish(ErrHubClosed)
		return sub
	}

	chanSubs, ok := h.subs[channelID]
	if !ok {
		chanSubs = make(map[string]*Subscription)
		h.subs[channelID] = chanSubs
	}
	chanSubs[sub.id] = sub
	telemetry.FeedSubscribers.Inc()

	h.logger.Debug("Subscriber attached", "channel_id", channelID, "subscription_id", sub.id)
	return sub
}

// SubscribeContext is Subscribe tied to ctx: the subscription closes when
// ctx ends, and the context hook is dropped once the subscription ends on
// its own.
func (h *Hub) SubscribeContext(ctx context.Context, channelID string) *Subscription {
	sub := h.Subscribe(channelID)
	stop := context.AfterFunc(ctx, sub.Close)
	sub.stop.Store(&stop)
	// finish may have run before stop was stored.
	select {
	case <-sub.done:
		stop()
	default:
	}
	return sub
}

// Publish delivers ev to every subscriber of its channel without blocking.
func (h *Hub) Publish(ev model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for id, sub := range h.subs[ev.Message.ChannelID] {
		select {
		case sub.events <- ev:
		default:
			h.logger.Warn("Subscriber buffer full, resetting subscription",
				"channel_id", ev.Message.ChannelID, "subscription_id", id)
			telemetry.FeedOverflows.Inc()
			h.detachLocked(sub)
			sub.finish(ErrOverflow)
		}
	}
}

// Subscribers returns the number of live subscriptions for channelID.
func (h *Hub) Subscribers(channelID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[channelID])
}

// Close resets every subscription with ErrHubClosed. Further publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, chanSubs := range h.subs {
		for _, sub := range chanSubs {
			h.detachLocked(sub)
			sub.finish(ErrHubClosed)
		}
	}
	h.logger.Info("Feed hub closed")
}

func (h *Hub) detachLocked(sub *Subscription) {
	chanSubs, ok := h.subs[sub.channelID]
	if !ok {
		return
	}
	if _, ok := chanSubs[sub.id]; !ok {
		return
	}
	delete(chanSubs, sub.id)
	if len(chanSubs) == 0 {
		delete(h.subs, sub.channelID)
	}
	telemetry.FeedSubscribers.Dec()
}

// Subscription is one listener's attachment to a channel.
// The events channel is never closed; watch Done instead.
type Subscription struct {
	id        string
	channelID string
	events    chan model.Event
	done      chan struct{}
	once      sync.Once
	err       error
	hub       *Hub
	stop      atomic.Pointer[func() bool]
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Events returns the buffered stream of change notifications.
func (s *Subscription) Events() <-chan model.Event { return s.events }

// Done is closed once the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended, or nil while it is live.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	s.hub.detachLocked(s)
	s.hub.mu.Unlock()
	s.finish(ErrClosed)
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
		if stop := s.stop.Load(); stop != nil {
			(*stop)()
		}
	})
}
