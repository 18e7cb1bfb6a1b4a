// Package chatsync keeps an in-memory, time-ordered view of one channel's
// messages consistent with the store while remote inserts, edits and
// deletions keep arriving.
//
// Each Channel owns its collection exclusively: a single goroutine applies
// change notifications under a mutex and readers only ever see copies.
package chatsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/edgard/chatguard/internal/domain/model"
	apperrors "github.com/edgard/chatguard/internal/errors"
	"github.com/edgard/chatguard/internal/logger"
	"github.com/edgard/chatguard/internal/telemetry"
)

// State is the lifecycle phase of a Channel.
type State int

const (
	Uninitialized State = iota
	Loading
	Live
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Live:
		return "live"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

var errClosed = errors.New("channel synchronizer closed")

// Options tunes a Channel. Zero values fall back to defaults.
type Options struct {
	// FetchTimeout bounds each bulk load.
	FetchTimeout time.Duration
	// ResyncBackoff is the pause between failed resynchronization attempts,
	// and before a resync when the previous live period was shorter.
	ResyncBackoff time.Duration
	Logger        *slog.Logger
	Clock         clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.ResyncBackoff <= 0 {
		o.ResyncBackoff = 2 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	o.Logger = logger.OrDiscard(o.Logger)
	return o
}

// sortKey orders entries by creation time, then by arrival.
type sortKey struct {
	at  time.Time
	seq uint64
}

func (k sortKey) less(o sortKey) bool {
	if k.at.Equal(o.at) {
		return k.seq < o.seq
	}
	return k.at.Before(o.at)
}

type entry struct {
	key sortKey
	msg model.Message
}

type listener struct {
	id string
	fn func([]model.Message)
}

// Channel is a live view of one channel's history.
type Channel struct {
	channelID string
	src       Source
	opts      Options
	logger    *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}

	mu        sync.RWMutex
	state     State
	liveSince time.Time
	feed      Feed
	entries   []entry
	index     map[string]sortKey
	seq       uint64
	listeners []listener
}

// Open subscribes to channelID's change feed, bulk-loads its history and
// starts applying notifications. It fails if the initial load fails or
// exceeds opts.FetchTimeout, and if the feed ended before the history was
// installed. Cancelling ctx closes the Channel.
func Open(ctx context.Context, src Source, channelID string, opts Options) (*Channel, error) {
	if src == nil {
		return nil, fmt.Errorf("message source cannot be nil")
	}
	if channelID == "" {
		return nil, apperrors.NewPreconditionError("channel id is required")
	}

	opts = opts.withDefaults()
	runCtx, cancel := context.WithCancel(ctx)

	c := &Channel{
		channelID: channelID,
		src:       src,
		opts:      opts,
		logger:    opts.Logger.With("component", "chat_sync", "channel_id", channelID),
		ctx:       runCtx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
		state:     Uninitialized,
		index:     make(map[string]sortKey),
	}

	c.mu.Lock()
	c.state = Loading
	c.mu.Unlock()

	if err := c.load(runCtx); err != nil {
		cancel()
		c.mu.Lock()
		c.state = Closed
		c.mu.Unlock()
		close(c.stopped)
		c.logger.ErrorContext(ctx, "Initial channel load failed", "error", err)
		return nil, err
	}

	telemetry.SyncChannels.Inc()
	go c.run()

	c.logger.InfoContext(ctx, "Channel synchronizer live", "messages", c.Len())
	return c, nil
}

// ChannelID returns the channel this view follows.
func (c *Channel) ChannelID() string { return c.channelID }

// State returns the current lifecycle phase.
func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Messages returns a copy of the current ordered message list.
func (c *Channel) Messages() []model.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Len returns the number of messages currently held.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// OnChange registers fn to receive a fresh snapshot after every applied
// change. Calls happen sequentially on the synchronizer goroutine in the
// order changes were applied. The returned func removes the listener.
func (c *Channel) OnChange(fn func([]model.Message)) (cancel func()) {
	id := uuid.NewString()

	c.mu.Lock()
	if c.state != Closed {
		c.listeners = append(c.listeners, listener{id: id, fn: fn})
	}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners = slices.DeleteFunc(c.listeners, func(l listener) bool { return l.id == id })
	}
}

// Done is closed when the synchronizer goroutine has exited.
func (c *Channel) Done() <-chan struct{} { return c.stopped }

// Close stops accepting notifications and releases the feed. Notifications
// arriving afterwards are discarded. Close does not wait for the
// synchronizer goroutine, so it may be called from a listener.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	f := c.feed
	c.feed = nil
	c.listeners = nil
	c.mu.Unlock()

	c.cancel()
	if f != nil {
		f.Close()
	}
	telemetry.SyncChannels.Dec()
	c.logger.Info("Channel synchronizer closed")
}

func (c *Channel) run() {
	defer close(c.stopped)
	defer c.Close()

	for {
		c.mu.RLock()
		f := c.feed
		c.mu.RUnlock()

		if f == nil || !c.consume(f) {
			return
		}
		if !c.resync() {
			return
		}
	}
}

// consume applies notifications from f until the feed ends or the channel
// closes. It reports whether a resynchronization is needed.
func (c *Channel) consume(f Feed) bool {
	for {
		select {
		case <-c.ctx.Done():
			return false
		case ev := <-f.Events():
			c.handle(ev)
		case <-f.Done():
			if c.State() == Closed {
				return false
			}
			c.logger.Warn("Change feed reset, resynchronizing", "error", f.Err())
			return true
		}
	}
}

// resync discards local state and reloads until Live again or closed.
func (c *Channel) resync() bool {
	telemetry.SyncResyncs.Inc()

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return false
	}
	c.state = Loading
	old := c.feed
	c.feed = nil
	lived := c.opts.Clock.Since(c.liveSince)
	c.resetLocked()
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	// A feed that dropped right after going live waits out one backoff.
	if lived < c.opts.ResyncBackoff {
		c.logger.Warn("Change feed dropped shortly after going live, delaying resync",
			"live_for", lived, "backoff", c.opts.ResyncBackoff)
		select {
		case <-c.ctx.Done():
			return false
		case <-c.opts.Clock.After(c.opts.ResyncBackoff):
		}
	}

	for attempt := 1; ; attempt++ {
		err := c.load(c.ctx)
		if err == nil {
			c.logger.Info("Channel resynchronized", "attempt", attempt, "messages", c.Len())
			return true
		}
		if errors.Is(err, errClosed) || c.ctx.Err() != nil {
			return false
		}

		c.logger.Warn("Resynchronization failed, retrying", "attempt", attempt, "backoff", c.opts.ResyncBackoff, "error", err)
		select {
		case <-c.ctx.Done():
			return false
		case <-c.opts.Clock.After(c.opts.ResyncBackoff):
		}
	}
}

// load attaches a fresh feed before fetching so no mutation falls between
// the snapshot and the live stream, then installs the fetched history.
func (c *Channel) load(ctx context.Context) (err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "chatsync.load", attribute.String("channel_id", c.channelID))
	defer func() { telemetry.EndSpan(span, err) }()

	f, err := c.src.Subscribe(ctx, c.channelID)
	if err != nil {
		return apperrors.NewStoreError("failed to subscribe to channel feed", apperrors.Hard, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	msgs, err := c.src.ListMessages(fetchCtx, c.channelID)
	timedOut := errors.Is(fetchCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		f.Close()
		if timedOut {
			return apperrors.NewTimeoutError(
				fmt.Sprintf("channel history fetch exceeded %s", c.opts.FetchTimeout), apperrors.Hard, err)
		}
		return apperrors.NewStoreError("failed to fetch channel history", apperrors.Hard, err)
	}

	select {
	case <-f.Done():
		f.Close()
		return apperrors.NewStoreError("change feed ended before channel went live", apperrors.Hard, f.Err())
	default:
	}

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		f.Close()
		return errClosed
	}
	c.installLocked(msgs)
	c.feed = f
	c.state = Live
	c.liveSince = c.opts.Clock.Now()
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("messages", len(msgs)))
	telemetry.ObserveSince(telemetry.SyncLoadDuration, start)
	c.notify()
	return nil
}

// handle applies one notification. Anything arriving outside Live is dropped.
func (c *Channel) handle(ev model.Event) {
	typ := ev.Type.String()

	c.mu.Lock()
	if c.state != Live {
		c.mu.Unlock()
		telemetry.SyncEvents.WithLabelValues(typ, "discarded").Inc()
		c.logger.Debug("Discarded notification outside live state", "type", typ, "message_id", ev.Message.ID)
		return
	}
	if ev.Message.ChannelID != "" && ev.Message.ChannelID != c.channelID {
		c.mu.Unlock()
		telemetry.SyncEvents.WithLabelValues(typ, "ignored").Inc()
		return
	}

	var changed bool
	switch ev.Type {
	case model.EventInsert:
		changed = c.insertLocked(ev.Message)
	case model.EventUpdate:
		changed = c.updateLocked(ev.Message)
	case model.EventDelete:
		changed = c.deleteLocked(ev.Message.ID)
	default:
		c.logger.Warn("Unknown notification type", "type", int(ev.Type))
	}
	c.mu.Unlock()

	if !changed {
		telemetry.SyncEvents.WithLabelValues(typ, "ignored").Inc()
		return
	}
	telemetry.SyncEvents.WithLabelValues(typ, "applied").Inc()
	c.notify()
}

func (c *Channel) installLocked(msgs []model.Message) {
	c.resetLocked()

	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, func(a, b model.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for _, m := range sorted {
		c.insertLocked(m)
	}
}

func (c *Channel) resetLocked() {
	c.entries = nil
	c.index = make(map[string]sortKey)
}

func (c *Channel) insertLocked(m model.Message) bool {
	if !m.HasAuthor() {
		c.logger.Debug("Skipping message", "message_id", m.ID,
			"reason", apperrors.NewValidationSkip("message has no author"))
		return false
	}
	if m.ChannelID == "" {
		m.ChannelID = c.channelID
	}

	if key, ok := c.index[m.ID]; ok {
		pos := c.locateLocked(key)
		c.entries[pos].msg = merge(c.entries[pos].msg, m)
		return true
	}

	c.seq++
	key := sortKey{at: m.CreatedAt, seq: c.seq}
	pos := sort.Search(len(c.entries), func(i int) bool { return key.less(c.entries[i].key) })
	c.entries = slices.Insert(c.entries, pos, entry{key: key, msg: m})
	c.index[m.ID] = key
	return true
}

func (c *Channel) updateLocked(m model.Message) bool {
	key, ok := c.index[m.ID]
	if !ok {
		c.logger.Debug("Update for unknown message ignored", "message_id", m.ID)
		return false
	}
	pos := c.locateLocked(key)

	if !m.HasAuthor() {
		c.removeLocked(pos)
		return true
	}

	c.entries[pos].msg = merge(c.entries[pos].msg, m)
	return true
}

func (c *Channel) deleteLocked(id string) bool {
	key, ok := c.index[id]
	if !ok {
		return false
	}
	c.removeLocked(c.locateLocked(key))
	return true
}

func (c *Channel) removeLocked(pos int) {
	delete(c.index, c.entries[pos].msg.ID)
	c.entries = slices.Delete(c.entries, pos, pos+1)
}

// locateLocked finds the position of an indexed key by binary search.
func (c *Channel) locateLocked(key sortKey) int {
	return sort.Search(len(c.entries), func(i int) bool { return !c.entries[i].key.less(key) })
}

func (c *Channel) snapshotLocked() []model.Message {
	out := make([]model.Message, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.msg
	}
	return out
}

func (c *Channel) notify() {
	c.mu.RLock()
	if c.state == Closed || len(c.listeners) == 0 {
		c.mu.RUnlock()
		return
	}
	snap := c.snapshotLocked()
	ls := slices.Clone(c.listeners)
	c.mu.RUnlock()

	for _, l := range ls {
		l.fn(slices.Clone(snap))
	}
}

// merge folds an incoming copy of a message into the held one. Identity and
// position stay; zero timestamps in the incoming copy keep the held values.
func merge(held, in model.Message) model.Message {
	out := held
	out.AuthorID = in.AuthorID
	out.Body = in.Body
	if !in.CreatedAt.IsZero() {
		out.CreatedAt = in.CreatedAt
	}
	if !in.UpdatedAt.IsZero() {
		out.UpdatedAt = in.UpdatedAt
	}
	return out
}
