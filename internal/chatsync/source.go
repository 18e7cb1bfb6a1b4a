package chatsync

import (
	"context"

	"github.com/edgard/chatguard/internal/domain/model"
	"github.com/edgard/chatguard/internal/feed"
)

// Feed is a live stream of change notifications for one channel.
// Done closes when the stream ends; Err explains why.
type Feed interface {
	Events() <-chan model.Event
	Done() <-chan struct{}
	Err() error
	Close()
}

// Source is what a Channel needs from the backend: a bulk history query
// (authored messages, oldest first) and a cancellable change feed.
type Source interface {
	ListMessages(ctx context.Context, channelID string) ([]model.Message, error)
	Subscribe(ctx context.Context, channelID string) (Feed, error)
}

// FeedStore is satisfied by database.Store.
type FeedStore interface {
	ListMessages(ctx context.Context, channelID string) ([]model.Message, error)
	Subscribe(ctx context.Context, channelID string) (*feed.Subscription, error)
}

// NewStoreSource adapts a store returning concrete hub subscriptions.
func NewStoreSource(store FeedStore) Source {
	return storeSource{store: store}
}

type storeSource struct {
	store FeedStore
}

func (s storeSource) ListMessages(ctx context.Context, channelID string) ([]model.Message, error) {
	return s.store.ListMessages(ctx, channelID)
}

func (s storeSource) Subscribe(ctx context.Context, channelID string) (Feed, error) {
	sub, err := s.store.Subscribe(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
