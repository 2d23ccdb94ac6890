// Package notifications fans newly created posts out to live feed websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/redis/go-redis/v9"

	"microblogs/internal/middleware"
	"microblogs/models"
)

// FeedChannel is the Redis channel every instance publishes new posts to.
const FeedChannel = "feed:posts"

// EventPostCreated is the only event type on the live feed.
const EventPostCreated = "post_created"

// Event is the envelope written to live feed clients.
type Event struct {
	Type    string          `json:"type"`
	Payload models.FeedPost `json:"payload"`
}

// Notifier publishes feed events into Redis. Without Redis it delivers to
// the in-process subscriber, which covers single-instance deployments.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(payload string)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishPost sends post to every live feed listener.
func (n *Notifier) PublishPost(ctx context.Context, post models.FeedPost) error {
	payload, err := json.Marshal(Event{Type: EventPostCreated, Payload: post})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			local(string(payload))
		}
		return nil
	}
	return n.rdb.Publish(ctx, FeedChannel, payload).Err()
}

// StartFeedSubscriber calls onMessage for every payload on FeedChannel until
// ctx is cancelled.
func (n *Notifier) StartFeedSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		n.mu.Lock()
		n.local = onMessage
		n.mu.Unlock()
		return nil
	}

	sub := n.rdb.Subscribe(ctx, FeedChannel)
	// Wait for the subscription so publishes right after startup are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", FeedChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in feed subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
