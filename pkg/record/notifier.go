// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package record

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ChangesChannelPrefix is the prefix of the per-user change notification channel
const ChangesChannelPrefix = "hyperstreak:changes:"

// RedisNotifier publishes and watches out-of-band record changes over Redis pub/sub.
type RedisNotifier struct {
	client redis.UniversalClient
}

// NewRedisNotifier creates a new Redis pub/sub notifier.
func NewRedisNotifier(client redis.UniversalClient) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func makeChannel(userID string) string {
	return fmt.Sprintf("%s%s", ChangesChannelPrefix, userID)
}

// Notify tells watchers of userID that the persisted record changed.
func (n *RedisNotifier) Notify(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	payload := time.Now().UTC().Format(time.RFC3339Nano)
	if err := n.client.Publish(ctx, makeChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change for user %s: %w", userID, err)
	}

	logrus.Debugf("published record change for user %s", userID)
	return nil
}

// Watch subscribes to change notifications for userID until ctx is done.
// Notifications are coalesced: a watcher that falls behind sees one pending signal.
func (n *RedisNotifier) Watch(ctx context.Context, userID string) (<-chan struct{}, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	pubsub := n.client.Subscribe(ctx, makeChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to changes for user %s: %w", userID, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}
