package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	redis_utils "github.com/Maxapelquist/preparty-social-hub/services/redis/utils"
)

// Publish sends a change to every API instance.
func (rc *RedisClient) Publish(ctx context.Context, ev changefeed.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error marshaling change: %w", err)
	}
	if err := rc.client.Publish(ctx, redis_utils.ChangesChannel, data).Err(); err != nil {
		return fmt.Errorf("error publishing change: %w", err)
	}
	return nil
}

// SubscribeChanges calls handle for each change until ctx is done. Records
// arrive as decoded JSON (maps), not as the original row types.
func (rc *RedisClient) SubscribeChanges(ctx context.Context, handle func(changefeed.Event)) error {
	sub := rc.client.Subscribe(ctx, redis_utils.ChangesChannel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("error subscribing to changes: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev changefeed.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				rc.log.Warn("dropping malformed change", slog.Any("error", err))
				continue
			}
			handle(ev)
		}
	}
}
