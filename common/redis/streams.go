package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultStreamMaxLen caps event streams (approximate trim on XADD).
const DefaultStreamMaxLen = 10000

// PublishEvent appends one event entry to stream. The entry carries the
// event type, the JSON-encoded payload under "data" and a millisecond
// timestamp. maxLen <= 0 disables trimming.
func PublishEvent(ctx context.Context, client *redis.Client, stream, eventType string, payload any, maxLen int64) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"type": eventType,
			"data": string(data),
			"ts":   strconv.FormatInt(time.Now().UnixMilli(), 10),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	id, err := client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}
