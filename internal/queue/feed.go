package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RecentKey is the redis list holding the newest scans, newest first.
const RecentKey = "timetrack:recent"

// PushRecent prepends a scan to the recent feed and trims it to max entries.
func PushRecent(ctx context.Context, client *redis.Client, evt ScanEvent, max int) error {
	if max <= 0 {
		max = 10
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	pipe := client.TxPipeline()
	pipe.LPush(ctx, RecentKey, payload)
	pipe.LTrim(ctx, RecentKey, 0, int64(max-1))
	_, err = pipe.Exec(ctx)
	return err
}

// RecentScans reads up to max entries from the feed, newest first.
func RecentScans(ctx context.Context, client *redis.Client, max int) ([]ScanEvent, error) {
	if max <= 0 {
		max = 10
	}
	raw, err := client.LRange(ctx, RecentKey, 0, int64(max-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ScanEvent, 0, len(raw))
	for _, item := range raw {
		var evt ScanEvent
		if err := json.Unmarshal([]byte(item), &evt); err != nil {
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}
