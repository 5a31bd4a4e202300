package redis

import (
	"context"
	"time"

	"github.com/kbukum/imgprep/errors"
)

// SeenSet is a Redis set of image fingerprints. Sharing a set name across
// runs deduplicates against everything earlier runs produced.
type SeenSet struct {
	client *Client
	key    string
	ttl    time.Duration
}

// NewSeenSet binds a set named name under the client's key prefix.
func NewSeenSet(client *Client, name string) *SeenSet {
	return &SeenSet{client: client, key: client.Key("seen", name), ttl: client.cfg.ttl()}
}

// Key returns the Redis key of the set.
func (s *SeenSet) Key() string { return s.key }

// Add records key and reports whether it was new.
func (s *SeenSet) Add(ctx context.Context, key string) (bool, error) {
	added, err := s.client.rdb.SAdd(ctx, s.key, key).Result()
	if err != nil {
		return false, errors.IO("sadd", s.key, err)
	}
	if s.ttl > 0 {
		if err := s.client.rdb.Expire(ctx, s.key, s.ttl).Err(); err != nil {
			return false, errors.IO("expire", s.key, err)
		}
	}
	return added == 1, nil
}

// Len returns the number of fingerprints in the set.
func (s *SeenSet) Len(ctx context.Context) (int64, error) {
	n, err := s.client.rdb.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, errors.IO("scard", s.key, err)
	}
	return n, nil
}

// Reset deletes the set.
func (s *SeenSet) Reset(ctx context.Context) error {
	if err := s.client.rdb.Del(ctx, s.key).Err(); err != nil {
		return errors.IO("del", s.key, err)
	}
	return nil
}
