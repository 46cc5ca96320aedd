package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const ProcessedPostsKey = "processed_posts"

// ProcessedSet records posts the publish worker has already handled.
// Membership means a duplicate delivery must not publish again.
type ProcessedSet interface {
	Contains(ctx context.Context, postID string) (bool, error)
	Add(ctx context.Context, postID string) error
	Remove(ctx context.Context, postID string) error
}

type redisProcessedSet struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProcessedSet(rdb *redis.Client, ttl time.Duration) ProcessedSet {
	return &redisProcessedSet{rdb: rdb, ttl: ttl}
}

func (s *redisProcessedSet) Contains(ctx context.Context, postID string) (bool, error) {
	return s.rdb.SIsMember(ctx, ProcessedPostsKey, postID).Result()
}

// Add inserts the post and refreshes the expiry of the whole set.
func (s *redisProcessedSet) Add(ctx context.Context, postID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, ProcessedPostsKey, postID)
	pipe.Expire(ctx, ProcessedPostsKey, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisProcessedSet) Remove(ctx context.Context, postID string) error {
	return s.rdb.SRem(ctx, ProcessedPostsKey, postID).Err()
}
