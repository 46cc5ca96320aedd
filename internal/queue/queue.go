package queue

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/locaposty/internal/cache"
	"github.com/maheshrc27/locaposty/internal/service"
)

const TaskTypePublishPost = "post:publish"

type PublishPostPayload struct {
	PostID    string `json:"post_id"`
	UserEmail string `json:"user_email"`
}

// TaskID is the job key for a post. Rescheduling relies on recomputing it.
func TaskID(postID string) string {
	return "post-" + postID
}

const lockStripes = 64

// Scheduler keeps at most one pending publish job per post.
type Scheduler struct {
	broker    Broker
	processed cache.ProcessedSet
	now       func() time.Time
	locks     [lockStripes]sync.Mutex
}

var _ service.PostScheduler = (*Scheduler)(nil)

func NewScheduler(broker Broker, processed cache.ProcessedSet) *Scheduler {
	return &Scheduler{
		broker:    broker,
		processed: processed,
		now:       time.Now,
	}
}

func (s *Scheduler) lock(postID string) func() {
	h := fnv.New32a()
	h.Write([]byte(postID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func (s *Scheduler) Schedule(ctx context.Context, postID string, at time.Time, userEmail string) error {
	defer s.lock(postID)()
	return s.replace(ctx, postID, at, userEmail)
}

// Reschedule swaps the pending job for one at the new time. Both steps run
// under the post's lock, so no caller sees two jobs for the post.
func (s *Scheduler) Reschedule(ctx context.Context, postID string, at time.Time, userEmail string) error {
	defer s.lock(postID)()
	return s.replace(ctx, postID, at, userEmail)
}

func (s *Scheduler) Unschedule(ctx context.Context, postID string) error {
	defer s.lock(postID)()
	return s.broker.Remove(ctx, TaskID(postID))
}

func (s *Scheduler) replace(ctx context.Context, postID string, at time.Time, userEmail string) error {
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	payload, err := json.Marshal(PublishPostPayload{PostID: postID, UserEmail: userEmail})
	if err != nil {
		return err
	}

	if err := s.broker.Remove(ctx, TaskID(postID)); err != nil {
		return err
	}
	if err := s.processed.Remove(ctx, postID); err != nil {
		return err
	}
	if err := s.broker.Enqueue(ctx, TaskID(postID), payload, delay); err != nil {
		return err
	}

	slog.Info("post scheduled", "post_id", postID, "delay", delay)
	return nil
}
