package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/locaposty/pkg/utils"
)

const DefaultQueue = "default"

// Broker stores delayed jobs by key.
type Broker interface {
	Enqueue(ctx context.Context, taskID string, payload []byte, delay time.Duration) error
	// Remove deletes a job that has not started. A missing job is not an error.
	Remove(ctx context.Context, taskID string) error
}

type asynqBroker struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	maxRetry  int
}

// NewBroker wraps a client and inspector owned by the caller, who closes them.
func NewBroker(client *asynq.Client, inspector *asynq.Inspector, maxRetry int) Broker {
	return &asynqBroker{
		client:    client,
		inspector: inspector,
		queue:     DefaultQueue,
		maxRetry:  maxRetry,
	}
}

func (b *asynqBroker) Enqueue(ctx context.Context, taskID string, payload []byte, delay time.Duration) error {
	task := asynq.NewTask(TaskTypePublishPost, payload)

	info, err := b.client.EnqueueContext(ctx, task,
		asynq.TaskID(taskID),
		asynq.Queue(b.queue),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(b.maxRetry),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskID, err)
	}

	slog.Debug("task enqueued", "task_id", info.ID, "process_at", info.NextProcessAt)
	return nil
}

func (b *asynqBroker) Remove(_ context.Context, taskID string) error {
	info, err := b.inspector.GetTaskInfo(b.queue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up %s: %w", taskID, err)
	}
	if info.State == asynq.TaskStateActive {
		// A running job cannot be cancelled; it finishes on its own.
		slog.Info("task already running, leaving it", "task_id", taskID)
		return nil
	}

	err = b.inspector.DeleteTask(b.queue, taskID)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return fmt.Errorf("remove %s: %w", taskID, err)
	}
	return nil
}

// RetryDelay spaces out retries of transient publish failures.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	return utils.Backoff(n, 30*time.Second, 10*time.Minute)
}

// Logger routes asynq's own logs through slog.
type Logger struct{}

var _ asynq.Logger = Logger{}

func (Logger) Debug(args ...interface{}) { slog.Debug(fmt.Sprint(args...), "component", "asynq") }
func (Logger) Info(args ...interface{})  { slog.Info(fmt.Sprint(args...), "component", "asynq") }
func (Logger) Warn(args ...interface{})  { slog.Warn(fmt.Sprint(args...), "component", "asynq") }
func (Logger) Error(args ...interface{}) { slog.Error(fmt.Sprint(args...), "component", "asynq") }
func (Logger) Fatal(args ...interface{}) {
	slog.Error(fmt.Sprint(args...), "component", "asynq")
	panic(fmt.Sprint(args...))
}
