package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/locaposty/internal/logger"
	"github.com/maheshrc27/locaposty/internal/service"
)

type Worker struct {
	publish service.PublishService
}

func NewWorker(publish service.PublishService) *Worker {
	return &Worker{publish: publish}
}

func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePublishPost, w.HandlePublishPostTask)
}

// HandlePublishPostTask returns an error only when asynq should try again.
func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	if id, ok := asynq.GetTaskID(ctx); ok {
		ctx = logger.WithRequestID(ctx, id)
	}
	log := logger.FromContext(ctx).With("post_id", payload.PostID)

	err := w.publish.Process(ctx, payload.PostID, lastAttempt(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrTransient):
		return err
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrNotFound):
		log.Warn("publish job rejected", "error", err)
		return nil
	default:
		log.Error("publish job failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
}

// lastAttempt is true when asynq will not run the task again on error.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= maxRetry
}
