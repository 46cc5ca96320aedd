package job

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/locaposty/internal/service"
)

type ReviewSyncJob struct {
	rs service.ReviewService
}

func NewReviewSyncJob(rs service.ReviewService) *ReviewSyncJob {
	return &ReviewSyncJob{rs: rs}
}

func (c *ReviewSyncJob) SyncReviews() {
	res, err := c.rs.Sync(context.Background(), "")
	if err != nil {
		slog.Error("review sync failed", "error", err)
		return
	}
	slog.Info("review sync finished",
		"locations", res.Locations, "upserted", res.Upserted, "errors", len(res.Errors))
}
