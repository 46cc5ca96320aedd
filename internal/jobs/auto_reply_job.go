package job

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/locaposty/internal/service"
	"github.com/maheshrc27/locaposty/internal/transfer"
	"github.com/samber/lo"
)

type AutoReplyJob struct {
	ar service.AutoReplyService
}

func NewAutoReplyJob(ar service.AutoReplyService) *AutoReplyJob {
	return &AutoReplyJob{ar: ar}
}

func (c *AutoReplyJob) ProcessReviews() {
	outcomes := c.ar.Process(context.Background())

	counts := lo.CountValuesBy(outcomes, func(o transfer.AutoReplyOutcome) string { return o.Outcome })
	slog.Info("auto-reply batch finished", "reviews", len(outcomes), "outcomes", counts)
}
