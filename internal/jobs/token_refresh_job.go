package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
	"github.com/maheshrc27/locaposty/internal/service"
)

type TokenRefreshJob struct {
	lr     repository.LocationRepository
	tokens service.TokenService
	window time.Duration
	limit  int
}

func NewTokenRefreshJob(lr repository.LocationRepository, tokens service.TokenService) *TokenRefreshJob {
	return &TokenRefreshJob{
		lr:     lr,
		tokens: tokens,
		window: 30 * time.Minute,
		limit:  10,
	}
}

// RefreshTokens renews every connected location whose token expires within
// the window, so publish jobs rarely have to refresh inline.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	locations, err := c.lr.ListExpiring(ctx, time.Now().Add(c.window))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.limit)

	for _, loc := range locations {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(loc *models.Location) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := c.tokens.ForceRefresh(ctx, loc.ID); err != nil {
				slog.Warn("unable to refresh token", "location_id", loc.ID, "error", err)
			}
		}(loc)
	}

	wg.Wait()
	slog.Info("token sweep finished", "locations", len(locations))
}
