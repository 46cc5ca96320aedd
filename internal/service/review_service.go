package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/locaposty/internal/gmb"
	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
	"github.com/maheshrc27/locaposty/internal/transfer"
	"github.com/samber/lo"
)

// maxReviewPages bounds a single sync of one location.
const maxReviewPages = 20

// ErrSyncIncomplete means the page limit was hit before the watermark, so
// the watermark stays where it was.
var ErrSyncIncomplete = errors.New("review sync stopped at the page limit")

type ReviewService interface {
	// Sync pulls new reviews for one location, or every connected location
	// when locationID is empty.
	Sync(ctx context.Context, locationID string) (*transfer.SyncResult, error)
	// SyncForUser is Sync limited to locations the user can access.
	SyncForUser(ctx context.Context, userID int64, locationID string) (*transfer.SyncResult, error)
	List(ctx context.Context, userID int64, locationID string) ([]*models.Review, error)
}

type reviewService struct {
	lr       repository.LocationRepository
	rr       repository.ReviewRepository
	tokens   TokenService
	gmb      gmb.Client
	pageSize int
	now      func() time.Time
}

func NewReviewService(
	lr repository.LocationRepository,
	rr repository.ReviewRepository,
	tokens TokenService,
	gc gmb.Client,
	pageSize int) ReviewService {
	return &reviewService{
		lr:       lr,
		rr:       rr,
		tokens:   tokens,
		gmb:      gc,
		pageSize: pageSize,
		now:      time.Now,
	}
}

func (s *reviewService) Sync(ctx context.Context, locationID string) (*transfer.SyncResult, error) {
	if locationID != "" {
		loc, err := s.syncable(ctx, locationID)
		if err != nil {
			return nil, err
		}
		return s.syncAll(ctx, []*models.Location{loc}), nil
	}

	locations, err := s.lr.ListConnected(ctx)
	if err != nil {
		return nil, err
	}
	return s.syncAll(ctx, locations), nil
}

func (s *reviewService) SyncForUser(ctx context.Context, userID int64, locationID string) (*transfer.SyncResult, error) {
	if locationID != "" {
		ok, err := s.lr.HasAccess(ctx, locationID, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden
		}
		return s.Sync(ctx, locationID)
	}

	all, err := s.lr.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	locations := lo.Filter(all, func(l *models.Location, _ int) bool {
		return l.Connected() && l.GMBLocationID != ""
	})
	return s.syncAll(ctx, locations), nil
}

func (s *reviewService) syncable(ctx context.Context, locationID string) (*models.Location, error) {
	loc, err := s.lr.GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, ErrNotFound
	}
	if !loc.Connected() {
		return nil, ErrNoCredentials
	}
	if loc.GMBLocationID == "" {
		return nil, ErrNoExternalLocation
	}
	return loc, nil
}

// syncAll isolates failures per location.
func (s *reviewService) syncAll(ctx context.Context, locations []*models.Location) *transfer.SyncResult {
	result := &transfer.SyncResult{}
	for _, loc := range locations {
		n, err := s.syncLocation(ctx, loc)
		result.Upserted += n
		if err != nil {
			slog.Warn("review sync failed", "location_id", loc.ID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", loc.ID, err))
			continue
		}
		result.Locations++
	}
	return result
}

// syncLocation walks pages newest first and stops at the first review not
// updated since the last sync.
func (s *reviewService) syncLocation(ctx context.Context, loc *models.Location) (int, error) {
	token, err := s.tokens.GetValidAccessToken(ctx, loc.ID)
	if err != nil {
		return 0, err
	}

	startedAt := s.now()
	name := gmb.LocationName(loc.GMBAccountID, loc.GMBLocationID)
	upserted := 0
	pageToken := ""
	complete := false

	for page := 0; page < maxReviewPages && !complete; page++ {
		resp, err := s.gmb.ListReviews(ctx, token, name, pageToken, s.pageSize)
		if err != nil {
			return upserted, fmt.Errorf("list reviews: %w", err)
		}

		reachedWatermark := false
		for _, r := range resp.Reviews {
			if loc.LastReviewsFetchedAt != nil && !r.UpdateTime.After(*loc.LastReviewsFetchedAt) {
				reachedWatermark = true
				break
			}
			if _, err := s.rr.Upsert(ctx, r.ToModel(loc.ID)); err != nil {
				return upserted, fmt.Errorf("store review %s: %w", r.ReviewID, err)
			}
			upserted++
		}

		complete = reachedWatermark || resp.NextPageToken == ""
		pageToken = resp.NextPageToken
	}

	// Older reviews are still unread. Moving the watermark would skip them.
	if !complete {
		return upserted, fmt.Errorf("%w after %d pages", ErrSyncIncomplete, maxReviewPages)
	}

	if err := s.lr.UpdateReviewsWatermark(ctx, loc.ID, startedAt); err != nil {
		return upserted, err
	}
	slog.Info("reviews synced", "location_id", loc.ID, "upserted", upserted)
	return upserted, nil
}

func (s *reviewService) List(ctx context.Context, userID int64, locationID string) ([]*models.Review, error) {
	if locationID == "" {
		return nil, validationError("locationId is required")
	}
	ok, err := s.lr.HasAccess(ctx, locationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return s.rr.ListByLocation(ctx, locationID)
}
