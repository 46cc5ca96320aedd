package job

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
	"github.com/maheshrc27/locaposty/internal/service"
	"github.com/maheshrc27/locaposty/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiringLocations struct {
	repository.LocationRepository
	locations []*models.Location
	before    time.Time
}

func (f *expiringLocations) ListExpiring(_ context.Context, before time.Time) ([]*models.Location, error) {
	f.before = before
	return f.locations, nil
}

type recordingTokens struct {
	service.TokenService
	mu        sync.Mutex
	refreshed []string
	inFlight  int
	peak      int
}

func (f *recordingTokens) ForceRefresh(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.refreshed = append(f.refreshed, id)
	if id == "bad" {
		return "", errors.New("invalid_grant")
	}
	return "tok", nil
}

func TestRefreshTokens(t *testing.T) {
	lr := &expiringLocations{}
	for _, id := range []string{"a", "b", "bad", "c", "d", "e", "f", "g", "h", "i", "j", "k"} {
		lr.locations = append(lr.locations, &models.Location{ID: id})
	}
	tokens := &recordingTokens{}
	job := NewTokenRefreshJob(lr, tokens)

	start := time.Now()
	job.RefreshTokens()

	sort.Strings(tokens.refreshed)
	assert.Len(t, tokens.refreshed, 12)
	assert.Contains(t, tokens.refreshed, "bad")
	assert.LessOrEqual(t, tokens.peak, 10)
	assert.WithinDuration(t, start.Add(30*time.Minute), lr.before, time.Second)
}

type stubReviews struct {
	service.ReviewService
	locationID string
	called     bool
}

func (s *stubReviews) Sync(_ context.Context, locationID string) (*transfer.SyncResult, error) {
	s.called = true
	s.locationID = locationID
	return &transfer.SyncResult{Locations: 2, Upserted: 5}, nil
}

func TestSyncReviews_AllLocations(t *testing.T) {
	rs := &stubReviews{}

	NewReviewSyncJob(rs).SyncReviews()

	require.True(t, rs.called)
	assert.Empty(t, rs.locationID)
}

type stubAutoReply struct {
	service.AutoReplyService
	calls int
}

func (s *stubAutoReply) Process(context.Context) []transfer.AutoReplyOutcome {
	s.calls++
	return []transfer.AutoReplyOutcome{
		{LocationID: "l1", ReviewID: 1, Outcome: transfer.OutcomeAutoPosted},
		{LocationID: "l1", ReviewID: 2, Outcome: transfer.OutcomeError, Error: "boom"},
	}
}

func TestProcessReviews(t *testing.T) {
	ar := &stubAutoReply{}

	NewAutoReplyJob(ar).ProcessReviews()

	assert.Equal(t, 1, ar.calls)
}
