package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/locaposty/internal/cache"
	"github.com/maheshrc27/locaposty/internal/gmb"
	"github.com/maheshrc27/locaposty/internal/logger"
	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
)

// ErrTransient marks a publish attempt that may succeed if the job runs again.
var ErrTransient = errors.New("transient publish failure")

// PostScheduler is the delayed job queue as seen by the services.
type PostScheduler interface {
	Schedule(ctx context.Context, postID string, at time.Time, userEmail string) error
	Reschedule(ctx context.Context, postID string, at time.Time, userEmail string) error
	Unschedule(ctx context.Context, postID string) error
}

type PublishService interface {
	// CheckPublishable runs the checks that do not need Google: post status
	// and location configuration.
	CheckPublishable(ctx context.Context, post *models.Post) (*models.Location, error)
	// Process runs one publish attempt for a queued post. Handled outcomes
	// return nil; errors wrapping ErrTransient ask for another attempt.
	Process(ctx context.Context, postID string, lastAttempt bool) error
}

type publishService struct {
	pr        repository.PostRepository
	lr        repository.LocationRepository
	tokens    TokenService
	gmb       gmb.Client
	processed cache.ProcessedSet
	history   repository.PublishAttemptRepository
	now       func() time.Time
}

func NewPublishService(
	pr repository.PostRepository,
	lr repository.LocationRepository,
	tokens TokenService,
	gc gmb.Client,
	processed cache.ProcessedSet,
	history repository.PublishAttemptRepository) PublishService {
	return &publishService{
		pr:        pr,
		lr:        lr,
		tokens:    tokens,
		gmb:       gc,
		processed: processed,
		history:   history,
		now:       time.Now,
	}
}

func (s *publishService) CheckPublishable(ctx context.Context, post *models.Post) (*models.Location, error) {
	if !post.Status.Publishable() {
		return nil, fmt.Errorf("post %s is %s: %w", post.ID, post.Status, ErrInvalidStatus)
	}

	loc, err := s.lr.GetByID(ctx, post.LocationID)
	if err != nil {
		return nil, fmt.Errorf("load location %s: %w", post.LocationID, err)
	}
	if loc == nil {
		return nil, ErrLocationMissing
	}
	if loc.GMBLocationID == "" {
		return nil, ErrNoExternalLocation
	}
	if !loc.Connected() {
		return nil, ErrNoCredentials
	}
	return loc, nil
}

func (s *publishService) Process(ctx context.Context, postID string, lastAttempt bool) (err error) {
	log := logger.FromContext(ctx).With("post_id", postID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("publish panicked", "panic", r)
			s.markFailed(ctx, postID, fmt.Sprintf("internal error: %v", r))
			err = fmt.Errorf("publish post %s: panic: %v", postID, r)
		}
	}()

	seen, err := s.processed.Contains(ctx, postID)
	if err != nil {
		return s.unexpected(ctx, postID, lastAttempt, fmt.Errorf("check processed set: %w", err))
	}
	if seen {
		log.Info("post already processed, skipping")
		return nil
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return s.unexpected(ctx, postID, lastAttempt, fmt.Errorf("load post: %w", err))
	}
	if post == nil {
		log.Warn("queued post no longer exists")
		return fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}

	loc, err := s.CheckPublishable(ctx, post)
	switch {
	case errors.Is(err, ErrInvalidStatus):
		log.Warn("post not publishable", "status", post.Status)
		s.record(ctx, postID, models.AttemptRejected, err.Error())
		return err
	case IsConfigError(err):
		log.Warn("post location not usable", "error", err)
		s.markFailed(ctx, postID, err.Error())
		return nil
	case err != nil:
		return s.unexpected(ctx, postID, lastAttempt, err)
	}

	token, err := s.tokens.GetValidAccessToken(ctx, loc.ID)
	if err != nil {
		if stopped(ctx) {
			return interrupted(ctx, postID)
		}
		if IsConfigError(err) || errors.Is(err, ErrNotFound) || lastAttempt {
			log.Warn("no usable access token", "location_id", loc.ID, "error", err)
			s.markFailed(ctx, postID, "token refresh failed: "+err.Error())
			return nil
		}
		s.record(ctx, postID, models.AttemptRetry, err.Error())
		return fmt.Errorf("get access token: %w: %w", ErrTransient, err)
	}

	created, err := s.gmb.CreateLocalPost(ctx, token, gmb.LocationName(loc.GMBAccountID, loc.GMBLocationID), gmb.NewLocalPost(post))
	if err != nil {
		if stopped(ctx) {
			return interrupted(ctx, postID)
		}
		if gmb.IsRetryable(err) && !lastAttempt {
			log.Warn("publish failed, will retry", "error", err)
			s.record(ctx, postID, models.AttemptRetry, providerMessage(err))
			return fmt.Errorf("create local post: %w: %w", ErrTransient, err)
		}
		log.Warn("publish rejected by Google", "error", err)
		s.markFailed(ctx, postID, providerMessage(err))
		return nil
	}

	// The external post exists now, so the set entry goes in even if the
	// status write fails.
	now := s.now()
	markErr := s.pr.MarkPublished(ctx, postID, created.Name, now)
	if err := s.processed.Add(ctx, postID); err != nil {
		log.Error("failed to record processed post", "error", err)
	}
	if markErr != nil {
		return fmt.Errorf("mark post %s published: %w", postID, markErr)
	}

	s.record(ctx, postID, models.AttemptPublished, "")
	log.Info("post published", "external_post_name", created.Name)
	return nil
}

// unexpected retries errors outside the known taxonomy until the last attempt,
// which records FAILED so the post is never stuck in SCHEDULED.
func (s *publishService) unexpected(ctx context.Context, postID string, lastAttempt bool, err error) error {
	if stopped(ctx) {
		return interrupted(ctx, postID)
	}
	if !lastAttempt {
		s.record(ctx, postID, models.AttemptRetry, err.Error())
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	s.markFailed(ctx, postID, err.Error())
	return err
}

// stopped reports a handler context cancelled by worker shutdown. asynq
// requeues such a job, so the post has to stay SCHEDULED.
func stopped(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func interrupted(ctx context.Context, postID string) error {
	logger.FromContext(ctx).Info("publish interrupted, job will be requeued", "post_id", postID)
	return fmt.Errorf("%w: %w", ErrTransient, ctx.Err())
}

func (s *publishService) markFailed(ctx context.Context, postID, msg string) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if err := s.pr.MarkFailed(ctx, postID, msg); err != nil {
		logger.FromContext(ctx).Error("failed to mark post as failed", "post_id", postID, "error", err)
	}
	s.record(ctx, postID, models.AttemptFailed, msg)
}

// record appends to the post's attempt log. The log is informational, so a
// write failure never changes the job outcome.
func (s *publishService) record(ctx context.Context, postID string, outcome models.AttemptOutcome, msg string) {
	attempt := &models.PublishAttempt{PostID: postID, Outcome: outcome, ErrorMessage: msg}
	if _, err := s.history.Create(ctx, attempt); err != nil {
		logger.FromContext(ctx).Error("failed to record publish attempt", "post_id", postID, "error", err)
	}
}

func providerMessage(err error) string {
	var apiErr *gmb.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("Google returned %d: %s", apiErr.StatusCode, apiErr.Body)
	}
	return err.Error()
}
