package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
	"github.com/maheshrc27/locaposty/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Google rejects local post summaries longer than this.
const maxSummaryLength = 1500

type PostService interface {
	Create(ctx context.Context, userID int64, userEmail string, pc *transfer.PostCreation) (*models.Post, error)
	Get(ctx context.Context, userID int64, postID string) (*models.Post, error)
	List(ctx context.Context, userID int64, locationID string) ([]*models.Post, error)
	Update(ctx context.Context, userID int64, userEmail, postID string, pu *transfer.PostUpdate) (*models.Post, error)
	Delete(ctx context.Context, userID int64, postID string) error
	// PublishNow validates the post synchronously and queues it with no delay.
	// The returned post is non-nil whenever it was loaded, even on error.
	PublishNow(ctx context.Context, userID int64, userEmail, postID string) (*models.Post, error)
	History(ctx context.Context, userID int64, postID string) ([]*models.PublishAttempt, error)
}

type postService struct {
	pr      repository.PostRepository
	lr      repository.LocationRepository
	publish PublishService
	sched   PostScheduler
	history repository.PublishAttemptRepository
	now     func() time.Time
}

func NewPostService(
	pr repository.PostRepository,
	lr repository.LocationRepository,
	publish PublishService,
	sched PostScheduler,
	history repository.PublishAttemptRepository) PostService {
	return &postService{
		pr:      pr,
		lr:      lr,
		publish: publish,
		sched:   sched,
		history: history,
		now:     time.Now,
	}
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func validatePost(p *models.Post) error {
	if strings.TrimSpace(p.Content) == "" {
		return validationError("content cannot be empty")
	}
	if utf8.RuneCountInString(p.Content) > maxSummaryLength {
		return validationError("content exceeds %d characters", maxSummaryLength)
	}
	if !p.Type.Valid() {
		return validationError("unknown post type %q", p.Type)
	}
	if p.Status != models.PostStatusDraft && p.Status != models.PostStatusScheduled {
		return validationError("status must be DRAFT or SCHEDULED")
	}
	if p.Status == models.PostStatusScheduled && p.ScheduledAt == nil {
		return validationError("scheduledAt is required for scheduled posts")
	}
	if p.Type != models.PostTypeUpdate && strings.TrimSpace(p.Title) == "" {
		return validationError("%s posts need a title", p.Type)
	}
	if p.Type == models.PostTypeEvent {
		start, end := p.Details.EventStart, p.Details.EventEnd
		if start == nil || end == nil {
			return validationError("event posts need eventStart and eventEnd")
		}
		if !end.After(*start) {
			return validationError("eventEnd must be after eventStart")
		}
	}
	return nil
}

func (s *postService) Create(ctx context.Context, userID int64, userEmail string, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil {
		return nil, validationError("post creation data is nil")
	}
	if pc.LocationID == "" {
		return nil, validationError("locationId is required")
	}

	post := &models.Post{
		LocationID:  pc.LocationID,
		CreatedBy:   userID,
		Title:       pc.Title,
		Content:     pc.Content,
		Type:        pc.Type,
		Status:      pc.Status,
		ScheduledAt: pc.ScheduledAt,
		MediaURLs:   pc.MediaURLs,
		Details:     pc.Details,
	}
	if post.Type == "" {
		post.Type = models.PostTypeUpdate
	}
	if post.Status == "" {
		post.Status = models.PostStatusDraft
		if post.ScheduledAt != nil {
			post.Status = models.PostStatusScheduled
		}
	}
	if post.MediaURLs == nil {
		post.MediaURLs = []string{}
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}

	ok, err := s.lr.HasAccess(ctx, post.LocationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	post.ID = id

	if err := s.pr.Create(ctx, nil, post); err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	if post.Status == models.PostStatusScheduled {
		if err := s.sched.Schedule(ctx, post.ID, *post.ScheduledAt, userEmail); err != nil {
			return s.queueFailed(ctx, post, err)
		}
	}
	return post, nil
}

// queueFailed moves a post whose job could not be queued to FAILED so it
// never sits in SCHEDULED without a job behind it.
func (s *postService) queueFailed(ctx context.Context, post *models.Post, cause error) (*models.Post, error) {
	slog.Error("failed to queue post", "post_id", post.ID, "error", cause)
	msg := "failed to queue post: " + cause.Error()
	if err := s.pr.MarkFailed(ctx, post.ID, msg); err != nil {
		slog.Error("failed to mark post as failed", "post_id", post.ID, "error", err)
	}
	post.Status = models.PostStatusFailed
	post.ErrorMessage = msg
	return post, fmt.Errorf("%w: %w", ErrQueue, cause)
}

// load returns the post if it exists and the user can see its location.
func (s *postService) load(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	if postID == "" {
		return nil, validationError("post id is required")
	}
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.Status == models.PostStatusDeleted {
		return nil, ErrNotFound
	}
	ok, err := s.lr.HasAccess(ctx, post.LocationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return post, nil
}

func (s *postService) Get(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	return s.load(ctx, userID, postID)
}

func (s *postService) History(ctx context.Context, userID int64, postID string) ([]*models.PublishAttempt, error) {
	if _, err := s.load(ctx, userID, postID); err != nil {
		return nil, err
	}
	return s.history.ListByPostID(ctx, postID)
}

func (s *postService) List(ctx context.Context, userID int64, locationID string) ([]*models.Post, error) {
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
	return s.pr.ListByLocation(ctx, locationID)
}

func (s *postService) Update(ctx context.Context, userID int64, userEmail, postID string, pu *transfer.PostUpdate) (*models.Post, error) {
	if pu == nil {
		return nil, validationError("post update data is nil")
	}
	post, err := s.load(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !post.Status.Editable() {
		return post, fmt.Errorf("post %s is %s: %w", post.ID, post.Status, ErrInvalidStatus)
	}

	prevStatus := post.Status
	var prevAt time.Time
	if post.ScheduledAt != nil {
		prevAt = *post.ScheduledAt
	}

	if pu.Title != nil {
		post.Title = *pu.Title
	}
	if pu.Content != nil {
		post.Content = *pu.Content
	}
	if pu.Type != nil {
		post.Type = *pu.Type
	}
	if pu.MediaURLs != nil {
		post.MediaURLs = *pu.MediaURLs
	}
	if pu.Details != nil {
		post.Details = *pu.Details
	}
	if pu.ScheduledAt != nil {
		post.ScheduledAt = pu.ScheduledAt
	}
	switch {
	case pu.Status != nil:
		post.Status = *pu.Status
	case prevStatus == models.PostStatusFailed && post.ScheduledAt != nil:
		// Editing a failed post with a schedule retries it.
		post.Status = models.PostStatusScheduled
	case prevStatus == models.PostStatusFailed:
		post.Status = models.PostStatusDraft
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}
	post.ErrorMessage = ""

	if err := s.pr.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("error updating post: %w", err)
	}

	unchanged := prevStatus == models.PostStatusScheduled && post.ScheduledAt != nil && post.ScheduledAt.Equal(prevAt)
	switch {
	case post.Status == models.PostStatusScheduled && !unchanged:
		if err := s.sched.Reschedule(ctx, post.ID, *post.ScheduledAt, userEmail); err != nil {
			return s.queueFailed(ctx, post, err)
		}
	case post.Status == models.PostStatusDraft && prevStatus == models.PostStatusScheduled:
		if err := s.sched.Unschedule(ctx, post.ID); err != nil {
			return s.queueFailed(ctx, post, err)
		}
	}
	return post, nil
}

func (s *postService) Delete(ctx context.Context, userID int64, postID string) error {
	post, err := s.load(ctx, userID, postID)
	if err != nil {
		return err
	}

	if err := s.pr.UpdateStatus(ctx, post.ID, models.PostStatusDeleted, nil); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	// A leftover job is harmless: the worker rejects DELETED posts.
	if err := s.sched.Unschedule(ctx, post.ID); err != nil {
		slog.Warn("failed to unschedule deleted post", "post_id", post.ID, "error", err)
	}
	return nil
}

func (s *postService) PublishNow(ctx context.Context, userID int64, userEmail, postID string) (*models.Post, error) {
	post, err := s.load(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	if _, err := s.publish.CheckPublishable(ctx, post); err != nil {
		if IsConfigError(err) {
			if markErr := s.pr.MarkFailed(ctx, post.ID, err.Error()); markErr != nil {
				return post, markErr
			}
			post.Status = models.PostStatusFailed
			post.ErrorMessage = err.Error()
		}
		return post, err
	}

	now := s.now()
	if err := s.pr.UpdateStatus(ctx, post.ID, models.PostStatusScheduled, &now); err != nil {
		return s.queueFailed(ctx, post, err)
	}
	post.Status = models.PostStatusScheduled
	post.ScheduledAt = &now
	post.ErrorMessage = ""

	if err := s.sched.Schedule(ctx, post.ID, now, userEmail); err != nil {
		return s.queueFailed(ctx, post, err)
	}
	return post, nil
}
