package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/locaposty/internal/ai"
	"github.com/maheshrc27/locaposty/internal/gmb"
	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
	"github.com/maheshrc27/locaposty/internal/transfer"
	"github.com/samber/lo"
)

type AutoReplyService interface {
	// Process drafts replies for every auto-reply enabled location.
	Process(ctx context.Context) []transfer.AutoReplyOutcome
	// ProcessForUser is Process limited to the user's locations.
	ProcessForUser(ctx context.Context, userID int64) ([]transfer.AutoReplyOutcome, error)
	// Approve posts a drafted or pending reply, optionally with edited text.
	Approve(ctx context.Context, userID, reviewID int64, content string) (*models.ReviewReply, error)
}

type autoReplyService struct {
	lr        repository.LocationRepository
	rr        repository.ReviewRepository
	tokens    TokenService
	gmb       gmb.Client
	assistant ai.Assistant
	now       func() time.Time
}

func NewAutoReplyService(
	lr repository.LocationRepository,
	rr repository.ReviewRepository,
	tokens TokenService,
	gc gmb.Client,
	assistant ai.Assistant) AutoReplyService {
	return &autoReplyService{
		lr:        lr,
		rr:        rr,
		tokens:    tokens,
		gmb:       gc,
		assistant: assistant,
		now:       time.Now,
	}
}

func (s *autoReplyService) Process(ctx context.Context) []transfer.AutoReplyOutcome {
	locations, err := s.lr.ListAutoReplyEnabled(ctx)
	if err != nil {
		slog.Error("failed to list auto-reply locations", "error", err)
		return []transfer.AutoReplyOutcome{{Outcome: transfer.OutcomeError, Error: err.Error()}}
	}
	return s.processLocations(ctx, locations)
}

func (s *autoReplyService) ProcessForUser(ctx context.Context, userID int64) ([]transfer.AutoReplyOutcome, error) {
	all, err := s.lr.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	locations := lo.Filter(all, func(l *models.Location, _ int) bool { return l.AutoReplyEnabled })
	return s.processLocations(ctx, locations), nil
}

func (s *autoReplyService) processLocations(ctx context.Context, locations []*models.Location) []transfer.AutoReplyOutcome {
	outcomes := []transfer.AutoReplyOutcome{}
	for _, loc := range locations {
		outcomes = append(outcomes, s.processLocation(ctx, loc)...)
	}
	return outcomes
}

// processLocation turns a location level failure into one error outcome so
// the batch moves on to the next location.
func (s *autoReplyService) processLocation(ctx context.Context, loc *models.Location) (outcomes []transfer.AutoReplyOutcome) {
	locationError := func(err error) []transfer.AutoReplyOutcome {
		slog.Warn("auto-reply skipped location", "location_id", loc.ID, "error", err)
		return []transfer.AutoReplyOutcome{{LocationID: loc.ID, Outcome: transfer.OutcomeError, Error: err.Error()}}
	}
	defer func() {
		if r := recover(); r != nil {
			outcomes = append(outcomes, locationError(fmt.Errorf("panic: %v", r))...)
		}
	}()

	reviews, err := s.rr.ListUnanswered(ctx, loc.ID)
	if err != nil {
		return locationError(err)
	}
	if len(reviews) == 0 {
		return nil
	}

	var token string
	if loc.AutoPostEnabled {
		if loc.GMBLocationID == "" {
			return locationError(ErrNoExternalLocation)
		}
		if token, err = s.tokens.GetValidAccessToken(ctx, loc.ID); err != nil {
			return locationError(err)
		}
	}

	for _, review := range reviews {
		outcomes = append(outcomes, s.processReview(ctx, loc, token, review))
	}
	return outcomes
}

func (s *autoReplyService) processReview(ctx context.Context, loc *models.Location, token string, review *models.Review) (out transfer.AutoReplyOutcome) {
	out = transfer.AutoReplyOutcome{LocationID: loc.ID, ReviewID: review.ID}
	fail := func(err error) transfer.AutoReplyOutcome {
		slog.Warn("auto-reply failed", "location_id", loc.ID, "review_id", review.ID, "error", err)
		out.Outcome = transfer.OutcomeError
		out.Error = err.Error()
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	sentiment, err := s.assistant.ClassifySentiment(ctx, review)
	if err != nil {
		return fail(fmt.Errorf("classify sentiment: %w", err))
	}
	text, err := s.assistant.GenerateReply(ctx, review, loc.ReplyTonePreference, sentiment)
	if err != nil {
		return fail(fmt.Errorf("generate reply: %w", err))
	}

	reply := &models.ReviewReply{
		ReviewID:  review.ID,
		Content:   text,
		Sentiment: sentiment,
	}
	switch {
	case !loc.AutoPostEnabled:
		reply.Status = models.ReplyStatusPendingApproval
		out.Outcome = transfer.OutcomePendingApprove
	case sentiment == models.SentimentNegative:
		// Negative reviews always get a human look before anything is posted.
		reply.Status = models.ReplyStatusDraft
		out.Outcome = transfer.OutcomeCreated
	default:
		reply.Status = models.ReplyStatusDraft
		out.Outcome = transfer.OutcomeAutoPosted
	}

	if _, err := s.rr.CreateReply(ctx, reply); err != nil {
		return fail(fmt.Errorf("store reply: %w", err))
	}
	if out.Outcome != transfer.OutcomeAutoPosted {
		return out
	}

	reviewName := gmb.LocationName(loc.GMBAccountID, loc.GMBLocationID) + "/reviews/" + review.ExternalReviewID
	if err := s.gmb.UpdateReply(ctx, token, reviewName, text); err != nil {
		reply.Status = models.ReplyStatusFailed
		reply.ErrorMessage = err.Error()
		if updErr := s.rr.UpdateReply(ctx, reply); updErr != nil {
			slog.Error("failed to record reply failure", "reply_id", reply.ID, "error", updErr)
		}
		return fail(fmt.Errorf("post reply: %w", err))
	}

	now := s.now()
	reply.Status = models.ReplyStatusAutoPosted
	reply.PostedAt = &now
	if err := s.rr.UpdateReply(ctx, reply); err != nil {
		return fail(fmt.Errorf("mark reply posted: %w", err))
	}
	return out
}

func (s *autoReplyService) Approve(ctx context.Context, userID, reviewID int64, content string) (*models.ReviewReply, error) {
	review, err := s.rr.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, ErrNotFound
	}
	ok, err := s.lr.HasAccess(ctx, review.LocationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	reply, err := s.rr.GetReplyByReviewID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, ErrNotFound
	}
	switch reply.Status {
	case models.ReplyStatusDraft, models.ReplyStatusPendingApproval, models.ReplyStatusFailed:
	default:
		return reply, fmt.Errorf("reply is %s: %w", reply.Status, ErrInvalidStatus)
	}
	if content != "" {
		reply.Content = content
	}

	loc, err := s.lr.GetByID(ctx, review.LocationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, ErrLocationMissing
	}
	if loc.GMBLocationID == "" {
		return nil, ErrNoExternalLocation
	}
	token, err := s.tokens.GetValidAccessToken(ctx, loc.ID)
	if err != nil {
		return reply, err
	}

	reviewName := gmb.LocationName(loc.GMBAccountID, loc.GMBLocationID) + "/reviews/" + review.ExternalReviewID
	if err := s.gmb.UpdateReply(ctx, token, reviewName, reply.Content); err != nil {
		reply.Status = models.ReplyStatusFailed
		reply.ErrorMessage = err.Error()
		if updErr := s.rr.UpdateReply(ctx, reply); updErr != nil {
			slog.Error("failed to record reply failure", "reply_id", reply.ID, "error", updErr)
		}
		return reply, fmt.Errorf("post reply: %w", err)
	}

	now := s.now()
	reply.Status = models.ReplyStatusPosted
	reply.ErrorMessage = ""
	reply.PostedAt = &now
	if err := s.rr.UpdateReply(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}
