package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/locaposty/internal/models"
)

type ReviewRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Review, error)
	Upsert(ctx context.Context, review *models.Review) (int64, error)
	ListByLocation(ctx context.Context, locationID string) ([]*models.Review, error)
	ListUnanswered(ctx context.Context, locationID string) ([]*models.Review, error)
	CreateReply(ctx context.Context, reply *models.ReviewReply) (int64, error)
	GetReplyByReviewID(ctx context.Context, reviewID int64) (*models.ReviewReply, error)
	UpdateReply(ctx context.Context, reply *models.ReviewReply) error
}

type reviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

const reviewColumns = `r.id, r.location_id, r.external_review_id, r.reviewer_name, r.star_rating, r.comment,
	r.owner_reply, r.create_time, r.update_time, r.created_at`

func scanReview(row rowScanner) (*models.Review, error) {
	var rv models.Review
	err := row.Scan(&rv.ID, &rv.LocationID, &rv.ExternalReviewID, &rv.ReviewerName, &rv.StarRating,
		&rv.Comment, &rv.OwnerReply, &rv.CreateTime, &rv.UpdateTime, &rv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *reviewRepository) queryReviews(ctx context.Context, query string, args ...any) ([]*models.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	reviews := []*models.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id int64) (*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews r WHERE r.id = $1`
	rv, err := scanReview(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return rv, nil
}

// Upsert keys reviews by their Google id so repeated syncs do not duplicate rows.
func (r *reviewRepository) Upsert(ctx context.Context, review *models.Review) (int64, error) {
	query := `
		INSERT INTO reviews (location_id, external_review_id, reviewer_name, star_rating, comment, owner_reply, create_time, update_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_review_id) DO UPDATE
		SET reviewer_name = EXCLUDED.reviewer_name,
			star_rating = EXCLUDED.star_rating,
			comment = EXCLUDED.comment,
			owner_reply = EXCLUDED.owner_reply,
			update_time = EXCLUDED.update_time
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, review.LocationID, review.ExternalReviewID, review.ReviewerName,
		review.StarRating, review.Comment, review.OwnerReply, review.CreateTime, review.UpdateTime).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *reviewRepository) ListByLocation(ctx context.Context, locationID string) ([]*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews r WHERE r.location_id = $1 ORDER BY r.update_time DESC`
	return r.queryReviews(ctx, query, locationID)
}

// ListUnanswered returns reviews with neither a stored reply nor an owner reply on Google.
func (r *reviewRepository) ListUnanswered(ctx context.Context, locationID string) ([]*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews r
		LEFT JOIN review_replies rr ON rr.review_id = r.id
		WHERE r.location_id = $1 AND rr.id IS NULL AND r.owner_reply = ''
		ORDER BY r.create_time`
	return r.queryReviews(ctx, query, locationID)
}

func (r *reviewRepository) CreateReply(ctx context.Context, reply *models.ReviewReply) (int64, error) {
	query := `
		INSERT INTO review_replies (review_id, content, sentiment, status, error_message, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, reply.ReviewID, reply.Content, reply.Sentiment, reply.Status,
		reply.ErrorMessage, reply.PostedAt).Scan(&reply.ID, &reply.CreatedAt, &reply.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return reply.ID, nil
}

func (r *reviewRepository) GetReplyByReviewID(ctx context.Context, reviewID int64) (*models.ReviewReply, error) {
	query := `SELECT id, review_id, content, sentiment, status, error_message, posted_at, created_at, updated_at
		FROM review_replies WHERE review_id = $1`
	var rr models.ReviewReply
	err := r.db.QueryRowContext(ctx, query, reviewID).Scan(&rr.ID, &rr.ReviewID, &rr.Content, &rr.Sentiment,
		&rr.Status, &rr.ErrorMessage, &rr.PostedAt, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &rr, nil
}

func (r *reviewRepository) UpdateReply(ctx context.Context, reply *models.ReviewReply) error {
	query := `
		UPDATE review_replies
		SET content = $1,
			status = $2,
			error_message = $3,
			posted_at = $4,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, reply.Content, reply.Status, reply.ErrorMessage, reply.PostedAt,
		time.Now(), reply.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
