package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/locaposty/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
	ListByLocation(ctx context.Context, locationID string) ([]*models.Post, error)
	UpdateStatus(ctx context.Context, id string, status models.PostStatus, scheduledAt *time.Time) error
	MarkPublished(ctx context.Context, id, externalPostName string, at time.Time) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, location_id, created_by, title, content, type, status, scheduled_at, published_at,
	media_urls, details, external_post_name, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var mediaURLs pq.StringArray
	err := row.Scan(&post.ID, &post.LocationID, &post.CreatedBy, &post.Title, &post.Content, &post.Type,
		&post.Status, &post.ScheduledAt, &post.PublishedAt, &mediaURLs, &post.Details,
		&post.ExternalPostName, &post.ErrorMessage, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	post.MediaURLs = []string(mediaURLs)
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	query := `
		INSERT INTO posts (id, location_id, created_by, title, content, type, status, scheduled_at, media_urls, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	args := []any{post.ID, post.LocationID, post.CreatedBy, post.Title, post.Content, post.Type,
		post.Status, post.ScheduledAt, pq.StringArray(post.MediaURLs), post.Details}

	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&post.CreatedAt, &post.UpdatedAt)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&post.CreatedAt, &post.UpdatedAt)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByLocation(ctx context.Context, locationID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE location_id = $1 AND status <> 'DELETED'
		ORDER BY COALESCE(scheduled_at, created_at) DESC`
	rows, err := r.db.QueryContext(ctx, query, locationID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// Update writes every user editable field plus status and schedule.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE posts
		SET title = $1,
			content = $2,
			type = $3,
			status = $4,
			scheduled_at = $5,
			media_urls = $6,
			details = $7,
			error_message = $8,
			updated_at = $9
		WHERE id = $10
	`
	_, err := r.db.ExecContext(ctx, query, post.Title, post.Content, post.Type, post.Status, post.ScheduledAt,
		pq.StringArray(post.MediaURLs), post.Details, post.ErrorMessage, time.Now(), post.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, id string, status models.PostStatus, scheduledAt *time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			scheduled_at = COALESCE($2, scheduled_at),
			error_message = '',
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, scheduledAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id, externalPostName string, at time.Time) error {
	query := `
		UPDATE posts
		SET status = 'PUBLISHED',
			scheduled_at = $1,
			published_at = $1,
			external_post_name = $2,
			error_message = '',
			updated_at = $1
		WHERE id = $3 AND status IN ('DRAFT', 'SCHEDULED')
	`
	res, err := r.db.ExecContext(ctx, query, at, externalPostName, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	logUnchanged(res, id, "PUBLISHED")
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE posts
		SET status = 'FAILED',
			error_message = $1,
			updated_at = $2
		WHERE id = $3 AND status NOT IN ('DELETED', 'PUBLISHED')
	`
	res, err := r.db.ExecContext(ctx, query, errorMessage, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	logUnchanged(res, id, "FAILED")
	return nil
}

// logUnchanged notes a status write skipped because the post moved on, e.g.
// it was deleted while its job ran.
func logUnchanged(res sql.Result, id, status string) {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.Info("post status not changed", "post_id", id, "status", status)
	}
}
