package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/locaposty/internal/models"
)

type LocationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Location, error)
	Upsert(ctx context.Context, tx *sql.Tx, loc *models.Location) (string, error)
	ListForUser(ctx context.Context, userID int64) ([]*models.Location, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.Location, error)
	ListConnected(ctx context.Context) ([]*models.Location, error)
	ListAutoReplyEnabled(ctx context.Context) ([]*models.Location, error)
	HasAccess(ctx context.Context, locationID string, userID int64) (bool, error)
	SetTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error
	ClearTokens(ctx context.Context, id string) error
	UpdateSettings(ctx context.Context, id string, settings models.LocationSettings) error
	UpdateReviewsWatermark(ctx context.Context, id string, fetchedAt time.Time) error
}

type locationRepository struct {
	db *sql.DB
}

func NewLocationRepository(db *sql.DB) LocationRepository {
	return &locationRepository{db: db}
}

const locationColumns = `l.id, l.organization_id, l.name, l.gmb_account_id, COALESCE(l.gmb_location_id, ''),
	COALESCE(l.access_token, ''), COALESCE(l.refresh_token, ''), l.token_expires_at,
	l.auto_reply_enabled, l.auto_post_enabled, l.reply_tone_preference, l.last_reviews_fetched_at,
	l.created_at, l.updated_at`

func scanLocation(row rowScanner) (*models.Location, error) {
	var loc models.Location
	err := row.Scan(&loc.ID, &loc.OrganizationID, &loc.Name, &loc.GMBAccountID, &loc.GMBLocationID,
		&loc.AccessToken, &loc.RefreshToken, &loc.TokenExpiresAt,
		&loc.AutoReplyEnabled, &loc.AutoPostEnabled, &loc.ReplyTonePreference, &loc.LastReviewsFetchedAt,
		&loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *locationRepository) queryLocations(ctx context.Context, query string, args ...any) ([]*models.Location, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	locations := []*models.Location{}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return locations, nil
}

func (r *locationRepository) GetByID(ctx context.Context, id string) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l WHERE l.id = $1`
	loc, err := scanLocation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return loc, nil
}

// Upsert inserts a connected location or refreshes the name and credentials of
// an existing one. Returns the id of the stored row.
func (r *locationRepository) Upsert(ctx context.Context, tx *sql.Tx, loc *models.Location) (string, error) {
	query := `
		INSERT INTO locations (
			id,
			organization_id,
			name,
			gmb_account_id,
			gmb_location_id,
			access_token,
			refresh_token,
			token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (organization_id, gmb_location_id) DO UPDATE
		SET name = EXCLUDED.name,
			gmb_account_id = EXCLUDED.gmb_account_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = NOW()
		RETURNING id
	`
	args := []any{loc.ID, loc.OrganizationID, loc.Name, loc.GMBAccountID, loc.GMBLocationID,
		loc.AccessToken, loc.RefreshToken, loc.TokenExpiresAt}

	var id string
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return id, nil
}

func (r *locationRepository) ListForUser(ctx context.Context, userID int64) ([]*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l
		WHERE l.organization_id IN (SELECT organization_id FROM organization_members WHERE user_id = $1)
		OR l.id IN (SELECT location_id FROM location_assignments WHERE user_id = $1)
		ORDER BY l.name`
	return r.queryLocations(ctx, query, userID)
}

// ListExpiring returns connected locations whose access token expires before the given time.
func (r *locationRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l
		WHERE l.refresh_token IS NOT NULL AND l.token_expires_at < $1`
	return r.queryLocations(ctx, query, before)
}

func (r *locationRepository) ListConnected(ctx context.Context) ([]*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l
		WHERE l.refresh_token IS NOT NULL AND l.gmb_location_id IS NOT NULL`
	return r.queryLocations(ctx, query)
}

func (r *locationRepository) ListAutoReplyEnabled(ctx context.Context) ([]*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l WHERE l.auto_reply_enabled = TRUE`
	return r.queryLocations(ctx, query)
}

func (r *locationRepository) HasAccess(ctx context.Context, locationID string, userID int64) (bool, error) {
	query := `
		SELECT 1 FROM locations l
		WHERE l.id = $1 AND (
			EXISTS (SELECT 1 FROM organization_members m WHERE m.organization_id = l.organization_id AND m.user_id = $2)
			OR EXISTS (SELECT 1 FROM location_assignments a WHERE a.location_id = l.id AND a.user_id = $2)
		)
	`
	var result int
	err := r.db.QueryRowContext(ctx, query, locationID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

// SetTokens stores a refreshed access token. An empty refreshToken keeps the current one.
func (r *locationRepository) SetTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE locations
		SET access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND refresh_token IS NOT NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return errors.New("no rows affected; location may be gone or disconnected")
	}
	return nil
}

// ClearTokens nulls the whole credential triple in a single statement.
func (r *locationRepository) ClearTokens(ctx context.Context, id string) error {
	query := `
		UPDATE locations
		SET access_token = NULL,
			refresh_token = NULL,
			token_expires_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *locationRepository) UpdateSettings(ctx context.Context, id string, settings models.LocationSettings) error {
	query := `
		UPDATE locations
		SET auto_reply_enabled = $1,
			auto_post_enabled = $2,
			reply_tone_preference = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, settings.AutoReplyEnabled, settings.AutoPostEnabled,
		settings.ReplyTonePreference, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *locationRepository) UpdateReviewsWatermark(ctx context.Context, id string, fetchedAt time.Time) error {
	query := `UPDATE locations SET last_reviews_fetched_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, fetchedAt, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
