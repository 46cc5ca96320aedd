package repository

import (
	"context"
	"database/sql"
	"log/slog"
)

type OrganizationRepository interface {
	GetForUser(ctx context.Context, userID int64) (int64, bool, error)
	EnsureForUser(ctx context.Context, tx *sql.Tx, userID int64, name string) (int64, error)
}

type organizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) GetForUser(ctx context.Context, userID int64) (int64, bool, error) {
	query := `SELECT organization_id FROM organization_members WHERE user_id = $1 ORDER BY created_at LIMIT 1`
	var id int64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		slog.Info(err.Error())
		return 0, false, err
	}
	return id, true, nil
}

// EnsureForUser returns the user's first organization, creating a personal one
// with the user as owner when there is none. Must run inside tx.
func (r *organizationRepository) EnsureForUser(ctx context.Context, tx *sql.Tx, userID int64, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT organization_id FROM organization_members WHERE user_id = $1 ORDER BY created_at LIMIT 1`,
		userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		slog.Info(err.Error())
		return 0, err
	}

	if err := tx.QueryRowContext(ctx, `INSERT INTO organizations (name) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO organization_members (organization_id, user_id, role) VALUES ($1, $2, 'OWNER')`,
		id, userID); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}
