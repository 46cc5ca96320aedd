package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var LoginScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

type AuthService interface {
	LoginURL(state string) string
	// LoginCallback exchanges the code and returns the stored user. The user
	// row and its organization exist when this returns.
	LoginCallback(ctx context.Context, code string) (*models.User, error)
}

type authService struct {
	db    *sql.DB
	oauth *oauth2.Config
	u     repository.UserRepository
	or    repository.OrganizationRepository
	// userInfo is swapped in tests.
	userInfo func(ctx context.Context, ts oauth2.TokenSource) (*oauth2api.Userinfo, error)
}

func NewAuthService(db *sql.DB, oauth *oauth2.Config, u repository.UserRepository, or repository.OrganizationRepository) AuthService {
	return &authService{
		db:       db,
		oauth:    oauth,
		u:        u,
		or:       or,
		userInfo: fetchUserInfo,
	}
}

func fetchUserInfo(ctx context.Context, ts oauth2.TokenSource) (*oauth2api.Userinfo, error) {
	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return svc.Userinfo.Get().Context(ctx).Do()
}

func (s *authService) LoginURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

func (s *authService) LoginCallback(ctx context.Context, code string) (*models.User, error) {
	if code == "" {
		return nil, validationError("code is empty")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	info, err := s.userInfo(ctx, s.oauth.TokenSource(ctx, token))
	if err != nil {
		return nil, fmt.Errorf("error fetching user info: %w", err)
	}
	if info.Email == "" {
		return nil, validationError("google account has no email")
	}

	user := &models.User{
		GoogleID:       info.Id,
		Email:          info.Email,
		Name:           info.Name,
		ProfilePicture: info.Picture,
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if user.ID, err = s.u.Upsert(ctx, tx, user); err != nil {
		return nil, err
	}
	if _, err := s.or.EnsureForUser(ctx, tx, user.ID, user.Email); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}
