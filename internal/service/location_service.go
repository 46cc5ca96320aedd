package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/locaposty/internal/gmb"
	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
	"github.com/maheshrc27/locaposty/internal/transfer"
	"github.com/maheshrc27/locaposty/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

const (
	BusinessManageScope = "https://www.googleapis.com/auth/business.manage"
	connectStateTTL     = 10 * time.Minute
)

type LocationService interface {
	List(ctx context.Context, userID int64) ([]*models.Location, error)
	UpdateSettings(ctx context.Context, userID int64, locationID string, req *transfer.LocationSettingsRequest) (*models.Location, error)
	// ConnectURL returns the Google consent page for granting business.manage.
	ConnectURL(ctx context.Context, userID int64, email string) (string, error)
	// Connect finishes the consent flow and stores every granted location.
	Connect(ctx context.Context, code, state string) (int, error)
}

type locationService struct {
	db            *sql.DB
	lr            repository.LocationRepository
	or            repository.OrganizationRepository
	oauth         *oauth2.Config
	secretKey     string
	listLocations func(ctx context.Context, opts ...option.ClientOption) ([]gmb.AccountLocation, error)
}

func NewLocationService(
	db *sql.DB,
	lr repository.LocationRepository,
	or repository.OrganizationRepository,
	oauth *oauth2.Config,
	secretKey string) LocationService {
	return &locationService{
		db:            db,
		lr:            lr,
		or:            or,
		oauth:         oauth,
		secretKey:     secretKey,
		listLocations: gmb.ListAccountLocations,
	}
}

func (s *locationService) List(ctx context.Context, userID int64) ([]*models.Location, error) {
	if userID == 0 {
		return nil, validationError("user id is not valid")
	}
	return s.lr.ListForUser(ctx, userID)
}

func (s *locationService) UpdateSettings(ctx context.Context, userID int64, locationID string, req *transfer.LocationSettingsRequest) (*models.Location, error) {
	if req == nil {
		return nil, validationError("settings are required")
	}
	if req.ReplyTonePreference != nil && !req.ReplyTonePreference.Valid() {
		return nil, validationError("unknown reply tone %q", *req.ReplyTonePreference)
	}

	loc, err := s.lr.GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, ErrNotFound
	}
	ok, err := s.lr.HasAccess(ctx, locationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	settings := models.LocationSettings{
		AutoReplyEnabled:    loc.AutoReplyEnabled,
		AutoPostEnabled:     loc.AutoPostEnabled,
		ReplyTonePreference: loc.ReplyTonePreference,
	}
	if req.AutoReplyEnabled != nil {
		settings.AutoReplyEnabled = *req.AutoReplyEnabled
	}
	if req.AutoPostEnabled != nil {
		settings.AutoPostEnabled = *req.AutoPostEnabled
	}
	if req.ReplyTonePreference != nil {
		settings.ReplyTonePreference = *req.ReplyTonePreference
	}

	if err := s.lr.UpdateSettings(ctx, locationID, settings); err != nil {
		return nil, err
	}
	loc.AutoReplyEnabled = settings.AutoReplyEnabled
	loc.AutoPostEnabled = settings.AutoPostEnabled
	loc.ReplyTonePreference = settings.ReplyTonePreference
	return loc, nil
}

func (s *locationService) ConnectURL(ctx context.Context, userID int64, email string) (string, error) {
	state, err := utils.GenerateConnectState(s.secretKey, userID, email, connectStateTTL)
	if err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (s *locationService) Connect(ctx context.Context, code, state string) (int, error) {
	if code == "" || state == "" {
		return 0, validationError("code or state is empty")
	}
	claims, err := utils.ValidateConnectState(s.secretKey, state)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid state: %v", ErrValidation, err)
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("exchange code: %w", err)
	}
	if token.RefreshToken == "" {
		return 0, errors.New("google did not return a refresh token")
	}

	granted, err := s.listLocations(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, token)))
	if err != nil {
		return 0, err
	}

	encAccess, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.secretKey))
	if err != nil {
		return 0, err
	}
	encRefresh, err := utils.Encrypt([]byte(token.RefreshToken), []byte(s.secretKey))
	if err != nil {
		return 0, err
	}
	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	orgID, err := s.or.EnsureForUser(ctx, tx, claims.UserID, claims.Email)
	if err != nil {
		return 0, err
	}

	for _, g := range granted {
		id, err := gonanoid.New()
		if err != nil {
			return 0, err
		}
		_, err = s.lr.Upsert(ctx, tx, &models.Location{
			ID:             id,
			OrganizationID: orgID,
			Name:           g.Title,
			GMBAccountID:   g.AccountName,
			GMBLocationID:  g.LocationName,
			AccessToken:    encAccess,
			RefreshToken:   encRefresh,
			TokenExpiresAt: &expiresAt,
		})
		if err != nil {
			return 0, fmt.Errorf("store location %s: %w", g.LocationName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	slog.Info("locations connected", "user_id", claims.UserID, "count", len(granted))
	return len(granted), nil
}
