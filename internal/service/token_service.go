package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/locaposty/internal/cache"
	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
	"github.com/maheshrc27/locaposty/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTokenLifetime = time.Hour
	refreshLockTTL       = 30 * time.Second
	peerWaitAttempts     = 6
)

var errRefreshPending = errors.New("token refresh still in progress")

type TokenService interface {
	// GetValidAccessToken returns a token that stays valid for at least the
	// configured buffer, refreshing it when needed.
	GetValidAccessToken(ctx context.Context, locationID string) (string, error)
	// ForceRefresh exchanges the refresh token even if the current one is fresh.
	ForceRefresh(ctx context.Context, locationID string) (string, error)
}

type tokenService struct {
	lr     repository.LocationRepository
	oauth  *oauth2.Config
	locker cache.Locker
	key    []byte
	buffer time.Duration
	now    func() time.Time
	group  singleflight.Group
}

func NewTokenService(lr repository.LocationRepository, oauth *oauth2.Config, locker cache.Locker, secretKey string, buffer time.Duration) TokenService {
	return &tokenService{
		lr:     lr,
		oauth:  oauth,
		locker: locker,
		key:    []byte(secretKey),
		buffer: buffer,
		now:    time.Now,
	}
}

func (s *tokenService) GetValidAccessToken(ctx context.Context, locationID string) (string, error) {
	loc, err := s.load(ctx, locationID)
	if err != nil {
		return "", err
	}
	if s.fresh(loc) {
		return utils.Decrypt(loc.AccessToken, s.key)
	}
	return s.refresh(ctx, locationID, false)
}

func (s *tokenService) ForceRefresh(ctx context.Context, locationID string) (string, error) {
	if _, err := s.load(ctx, locationID); err != nil {
		return "", err
	}
	return s.refresh(ctx, locationID, true)
}

func (s *tokenService) load(ctx context.Context, locationID string) (*models.Location, error) {
	loc, err := s.lr.GetByID(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("load location %s: %w", locationID, err)
	}
	if loc == nil {
		return nil, fmt.Errorf("location %s: %w", locationID, ErrNotFound)
	}
	if !loc.Connected() {
		return nil, fmt.Errorf("location %s: %w", locationID, ErrNoCredentials)
	}
	return loc, nil
}

func (s *tokenService) fresh(loc *models.Location) bool {
	return loc.AccessToken != "" &&
		loc.TokenExpiresAt != nil &&
		loc.TokenExpiresAt.After(s.now().Add(s.buffer))
}

// refresh coalesces concurrent callers in this process and takes the Redis
// lock so only one worker process talks to Google per location.
func (s *tokenService) refresh(ctx context.Context, locationID string, force bool) (string, error) {
	v, err, _ := s.group.Do(locationID, func() (any, error) {
		return s.refreshLocked(ctx, locationID, force)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *tokenService) refreshLocked(ctx context.Context, locationID string, force bool) (string, error) {
	release, ok, err := s.locker.Acquire(ctx, cache.TokenRefreshLockKey(locationID), refreshLockTTL)
	if err != nil {
		// Redis unavailable: singleflight still covers this process.
		slog.Warn("token refresh lock unavailable", "location_id", locationID, "error", err)
	} else if !ok {
		return s.waitForPeer(ctx, locationID)
	} else {
		defer release()
	}

	loc, err := s.load(ctx, locationID)
	if err != nil {
		return "", err
	}
	if !force && s.fresh(loc) {
		return utils.Decrypt(loc.AccessToken, s.key)
	}

	refreshToken, err := utils.Decrypt(loc.RefreshToken, s.key)
	if err != nil {
		return "", fmt.Errorf("decrypt refresh token: %w", err)
	}

	tok, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			slog.Warn("refresh token rejected, clearing credentials",
				"location_id", locationID, "error_code", re.ErrorCode, "error", err)
			if clearErr := s.lr.ClearTokens(ctx, locationID); clearErr != nil {
				return "", fmt.Errorf("clear tokens: %w", clearErr)
			}
			return "", fmt.Errorf("location %s: %w", locationID, ErrReauthRequired)
		}
		return "", fmt.Errorf("refresh token exchange: %w", err)
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(defaultTokenLifetime)
	}

	encAccess, err := utils.Encrypt([]byte(tok.AccessToken), s.key)
	if err != nil {
		return "", err
	}
	var encRefresh string
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		if encRefresh, err = utils.Encrypt([]byte(tok.RefreshToken), s.key); err != nil {
			return "", err
		}
	}

	if err := s.lr.SetTokens(ctx, locationID, encAccess, encRefresh, expiresAt); err != nil {
		return "", fmt.Errorf("store refreshed token: %w", err)
	}

	slog.Info("access token refreshed", "location_id", locationID, "expires_at", expiresAt)
	return tok.AccessToken, nil
}

// waitForPeer polls the location until the lock holder has written a fresh token.
func (s *tokenService) waitForPeer(ctx context.Context, locationID string) (string, error) {
	var token string
	err := utils.Retry(ctx, peerWaitAttempts, 250*time.Millisecond, 2*time.Second, func() error {
		loc, err := s.load(ctx, locationID)
		if err != nil {
			if errors.Is(err, ErrNoCredentials) {
				return utils.Permanent(fmt.Errorf("location %s: %w", locationID, ErrReauthRequired))
			}
			if errors.Is(err, ErrNotFound) {
				return utils.Permanent(err)
			}
			return err
		}
		if !s.fresh(loc) {
			return errRefreshPending
		}
		token, err = utils.Decrypt(loc.AccessToken, s.key)
		if err != nil {
			return utils.Permanent(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}
