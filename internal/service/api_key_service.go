package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	apiKeyPrefix  = "lp_"
	apiKeyLength  = 40
	maxApiKeys    = 5
	maxApiKeyName = 64
)

type ApiKeyService interface {
	Create(ctx context.Context, userID int64, name string) (*models.CreatedApiKey, error)
	List(ctx context.Context, userID int64) ([]*models.ApiKey, error)
	// Authenticate resolves a plain key to its owner. Unknown keys return ErrNotFound.
	Authenticate(ctx context.Context, key string) (*models.User, error)
	Remove(ctx context.Context, userID, keyID int64) error
}

type apiKeyService struct {
	k   repository.ApiKeyRepository
	now func() time.Time
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{
		k:   k,
		now: time.Now,
	}
}

func hashApiKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (s *apiKeyService) Create(ctx context.Context, userID int64, name string) (*models.CreatedApiKey, error) {
	name = strings.TrimSpace(name)
	if len(name) > maxApiKeyName {
		return nil, validationError("name exceeds %d characters", maxApiKeyName)
	}

	keys, err := s.k.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(keys) >= maxApiKeys {
		return nil, validationError("only %d API keys can be created", maxApiKeys)
	}

	id, err := gonanoid.New(apiKeyLength)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("generate API key: %w", err)
	}
	key := apiKeyPrefix + id

	apiKey := models.ApiKey{
		UserID:  userID,
		Name:    name,
		Prefix:  key[:len(apiKeyPrefix)+6],
		KeyHash: hashApiKey(key),
	}
	if _, err := s.k.Create(ctx, &apiKey); err != nil {
		return nil, fmt.Errorf("save API key: %w", err)
	}
	return &models.CreatedApiKey{ApiKey: apiKey, Key: key}, nil
}

func (s *apiKeyService) List(ctx context.Context, userID int64) ([]*models.ApiKey, error) {
	return s.k.GetByUserID(ctx, userID)
}

func (s *apiKeyService) Authenticate(ctx context.Context, key string) (*models.User, error) {
	if !strings.HasPrefix(key, apiKeyPrefix) {
		return nil, ErrNotFound
	}
	hash := hashApiKey(key)
	user, err := s.k.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if err := s.k.Touch(ctx, hash, s.now()); err != nil {
		slog.Warn("failed to update API key usage", "user_id", user.ID, "error", err)
	}
	return user, nil
}

func (s *apiKeyService) Remove(ctx context.Context, userID, keyID int64) error {
	if keyID <= 0 {
		return validationError("key id is required")
	}
	removed, err := s.k.Remove(ctx, keyID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}
