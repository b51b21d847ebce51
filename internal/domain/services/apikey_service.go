package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// APIKeyStore persists issued API credentials.
type APIKeyStore interface {
	Create(ctx context.Context, key *entities.APIKey) error
	GetByID(ctx context.Context, id string) (*entities.APIKey, error)
	List(ctx context.Context) ([]*entities.APIKey, error)
	Disable(ctx context.Context, id string) (bool, error)
}

// APIKeyService issues and checks `id.secret` credentials for the public API.
// Only the bcrypt hash of the secret half is ever stored.
type APIKeyService struct {
	keys   APIKeyStore
	logger *logger.Logger
}

// NewAPIKeyService creates an API key service
func NewAPIKeyService(keys APIKeyStore, log *logger.Logger) *APIKeyService {
	return &APIKeyService{keys: keys, logger: log}
}

// Issue mints a new credential and returns the plaintext `id.secret` exactly
// once. The caller must pass it on, it cannot be recovered later.
func (s *APIKeyService) Issue(ctx context.Context, label string) (string, *entities.APIKey, error) {
	id, err := randomHex(8)
	if err != nil {
		return "", nil, fmt.Errorf("generate key id: %w", err)
	}
	secret, err := randomHex(24)
	if err != nil {
		return "", nil, fmt.Errorf("generate key secret: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash key secret: %w", err)
	}

	key := entities.NewAPIKey(id, string(hash), label)
	if err := s.keys.Create(ctx, key); err != nil {
		return "", nil, fmt.Errorf("store api key: %w", err)
	}

	s.logger.Info("API key issued", "key_id", key.ID, "label", label)
	return id + "." + secret, key, nil
}

// Validate checks a presented `id.secret` credential. Every failure mode
// collapses into ErrInvalidCredentials so probing reveals nothing.
func (s *APIKeyService) Validate(ctx context.Context, presented string) (*entities.APIKey, error) {
	id, secret, found := strings.Cut(presented, ".")
	if !found || id == "" || secret == "" {
		return nil, entities.ErrInvalidCredentials
	}

	key, err := s.keys.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return nil, entities.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up api key: %w", err)
	}
	if key.Disabled {
		return nil, entities.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)) != nil {
		return nil, entities.ErrInvalidCredentials
	}

	return key, nil
}

// List returns every issued key record, hashes excluded from JSON.
func (s *APIKeyService) List(ctx context.Context) ([]*entities.APIKey, error) {
	return s.keys.List(ctx)
}

// Disable revokes a credential while keeping its record.
func (s *APIKeyService) Disable(ctx context.Context, id string) error {
	disabled, err := s.keys.Disable(ctx, id)
	if err != nil {
		return fmt.Errorf("disable api key: %w", err)
	}
	if !disabled {
		return entities.ErrNotFound
	}
	s.logger.Info("API key disabled", "key_id", id)
	return nil
}

func randomHex(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
