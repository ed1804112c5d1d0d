package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// Service wraps credential verification rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates a presented API key and resolves the vendor identity.
func (s *Service) Authenticate(ctx context.Context, token string) (shared.VendorContext, error) {
	prefix, secret, ok := SplitToken(token)
	if !ok {
		return shared.VendorContext{}, shared.ErrInvalidCredentials
	}
	key, err := s.repo.FindKeyByPrefix(ctx, prefix)
	if err != nil {
		return shared.VendorContext{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(secret)); err != nil {
		return shared.VendorContext{}, shared.ErrInvalidCredentials
	}
	return shared.VendorContext{VendorID: key.VendorID, APIKeyID: key.ID}, nil
}
