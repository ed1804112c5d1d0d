package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/verdant-pos/verdant-pos/internal/auth"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

type stubRepo struct {
	key *auth.APIKey
}

func (s *stubRepo) FindKeyByPrefix(ctx context.Context, prefix string) (*auth.APIKey, error) {
	if s.key == nil || s.key.Prefix != prefix {
		return nil, shared.ErrInvalidCredentials
	}
	return s.key, nil
}

func hashSecret(t *testing.T, secret string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthenticate(t *testing.T) {
	repo := &stubRepo{key: &auth.APIKey{
		ID:       "key-1",
		VendorID: "vendor-1",
		Prefix:   "abc123",
		KeyHash:  hashSecret(t, "s3cret"),
		Active:   true,
	}}
	svc := auth.NewService(repo)

	vc, err := svc.Authenticate(context.Background(), "vk_abc123_s3cret")
	require.NoError(t, err)
	require.Equal(t, "vendor-1", vc.VendorID)
	require.Equal(t, "key-1", vc.APIKeyID)
}

func TestAuthenticateRejectsBadSecret(t *testing.T) {
	repo := &stubRepo{key: &auth.APIKey{Prefix: "abc123", KeyHash: hashSecret(t, "s3cret")}}
	svc := auth.NewService(repo)

	_, err := svc.Authenticate(context.Background(), "vk_abc123_wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateRejectsMalformedToken(t *testing.T) {
	svc := auth.NewService(&stubRepo{})
	for _, token := range []string{"", "vk_abc123", "pk_abc123_s3cret", "plainstring"} {
		_, err := svc.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, shared.ErrInvalidCredentials, "token %q", token)
	}
}

func TestMiddlewareBindsVendorContext(t *testing.T) {
	repo := &stubRepo{key: &auth.APIKey{
		ID:       "key-1",
		VendorID: "vendor-1",
		Prefix:   "abc123",
		KeyHash:  hashSecret(t, "s3cret"),
		Active:   true,
	}}
	mw := auth.Middleware(auth.NewService(repo), discardLogger())

	var got shared.VendorContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = shared.VendorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/bulk-inventory-operations", nil)
	req.Header.Set("Authorization", "Bearer vk_abc123_s3cret")
	req.Header.Set("X-Verdant-User", "user-9")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "vendor-1", got.VendorID)
	require.Equal(t, "user-9", got.UserID)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	mw := auth.Middleware(auth.NewService(&stubRepo{}), discardLogger())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/bulk-inventory-operations", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
