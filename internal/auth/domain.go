package auth

import (
	"context"
	"strings"
	"time"
)

// APIKey holds the stored credential for a vendor integration.
type APIKey struct {
	ID        string
	VendorID  string
	Prefix    string
	KeyHash   string
	Active    bool
	CreatedAt time.Time
}

// Repository looks up credentials.
type Repository interface {
	FindKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error)
}

// SplitToken separates a presented key "vk_<prefix>_<secret>" into its
// lookup prefix and secret part.
func SplitToken(token string) (prefix, secret string, ok bool) {
	parts := strings.SplitN(token, "_", 3)
	if len(parts) != 3 || parts[0] != "vk" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
