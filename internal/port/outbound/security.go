package outbound

import (
	"context"
	"time"

	"github.com/elevare/server/internal/model"
)

// CryptoPort defines encryption/decryption operations.
type CryptoPort interface {
	// Encrypt encrypts data.
	Encrypt(plaintext string) (string, error)

	// Decrypt decrypts data.
	Decrypt(ciphertext string) (string, error)
}

// CredentialDatabasePort persists user-supplied provider API keys.
type CredentialDatabasePort interface {
	// Get returns the credential or nil when the user has none.
	Get(ctx context.Context, userID, provider string) (*model.ProviderCredential, error)
	Upsert(ctx context.Context, cred *model.ProviderCredential) error
	Delete(ctx context.Context, userID, provider string) error
}

// RateLimiterPort defines rate limiting operations.
type RateLimiterPort interface {
	// Allow checks if a request is allowed within rate limits.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// GetRemaining returns remaining requests in window.
	GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}
