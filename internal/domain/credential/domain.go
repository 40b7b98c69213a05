package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"go.uber.org/zap"
)

// Domain errors for provider credentials.
var (
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Key sources reported by Status.
const (
	SourceUser   = "user"
	SourceServer = "server"
	SourceNone   = "none"
)

// Config holds credential settings.
type Config struct {
	Provider string
	// ServerAPIKey is used for users without their own key. Empty disables
	// the fallback.
	ServerAPIKey string
}

// Status describes which key a user's generations would use.
type Status struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
	Source     string `json:"source"`
	Hint       string `json:"hint,omitempty"`
}

// Domain manages user-supplied provider API keys.
type Domain struct {
	db     outbound.CredentialDatabasePort
	crypto outbound.CryptoPort
	config Config
	logger *zap.Logger
}

// NewCredentialDomain creates a new credential domain.
func NewCredentialDomain(
	db outbound.CredentialDatabasePort,
	crypto outbound.CryptoPort,
	cfg Config,
	logger *zap.Logger,
) *Domain {
	if cfg.Provider == "" {
		cfg.Provider = "gemini"
	}
	return &Domain{
		db:     db,
		crypto: crypto,
		config: cfg,
		logger: logger,
	}
}

// SetAPIKey stores the user's own key, encrypted at rest.
func (d *Domain) SetAPIKey(ctx context.Context, userID, apiKey string) (*Status, error) {
	apiKey = strings.TrimSpace(apiKey)
	if len(apiKey) < 16 || strings.ContainsAny(apiKey, " \t\r\n") {
		return nil, ErrInvalidAPIKey
	}

	encrypted, err := d.crypto.Encrypt(apiKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt api key: %w", err)
	}

	cred := &model.ProviderCredential{
		UserID:       userID,
		Provider:     d.config.Provider,
		EncryptedKey: encrypted,
		KeyHint:      hint(apiKey),
		UpdatedAt:    time.Now(),
	}
	if err := d.db.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("save api key: %w", err)
	}

	d.logger.Info("provider api key stored",
		zap.String("user_id", userID),
		zap.String("provider", d.config.Provider),
	)
	return &Status{Provider: d.config.Provider, Configured: true, Source: SourceUser, Hint: cred.KeyHint}, nil
}

// DeleteAPIKey removes the user's own key.
func (d *Domain) DeleteAPIKey(ctx context.Context, userID string) error {
	if err := d.db.Delete(ctx, userID, d.config.Provider); err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}

// Status reports which key would be used for the user.
func (d *Domain) Status(ctx context.Context, userID string) (*Status, error) {
	cred, err := d.db.Get(ctx, userID, d.config.Provider)
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}

	s := &Status{Provider: d.config.Provider, Source: SourceNone}
	switch {
	case cred != nil:
		s.Configured = true
		s.Source = SourceUser
		s.Hint = cred.KeyHint
	case d.config.ServerAPIKey != "":
		s.Configured = true
		s.Source = SourceServer
	}
	return s, nil
}

// ResolveAPIKey returns the user's key, falling back to the server key.
// It returns a MissingCredentialError when neither is available.
func (d *Domain) ResolveAPIKey(ctx context.Context, userID string) (string, error) {
	cred, err := d.db.Get(ctx, userID, d.config.Provider)
	if err != nil {
		return "", fmt.Errorf("get api key: %w", err)
	}
	if cred != nil {
		key, err := d.crypto.Decrypt(cred.EncryptedKey)
		if err != nil {
			// A key that no longer decrypts (rotated secret) is treated as absent.
			d.logger.Warn("stored api key could not be decrypted",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		} else if key != "" {
			return key, nil
		}
	}

	if d.config.ServerAPIKey != "" {
		return d.config.ServerAPIKey, nil
	}
	return "", &outbound.MissingCredentialError{Provider: d.config.Provider}
}

func hint(key string) string {
	if len(key) <= 4 {
		return ""
	}
	return "…" + key[len(key)-4:]
}
