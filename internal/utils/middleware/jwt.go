package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingJWTSecret is returned when no signing secret is configured.
var ErrMissingJWTSecret = errors.New("jwt secret not configured")

// JWTConfig configures access token validation. Tokens are issued by the
// identity provider and signed with a shared HMAC secret.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

// JWTValidator validates HS256 access tokens.
type JWTValidator struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTValidator creates a new JWT validator.
func NewJWTValidator(cfg JWTConfig) (*JWTValidator, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingJWTSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTValidator{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

// ValidateToken parses and validates a token.
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	var claims accessClaims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	// "authenticated" is the generic audience role some issuers put in role.
	role := claims.AppMetadata.Role
	if role == "" && claims.Role != "authenticated" {
		role = claims.Role
	}
	name := claims.Name
	if name == "" {
		name = claims.UserMetadata.FullName
	}

	return &Claims{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   name,
		Role:   role,
	}, nil
}

// Compile-time check
var _ TokenValidator = (*JWTValidator)(nil)
