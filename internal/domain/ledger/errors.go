package ledger

import (
	"errors"
	"fmt"
)

// Domain errors for the usage ledger.
var (
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidUsage   = errors.New("invalid usage record")
	ErrInvalidPattern = errors.New("invalid key pattern")
	ErrInvalidKey     = errors.New("invalid cache key")
)

// AuthorizationError is returned when a non-admin caller invokes an admin
// operation. No state is changed.
type AuthorizationError struct {
	Op     string
	UserID string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: user %q is not an administrator", e.Op, e.UserID)
}

// Is makes errors.Is(err, ErrForbidden) match.
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrForbidden
}
