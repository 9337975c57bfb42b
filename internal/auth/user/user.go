package user

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/MockThePlank/passkey-playground/internal/platform/errors"
	"github.com/MockThePlank/passkey-playground/internal/platform/id"
)

var (
	// ErrEmptyUsername indicates a missing username.
	ErrEmptyUsername = apperrors.New(apperrors.CodeUserEmptyUsername, "username is required")
	// ErrInvalidUsername indicates a username that does not match the required format.
	ErrInvalidUsername = apperrors.New(apperrors.CodeUserInvalidUsername, "username must be 3-32 lowercase alphanumeric, dot, dash, or underscore characters")

	usernamePattern = regexp.MustCompile(`^[a-z0-9_.\-]{3,32}$`)
)

// User represents an authenticated identity record.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// NormalizeUsername trims and lowercases a candidate username, then validates it.
func NormalizeUsername(s string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return "", ErrEmptyUsername
	}
	if err := ValidateUsername(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateUsername enforces canonical username constraints.
func ValidateUsername(s string) error {
	if !usernamePattern.MatchString(s) {
		return ErrInvalidUsername
	}
	return nil
}

// New creates a durable user identity from a normalized username.
//
// This is the canonical point where an untrusted registration username becomes
// a stable identity referenced by credentials and sessions.
func New(username string, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeUsername(username)
	if err != nil {
		return User{}, err
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	return User{
		ID:        userID,
		Username:  normalized,
		CreatedAt: now().UTC(),
	}, nil
}
