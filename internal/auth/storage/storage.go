package storage

import (
	"context"
	"time"

	"github.com/MockThePlank/passkey-playground/internal/auth/user"
	"github.com/MockThePlank/passkey-playground/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrConflict indicates an insert collided with an existing record.
// Duplicate usernames and duplicate credential IDs are never merged.
var ErrConflict = errors.New(errors.CodeConflict, "record already exists")

// ErrCounterRegression indicates a conditional counter update lost to a value
// that is not strictly greater than the stored one. This is the persistence
// half of clone detection: it also closes the race where two logins verify
// against the same counter snapshot.
var ErrCounterRegression = errors.New(errors.CodeCounterRegression, "signature counter did not increase")

// Credential stores a WebAuthn credential owned by a single user.
//
// ID is the base64url-encoded credential ID chosen by the authenticator during
// registration. Counter is the signature counter last accepted for this
// credential; it only moves forward. The backup flags are recorded at
// registration because login validation requires the backup-eligible flag to
// stay consistent across ceremonies.
type Credential struct {
	ID             string
	UserID         string
	PublicKey      []byte
	Counter        uint32
	Transports     []string
	BackupEligible bool
	BackupState    bool
	CreatedAt      time.Time
}

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
}

// CredentialStore persists WebAuthn credentials.
//
// InsertCredential fails with ErrConflict for a duplicate credential ID; an
// existing credential is never overwritten by registration. UpdateCounter is
// a conditional write: it commits only when newCounter is strictly greater
// than the stored counter and reports ErrCounterRegression otherwise.
type CredentialStore interface {
	InsertCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, credentialID string) (Credential, error)
	ListCredentialsByUser(ctx context.Context, userID string) ([]Credential, error)
	UpdateCounter(ctx context.Context, credentialID string, newCounter uint32) error
}
