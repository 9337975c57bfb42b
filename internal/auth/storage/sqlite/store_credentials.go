package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MockThePlank/passkey-playground/internal/auth/storage"
)

// InsertCredential stores a newly registered WebAuthn credential.
//
// A duplicate credential ID reports storage.ErrConflict; registration never
// upserts over an existing credential.
func (s *Store) InsertCredential(ctx context.Context, credential storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credential.ID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if len(credential.PublicKey) == 0 {
		return fmt.Errorf("public key is required")
	}

	transports, err := encodeTransports(credential.Transports)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (id, user_id, public_key, counter, transports, backup_eligible, backup_state, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		credential.ID,
		credential.UserID,
		credential.PublicKey,
		int64(credential.Counter),
		transports,
		credential.BackupEligible,
		credential.BackupState,
		toMillis(credential.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// GetCredential fetches a stored credential by its base64url ID.
func (s *Store) GetCredential(ctx context.Context, credentialID string) (storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return storage.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Credential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return storage.Credential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, user_id, public_key, counter, transports, backup_eligible, backup_state, created_at
FROM credentials WHERE id = ?
`, credentialID)

	credential, err := scanCredential(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Credential{}, storage.ErrNotFound
		}
		return storage.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return credential, nil
}

// ListCredentialsByUser returns the credentials owned by a user.
func (s *Store) ListCredentialsByUser(ctx context.Context, userID string) ([]storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, public_key, counter, transports, backup_eligible, backup_state, created_at
FROM credentials WHERE user_id = ? ORDER BY created_at, id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []storage.Credential
	for rows.Next() {
		credential, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return credentials, nil
}

// UpdateCounter advances a credential's signature counter.
//
// The write is conditional on the stored counter being strictly less than
// newCounter, so two logins verified against the same snapshot cannot both
// commit. A failed condition on an existing credential reports
// storage.ErrCounterRegression.
func (s *Store) UpdateCounter(ctx context.Context, credentialID string, newCounter uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE credentials SET counter = ? WHERE id = ? AND counter < ?
`,
		int64(newCounter),
		credentialID,
		int64(newCounter),
	)
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update counter rows: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetCredential(ctx, credentialID); err != nil {
			return err
		}
		return storage.ErrCounterRegression
	}
	return nil
}

func scanCredential(scan func(dest ...any) error) (storage.Credential, error) {
	var credential storage.Credential
	var counter int64
	var transports string
	var createdAt int64
	if err := scan(
		&credential.ID,
		&credential.UserID,
		&credential.PublicKey,
		&counter,
		&transports,
		&credential.BackupEligible,
		&credential.BackupState,
		&createdAt,
	); err != nil {
		return storage.Credential{}, err
	}
	credential.Counter = uint32(counter)
	credential.CreatedAt = fromMillis(createdAt)
	if transports != "" {
		if err := json.Unmarshal([]byte(transports), &credential.Transports); err != nil {
			return storage.Credential{}, fmt.Errorf("decode transports: %w", err)
		}
	}
	return credential, nil
}

func encodeTransports(transports []string) (string, error) {
	if len(transports) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(transports)
	if err != nil {
		return "", fmt.Errorf("encode transports: %w", err)
	}
	return string(encoded), nil
}
