package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MockThePlank/passkey-playground/internal/auth/storage"
	"github.com/MockThePlank/passkey-playground/internal/auth/user"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testUser(id, username string) user.User {
	return user.User{
		ID:        id,
		Username:  username,
		CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func testCredential(id, userID string, counter uint32) storage.Credential {
	return storage.Credential{
		ID:             id,
		UserID:         userID,
		PublicKey:      []byte{0xA5, 0x01, 0x02},
		Counter:        counter,
		Transports:     []string{"internal", "hybrid"},
		BackupEligible: true,
		CreatedAt:      time.Date(2026, 5, 1, 9, 1, 0, 0, time.UTC),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := testUser("user-1", "alice")
	if err := store.CreateUser(ctx, created); err != nil {
		t.Fatalf("create user: %v", err)
	}

	byID, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if byID.Username != "alice" {
		t.Fatalf("expected username alice, got %q", byID.Username)
	}
	if !byID.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("expected created at %v, got %v", created.CreatedAt, byID.CreatedAt)
	}

	byName, err := store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user by username: %v", err)
	}
	if byName.ID != "user-1" {
		t.Fatalf("expected id user-1, got %q", byName.ID)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("user-1", "alice")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	err := store.CreateUser(ctx, testUser("user-2", "alice"))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.GetUser(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.GetUserByUsername(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInsertAndGetCredential(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("user-1", "alice")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	inserted := testCredential("cred-1", "user-1", 0)
	if err := store.InsertCredential(ctx, inserted); err != nil {
		t.Fatalf("insert credential: %v", err)
	}

	got, err := store.GetCredential(ctx, "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.UserID != "user-1" {
		t.Fatalf("expected owner user-1, got %q", got.UserID)
	}
	if got.Counter != 0 {
		t.Fatalf("expected counter 0, got %d", got.Counter)
	}
	if len(got.PublicKey) != 3 {
		t.Fatalf("expected public key bytes, got %v", got.PublicKey)
	}
	if len(got.Transports) != 2 || got.Transports[0] != "internal" {
		t.Fatalf("expected transports, got %v", got.Transports)
	}
	if !got.BackupEligible || got.BackupState {
		t.Fatalf("expected backup flags to round trip, got eligible=%v state=%v", got.BackupEligible, got.BackupState)
	}
}

func TestInsertCredentialDuplicateID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("user-1", "alice")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.InsertCredential(ctx, testCredential("cred-1", "user-1", 0)); err != nil {
		t.Fatalf("insert credential: %v", err)
	}
	err := store.InsertCredential(ctx, testCredential("cred-1", "user-1", 5))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The original record must be untouched.
	got, err := store.GetCredential(ctx, "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.Counter != 0 {
		t.Fatalf("expected counter 0 after rejected duplicate, got %d", got.Counter)
	}
}

func TestListCredentialsByUser(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("user-1", "alice")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.CreateUser(ctx, testUser("user-2", "bob")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	for _, id := range []string{"cred-1", "cred-2"} {
		if err := store.InsertCredential(ctx, testCredential(id, "user-1", 0)); err != nil {
			t.Fatalf("insert credential %s: %v", id, err)
		}
	}
	if err := store.InsertCredential(ctx, testCredential("cred-3", "user-2", 0)); err != nil {
		t.Fatalf("insert credential: %v", err)
	}

	credentials, err := store.ListCredentialsByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(credentials) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(credentials))
	}

	empty, err := store.ListCredentialsByUser(ctx, "user-3")
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no credentials, got %d", len(empty))
	}
}

func TestUpdateCounterAdvances(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("user-1", "alice")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.InsertCredential(ctx, testCredential("cred-1", "user-1", 3)); err != nil {
		t.Fatalf("insert credential: %v", err)
	}

	if err := store.UpdateCounter(ctx, "cred-1", 4); err != nil {
		t.Fatalf("update counter: %v", err)
	}

	got, err := store.GetCredential(ctx, "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.Counter != 4 {
		t.Fatalf("expected counter 4, got %d", got.Counter)
	}
}

func TestUpdateCounterRejectsRegression(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("user-1", "alice")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.InsertCredential(ctx, testCredential("cred-1", "user-1", 3)); err != nil {
		t.Fatalf("insert credential: %v", err)
	}

	for _, stale := range []uint32{3, 2, 0} {
		err := store.UpdateCounter(ctx, "cred-1", stale)
		if !errors.Is(err, storage.ErrCounterRegression) {
			t.Fatalf("counter %d: expected regression, got %v", stale, err)
		}
	}

	got, err := store.GetCredential(ctx, "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.Counter != 3 {
		t.Fatalf("expected counter 3 after rejected writes, got %d", got.Counter)
	}
}

func TestUpdateCounterMissingCredential(t *testing.T) {
	store := openTestStore(t)

	err := store.UpdateCounter(context.Background(), "missing", 1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
