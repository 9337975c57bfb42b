package ceremony

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/MockThePlank/passkey-playground/internal/auth/session"
	"github.com/MockThePlank/passkey-playground/internal/auth/storage"
	"github.com/MockThePlank/passkey-playground/internal/auth/user"
	apperrors "github.com/MockThePlank/passkey-playground/internal/platform/errors"
	"github.com/MockThePlank/passkey-playground/internal/platform/id"
)

// ErrNoPendingCeremony indicates a verification call with no ceremony bound
// to the session. Consuming a ceremony is one-shot, so a replayed
// verification lands here.
var ErrNoPendingCeremony = apperrors.New(apperrors.CodeNoPendingCeremony, "no pending ceremony for this session")

// ErrCredentialNotFound indicates a login assertion naming a credential
// this service never registered.
var ErrCredentialNotFound = apperrors.New(apperrors.CodeCredentialNotFound, "credential is not registered")

// Config carries the dependencies for a ceremony service.
type Config struct {
	Verifier    *Verifier
	Users       storage.UserStore
	Credentials storage.CredentialStore
	// Now overrides the clock, used by tests.
	Now func() time.Time
	// IDGenerator overrides user ID generation, used by tests.
	IDGenerator func() (string, error)
}

// Service orchestrates registration and login ceremonies end to end.
type Service struct {
	verifier    *Verifier
	users       storage.UserStore
	credentials storage.CredentialStore
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewService validates the config and returns a ceremony service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if cfg.Users == nil {
		return nil, errors.New("user store is required")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	clock := cfg.Now
	if clock == nil {
		clock = time.Now
	}
	idGenerator := cfg.IDGenerator
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &Service{
		verifier:    cfg.Verifier,
		users:       cfg.Users,
		credentials: cfg.Credentials,
		clock:       clock,
		idGenerator: idGenerator,
	}, nil
}

// BeginRegistration creates registration options for the username and binds
// the ceremony to the session. The user ID the authenticator will record as
// its user handle is fixed here: an existing user keeps their ID, a new
// username gets one allocated now and made durable only if verification
// succeeds.
func (s *Service) BeginRegistration(ctx context.Context, sess *session.Session, username string) (*protocol.CredentialCreation, error) {
	normalized, err := user.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	registrant := &ceremonyUser{name: normalized, displayName: normalized}
	existing, err := s.users.GetUserByUsername(ctx, normalized)
	switch {
	case err == nil:
		stored, err := s.credentials.ListCredentialsByUser(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}
		decoded, err := decodeStoredCredentials(stored)
		if err != nil {
			return nil, fmt.Errorf("decode credentials: %w", err)
		}
		registrant.id = []byte(existing.ID)
		registrant.credentials = decoded
	case errors.Is(err, storage.ErrNotFound):
		pending, err := user.New(normalized, s.clock, s.idGenerator)
		if err != nil {
			return nil, err
		}
		registrant.id = []byte(pending.ID)
	default:
		return nil, fmt.Errorf("look up user: %w", err)
	}

	creation, data, err := s.verifier.RegistrationOptions(registrant)
	if err != nil {
		return nil, err
	}
	sess.BindCeremony(session.Ceremony{
		Kind:     session.CeremonyRegistration,
		Username: normalized,
		Data:     *data,
	})
	return creation, nil
}

// FinishRegistration consumes the session's pending registration ceremony,
// verifies the attestation response, persists the user and credential, and
// establishes the authenticated session.
func (s *Service) FinishRegistration(ctx context.Context, sess *session.Session, response []byte) (session.Identity, error) {
	pending, ok := sess.ConsumeCeremony()
	if !ok || pending.Kind != session.CeremonyRegistration {
		return session.Identity{}, ErrNoPendingCeremony
	}

	registrant := &ceremonyUser{
		id:          pending.Data.UserID,
		name:        pending.Username,
		displayName: pending.Username,
	}
	verified, err := s.verifier.VerifyRegistration(registrant, pending.Data, response)
	if err != nil {
		return session.Identity{}, err
	}

	owner, err := s.ensureUser(ctx, pending.Username, string(pending.Data.UserID))
	if err != nil {
		return session.Identity{}, err
	}

	verified.UserID = owner.ID
	verified.CreatedAt = s.clock().UTC()
	if err := s.credentials.InsertCredential(ctx, verified); err != nil {
		return session.Identity{}, fmt.Errorf("insert credential: %w", err)
	}

	identity := session.Identity{UserID: owner.ID, Username: owner.Username}
	sess.Establish(identity)
	return identity, nil
}

// BeginLogin creates discoverable login options and binds the ceremony to
// the session.
func (s *Service) BeginLogin(ctx context.Context, sess *session.Session) (*protocol.CredentialAssertion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assertion, data, err := s.verifier.LoginOptions()
	if err != nil {
		return nil, err
	}
	sess.BindCeremony(session.Ceremony{
		Kind: session.CeremonyLogin,
		Data: *data,
	})
	return assertion, nil
}

// FinishLogin consumes the session's pending login ceremony, verifies the
// assertion response against the stored credential, advances the signature
// counter, and establishes the authenticated session.
func (s *Service) FinishLogin(ctx context.Context, sess *session.Session, response []byte) (session.Identity, error) {
	pending, ok := sess.ConsumeCeremony()
	if !ok || pending.Kind != session.CeremonyLogin {
		return session.Identity{}, ErrNoPendingCeremony
	}

	parsed, err := s.verifier.ParseLogin(response)
	if err != nil {
		return session.Identity{}, err
	}

	credentialID := EncodeCredentialID(parsed.RawID)
	stored, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.Identity{}, ErrCredentialNotFound
		}
		return session.Identity{}, fmt.Errorf("get credential: %w", err)
	}
	owner, err := s.users.GetUser(ctx, stored.UserID)
	if err != nil {
		return session.Identity{}, fmt.Errorf("get credential owner: %w", err)
	}

	_, newCounter, err := s.verifier.VerifyLogin(s.userHandler(ctx, owner), pending.Data, parsed, stored.Counter)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeCounterRegression {
			log.Printf("counter regression credential=%s user=%s stored=%d", credentialID, owner.ID, stored.Counter)
		}
		return session.Identity{}, err
	}

	if err := s.credentials.UpdateCounter(ctx, credentialID, newCounter); err != nil {
		if errors.Is(err, storage.ErrCounterRegression) {
			log.Printf("counter regression credential=%s user=%s stored=%d", credentialID, owner.ID, stored.Counter)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return session.Identity{}, ErrCredentialNotFound
		}
		return session.Identity{}, err
	}

	identity := session.Identity{UserID: owner.ID, Username: owner.Username}
	sess.Establish(identity)
	return identity, nil
}

// ensureUser makes the registered username durable. Registration is
// idempotent on username, but the user handle signed into the credential is
// the pending ID, so a user created concurrently under a different ID
// cannot adopt this credential.
func (s *Service) ensureUser(ctx context.Context, username, pendingID string) (user.User, error) {
	found, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		if found.ID != pendingID {
			return user.User{}, apperrors.New(apperrors.CodeConflict, "username registered by a concurrent ceremony")
		}
		return found, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, fmt.Errorf("look up user: %w", err)
	}

	created := user.User{
		ID:        pendingID,
		Username:  username,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.users.CreateUser(ctx, created); err != nil {
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// userHandler resolves the discoverable login's user handle. The handle the
// authenticator returns must name the credential's owner.
func (s *Service) userHandler(ctx context.Context, owner user.User) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		if string(userHandle) != owner.ID {
			return nil, fmt.Errorf("user handle does not match credential owner")
		}
		stored, err := s.credentials.ListCredentialsByUser(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		decoded, err := decodeStoredCredentials(stored)
		if err != nil {
			return nil, err
		}
		return &ceremonyUser{
			id:          []byte(owner.ID),
			name:        owner.Username,
			displayName: owner.Username,
			credentials: decoded,
		}, nil
	}
}

// ceremonyUser adapts a user record to the webauthn.User interface.
type ceremonyUser struct {
	id          []byte
	name        string
	displayName string
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return u.id
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.name
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.displayName
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

// decodeStoredCredentials maps stored credential rows to the library type.
func decodeStoredCredentials(records []storage.Credential) ([]webauthn.Credential, error) {
	if len(records) == 0 {
		return nil, nil
	}
	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		rawID, err := DecodeCredentialID(record.ID)
		if err != nil {
			return nil, fmt.Errorf("decode credential id %s: %w", record.ID, err)
		}
		transports := make([]protocol.AuthenticatorTransport, 0, len(record.Transports))
		for _, transport := range record.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(transport))
		}
		credentials = append(credentials, webauthn.Credential{
			ID:        rawID,
			PublicKey: record.PublicKey,
			Transport: transports,
			Flags: webauthn.CredentialFlags{
				BackupEligible: record.BackupEligible,
				BackupState:    record.BackupState,
			},
			Authenticator: webauthn.Authenticator{
				SignCount: record.Counter,
			},
		})
	}
	return credentials, nil
}
