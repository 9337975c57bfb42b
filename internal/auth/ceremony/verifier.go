package ceremony

import (
	"encoding/base64"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/MockThePlank/passkey-playground/internal/auth/passkey"
	"github.com/MockThePlank/passkey-playground/internal/auth/storage"
	apperrors "github.com/MockThePlank/passkey-playground/internal/platform/errors"
)

type webauthnProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type credentialParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultCredentialParser struct{}

func (defaultCredentialParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultCredentialParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Verifier validates authenticator responses against the relying party
// identity fixed at construction time.
type Verifier struct {
	provider webauthnProvider
	parser   credentialParser
}

// NewVerifier builds a verifier for the given relying party configuration.
func NewVerifier(cfg passkey.Config) (*Verifier, error) {
	web, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &Verifier{provider: web, parser: defaultCredentialParser{}}, nil
}

// RegistrationOptions creates credential creation options for the user.
// Resident keys are required so the resulting credential is discoverable,
// and the user's existing credentials are excluded to prevent duplicate
// registrations on the same authenticator.
func (v *Verifier) RegistrationOptions(user webauthn.User) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if existing := user.WebAuthnCredentials(); len(existing) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(existing).CredentialDescriptors()))
	}
	creation, data, err := v.provider.BeginRegistration(user, options...)
	if err != nil {
		return nil, nil, fmt.Errorf("begin registration: %w", err)
	}
	return creation, data, nil
}

// LoginOptions creates assertion options for a discoverable login. The
// caller does not name a user; the authenticator picks the credential.
func (v *Verifier) LoginOptions() (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	assertion, data, err := v.provider.BeginDiscoverableLogin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin discoverable login: %w", err)
	}
	return assertion, data, nil
}

// VerifyRegistration checks an attestation response against the bound
// ceremony state and returns the verified credential facts. The returned
// credential carries no owner or creation time; the caller assigns those.
func (v *Verifier) VerifyRegistration(user webauthn.User, data webauthn.SessionData, response []byte) (storage.Credential, error) {
	parsed, err := v.parser.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return storage.Credential{}, apperrors.Wrap(apperrors.CodeVerificationFailed, "parse registration response", err)
	}
	credential, err := v.provider.CreateCredential(user, data, parsed)
	if err != nil {
		return storage.Credential{}, apperrors.Wrap(apperrors.CodeVerificationFailed, "verify registration response", err)
	}

	transports := make([]string, 0, len(credential.Transport))
	for _, transport := range credential.Transport {
		transports = append(transports, string(transport))
	}
	return storage.Credential{
		ID:             EncodeCredentialID(credential.ID),
		PublicKey:      credential.PublicKey,
		Counter:        credential.Authenticator.SignCount,
		Transports:     transports,
		BackupEligible: credential.Flags.BackupEligible,
		BackupState:    credential.Flags.BackupState,
	}, nil
}

// ParseLogin decodes an assertion response without verifying it, so the
// caller can resolve the credential record it names.
func (v *Verifier) ParseLogin(response []byte) (*protocol.ParsedCredentialAssertionData, error) {
	parsed, err := v.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeVerificationFailed, "parse login response", err)
	}
	return parsed, nil
}

// VerifyLogin checks an assertion response against the bound ceremony state
// and returns the authenticated user and the new signature counter. The
// counter must advance strictly past storedCounter; a stalled or rewound
// counter is reported as a counter regression, which is how a cloned
// authenticator surfaces.
func (v *Verifier) VerifyLogin(handler webauthn.DiscoverableUserHandler, data webauthn.SessionData, parsed *protocol.ParsedCredentialAssertionData, storedCounter uint32) (webauthn.User, uint32, error) {
	validatedUser, validatedCredential, err := v.provider.ValidatePasskeyLogin(handler, data, parsed)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeVerificationFailed, "verify login response", err)
	}

	newCounter := parsed.Response.AuthenticatorData.Counter
	if validatedCredential.Authenticator.CloneWarning || newCounter <= storedCounter {
		return nil, 0, apperrors.WithMetadata(
			apperrors.CodeCounterRegression,
			"signature counter did not advance",
			map[string]string{
				"StoredCounter":   fmt.Sprintf("%d", storedCounter),
				"ResponseCounter": fmt.Sprintf("%d", newCounter),
			},
		)
	}
	return validatedUser, newCounter, nil
}

// EncodeCredentialID renders a raw credential ID as the base64url string
// used as its storage key.
func EncodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCredentialID reverses EncodeCredentialID.
func DecodeCredentialID(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(encoded)
}
