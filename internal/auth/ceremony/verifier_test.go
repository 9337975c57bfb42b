package ceremony

import (
	"errors"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/MockThePlank/passkey-playground/internal/auth/passkey"
	apperrors "github.com/MockThePlank/passkey-playground/internal/platform/errors"
)

func TestNewVerifierRejectsBadConfig(t *testing.T) {
	if _, err := NewVerifier(passkey.Config{}); err == nil {
		t.Fatal("expected error for missing relying party config")
	}
}

func TestNewVerifierDefaults(t *testing.T) {
	if _, err := NewVerifier(passkey.LoadConfigFromEnv()); err != nil {
		t.Fatalf("new verifier: %v", err)
	}
}

func TestVerifyRegistrationMapsCredential(t *testing.T) {
	provider := &fakeProvider{createdID: []byte("cred")}
	v := &Verifier{provider: provider, parser: &fakeParser{creation: &protocol.ParsedCredentialCreationData{}}}

	verified, err := v.VerifyRegistration(&ceremonyUser{id: []byte("user-1")}, webauthn.SessionData{}, []byte("{}"))
	if err != nil {
		t.Fatalf("verify registration: %v", err)
	}
	if verified.ID != EncodeCredentialID([]byte("cred")) {
		t.Fatalf("unexpected credential id %q", verified.ID)
	}
	if len(verified.PublicKey) == 0 {
		t.Fatal("expected public key")
	}
	if len(verified.Transports) != 1 || verified.Transports[0] != "internal" {
		t.Fatalf("unexpected transports %v", verified.Transports)
	}
}

func TestVerifyRegistrationParseFailure(t *testing.T) {
	v := &Verifier{provider: &fakeProvider{}, parser: &fakeParser{err: errors.New("not json")}}

	_, err := v.VerifyRegistration(&ceremonyUser{}, webauthn.SessionData{}, []byte("junk"))
	if apperrors.GetCode(err) != apperrors.CodeVerificationFailed {
		t.Fatalf("expected verification failure, got %v", err)
	}
}

func TestVerifyLoginCounterRules(t *testing.T) {
	tests := []struct {
		name          string
		storedCounter uint32
		newCounter    uint32
		cloneWarning  bool
		wantCode      apperrors.Code
	}{
		{name: "advances", storedCounter: 4, newCounter: 5},
		{name: "large jump", storedCounter: 4, newCounter: 400},
		{name: "stalled", storedCounter: 4, newCounter: 4, wantCode: apperrors.CodeCounterRegression},
		{name: "rewound", storedCounter: 4, newCounter: 3, wantCode: apperrors.CodeCounterRegression},
		{name: "both zero", storedCounter: 0, newCounter: 0, wantCode: apperrors.CodeCounterRegression},
		{name: "clone warning", storedCounter: 4, newCounter: 5, cloneWarning: true, wantCode: apperrors.CodeCounterRegression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{cloneWarning: tt.cloneWarning}
			v := &Verifier{provider: provider, parser: &fakeParser{}}
			handler := func(_, _ []byte) (webauthn.User, error) {
				return &ceremonyUser{id: []byte("user-1")}, nil
			}

			parsed := assertion([]byte("cred"), []byte("user-1"), tt.newCounter)
			_, gotCounter, err := v.VerifyLogin(handler, webauthn.SessionData{}, parsed, tt.storedCounter)
			if tt.wantCode != "" {
				if apperrors.GetCode(err) != tt.wantCode {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("verify login: %v", err)
			}
			if gotCounter != tt.newCounter {
				t.Fatalf("expected counter %d, got %d", tt.newCounter, gotCounter)
			}
		})
	}
}

func TestVerifyLoginProviderFailure(t *testing.T) {
	provider := &fakeProvider{validateErr: errors.New("bad signature")}
	v := &Verifier{provider: provider, parser: &fakeParser{}}
	handler := func(_, _ []byte) (webauthn.User, error) {
		return &ceremonyUser{id: []byte("user-1")}, nil
	}

	parsed := assertion([]byte("cred"), []byte("user-1"), 5)
	_, _, err := v.VerifyLogin(handler, webauthn.SessionData{}, parsed, 4)
	if apperrors.GetCode(err) != apperrors.CodeVerificationFailed {
		t.Fatalf("expected verification failure, got %v", err)
	}
}

func TestCredentialIDRoundTrip(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xFF}
	decoded, err := DecodeCredentialID(EncodeCredentialID(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Fatalf("expected %v, got %v", raw, decoded)
	}
}
