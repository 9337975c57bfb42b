// Package webauthntest provides a software authenticator for exercising
// WebAuthn ceremonies in tests. It produces the same JSON payloads a
// browser would POST after navigator.credentials.create or .get, signed
// with a real P-256 key so full verification passes.
package webauthntest

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// Authenticator simulates a platform authenticator holding one discoverable
// credential. The credential's user handle is captured during registration
// and replayed on every assertion, the way a resident key behaves.
type Authenticator struct {
	rpID     string
	rpIDHash []byte
	origin   string

	aaguid       []byte
	credentialID []byte
	privateKey   *ecdsa.PrivateKey

	userHandle []byte
	signCount  uint32
}

// New creates an authenticator scoped to a relying party and origin.
func New(rpID, origin string) (*Authenticator, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	aaguid := make([]byte, 16)
	if _, err := rand.Read(aaguid); err != nil {
		return nil, fmt.Errorf("generate aaguid: %w", err)
	}
	credentialID := make([]byte, 32)
	if _, err := rand.Read(credentialID); err != nil {
		return nil, fmt.Errorf("generate credential id: %w", err)
	}
	rpIDHash := sha256.Sum256([]byte(rpID))
	return &Authenticator{
		rpID:         rpID,
		rpIDHash:     rpIDHash[:],
		origin:       origin,
		aaguid:       aaguid,
		credentialID: credentialID,
		privateKey:   privateKey,
	}, nil
}

// CredentialID returns the raw credential ID this authenticator minted.
func (a *Authenticator) CredentialID() []byte {
	return a.credentialID
}

// SignCount returns the current signature counter.
func (a *Authenticator) SignCount() uint32 {
	return a.signCount
}

// SetSignCount forces the counter to a specific value. Rewinding it makes
// the next assertion look like it came from a cloned authenticator.
func (a *Authenticator) SetSignCount(count uint32) {
	a.signCount = count
}

// Register produces the attestation response JSON for credential creation
// options. The challenge and user handle are read from the options the
// server issued, so the response round-trips through full verification.
func (a *Authenticator) Register(creation *protocol.CredentialCreation) ([]byte, error) {
	if creation == nil {
		return nil, fmt.Errorf("creation options are required")
	}
	challenge := base64.RawURLEncoding.EncodeToString(creation.Response.Challenge)
	userHandle, err := decodeUserHandle(creation.Response.User.ID)
	if err != nil {
		return nil, err
	}
	a.userHandle = userHandle

	authData, err := a.authenticatorData(true)
	if err != nil {
		return nil, err
	}
	attestationObject, err := webauthncbor.Marshal(map[string]any{
		"authData": authData,
		"fmt":      "none",
		"attStmt":  map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("encode attestation object: %w", err)
	}

	response := protocol.CredentialCreationResponse{
		PublicKeyCredential: a.publicKeyCredential(),
		AttestationResponse: protocol.AuthenticatorAttestationResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{
				ClientDataJSON: a.clientDataJSON("webauthn.create", challenge),
			},
			AttestationObject: attestationObject,
			Transports:        []string{"internal"},
		},
	}
	return json.Marshal(response)
}

// Login produces the assertion response JSON for assertion options,
// incrementing the signature counter first the way real hardware does.
func (a *Authenticator) Login(assertion *protocol.CredentialAssertion) ([]byte, error) {
	if assertion == nil {
		return nil, fmt.Errorf("assertion options are required")
	}
	if len(a.userHandle) == 0 {
		return nil, fmt.Errorf("no credential registered")
	}
	a.signCount++

	challenge := base64.RawURLEncoding.EncodeToString(assertion.Response.Challenge)
	authData, err := a.authenticatorData(false)
	if err != nil {
		return nil, err
	}
	clientData := a.clientDataJSON("webauthn.get", challenge)
	clientDataHash := sha256.Sum256(clientData)

	signature, err := a.sign(append(authData, clientDataHash[:]...))
	if err != nil {
		return nil, err
	}

	response := protocol.CredentialAssertionResponse{
		PublicKeyCredential: a.publicKeyCredential(),
		AssertionResponse: protocol.AuthenticatorAssertionResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{
				ClientDataJSON: clientData,
			},
			AuthenticatorData: authData,
			Signature:         signature,
			UserHandle:        a.userHandle,
		},
	}
	return json.Marshal(response)
}

// decodeUserHandle reads the user ID out of creation options, which holds
// raw bytes in-process and a base64url string after a JSON round trip.
func decodeUserHandle(id any) ([]byte, error) {
	switch v := id.(type) {
	case protocol.URLEncodedBase64:
		return []byte(v), nil
	case []byte:
		return v, nil
	case string:
		decoded, err := base64.RawURLEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("decode user id: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unsupported user id type %T", id)
	}
}

func (a *Authenticator) publicKeyCredential() protocol.PublicKeyCredential {
	return protocol.PublicKeyCredential{
		Credential: protocol.Credential{
			ID:   base64.RawURLEncoding.EncodeToString(a.credentialID),
			Type: "public-key",
		},
		RawID:                  a.credentialID,
		ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
	}
}

// authenticatorData renders the binary authenticator data structure. The
// attested credential block is present only during registration.
func (a *Authenticator) authenticatorData(attested bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(a.rpIDHash)

	flags := byte(protocol.FlagUserPresent | protocol.FlagUserVerified)
	if attested {
		flags |= byte(protocol.FlagAttestedCredentialData)
	}
	buf.WriteByte(flags)

	counter := make([]byte, 4)
	binary.BigEndian.PutUint32(counter, a.signCount)
	buf.Write(counter)

	if attested {
		buf.Write(a.aaguid)
		credentialIDLen := make([]byte, 2)
		binary.BigEndian.PutUint16(credentialIDLen, uint16(len(a.credentialID)))
		buf.Write(credentialIDLen)
		buf.Write(a.credentialID)

		coseKey, err := a.coseKey()
		if err != nil {
			return nil, err
		}
		buf.Write(coseKey)
	}
	return buf.Bytes(), nil
}

// coseKey encodes the public key as a COSE EC2 key for ES256.
func (a *Authenticator) coseKey() ([]byte, error) {
	publicKey := a.privateKey.Public().(*ecdsa.PublicKey)
	encoded, err := webauthncbor.Marshal(map[int]any{
		1:  2,
		3:  int(webauthncose.AlgES256),
		-1: 1,
		-2: publicKey.X.Bytes(),
		-3: publicKey.Y.Bytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode cose key: %w", err)
	}
	return encoded, nil
}

func (a *Authenticator) clientDataJSON(ceremonyType, challenge string) []byte {
	clientData := struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Origin    string `json:"origin"`
	}{
		Type:      ceremonyType,
		Challenge: challenge,
		Origin:    a.origin,
	}
	encoded, _ := json.Marshal(clientData)
	return encoded
}

// sign produces the ASN.1 DER ECDSA signature WebAuthn expects.
func (a *Authenticator) sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, a.privateKey, hash[:])
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return derSignature(r, s), nil
}

func derSignature(r, s *big.Int) []byte {
	rBytes := derInteger(r.Bytes())
	sBytes := derInteger(s.Bytes())
	body := make([]byte, 0, len(rBytes)+len(sBytes))
	body = append(body, rBytes...)
	body = append(body, sBytes...)

	sig := make([]byte, 0, 2+len(body))
	sig = append(sig, 0x30, byte(len(body)))
	return append(sig, body...)
}

func derInteger(value []byte) []byte {
	if len(value) > 0 && value[0] >= 0x80 {
		value = append([]byte{0x00}, value...)
	}
	encoded := make([]byte, 0, 2+len(value))
	encoded = append(encoded, 0x02, byte(len(value)))
	return append(encoded, value...)
}
