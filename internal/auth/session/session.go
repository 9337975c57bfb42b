package session

import (
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// CeremonyKind distinguishes the two WebAuthn ceremony flavors.
type CeremonyKind string

const (
	// CeremonyRegistration is an attestation (credential creation) ceremony.
	CeremonyRegistration CeremonyKind = "registration"
	// CeremonyLogin is an assertion (authentication) ceremony.
	CeremonyLogin CeremonyKind = "login"
)

// Ceremony is the server-side state of an in-flight WebAuthn ceremony.
// Username is set for registration ceremonies only.
type Ceremony struct {
	Kind     CeremonyKind
	Username string
	Data     webauthn.SessionData
}

// Identity is the authenticated principal bound to a session.
type Identity struct {
	UserID   string
	Username string
}

// Session is a single browser session. A session holds at most one pending
// ceremony; binding a new one replaces whatever was pending before.
type Session struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	expiresAt time.Time
	pending   *Ceremony
	identity  *Identity
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// BindCeremony stores ceremony state for the next verification call,
// discarding any previously pending ceremony.
func (s *Session) BindCeremony(ceremony Ceremony) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &ceremony
}

// ConsumeCeremony removes and returns the pending ceremony. The second
// return value reports whether a ceremony was pending. A consumed ceremony
// is gone regardless of whether verification later succeeds.
func (s *Session) ConsumeCeremony() (Ceremony, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Ceremony{}, false
	}
	ceremony := *s.pending
	s.pending = nil
	return ceremony, true
}

// Establish binds an authenticated identity to the session and clears any
// pending ceremony state.
func (s *Session) Establish(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = &identity
	s.pending = nil
}

// Identity returns the authenticated identity, if one is established.
func (s *Session) Identity() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Clear drops the authenticated identity and any pending ceremony. The
// session itself stays valid so the browser can start a fresh ceremony.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.pending = nil
}

// expired reports whether the session is past its deadline.
func (s *Session) expired(now time.Time) bool {
	return !s.expiresAt.After(now)
}
