package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MockThePlank/passkey-playground/internal/platform/id"
)

// DefaultTTL is the session lifetime when the config does not set one.
const DefaultTTL = 24 * time.Hour

// DefaultCookieName is the session cookie name when the config does not
// set one.
const DefaultCookieName = "passkey_session"

// minSecretLength is the smallest accepted HMAC secret, in bytes.
const minSecretLength = 32

// Config defines how the manager mints and resolves session cookies.
type Config struct {
	// Secret signs session cookie tokens. Required, at least 32 bytes.
	Secret []byte
	// CookieName overrides DefaultCookieName when set.
	CookieName string
	// TTL overrides DefaultTTL when positive.
	TTL time.Duration
	// Secure marks the session cookie as HTTPS-only.
	Secure bool
	// Now overrides the clock, used by tests.
	Now func() time.Time
	// IDGenerator overrides session ID generation, used by tests.
	IDGenerator func() (string, error)
}

// Manager owns the in-memory session table and the cookie tokens that
// reference it.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	secret      []byte
	cookieName  string
	ttl         time.Duration
	secure      bool
	clock       func() time.Time
	idGenerator func() (string, error)
}

// sessionClaims is the internal claims type used for cookie tokens.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// NewManager validates the config and returns a session manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := cfg.Now
	if clock == nil {
		clock = time.Now
	}
	idGenerator := cfg.IDGenerator
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		secret:      cfg.Secret,
		cookieName:  cookieName,
		ttl:         ttl,
		secure:      cfg.Secure,
		clock:       clock,
		idGenerator: idGenerator,
	}, nil
}

// Resolve returns the session referenced by the request cookie, creating a
// fresh session and setting its cookie when the request carries none, an
// invalid token, or a token for a session that no longer exists.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if existing, ok := m.Lookup(r); ok {
		return existing, nil
	}

	sessionID, err := m.idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := m.clock().UTC()
	created := &Session{
		id:        sessionID,
		createdAt: now,
		expiresAt: now.Add(m.ttl),
	}

	token, err := m.signToken(sessionID, now, created.expiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	m.mu.Lock()
	m.sessions[sessionID] = created
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return created, nil
}

// Lookup returns the live session referenced by the request cookie without
// creating one. Expired sessions are dropped and treated as missing.
func (m *Manager) Lookup(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, false
	}
	sessionID, err := m.parseToken(cookie.Value)
	if err != nil {
		return nil, false
	}

	now := m.clock().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	found, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if found.expired(now) {
		delete(m.sessions, sessionID)
		return nil, false
	}
	return found, true
}

// Destroy removes the request's session and expires its cookie. Destroying
// a request with no live session is a no-op.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if found, ok := m.Lookup(r); ok {
		m.mu.Lock()
		delete(m.sessions, found.ID())
		m.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep(now time.Time) int {
	now = now.UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for sessionID, found := range m.sessions {
		if found.expired(now) {
			delete(m.sessions, sessionID)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// signToken mints the cookie token carrying the session ID.
func (m *Manager) signToken(sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// parseToken verifies a cookie token and returns the session ID it names.
func (m *Manager) parseToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("session token is required")
	}
	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return m.clock().UTC() }),
	)
	if err != nil {
		return "", fmt.Errorf("parse session token: %w", err)
	}
	if parsed.ID == "" {
		return "", errors.New("session token jti is required")
	}
	return parsed.ID, nil
}
