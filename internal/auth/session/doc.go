// Package session tracks browser sessions for the auth service. A session
// carries at most one pending WebAuthn ceremony and, once a ceremony
// verifies, the authenticated identity. Sessions live in memory and are
// referenced from the browser by a signed cookie token.
package session
