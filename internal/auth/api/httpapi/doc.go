// Package httpapi exposes the passkey ceremonies over HTTP. Options
// endpoints bind a ceremony to the caller's session cookie and return the
// WebAuthn options the browser feeds to navigator.credentials; verify
// endpoints consume the pending ceremony and establish the session.
package httpapi
