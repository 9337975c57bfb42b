// Package user defines the durable user identity created by passkey registration.
//
// These utilities normalize and validate usernames before they become stable
// identities referenced by credentials and sessions.
package user
