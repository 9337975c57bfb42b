// Package passkey configures WebAuthn relying party settings.
//
// It models the relying party identity a credential is scoped to, so ceremony
// verification always checks responses against one canonical origin set.
package passkey
