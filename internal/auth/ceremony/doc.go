// Package ceremony implements WebAuthn registration and login ceremonies.
//
// The Verifier wraps the go-webauthn library behind narrow provider and
// parser interfaces and turns authenticator responses into verified
// credential facts. The Service orchestrates full ceremonies on top of it:
// it binds challenges to browser sessions, persists users and credentials,
// and enforces signature counter monotonicity.
package ceremony
