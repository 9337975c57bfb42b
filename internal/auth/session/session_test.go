package session

import (
	"testing"

	"github.com/go-webauthn/webauthn/webauthn"
)

func TestConsumeCeremonyIsOneShot(t *testing.T) {
	var s Session
	s.BindCeremony(Ceremony{
		Kind:     CeremonyRegistration,
		Username: "alice",
		Data:     webauthn.SessionData{Challenge: "challenge-1"},
	})

	first, ok := s.ConsumeCeremony()
	if !ok {
		t.Fatal("expected pending ceremony")
	}
	if first.Kind != CeremonyRegistration || first.Username != "alice" {
		t.Fatalf("unexpected ceremony: %+v", first)
	}
	if first.Data.Challenge != "challenge-1" {
		t.Fatalf("expected challenge-1, got %q", first.Data.Challenge)
	}

	if _, ok := s.ConsumeCeremony(); ok {
		t.Fatal("expected no ceremony after consume")
	}
}

func TestBindCeremonyReplacesPending(t *testing.T) {
	var s Session
	s.BindCeremony(Ceremony{Kind: CeremonyRegistration, Data: webauthn.SessionData{Challenge: "stale"}})
	s.BindCeremony(Ceremony{Kind: CeremonyLogin, Data: webauthn.SessionData{Challenge: "fresh"}})

	ceremony, ok := s.ConsumeCeremony()
	if !ok {
		t.Fatal("expected pending ceremony")
	}
	if ceremony.Kind != CeremonyLogin || ceremony.Data.Challenge != "fresh" {
		t.Fatalf("expected latest ceremony, got %+v", ceremony)
	}
	if _, ok := s.ConsumeCeremony(); ok {
		t.Fatal("expected replaced ceremony to be gone")
	}
}

func TestEstablishClearsPending(t *testing.T) {
	var s Session
	s.BindCeremony(Ceremony{Kind: CeremonyLogin, Data: webauthn.SessionData{Challenge: "pending"}})
	s.Establish(Identity{UserID: "user-1", Username: "alice"})

	identity, ok := s.Identity()
	if !ok {
		t.Fatal("expected identity")
	}
	if identity.UserID != "user-1" || identity.Username != "alice" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if _, ok := s.ConsumeCeremony(); ok {
		t.Fatal("expected pending ceremony to be cleared")
	}
}

func TestClearDropsIdentityAndPending(t *testing.T) {
	var s Session
	s.Establish(Identity{UserID: "user-1", Username: "alice"})
	s.BindCeremony(Ceremony{Kind: CeremonyLogin})
	s.Clear()

	if _, ok := s.Identity(); ok {
		t.Fatal("expected no identity after clear")
	}
	if _, ok := s.ConsumeCeremony(); ok {
		t.Fatal("expected no ceremony after clear")
	}
}
