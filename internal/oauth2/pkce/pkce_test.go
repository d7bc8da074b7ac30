package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func challengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestS256_VerifierMatchesOwnChallenge(t *testing.T) {
	verifiers := []string{
		"dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
		"a",
		"verifier-with-dashes_and.unreserved~chars0123456789",
	}
	m := S256{}
	for _, v := range verifiers {
		if !m.IsChallengeVerified(v, challengeS256(v)) {
			t.Fatalf("S256: expected match for verifier %q", v)
		}
	}
}

func TestS256_WrongVerifierRejected(t *testing.T) {
	m := S256{}
	if m.IsChallengeVerified("verifier-a", challengeS256("verifier-b")) {
		t.Fatalf("S256: wrong verifier must not verify")
	}
	// challenge en claro (confusión plain/S256) tampoco debe pasar
	if m.IsChallengeVerified("verifier-a", "verifier-a") {
		t.Fatalf("S256: plain-style challenge must not verify")
	}
}

func TestPlain(t *testing.T) {
	m := Plain{}
	if !m.IsChallengeVerified("same-value", "same-value") {
		t.Fatalf("plain: equal values must verify")
	}
	if m.IsChallengeVerified("value", "other") {
		t.Fatalf("plain: different values must not verify")
	}
}

func TestManager(t *testing.T) {
	m := Default()
	if !m.Has("S256") || !m.Has("plain") {
		t.Fatalf("default manager missing methods: %v", m.Names())
	}
	if _, err := m.Get("S384"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
	meth, err := m.Get("S256")
	if err != nil {
		t.Fatalf("Get(S256): %v", err)
	}
	if meth.Name() != "S256" {
		t.Fatalf("got method %q", meth.Name())
	}
}
