package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	Init("test-secret")
	defer Init("")

	token, err := GenerateToken("bot-client", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "bot-client" {
		t.Errorf("subject = %s, want bot-client", claims.Subject)
	}
}

func TestExpiredToken(t *testing.T) {
	Init("test-secret")
	defer Init("")

	token, err := GenerateToken("bot-client", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Error("ParseToken() accepted an expired token")
	}
}

func TestTamperedToken(t *testing.T) {
	Init("test-secret")
	token, err := GenerateToken("bot-client", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	Init("other-secret")
	defer Init("")
	if _, err := ParseToken(token); err == nil {
		t.Error("ParseToken() accepted a token signed with a different key")
	}
}

func TestNotConfigured(t *testing.T) {
	Init("")
	if Enabled() {
		t.Fatal("Enabled() = true with empty secret")
	}
	if _, err := GenerateToken("x", time.Minute); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GenerateToken() error = %v, want ErrNotConfigured", err)
	}
	if _, err := ParseToken("anything"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ParseToken() error = %v, want ErrNotConfigured", err)
	}
}
