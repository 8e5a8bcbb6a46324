package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestIssueAndParseToken(t *testing.T) {
	claims := Claims{
		Sub:  "usr_123",
		Name: "Avery",
		JTI:  "jti_abc",
		Exp:  time.Now().Add(time.Hour).Unix(),
	}

	token, err := IssueToken(testSecret, claims)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if !strings.Contains(token, ".") {
		t.Fatalf("expected two-part token, got %q", token)
	}

	parsed, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Name != claims.Name || parsed.JTI != claims.JTI || parsed.Exp != claims.Exp {
		t.Errorf("claims round-trip mismatch: got %+v, want %+v", parsed, claims)
	}
}

func TestParseTokenRejectsTamperedSignature(t *testing.T) {
	token, err := IssueToken(testSecret, Claims{
		Sub: "usr_123",
		JTI: "jti_abc",
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + ".AAAA" + parts[1][4:]
	if _, err := ParseToken(testSecret, tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for tampered signature, got %v", err)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(testSecret, Claims{
		Sub: "usr_123",
		JTI: "jti_abc",
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := IssueToken(testSecret, Claims{
		Sub: "usr_123",
		JTI: "jti_abc",
		Exp: time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := ParseToken(testSecret, token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRejectsMalformed(t *testing.T) {
	for _, token := range []string{"", "not-a-token", "a.b.c", "!!!.???"} {
		if _, err := ParseToken(testSecret, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ParseToken(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestParseTokenRejectsMissingClaims(t *testing.T) {
	token, err := IssueToken(testSecret, Claims{
		Name: "No Subject",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := ParseToken(testSecret, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for missing sub/jti, got %v", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	a := HashToken("refresh-token-value")
	b := HashToken("refresh-token-value")
	if a != b {
		t.Errorf("expected stable hash, got %q and %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if HashToken("other-value") == a {
		t.Error("expected distinct hashes for distinct inputs")
	}
}
