package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenService_IssueAndVerifyAccess(t *testing.T) {
	svc := NewTokenService("secret", 15*time.Minute, 7*24*time.Hour)

	token, expiresAt, jti, err := svc.IssueAccess("user@example.com")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatalf("expected token and jti")
	}
	if remaining := time.Until(expiresAt); remaining < 14*time.Minute || remaining > 15*time.Minute {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user@example.com" || claims.ID != jti {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("expected access type, got %q", claims.TokenType)
	}
}

func TestTokenService_RefreshCarriesConfiguredTTL(t *testing.T) {
	svc := NewTokenService("secret", 15*time.Minute, 7*24*time.Hour)

	_, expiresAt, _, err := svc.IssueRefresh("user@example.com")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	remaining := time.Until(expiresAt)
	if remaining < 7*24*time.Hour-time.Minute || remaining > 7*24*time.Hour {
		t.Fatalf("unexpected refresh expiry %v", expiresAt)
	}
}

func TestTokenService_ExpiryBoundary(t *testing.T) {
	svc := NewTokenService("secret", 15*time.Minute, 7*24*time.Hour)
	base := time.Now().UTC().Truncate(time.Second)
	svc.now = func() time.Time { return base }

	token, expiresAt, _, err := svc.IssueAccess("user@example.com")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	svc.now = func() time.Time { return expiresAt.Add(-time.Second) }
	if _, err := svc.Verify(token); err != nil {
		t.Fatalf("expected token valid just before expiry, got %v", err)
	}

	// En el instante exacto de exp la credencial ya no vale.
	svc.now = func() time.Time { return expiresAt }
	if _, err := svc.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at boundary, got %v", err)
	}

	svc.now = func() time.Time { return expiresAt.Add(time.Hour) }
	if _, err := svc.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired after expiry, got %v", err)
	}
}

func TestTokenService_RejectsTamperedSignature(t *testing.T) {
	svc := NewTokenService("secret", 15*time.Minute, 7*24*time.Hour)
	token, _, _, err := svc.IssueAccess("user@example.com")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three segments, got %d", len(parts))
	}
	sig := []byte(parts[2])
	if sig[len(sig)-1] == 'A' {
		sig[len(sig)-1] = 'B'
	} else {
		sig[len(sig)-1] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := svc.Verify(tampered); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature for tampered token, got %v", err)
	}
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", 15*time.Minute, 7*24*time.Hour)
	verifier := NewTokenService("secret-b", 15*time.Minute, 7*24*time.Hour)

	token, _, _, err := issuer.IssueAccess("user@example.com")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := NewTokenService("secret", 15*time.Minute, 7*24*time.Hour)

	for _, raw := range []string{"", "   ", "garbage", "a.b.c"} {
		if _, err := svc.Verify(raw); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("expected ErrTokenMalformed for %q, got %v", raw, err)
		}
	}
}

func TestTokenService_RejectsIncompleteClaims(t *testing.T) {
	svc := NewTokenService("secret", 15*time.Minute, 7*24*time.Hour)
	now := time.Now().UTC()

	sign := func(t *testing.T, claims Claims) string {
		t.Helper()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("secret"))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return signed
	}

	t.Run("missing jti", func(t *testing.T) {
		signed := sign(t, Claims{
			TokenType: TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user@example.com",
				ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
			},
		})
		if _, err := svc.Verify(signed); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("expected ErrTokenMalformed, got %v", err)
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		signed := sign(t, Claims{
			TokenType: TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "jti-1",
				ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
			},
		})
		if _, err := svc.Verify(signed); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("expected ErrTokenMalformed, got %v", err)
		}
	})

	t.Run("missing expiry", func(t *testing.T) {
		signed := sign(t, Claims{
			TokenType: TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:      "jti-1",
				Subject: "user@example.com",
			},
		})
		if _, err := svc.Verify(signed); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("expected ErrTokenMalformed, got %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		signed := sign(t, Claims{
			TokenType: "session",
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "jti-1",
				Subject:   "user@example.com",
				ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
			},
		})
		if _, err := svc.Verify(signed); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("expected ErrTokenMalformed, got %v", err)
		}
	})
}

func TestTokenService_RejectsEmptySecret(t *testing.T) {
	svc := NewTokenService("", 15*time.Minute, 7*24*time.Hour)

	if _, _, _, err := svc.IssueAccess("user@example.com"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected error on empty secret, got %v", err)
	}
}
