package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerIssuesAdminTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		TokenTTL:      30 * time.Minute,
	})

	tokenString, expiresIn, err := issuer.IssueAdminToken("admin")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry seconds %d", expiresIn)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}
	if claims.Subject != "admin" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != tokenIssuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != tokenAudience {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerRejectsMissingSecret(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{})

	if _, _, err := issuer.IssueAdminToken("admin"); err == nil {
		t.Fatalf("expected error without signing secret")
	}
}

func TestTokenIssuerRejectsEmptyUsername(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("secret")})

	if _, _, err := issuer.IssueAdminToken(""); err == nil {
		t.Fatalf("expected error for empty username")
	}
}

func TestValidateTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("secret")})

	tokenString, _, err := issuer.IssueAdminToken("admin")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	subject, err := issuer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if subject != "admin" {
		t.Fatalf("unexpected subject %s", subject)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("secret")})
	other := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("different")})

	tokenString, _, err := issuer.IssueAdminToken("admin")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	if _, err := other.ValidateToken(tokenString); err == nil {
		t.Fatalf("expected validation to fail with a different secret")
	}
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return issued },
	})

	tokenString, _, err := issuer.IssueAdminToken("admin")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	late := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Clock:         func() time.Time { return issued.Add(time.Hour) },
	})
	if _, err := late.ValidateToken(tokenString); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
