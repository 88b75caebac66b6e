package auth_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"rehearsal-scheduler-api/internal/auth"
)

const secret = "test-secret"

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("password stored in the clear")
	}
	if !auth.CheckPassword(hash, "correct horse") {
		t.Error("correct password rejected")
	}
	if auth.CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := auth.MakeToken("user-1", secret)
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	claims, err := auth.ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("uid: got %s", claims.UserID)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	tok, err := auth.MakeToken("user-1", secret)
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	if _, err := auth.ParseToken(tok, "other-secret"); err == nil {
		t.Error("token accepted with the wrong secret")
	}
}

func TestTokenGarbage(t *testing.T) {
	if _, err := auth.ParseToken("not.a.token", secret); err == nil {
		t.Error("garbage accepted")
	}
}

func TestTokenAlgorithmConfusion(t *testing.T) {
	// a token signed with "none" must never validate, even if the payload
	// looks right
	c := auth.Claims{UserID: "user-1"}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := auth.ParseToken(tok, secret); err == nil {
		t.Error("unsigned token accepted")
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if raw == "" || hash == "" {
		t.Fatal("empty token or hash")
	}
	if raw == hash {
		t.Error("raw token equals its stored hash")
	}
	if auth.HashRefreshToken(raw) != hash {
		t.Error("hash does not match raw token")
	}

	raw2, _, err := auth.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if raw == raw2 {
		t.Error("two generated tokens are identical")
	}
}
