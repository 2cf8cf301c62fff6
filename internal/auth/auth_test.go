package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Errorf("unexpected hash format %q", hash)
	}
	if !CheckPasswordHash("correct horse", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("wrong horse", hash) {
		t.Error("wrong password accepted")
	}

	other, _ := HashPassword("correct horse")
	if other == hash {
		t.Error("two hashes of the same password share a salt")
	}
}

func TestCheckPasswordHashMalformed(t *testing.T) {
	for _, stored := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=16$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$",
	} {
		if CheckPasswordHash("anything", stored) {
			t.Errorf("malformed hash %q matched", stored)
		}
	}
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(32)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := RandomToken(32)
	if a == b || len(a) != 43 {
		t.Errorf("tokens %q %q", a, b)
	}
}

func TestJWT(t *testing.T) {
	tok, err := GenerateJWT(42, "secret")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ValidateJWT(tok, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Subject != "42" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ValidateJWT(tok, "other"); err == nil {
		t.Error("token accepted with the wrong secret")
	}
}

func TestJWTRejectsExpiredAndForeign(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &AppClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	s, _ := expired.SignedString([]byte("secret"))
	if _, err := ValidateJWT(s, "secret"); err == nil {
		t.Error("expired token accepted")
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &AppClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, _ = foreign.SignedString([]byte("secret"))
	if _, err := ValidateJWT(s, "secret"); err == nil {
		t.Error("token from another issuer accepted")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &AppClaims{UserID: 1})
	s, _ = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := ValidateJWT(s, "secret"); err == nil {
		t.Error("unsigned token accepted")
	}
}
