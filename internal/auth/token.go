package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into every session token and required on validation.
const Issuer = "advenduro"

// SessionTTL is how long a session token stays valid.
const SessionTTL = 24 * time.Hour

// AppClaims carries the authenticated user's ID. The role is not part of the
// token; it is read from the database on every admin request so that a
// demotion takes effect immediately.
type AppClaims struct {
	UserID int64 `json:"userID"`
	jwt.RegisteredClaims
}

// GenerateJWT signs an HS256 session token for the user.
func GenerateJWT(userID int64, secret string) (string, error) {
	now := time.Now()
	claims := &AppClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateJWT checks the signature, the issuer and the expiry of a session
// token and returns its claims.
func ValidateJWT(tokenString, secret string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AppClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
