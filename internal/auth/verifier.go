package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var errSubjectMismatch = errors.New("id_token subject does not match identifier")

// Verifier checks HS256 id_tokens handed over by a third-party login broker.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses idToken and checks its subject equals identifier.
func (v *Verifier) Verify(idToken, identifier string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(idToken, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("parse id_token: %w", err)
	}
	if claims.Subject != identifier {
		return errSubjectMismatch
	}
	return nil
}
