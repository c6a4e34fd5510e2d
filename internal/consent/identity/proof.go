package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "consentd/pkg/domain-errors"
)

// ProofClaims is the payload of an email-proof token issued after the
// visitor confirmed their address.
type ProofClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ProofVerifier decides whether a submitted email counts as verified.
type ProofVerifier struct {
	secret   []byte
	required bool
}

// NewProofVerifier builds a verifier. When required is false any
// syntactically valid email counts as verified.
func NewProofVerifier(secret string, required bool) *ProofVerifier {
	return &ProofVerifier{secret: []byte(secret), required: required}
}

// Verified reports whether email may be used as an identity signal.
func (v *ProofVerifier) Verified(email, proof string, now time.Time) bool {
	if NormalizeEmail(email) == "" {
		return false
	}
	if !v.required {
		return true
	}
	if proof == "" {
		return false
	}
	claims, err := v.Parse(proof, now)
	if err != nil {
		return false
	}
	return NormalizeEmail(claims.Email) == NormalizeEmail(email)
}

// Issue signs a proof token for email. The confirmation flow that calls it
// lives outside this service; it is exposed for tooling and tests.
func (v *ProofVerifier) Issue(email string, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ProofClaims{
		Email: NormalizeEmail(email),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(v.secret)
}

// Parse validates a proof token's signature and expiry.
func (v *ProofVerifier) Parse(proof string, now time.Time) (*ProofClaims, error) {
	parsed, err := jwt.ParseWithClaims(proof, &ProofClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "email proof has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email proof")
	}
	claims, ok := parsed.Claims.(*ProofClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email proof")
	}
	return claims, nil
}
