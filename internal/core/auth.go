package core

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"carboniq/pkg/models"
)

// TokenVerifier checks bearer tokens issued by the identity service. The
// engine never authenticates users itself; it only verifies signatures.
type TokenVerifier interface {
	ValidateToken(tokenString string) (*models.Principal, error)
	// IssueToken signs a token; used by operators and tests.
	IssueToken(principal models.Principal, ttl time.Duration) (string, error)
}

type jwtVerifier struct {
	secret []byte
	issuer string
}

// JWT claims structure
type jwtClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewTokenVerifier creates an HS256 verifier
func NewTokenVerifier(secret, issuer string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret), issuer: issuer}
}

// ValidateToken verifies a JWT token and returns its principal
func (v *jwtVerifier) ValidateToken(tokenString string) (*models.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, models.ErrInvalidToken
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", models.ErrInvalidToken)
	}

	principal := &models.Principal{UserID: claims.UserID, Role: models.UserRole(claims.Role)}
	if principal.UserID == "" || !principal.Role.Valid() {
		return nil, fmt.Errorf("%w: missing user_id or role", models.ErrInvalidToken)
	}
	return principal, nil
}

// IssueToken creates a signed token for principal
func (v *jwtVerifier) IssueToken(principal models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &jwtClaims{
		UserID: principal.UserID,
		Role:   string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
