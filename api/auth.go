package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/calctra/resmatch/x/matching/types"
)

const (
	// MinSecretLength is the shortest accepted HMAC secret
	MinSecretLength = 32

	tokenIssuer = "resmatch-api"
)

// AuthService issues and validates caller tokens
type AuthService struct {
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(jwtSecret []byte, ttl time.Duration) *AuthService {
	return &AuthService{
		jwtSecret: jwtSecret,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Claims represents JWT claims. The subject is the caller identity.
type Claims struct {
	jwt.RegisteredClaims
}

// Identity returns the caller identity carried by the token
func (c *Claims) Identity() types.Identity {
	return types.Identity(c.Subject)
}

// GenerateToken issues a token proving the bearer acts as identity
func (as *AuthService) GenerateToken(identity types.Identity) (string, error) {
	if err := identity.Validate("identity"); err != nil {
		return "", err
	}

	now := as.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func (as *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return as.jwtSecret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(as.now),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Identity().Empty() {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}
