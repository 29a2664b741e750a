package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role the service issues.
const RoleAdmin = "admin"

// ErrInvalidToken wraps every validation failure.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and validates admin session tokens.
type TokenManager interface {
	Generate(subject string, role string) (token string, expiresAt time.Time, err error)
	Validate(tokenString string) (*Claims, error)
	TTL() time.Duration
}

type jwtManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	issuer        string
}

// Claims is the JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewTokenManager returns an HS256 token manager.
func NewTokenManager(secretKey string, tokenDuration time.Duration, issuer string) (TokenManager, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if tokenDuration <= 0 {
		return nil, fmt.Errorf("token duration must be positive, got %s", tokenDuration)
	}
	return &jwtManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		issuer:        issuer,
	}, nil
}

func (m *jwtManager) TTL() time.Duration { return m.tokenDuration }

// Generate signs a token for subject valid for the configured duration.
func (m *jwtManager) Generate(subject string, role string) (string, time.Time, error) {
	issuedAt := time.Now()
	expirationTime := issuedAt.Add(m.tokenDuration)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    m.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expirationTime, nil
}

// Validate parses tokenString and returns its claims.
func (m *jwtManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
