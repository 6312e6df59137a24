package auth

import (
	"errors"
	"fmt"
	"time"

	"asset-custody-api/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims structure. The subject is the
// principal id.
type Claims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT operations
type JWTManager struct {
	secret   string
	issuer   string
	audience string
	expiry   time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret, issuer, audience string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
	}
}

// ValidateConfig checks that the manager can issue and verify tokens
func (j *JWTManager) ValidateConfig() error {
	if len(j.secret) < 32 {
		return errors.New("JWT secret must be at least 32 characters long")
	}
	if j.issuer == "" {
		return errors.New("JWT issuer cannot be empty")
	}
	if j.audience == "" {
		return errors.New("JWT audience cannot be empty")
	}
	if j.expiry <= 0 {
		return errors.New("JWT expiry must be positive")
	}
	return nil
}

// GenerateToken creates a new JWT token for the principal
func (j *JWTManager) GenerateToken(p models.Principal) (string, error) {
	if p.ID == "" {
		return "", errors.New("principal id is required")
	}
	if !models.IsValidRole(string(p.Role)) {
		return "", fmt.Errorf("invalid role %q", p.Role)
	}

	now := time.Now()
	claims := &Claims{
		Role:  string(p.Role),
		Name:  p.DisplayName,
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Audience:  []string{j.audience},
			Subject:   p.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secret))
}

// ValidateToken validates and parses a JWT token
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.secret), nil
	}, jwt.WithIssuer(j.issuer), jwt.WithAudience(j.audience))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// Principal returns the caller identity carried by the claims
func (c *Claims) Principal() models.Principal {
	return models.Principal{
		ID:          c.Subject,
		Role:        models.Role(c.Role),
		DisplayName: c.Name,
		Email:       c.Email,
	}
}

// HasRole checks if the user has any of the required roles
func (c *Claims) HasRole(requiredRoles ...string) bool {
	for _, required := range requiredRoles {
		if c.Role == required {
			return true
		}
	}
	return false
}

// IsExpiringSoon reports whether the token expires within d
func (c *Claims) IsExpiringSoon(d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Until(c.ExpiresAt.Time) <= d
}
