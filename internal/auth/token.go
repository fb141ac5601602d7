package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ProjectRole is the role embedded in a project API key. It identifies the
// calling application, not the admin; admin roles come from the allowlist.
type ProjectRole string

const (
	ProjectRoleAnon    ProjectRole = "anon"
	ProjectRoleService ProjectRole = "service_role"
)

// TokenManager issues and validates project API keys.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes the API key payload.
type Claims struct {
	Role ProjectRole `json:"role"`
	jwt.RegisteredClaims
}

// IssueKey signs a key for role. A zero ttl issues a key without expiry.
func (tm *TokenManager) IssueKey(role ProjectRole, ttl time.Duration) (string, error) {
	if role != ProjectRoleAnon && role != ProjectRoleService {
		return "", errors.New("unsupported key role")
	}
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "salon-admin-gate",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

// ParseKey validates and returns claims.
func (tm *TokenManager) ParseKey(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	switch claims.Role {
	case ProjectRoleAnon, ProjectRoleService:
		return claims, nil
	default:
		return nil, errors.New("unsupported key role")
	}
}
