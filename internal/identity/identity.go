// Package identity carries the bearer credential: who the caller is, their
// role flags, and their reporting line, all read from the token's claims
// without re-querying the directory.
package identity

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoCredential = errors.New("no bearer credential")

type Claims struct {
	EmployeeID string `json:"eid"`
	FullName   string `json:"name"`
	ReportsTo  string `json:"mgr"`
	IsManager  bool   `json:"isManager"`
	IsHR       bool   `json:"isHr"`
	jwt.RegisteredClaims
}

// Identity is the resolved view of a credential held by a client instance.
type Identity struct {
	EmployeeID string
	FullName   string
	ReportsTo  string
	IsManager  bool
	IsHR       bool
	Token      string
}

func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Provider holds the credential for one client instance with an explicit
// acquire/current/clear lifecycle, instead of ambient global state.
type Provider struct {
	secret string

	mu      sync.RWMutex
	current *Identity
}

func NewProvider(secret string) *Provider {
	return &Provider{secret: secret}
}

// Acquire verifies the raw token and installs it as the current identity.
func (p *Provider) Acquire(token string) (Identity, error) {
	claims, err := ParseToken(p.secret, token)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{
		EmployeeID: claims.EmployeeID,
		FullName:   claims.FullName,
		ReportsTo:  claims.ReportsTo,
		IsManager:  claims.IsManager,
		IsHR:       claims.IsHR,
		Token:      token,
	}
	p.mu.Lock()
	p.current = &id
	p.mu.Unlock()
	return id, nil
}

// Current returns the installed identity, if any.
func (p *Provider) Current() (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return Identity{}, false
	}
	return *p.current, true
}

func (p *Provider) Clear() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}
