// Package authz identifies callers from bearer tokens and answers the role questions the case
// workflow asks.
package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dhportal/main_backend/cases"
)

// Role of a caller.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleStaff     Role = "staff"
	RoleApplicant Role = "applicant"
)

// Caller is an authenticated identity.
type Caller struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// Claims are the JWT claims carried by portal tokens.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenIssuer signs and verifies HS256 portal tokens.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Issue signs a token for caller valid for ttl.
func (ti *TokenIssuer) Issue(caller Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  caller.Name,
		Email: caller.Email,
		Role:  caller.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

// Parse validates a token and returns its caller.
func (ti *TokenIssuer) Parse(tokenStr string) (Caller, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Caller{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	switch claims.Role {
	case RoleAdmin, RoleStaff, RoleApplicant:
	default:
		return Caller{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return Caller{ID: claims.Subject, Name: claims.Name, Email: claims.Email, Role: claims.Role}, nil
}

// FromBearer extracts the token from an Authorization header value.
func FromBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

type callerKey struct{}

// WithCaller stores the caller on a request context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored by WithCaller.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// RoleAuthorizer answers permission questions from the caller's role alone.
type RoleAuthorizer struct{}

// Privileged callers may restore and permanently delete.
func (RoleAuthorizer) Privileged(c Caller) bool { return c.Role == RoleAdmin }

// Staff callers may create, list and soft-delete cases.
func (RoleAuthorizer) Staff(c Caller) bool { return c.Role == RoleAdmin || c.Role == RoleStaff }

// CanEvaluate reports whether c may advance, flag or resolve on cs. Staff may act on unassigned
// cases and on cases assigned to them by name.
func (a RoleAuthorizer) CanEvaluate(c Caller, cs cases.Case) bool {
	switch c.Role {
	case RoleAdmin:
		return true
	case RoleStaff:
		ev := strings.TrimSpace(cs.Evaluator)
		return ev == "" || strings.EqualFold(ev, strings.TrimSpace(c.Name))
	}
	return false
}

// Owns reports whether c is the applicant of cs.
func (RoleAuthorizer) Owns(c Caller, cs cases.Case) bool {
	return c.Role == RoleApplicant && c.Email != "" && strings.EqualFold(c.Email, cs.Email)
}
