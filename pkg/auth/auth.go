// Package auth gates the operator API with JWT bearer tokens. The token's
// role claim decides authorization: unauthenticated (no/invalid token) and
// permission-denied (valid token, wrong role) are deliberately distinct so
// callers know whether to fix credentials or fix permissions.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ecotrack-io/wastetrack/pkg/httpx"
)

// RoleAdmin is required for the backfill/recompute operations.
const RoleAdmin = "admin"

// Claims is the token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 bearer tokens.
type Authenticator struct {
	secret []byte
}

// New creates an authenticator with the shared signing secret.
func New(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

// Token mints a signed token for the subject with the given role and TTL.
// Used by operator tooling and tests.
func (a *Authenticator) Token(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// parse validates the Authorization header and returns the claims.
func (a *Authenticator) parse(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing Authorization header")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("malformed Authorization header")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Require returns middleware enforcing the role. Authorization is checked
// before the wrapped handler runs — and therefore before any store read.
func (a *Authenticator) Require(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.parse(r)
			if err != nil {
				httpx.RespondCode(w, httpx.CodeUnauthenticated, "authentication required")
				return
			}
			if claims.Role != role {
				httpx.RespondCode(w, httpx.CodePermissionDenied, fmt.Sprintf("%s role required", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
