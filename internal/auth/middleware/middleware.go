package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mind-engage/mindengage-ead/internal/rbac"
)

var ErrNoSubject = errors.New("token has no subject")

// Verifier checks bearer tokens minted by the identity provider.
type Verifier struct{ hmac []byte }

func NewVerifier(secret string) *Verifier { return &Verifier{hmac: []byte(secret)} }

type Claims struct {
	Role string `json:"role"` // "student", "teacher" or "admin"
	jwt.RegisteredClaims
}

type subjectKey struct{}

// WithSubject stores the authenticated student or staff id on ctx.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

// SubjectFromContext returns the id set by JWTMiddleware, or "".
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}

func (v *Verifier) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	c, _ := token.Claims.(*Claims)
	if c == nil || c.Subject == "" {
		return nil, ErrNoSubject
	}
	return c, nil
}

// JWTMiddleware rejects requests without a valid bearer token and stores the
// subject and role on the request context.
func JWTMiddleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := v.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := WithSubject(r.Context(), c.Subject)
			ctx = rbac.WithRole(ctx, c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
