package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-ead/internal/rbac"
)

func sign(t *testing.T, secret string, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &c).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTMiddleware(t *testing.T) {
	v := NewVerifier("k")
	var sub, role string
	h := JWTMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = SubjectFromContext(r.Context())
		role = rbac.RoleFromContext(r.Context())
	}))

	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + sign(t, "k", Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{Subject: "ana", ExpiresAt: exp}}), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong key", "Bearer " + sign(t, "other", Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{Subject: "ana", ExpiresAt: exp}}), http.StatusUnauthorized},
		{"no subject", "Bearer " + sign(t, "k", Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}), http.StatusUnauthorized},
		{"no expiry", "Bearer " + sign(t, "k", Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{Subject: "ana"}}), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, "k", Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{Subject: "ana",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}}), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub, role = "", ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "ana", sub)
				assert.Equal(t, "student", role)
			}
		})
	}
}
