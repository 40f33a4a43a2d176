package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(TenantID(r.Context())))
})

func TestRequireCronSecret(t *testing.T) {
	h := RequireCronSecret("s3cr3t")(okHandler)

	cases := []struct {
		header string
		want   int
	}{
		{"Bearer s3cr3t", http.StatusOK},
		{"bearer s3cr3t", http.StatusOK},
		{"Bearer errado", http.StatusUnauthorized},
		{"s3cr3t", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/cron", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, tc.header)
		if tc.want == http.StatusUnauthorized {
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
		}
	}
}

func TestRequireCronSecretEmptySecretRejectsAll(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cron", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	RequireCronSecret("")(okHandler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, token string) (*auth.Token, error) {
	if token == "valido" {
		return &auth.Token{UID: "clinica-1"}, nil
	}
	return nil, errors.New("token expirado")
}

func TestTenantAuthFirebase(t *testing.T) {
	h := NewTenantAuth(fakeVerifier{}).Middleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer valido")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clinica-1", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer invalido")
	req.Header.Set("X-User-ID", "clinica-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTenantAuthInsecure(t *testing.T) {
	h := NewInsecureTenantAuth().Middleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("X-User-ID", "dev")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "dev", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
