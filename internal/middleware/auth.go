package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
)

type ctxKey int

const tenantKey ctxKey = iota

// TokenVerifier é o subconjunto de *auth.Client usado para validar ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// RequireCronSecret aceita só Authorization: Bearer <secret>.
func RequireCronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := bearer(r)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				log.Printf("🚫 Cron sem autorização de %s", r.RemoteAddr)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TenantAuth identifica a clínica pelo ID token do Firebase; o uid é o tenant.
type TenantAuth struct {
	verifier TokenVerifier
	disabled bool
}

func NewTenantAuth(verifier TokenVerifier) *TenantAuth {
	return &TenantAuth{verifier: verifier}
}

// NewInsecureTenantAuth confia no header X-User-ID. Só para desenvolvimento.
func NewInsecureTenantAuth() *TenantAuth {
	return &TenantAuth{disabled: true}
}

func (ta *TenantAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tenantID string

		if ta.disabled {
			tenantID = strings.TrimSpace(r.Header.Get("X-User-ID"))
		} else if token := bearer(r); token != "" && ta.verifier != nil {
			t, err := ta.verifier.VerifyIDToken(r.Context(), token)
			if err != nil {
				log.Printf("🚫 ID token inválido: %v", err)
			} else {
				tenantID = t.UID
			}
		}

		if tenantID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenantID)))
	})
}

func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

func TenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantKey).(string)
	return v
}
