package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware guards routes by scope.
type Middleware struct {
	svc *Service
	log *zap.Logger
}

// NewMiddleware creates a Middleware. When the service has no secret
// configured, every request passes and a warning is logged once: dev
// mode, never appropriate for a reachable deployment.
func NewMiddleware(svc *Service, log *zap.Logger) *Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	if !svc.Enabled() {
		log.Warn("no auth secret configured, API authentication is disabled")
	}
	return &Middleware{svc: svc, log: log}
}

// Require returns middleware rejecting requests whose bearer token is
// missing, invalid (401) or under-scoped (403).
func (m *Middleware) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.svc.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := m.svc.Validate(token)
			if err != nil {
				m.log.Debug("rejected token", zap.Error(err))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if !Allows(claims.Scope, scope) {
				http.Error(w, "insufficient scope", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
