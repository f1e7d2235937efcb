package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// AuthMiddlewareHandler guards the mutating session endpoints with the
// shared secret of the mobile session player app. The real identity
// provider lives outside this service; here we only check that the
// request comes from a known client.
type AuthMiddlewareHandler struct {
	appSecret    string
	allowedPaths map[string]bool
}

func NewAuthMiddlewareHandler(appSecret string) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		appSecret: appSecret,
		allowedPaths: map[string]bool{
			"/":        true,
			"/version": true,
			"/ping":    true,
		},
	}
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || h.allowedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authToken := r.Header.Get("Authorization")
			if authToken == "" || authToken != h.appSecret {
				log.Tracef("unauthorized request: [%s] %s", r.Method, r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
