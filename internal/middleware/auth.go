package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// BearerToken returns a middleware that rejects requests whose Authorization
// header does not carry token. Notify sends the token configured for the
// service callback as "Bearer <token>".
func BearerToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearer(r.Header.Get("Authorization"))
			if !ok || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				Logger(r.Context(), logger).Warn("callback rejected",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"has_token", ok,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="notify-callbacks"`)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing bearer token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeError writes the receiver's JSON error envelope
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
