package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// WebhookAuth gates the provider callback endpoints behind a fixed shared
// secret carried in the Authorization header. The comparison happens before
// any handler runs, so an unauthenticated webhook can never cause a state
// change. Rejections are logged but the response body stays generic.
func WebhookAuth(secret string, onReject func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			credential := r.Header.Get("Authorization")
			if credential == "" || subtle.ConstantTimeCompare([]byte(credential), []byte(secret)) != 1 {
				slog.Warn("rejected webhook with missing or invalid credential", "url", r.URL.Path, "client_ip", clientIp(r))
				if onReject != nil {
					onReject()
				}
				http.Error(w, "invalid webhook credentials", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(handler)
	}
}
