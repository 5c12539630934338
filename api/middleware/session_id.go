package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/veloshop/storefront-backend/pkg/logger"
)

const (
	sessionIDHeader = "X-Session-Id"
	sessionIDCookie = "vs_session"
)

// SessionID resolves the anonymous cart session id from the request header
// or cookie, minting one when the client has neither. The id is echoed back
// on both channels so browser and non-browser clients can persist it.
func SessionID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(sessionIDHeader))
			if sessionID == "" {
				if cookie, err := r.Cookie(sessionIDCookie); err == nil {
					sessionID = strings.TrimSpace(cookie.Value)
				}
			}
			if _, err := uuid.Parse(sessionID); err != nil {
				sessionID = uuid.NewString()
			}

			w.Header().Set(sessionIDHeader, sessionID)
			http.SetCookie(w, &http.Cookie{
				Name:     sessionIDCookie,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
