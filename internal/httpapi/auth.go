package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"clinicq/ehr-service/internal/models"
	"clinicq/ehr-service/internal/store"
)

type authContextKey struct{}

type authInfo struct {
	Session models.Session
}

func AuthMiddleware(auth store.AuthStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := auth.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, authInfo{Session: session})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authFromContext(ctx context.Context) (models.Session, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return models.Session{}, false
	}
	info, ok := value.(authInfo)
	if !ok {
		return models.Session{}, false
	}
	return info.Session, true
}

func professionalFromContext(ctx context.Context) string {
	session, ok := authFromContext(ctx)
	if !ok {
		return ""
	}
	return session.ProfessionalID
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics", "/api/login":
		return true
	}
	// SockJS connections carry the session in the URL and are checked on
	// connect, not per request.
	if strings.HasPrefix(r.URL.Path, "/realtime") {
		return true
	}
	return r.Method == http.MethodOptions
}
