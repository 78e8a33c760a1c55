package planner

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"SmartGrocer/internal/session"
	"SmartGrocer/pkg/kit"
)

type ctxKey string

const sessionKey ctxKey = "session"

const (
	tokenCookie = "session_token"
	tokenHeader = "X-Session-Token"
)

func SessionFrom(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok
}

// WithSession resolves the caller's session from a bearer token or
// cookie, creating a fresh session when the token is absent, expired or
// references a purged session. New tokens are exposed via both a
// cookie and the X-Session-Token response header.
func WithSession(mgr *session.Manager, tokens *session.TokenMaker, ttl time.Duration, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess := resolve(mgr, tokens, r); sess != nil {
				next.ServeHTTP(w, r.WithContext(withSession(r, sess)))
				return
			}

			sess := mgr.Create()
			token, err := tokens.New(sess.ID, ttl)
			if err != nil {
				if log != nil {
					log.Error("mint session token failed", zap.Error(err))
				}
				kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     tokenCookie,
				Value:    token,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(tokenHeader, token)

			next.ServeHTTP(w, r.WithContext(withSession(r, sess)))
		})
	}
}

func resolve(mgr *session.Manager, tokens *session.TokenMaker, r *http.Request) *session.Session {
	raw := bearerToken(r)
	if raw == "" {
		if c, err := r.Cookie(tokenCookie); err == nil {
			raw = c.Value
		}
	}
	if raw == "" {
		return nil
	}

	claims, err := tokens.Parse(raw)
	if err != nil || claims.SessionID == "" {
		return nil
	}

	sess, ok := mgr.Get(claims.SessionID)
	if !ok {
		return nil
	}
	return sess
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authz, "Bearer ")
}

func withSession(r *http.Request, s *session.Session) context.Context {
	return context.WithValue(r.Context(), sessionKey, s)
}
