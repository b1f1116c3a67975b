package server

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/db"
	"github.com/DanikLP1/chunk-upload-service/internal/identifier"
)

const APIKeyHeader = "X-Api-Key"

var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9-]{16,64}$`)

// IdentityMiddleware resolves who is calling: a session cookie is issued to
// everyone, and an X-Api-Key header additionally authenticates a user.
func (s *Server) IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbe(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := identifier.WithSessionID(r.Context(), s.sessionID(w, r))

		if key := r.Header.Get(APIKeyHeader); key != "" {
			u, err := s.db.FindUserByAPIKey(ctx, key)
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, r, apperr.Unauthorized("invalid api key"))
				return
			}
			if err != nil {
				writeError(w, r, apperr.Internal(err, "lookup api key"))
				return
			}
			ctx = identifier.WithUserID(ctx, strconv.FormatUint(uint64(u.ID), 10))
			loggerFrom(r).Debug("auth.user", "user_id", u.ID)
		} else if s.opts.Identifier == "auth" && !s.opts.AllowAnonymous {
			writeError(w, r, apperr.Unauthorized(APIKeyHeader+" header required"))
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the caller's session id, issuing a cookie when the
// request has none.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.opts.SessionCookie); err == nil && sessionIDRe.MatchString(c.Value) {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func isProbe(path string) bool {
	return path == "/healthz" || path == "/readyz" || strings.HasPrefix(path, "/metrics")
}

// ownerFrom names the identity uploads are listed under.
func ownerFrom(ctx context.Context) string {
	if id := identifier.UserIDFrom(ctx); id != "" {
		return "user:" + id
	}
	return "session:" + identifier.SessionIDFrom(ctx)
}

// anonymousAuth keys uploads by user id when one is known and by session
// otherwise.
var anonymousAuth = identifier.IdentitySourceFunc(func(ctx context.Context) (string, error) {
	if id := identifier.UserIDFrom(ctx); id != "" {
		return id, nil
	}
	return identifier.SessionSource.ResolveIdentity(ctx)
})
