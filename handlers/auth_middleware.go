package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"artisanat/apperr"
	"artisanat/auth"
	"artisanat/logging"
	"artisanat/models"
	"artisanat/storage"
)

const authCookie = "auth_token"

type userKey struct{}

func withUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// currentUser returns the signed-in user set by authenticate.
func currentUser(r *http.Request) (models.User, bool) {
	u, ok := r.Context().Value(userKey{}).(models.User)
	return u, ok
}

// bearerToken reads the token from the Authorization header, then from the
// auth cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(authCookie); err == nil {
		return c.Value
	}
	return ""
}

// userFromToken checks the signature, the server-side session and the account
// state behind a token.
func (d *Deps) userFromToken(ctx context.Context, token string) (models.User, error) {
	claims, err := d.Tokens.Parse(token)
	if err != nil {
		return models.User{}, err
	}
	uid, err := claims.UserID()
	if err != nil {
		return models.User{}, auth.ErrInvalidToken
	}
	sess, err := d.Store.GetSessionByHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, auth.ErrInvalidToken
		}
		return models.User{}, err
	}
	if sess.UserID != uid || !sess.ExpiresAt.After(d.now()) {
		return models.User{}, auth.ErrInvalidToken
	}
	u, err := d.Store.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, auth.ErrInvalidToken
		}
		return models.User{}, err
	}
	if !u.AccountStatus {
		return models.User{}, auth.ErrInvalidToken
	}
	return u, nil
}

// authenticate attaches the signed-in user, if any, to the request. Requests
// with a missing or stale token go through anonymously.
func (d *Deps) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := d.userFromToken(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				d.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := withUser(r.Context(), u)
		ctx = logging.WithLogger(ctx, logging.FromContext(ctx, d.Log).With(zap.Int64("user_id", u.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUser(r); !ok {
			writeJSON(w, http.StatusUnauthorized, apperr.Unauthorized("login required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, apperr.Unauthorized("login required"))
			return
		}
		if !u.IsStaff() {
			writeJSON(w, http.StatusForbidden, apperr.Forbidden("staff only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
