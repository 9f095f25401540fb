package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pratik-mahalle/muscleai/internal/auth"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
	"github.com/pratik-mahalle/muscleai/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "userID"
	// UserEmailKey is the context key for user email
	UserEmailKey ContextKey = "email"
	// UserIDHeader carries the caller identity from a trusted auth proxy
	UserIDHeader = "X-User-ID"
)

// AuthOptions selects how callers are identified
type AuthOptions struct {
	JWTSecret string
	// TrustUserHeader accepts X-User-ID as the caller identity.
	TrustUserHeader bool
}

type identity struct {
	userID string
	email  string
}

// resolve reads the caller from the bearer token, the accessToken cookie or,
// when trusted, the X-User-ID header. ok is false when no credential was sent.
func resolve(r *http.Request, opts AuthOptions) (id identity, ok bool, err error) {
	var tokenStr string
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenStr = strings.TrimSpace(parts[1])
		}
	} else if cookie, cookieErr := r.Cookie("accessToken"); cookieErr == nil {
		tokenStr = cookie.Value
	}

	if tokenStr != "" {
		claims, err := auth.ParseClaims(tokenStr, opts.JWTSecret)
		if err != nil {
			return identity{}, true, err
		}
		return identity{userID: claims.UserID(), email: claims.Email}, true, nil
	}

	if opts.TrustUserHeader {
		if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
			return identity{userID: userID}, true, nil
		}
	}

	return identity{}, false, nil
}

func withIdentity(w http.ResponseWriter, r *http.Request, id identity) *http.Request {
	ctx := context.WithValue(r.Context(), UserIDKey, id.userID)
	if id.email != "" {
		ctx = context.WithValue(ctx, UserEmailKey, id.email)
	}

	AddLogField(w, "user_id", id.userID)

	return r.WithContext(ctx)
}

// AuthMiddleware rejects requests without a valid caller identity
func AuthMiddleware(opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok, err := resolve(r, opts)
			if !ok {
				utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
				return
			}
			if err != nil {
				utils.WriteError(w, errors.Unauthorized("Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, withIdentity(w, r, id))
		})
	}
}

// OptionalAuthMiddleware is like AuthMiddleware but lets anonymous requests through.
// A token that fails verification is treated as absent.
func OptionalAuthMiddleware(opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok, err := resolve(r, opts)
			if ok && err == nil {
				r = withIdentity(w, r, id)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID extracts the user ID from the request context
func GetUserID(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// GetUserEmail extracts the user email from the request context
func GetUserEmail(r *http.Request) (string, bool) {
	email, ok := r.Context().Value(UserEmailKey).(string)
	return email, ok
}
