// Package middleware holds the authentication layer in front of job routes.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type ctxKey struct{}

// ErrNoUser is returned by GetUserID for a request that never passed RequireUser.
var ErrNoUser = errors.New("no authenticated user on request")

// Authenticator resolves a bearer token to the job owner it was issued for.
type Authenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

// AuthenticatorFunc lets a plain function act as an Authenticator.
type AuthenticatorFunc func(token string) (uuid.UUID, error)

func (f AuthenticatorFunc) Authenticate(token string) (uuid.UUID, error) { return f(token) }

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="cadlift"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}` + "\n"))
}

// bearerToken reads "Authorization: Bearer <token>". The scheme is
// case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != "" && !strings.ContainsAny(token, " \t")
}

// RequireUser rejects requests without a valid bearer token and stores the
// token's user on the request context.
func RequireUser(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			userID, err := auth.Authenticate(token)
			if err != nil || userID == uuid.Nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// GetUserID returns the user stored by RequireUser.
func GetUserID(r *http.Request) (uuid.UUID, error) {
	if id, ok := r.Context().Value(ctxKey{}).(uuid.UUID); ok {
		return id, nil
	}
	return uuid.Nil, ErrNoUser
}
