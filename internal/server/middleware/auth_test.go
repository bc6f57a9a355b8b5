package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTable(tokens map[string]uuid.UUID) Authenticator {
	return AuthenticatorFunc(func(token string) (uuid.UUID, error) {
		id, ok := tokens[token]
		if !ok {
			return uuid.Nil, errors.New("invalid token")
		}
		return id, nil
	})
}

func TestRequireUser(t *testing.T) {
	userID := uuid.New()
	auth := tokenTable(map[string]uuid.UUID{
		"good":   userID,
		"nil-id": uuid.Nil,
	})

	var seen uuid.UUID
	handler := RequireUser(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserID(r)
		require.NoError(t, err)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer good", http.StatusNoContent},
		{"lowercase scheme", "bearer good", http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"no token", "Bearer", http.StatusUnauthorized},
		{"extra parts", "Bearer good extra", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"token without user", "Bearer nil-id", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = uuid.Nil
			req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, userID, seen)
			} else {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
				assert.Equal(t, uuid.Nil, seen, "handler not reached")
			}
		})
	}
}

func TestGetUserID_Missing(t *testing.T) {
	_, err := GetUserID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoUser)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	id := uuid.New()
	got, err := GetUserID(req.WithContext(WithUserID(req.Context(), id)))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
