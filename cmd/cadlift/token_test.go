package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vartmor/CADLift-sub001/internal/config"
	"github.com/Vartmor/CADLift-sub001/internal/server"
)

func TestMintToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "")
	user := uuid.New()

	token, got, err := mintToken(user.String())
	require.NoError(t, err)
	assert.Equal(t, user, got)

	jwtConfig, err := config.NewJWTConfig()
	require.NoError(t, err)
	claims, err := server.NewJWTService(jwtConfig).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user, claims.UserID)

	_, generated, err := mintToken("")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, generated)
}

func TestMintToken_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	_, _, err := mintToken("not-a-uuid")
	assert.ErrorContains(t, err, "invalid --user")

	t.Setenv("JWT_SECRET", "")
	_, _, err = mintToken("")
	assert.ErrorContains(t, err, "JWT_SECRET")
}
