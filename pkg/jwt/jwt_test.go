package jwt_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/hkd-sync/pkg/jwt"
)

const testSecret = "test-secret-key-for-unit-tests"

func TestGenerateAndParse(t *testing.T) {
	login := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tok, err := pkgjwt.Generate(testSecret, "hkd-sync-test", "u1", "u1", "operator", login, 24*time.Hour)
	require.NoError(t, err)

	claims, err := pkgjwt.Parse(testSecret, tok, login.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.BusinessUnitID)
	assert.Equal(t, "operator", claims.Role)
	assert.True(t, login.Equal(claims.LoginTime()))
}

func TestParse_Vencido(t *testing.T) {
	login := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tok, err := pkgjwt.Generate(testSecret, "hkd-sync-test", "u1", "u1", "operator", login, 24*time.Hour)
	require.NoError(t, err)

	_, err = pkgjwt.Parse(testSecret, tok, login.Add(25*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgjwt.ErrExpired), "token vencido debe reportar ErrExpired")
}

func TestParse_SecretIncorrecto(t *testing.T) {
	login := time.Now()
	tok, err := pkgjwt.Generate(testSecret, "hkd-sync-test", "u1", "u1", "admin", login, time.Hour)
	require.NoError(t, err)

	_, err = pkgjwt.Parse("otro-secret-completamente-distinto", tok, login)
	assert.Error(t, err)
}

func TestGenerate_SecretVacio(t *testing.T) {
	_, err := pkgjwt.Generate("", "x", "u1", "u1", "admin", time.Now(), time.Hour)
	assert.Error(t, err)
}
