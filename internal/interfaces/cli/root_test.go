package cli_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/interfaces/cli"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

// execute corre el comando raíz con args y devuelve stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// isolatedEnv evita que un .env del directorio de trabajo afecte al test.
func isolatedEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("APP_ENV", "test")
	t.Setenv("REMOTE_BACKEND", "memory")
	return filepath.Join(dir, "terminal.db")
}

func decodeData(t *testing.T, raw string, dst any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &resp), "la salida debe ser JSON: %s", raw)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

// ──────────────────────────────────────────────────────────────────────────────
// Estructura de comandos
// ──────────────────────────────────────────────────────────────────────────────

func TestRootCommand(t *testing.T) {
	cmd := cli.NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "hkdsync", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := cli.NewRootCommand()
	for _, name := range []string{"serve", "login", "logout", "whoami", "pull", "drain", "status", "seed"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "debe existir el comando %s", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := cli.NewRootCommand()

	flags := map[string]string{"verbose": "false", "format": "text", "db": "", "remote": ""}
	for name, def := range flags {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, "flag %s", name)
		assert.Equal(t, def, f.DefValue)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestStatusCommandFlags(t *testing.T) {
	status, _, err := cli.NewRootCommand().Find([]string{"status"})
	require.NoError(t, err)
	assert.NotNil(t, status.Flags().Lookup("unit"))
}

func TestFormatoInvalido(t *testing.T) {
	isolatedEnv(t)
	_, err := execute(t, "whoami", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "formato inválido")
}

// ──────────────────────────────────────────────────────────────────────────────
// Sesión entre procesos
// ──────────────────────────────────────────────────────────────────────────────

func TestLoginAdmin_WhoamiEnOtraEjecucion(t *testing.T) {
	db := isolatedEnv(t)

	out, err := execute(t, "login", "admin", "admin", "--db", db, "--format", "json")
	require.NoError(t, err)
	var login struct {
		Token   string `json:"token"`
		Session struct {
			Role           string `json:"role"`
			BusinessUnitID string `json:"business_unit_id"`
		} `json:"session"`
	}
	decodeData(t, out, &login)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, entity.RoleAdmin, login.Session.Role)

	out, err = execute(t, "whoami", "--db", db, "--format", "json")
	require.NoError(t, err)
	var who struct {
		Role           string `json:"role"`
		BusinessUnitID string `json:"business_unit_id"`
	}
	decodeData(t, out, &who)
	assert.Equal(t, entity.RoleAdmin, who.Role)
	assert.Equal(t, login.Session.BusinessUnitID, who.BusinessUnitID, "la sesión persiste entre ejecuciones")

	_, err = execute(t, "logout", "--db", db)
	require.NoError(t, err)

	_, err = execute(t, "whoami", "--db", db)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, cli.ExitAuth, cli.ExitCode(err))
}

func TestLoginCredencialInvalida(t *testing.T) {
	db := isolatedEnv(t)

	_, err := execute(t, "login", "admin", "otra", "--db", db)
	require.Error(t, err)
	assert.Equal(t, cli.ExitAuth, cli.ExitCode(err))
}

func TestStatusSinSesion(t *testing.T) {
	db := isolatedEnv(t)

	_, err := execute(t, "status", "--db", db)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestStatusTexto(t *testing.T) {
	db := isolatedEnv(t)
	_, err := execute(t, "login", "admin", "admin", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "status", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "conectado:   true")
	assert.Contains(t, out, "pendientes:  0")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, cli.ExitSuccess, cli.ExitCode(nil))
	assert.Equal(t, cli.ExitUnavailable, cli.ExitCode(domain.ErrRemoteUnavailable))
	assert.Equal(t, cli.ExitUnavailable, cli.ExitCode(domain.ErrStorageUnavailable))
	assert.Equal(t, cli.ExitAuth, cli.ExitCode(domain.ErrSessionExpired))
	assert.Equal(t, cli.ExitFailure, cli.ExitCode(domain.ErrNotFound))
}
