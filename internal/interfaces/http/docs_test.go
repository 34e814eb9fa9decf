package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"

	apphttp "github.com/jhoicas/hkd-sync/internal/interfaces/http"
)

var pathParam = regexp.MustCompile(`:([a-zA-Z_]+)`)

// TestDocs_CubreTodasLasRutasDeLaAPI cada ruta /api registrada aparece en la especificación
// con su método.
func TestDocs_CubreTodasLasRutasDeLaAPI(t *testing.T) {
	app, _ := buildTerminal(t)

	raw, err := swag.ReadDoc()
	require.NoError(t, err)
	var spec struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &spec))

	checked := 0
	for _, r := range app.GetRoutes(true) {
		if !strings.HasPrefix(r.Path, "/api") || r.Method == fiber.MethodHead {
			continue
		}
		path := pathParam.ReplaceAllString(strings.TrimSuffix(r.Path, "/"), "{$1}")
		ops, ok := spec.Paths[path]
		if !assert.True(t, ok, "ruta sin documentar: %s", path) {
			continue
		}
		_, ok = ops[strings.ToLower(r.Method)]
		assert.True(t, ok, "método sin documentar: %s %s", r.Method, path)
		checked++
	}
	assert.Equal(t, 21, checked, "rutas /api esperadas")
}

func TestDocs_SirveSwaggerUI(t *testing.T) {
	app := fiber.New()
	cleanup, err := apphttp.Docs(app, "docs")
	require.NoError(t, err)
	t.Cleanup(cleanup)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/docs", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "HKD Sync API")
}
