package http

import (
	"fmt"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/swaggo/swag"

	_ "github.com/jhoicas/hkd-sync/docs" // registra la especificación generada
)

// Docs monta Swagger UI en /<path> con la especificación registrada por el paquete docs.
// La especificación se vuelca a un archivo temporal; cleanup lo elimina.
func Docs(app *fiber.App, path string) (cleanup func(), err error) {
	doc, err := swag.ReadDoc()
	if err != nil {
		return nil, fmt.Errorf("leer especificación: %w", err)
	}
	f, err := os.CreateTemp("", "hkdsync-swagger-*.json")
	if err != nil {
		return nil, fmt.Errorf("volcar especificación: %w", err)
	}
	cleanup = func() { _ = os.Remove(f.Name()) }
	if _, err := f.WriteString(doc); err != nil {
		_ = f.Close()
		cleanup()
		return nil, fmt.Errorf("volcar especificación: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return nil, fmt.Errorf("volcar especificación: %w", err)
	}

	// Swagger UI en local: http://localhost:<port>/<path>
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: f.Name(),
		Path:     path,
		Title:    "HKD Sync API",
	}))
	return cleanup, nil
}
