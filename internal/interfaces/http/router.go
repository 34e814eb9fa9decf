package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hkd-sync/internal/application/auth"
	appsync "github.com/jhoicas/hkd-sync/internal/application/sync"
	"github.com/jhoicas/hkd-sync/internal/application/usecase"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Resolver   *auth.Resolver
	CatalogUC  *usecase.CatalogUseCase
	UnitUC     *usecase.UnitUseCase
	Sync       *appsync.Orchestrator
	SessionTTL time.Duration
}

// Router registra las rutas de la API local consumida por la UI del terminal.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "remote_connected": deps.Sync.Connected()})
	})

	api := app.Group("/api")

	// Auth (público)
	authHandler := NewAuthHandler(deps.Resolver, deps.SessionTTL)
	authGroup := api.Group("/auth")
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authHandler.Logout)

	// Rutas protegidas: sesión vigente y cualquier rol
	secured := []fiber.Handler{SessionMiddleware(deps.Resolver), RequireRole(entity.RoleAdmin, entity.RoleOperator)}
	authGroup.Get("/session", append(secured, authHandler.Session)...)

	catalog := NewCatalogHandler(deps.CatalogUC)
	products := api.Group("/products", secured...)
	products.Get("/", catalog.ListProducts)
	products.Put("/", catalog.SaveProduct)
	products.Get("/:id", catalog.GetProduct)
	products.Put("/:id", catalog.SaveProduct)
	products.Delete("/:id", catalog.DeleteProduct)

	categories := api.Group("/categories", secured...)
	categories.Get("/", catalog.ListCategories)
	categories.Put("/", catalog.SaveCategory)
	categories.Put("/:id", catalog.SaveCategory)
	categories.Delete("/:id", catalog.DeleteCategory)

	invoiceHandler := NewInvoiceHandler(deps.CatalogUC)
	invoices := api.Group("/invoices", secured...)
	invoices.Get("/", invoiceHandler.List)
	invoices.Post("/", invoiceHandler.Create)

	syncHandler := NewSyncHandler(deps.Sync, deps.Resolver.SessionContext())
	syncGroup := api.Group("/sync", secured...)
	syncGroup.Get("/status", syncHandler.Status)
	syncGroup.Post("/drain", syncHandler.Drain)
	syncGroup.Post("/pull", syncHandler.Pull)
	syncGroup.Get("/dead-letters", syncHandler.DeadLetters)

	// El cambio de secreto va antes del grupo de admin: un operador cambia el suyo.
	api.Put("/units/:id/secret", append(secured, authHandler.ChangeSecret)...)

	// Unidades (solo admin)
	unitHandler := NewUnitHandler(deps.UnitUC)
	units := api.Group("/units", SessionMiddleware(deps.Resolver), RequireRole(entity.RoleAdmin))
	units.Get("/", unitHandler.List)
	units.Post("/", unitHandler.Register)
}
