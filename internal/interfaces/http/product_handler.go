package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hkd-sync/internal/application/dto"
	"github.com/jhoicas/hkd-sync/internal/application/usecase"
)

// CatalogHandler productos y categorías de la unidad de la sesión.
// El admin puede operar sobre otra unidad con ?unit_id=.
type CatalogHandler struct {
	uc *usecase.CatalogUseCase
}

// NewCatalogHandler construye el handler.
func NewCatalogHandler(uc *usecase.CatalogUseCase) *CatalogHandler {
	return &CatalogHandler{uc: uc}
}

func parsePage(c *fiber.Ctx) (dto.PageRequest, error) {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return page, err
	}
	page.Normalize()
	return page, nil
}

// ListProducts godoc
// @Summary      Listar productos
// @Description  Ordenados por nombre; q busca sin tildes ni mayúsculas.
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        q  query  string  false  "Texto a buscar en el nombre"
// @Param        limit  query  int  false  "Límite"  default(20)
// @Param        offset  query  int  false  "Offset"  default(0)
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      200   {object}  dto.ProductListResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/products [get]
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros de consulta inválidos"})
	}
	out, err := h.uc.ListProducts(c.UserContext(), page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetProduct godoc
// @Summary      Obtener producto
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del producto"
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      200   {object}  dto.ProductResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/products/{id} [get]
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	out, err := h.uc.GetProduct(c.UserContext(), c.Query("unit_id"), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// SaveProduct godoc
// @Summary      Crear o reemplazar producto
// @Description  Sin id crea uno nuevo. Queda local sin sincronizar y encolado hacia el remoto.
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  string  false  "ID del producto (vacío = nuevo)"
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Param        body  body  dto.SaveProductRequest  true  "Datos del producto"
// @Success      200   {object}  dto.ProductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/products [put]
// @Router       /api/products/{id} [put]
func (h *CatalogHandler) SaveProduct(c *fiber.Ctx) error {
	var in dto.SaveProductRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.SaveProduct(c.UserContext(), c.Query("unit_id"), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// DeleteProduct godoc
// @Summary      Eliminar producto
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del producto"
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      204
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/products/{id} [delete]
func (h *CatalogHandler) DeleteProduct(c *fiber.Ctx) error {
	if err := h.uc.DeleteProduct(c.UserContext(), c.Query("unit_id"), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListCategories godoc
// @Summary      Listar categorías
// @Tags         categories
// @Security     Bearer
// @Produce      json
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      200   {object}  dto.CategoryListResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/categories [get]
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	out, err := h.uc.ListCategories(c.UserContext(), c.Query("unit_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// SaveCategory godoc
// @Summary      Crear o renombrar categoría
// @Tags         categories
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  string  false  "ID de la categoría (vacío = nueva)"
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Param        body  body  dto.SaveCategoryRequest  true  "Nombre"
// @Success      200   {object}  dto.CategoryResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/categories [put]
// @Router       /api/categories/{id} [put]
func (h *CatalogHandler) SaveCategory(c *fiber.Ctx) error {
	var in dto.SaveCategoryRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.SaveCategory(c.UserContext(), c.Query("unit_id"), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// DeleteCategory godoc
// @Summary      Eliminar categoría
// @Tags         categories
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de la categoría"
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      204
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/categories/{id} [delete]
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	if err := h.uc.DeleteCategory(c.UserContext(), c.Query("unit_id"), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
