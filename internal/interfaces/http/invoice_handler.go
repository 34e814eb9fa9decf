package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hkd-sync/internal/application/dto"
	"github.com/jhoicas/hkd-sync/internal/application/usecase"
)

// InvoiceHandler registro y listado de ventas.
type InvoiceHandler struct {
	uc *usecase.CatalogUseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(uc *usecase.CatalogUseCase) *InvoiceHandler {
	return &InvoiceHandler{uc: uc}
}

// Create godoc
// @Summary      Registrar venta
// @Description  Nombre y precio de cada línea salen del producto local. Responde 201 aun sin conexión.
// @Tags         invoices
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Param        body  body  dto.CreateInvoiceRequest  true  "Líneas de la venta"
// @Success      201   {object}  dto.InvoiceResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/invoices [post]
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.RecordInvoice(c.UserContext(), c.Query("unit_id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar ventas
// @Description  Más recientes primero.
// @Tags         invoices
// @Security     Bearer
// @Produce      json
// @Param        limit  query  int  false  "Límite"  default(20)
// @Param        offset  query  int  false  "Offset"  default(0)
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      200   {object}  dto.InvoiceListResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/invoices [get]
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros de consulta inválidos"})
	}
	out, err := h.uc.ListInvoices(c.UserContext(), page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
