package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hkd-sync/internal/application/dto"
	appsync "github.com/jhoicas/hkd-sync/internal/application/sync"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
)

// syncService lo implementa *appsync.Orchestrator.
type syncService interface {
	Status(ctx context.Context, unitID string) (appsync.UnitStatus, error)
	Drain(ctx context.Context, unitID string) (appsync.DrainResult, error)
	Pull(ctx context.Context, unitID string) error
	DeadLetters(ctx context.Context, unitID string) ([]entity.DeadLetter, error)
}

// unitResolver lo implementa *auth.SessionContext.
type unitResolver interface {
	Unit(requested string) (string, error)
}

// SyncHandler estado y disparo manual de la sincronización.
type SyncHandler struct {
	sync  syncService
	units unitResolver
}

// NewSyncHandler construye el handler.
func NewSyncHandler(sync syncService, units unitResolver) *SyncHandler {
	return &SyncHandler{sync: sync, units: units}
}

// Status godoc
// @Summary      Estado de sincronización
// @Tags         sync
// @Security     Bearer
// @Produce      json
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      200   {object}  sync.UnitStatus
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/sync/status [get]
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	unitID, err := h.units.Unit(c.Query("unit_id"))
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.sync.Status(c.UserContext(), unitID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Drain godoc
// @Summary      Drenar la cola
// @Description  Síncrono; skipped=true si ya había un drenado en curso para la unidad.
// @Tags         sync
// @Security     Bearer
// @Produce      json
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      200   {object}  sync.DrainResult
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/sync/drain [post]
func (h *SyncHandler) Drain(c *fiber.Ctx) error {
	unitID, err := h.units.Unit(c.Query("unit_id"))
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.sync.Drain(c.UserContext(), unitID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Pull godoc
// @Summary      Descargar la unidad
// @Description  Sin conexión responde 503 y los datos locales quedan intactos.
// @Tags         sync
// @Security     Bearer
// @Produce      json
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      204
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/sync/pull [post]
func (h *SyncHandler) Pull(c *fiber.Ctx) error {
	unitID, err := h.units.Unit(c.Query("unit_id"))
	if err != nil {
		return writeError(c, err)
	}
	if err := h.sync.Pull(c.UserContext(), unitID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeadLetters godoc
// @Summary      Mutaciones descartadas
// @Tags         sync
// @Security     Bearer
// @Produce      json
// @Param        unit_id  query  string  false  "Unidad a operar (solo admin). Vacío = unidad de la sesión"
// @Success      200   {object}  dto.DeadLetterListResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/sync/dead-letters [get]
func (h *SyncHandler) DeadLetters(c *fiber.Ctx) error {
	unitID, err := h.units.Unit(c.Query("unit_id"))
	if err != nil {
		return writeError(c, err)
	}
	dead, err := h.sync.DeadLetters(c.UserContext(), unitID)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.DeadLetterListResponse{Items: make([]dto.DeadLetterResponse, 0, len(dead))}
	for _, d := range dead {
		out.Items = append(out.Items, dto.DeadLetterResponse{
			EntryID:    d.ID,
			Collection: string(d.Collection),
			EntityID:   d.EntityID,
			Op:         d.Op,
			Payload:    d.Payload,
			Attempts:   d.Attempts,
			LastError:  d.LastError,
			Reason:     d.Reason,
			EnqueuedAt: d.EnqueuedAt,
			DeadAt:     d.DeadAt,
		})
	}
	return c.JSON(out)
}
