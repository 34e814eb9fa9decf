package http

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hkd-sync/internal/application/dto"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
)

// authService lo implementa *auth.Resolver.
type authService interface {
	Login(ctx context.Context, identifier, secret string) (entity.Session, error)
	Current(ctx context.Context) (entity.Session, error)
	Logout(ctx context.Context) error
	ChangeSecret(ctx context.Context, unitID, newSecret string) error
}

// AuthHandler login, logout y sesión actual.
type AuthHandler struct {
	auth authService
	ttl  time.Duration
}

// NewAuthHandler construye el handler de auth.
func NewAuthHandler(auth authService, ttl time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, ttl: ttl}
}

// Login godoc
// @Summary      Iniciar sesión
// @Description  Primero contra la copia local; si la unidad no está, contra el remoto. Tras un login remoto la descarga sigue en segundo plano.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "Teléfono (o identificador admin) y secreto"
// @Success      200   {object}  dto.LoginResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if strings.TrimSpace(in.Identifier) == "" || in.Secret == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "identifier y secret son requeridos"})
	}
	sess, err := h.auth.Login(c.UserContext(), in.Identifier, in.Secret)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.LoginResponse{Token: sess.Token, Session: h.toSessionResponse(sess)})
}

// Logout godoc
// @Summary      Cerrar sesión
// @Description  Idempotente.
// @Tags         auth
// @Produce      json
// @Success      204
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.UserContext()); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Session godoc
// @Summary      Sesión actual
// @Tags         auth
// @Security     Bearer
// @Produce      json
// @Success      200   {object}  dto.SessionResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	sess, err := h.auth.Current(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.toSessionResponse(sess))
}

// ChangeSecret godoc
// @Summary      Cambiar secreto de una unidad
// @Description  El operador solo puede cambiar el suyo.
// @Tags         units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "ID de la unidad"
// @Param        body  body  dto.ChangeSecretRequest  true  "Secreto nuevo"
// @Success      204
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/units/{id}/secret [put]
func (h *AuthHandler) ChangeSecret(c *fiber.Ctx) error {
	var in dto.ChangeSecretRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := h.auth.ChangeSecret(c.UserContext(), c.Params("id"), in.Secret); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) toSessionResponse(s entity.Session) dto.SessionResponse {
	return dto.SessionResponse{
		UserID:         s.UserID,
		BusinessUnitID: s.BusinessUnitID,
		Role:           s.Role,
		LoginTimestamp: s.LoginTimestamp,
		ExpiresAt:      s.LoginTimestamp.Add(h.ttl),
	}
}
