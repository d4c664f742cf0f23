package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	domainnfe "github.com/jhoicas/notas-destinadas/internal/domain/nfe"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/jobs"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/redislock"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

type errorMapping struct {
	kind   error
	status int
	code   string
}

// El orden importa: el primer kind que coincide gana.
var errorMappings = []errorMapping{
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrCertificateFormat, fiber.StatusBadRequest, "CERTIFICATE_FORMAT"},
	{domain.ErrDecode, fiber.StatusBadRequest, "DECODE"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrCursorRewind, fiber.StatusConflict, "CURSOR_REWIND"},
	{redislock.ErrNotAcquired, fiber.StatusConflict, "IMPORT_RUNNING"},
	{jobs.ErrAlreadyQueued, fiber.StatusConflict, "IMPORT_QUEUED"},
	{domain.ErrCredential, fiber.StatusPreconditionFailed, "CREDENTIAL"},
	{domain.ErrOperation, fiber.StatusUnprocessableEntity, "OPERATION"},
	{domainnfe.ErrInvalidDocument, fiber.StatusUnprocessableEntity, "INVALID_DOCUMENT"},
	{domain.ErrRemoteService, fiber.StatusBadGateway, "SEFAZ"},
}

// writeError traduce la clase de error a status HTTP. Lo no clasificado es 500 y se registra.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	log.Error().Err(err).Str("ruta", c.Path()).Msg("error no clasificado")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
