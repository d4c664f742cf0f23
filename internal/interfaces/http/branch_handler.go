package http

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

// maxCertificateSize tamaño máximo aceptado para el .pfx.
const maxCertificateSize = 64 << 10

// BranchConfigReader configuración de importación de la filial.
type BranchConfigReader interface {
	BranchConfig(ctx context.Context, tenant entity.Tenant) (*dto.BranchConfigResponse, error)
}

// CredentialSealer guarda el certificado A1 sellado.
type CredentialSealer interface {
	Seal(ctx context.Context, tenant entity.Tenant, pfx []byte, password string) (*notas.CertificateInfo, error)
}

// BranchHandler rutas de /api/filial (protegido).
type BranchHandler struct {
	config BranchConfigReader
	sealer CredentialSealer
	log    *logger.Logger
}

// NewBranchHandler construye el handler.
func NewBranchHandler(config BranchConfigReader, sealer CredentialSealer, log *logger.Logger) *BranchHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &BranchHandler{config: config, sealer: sealer, log: log.Component("http.filial")}
}

// Config godoc
// @Summary      Configuración de importación de la filial
// @Tags         filial
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.BranchConfigResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/filial/config [get]
func (h *BranchHandler) Config(c *fiber.Ctx) error {
	out, err := h.config.BranchConfig(c.UserContext(), tenantOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// SealCredential godoc
// @Summary      Cargar certificado A1 (.pfx) de la filial
// @Tags         filial
// @Security     Bearer
// @Accept       multipart/form-data
// @Produce      json
// @Param        certificado  formData  file    true  "Archivo .pfx"
// @Param        senha        formData  string  true  "Contraseña del certificado"
// @Success      200  {object}  dto.SealCredentialResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      412  {object}  dto.ErrorResponse
// @Router       /api/filial/certificado [put]
func (h *BranchHandler) SealCredential(c *fiber.Ctx) error {
	fh, err := c.FormFile("certificado")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_FILE", Message: "archivo certificado requerido"})
	}
	password := c.FormValue("senha")
	if password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "senha es requerida"})
	}
	if fh.Size > maxCertificateSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{Code: "FILE_TOO_LARGE", Message: "certificado demasiado grande"})
	}
	f, err := fh.Open()
	if err != nil {
		return writeError(c, h.log, err)
	}
	defer f.Close()
	pfx, err := io.ReadAll(io.LimitReader(f, maxCertificateSize))
	if err != nil {
		return writeError(c, h.log, err)
	}

	info, err := h.sealer.Seal(c.UserContext(), tenantOf(c), pfx, password)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(notas.ToSealCredentialResponse(info))
}
