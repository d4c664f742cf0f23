package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

// Catalog alta y búsqueda de productos para el mapeo de ítems.
type Catalog interface {
	CreateProduct(ctx context.Context, companyID string, req dto.CreateProductRequest) (*entity.Product, bool, error)
	CreateMissing(ctx context.Context, companyID string, req dto.CreateMissingRequest) ([]*entity.Product, int, error)
	SearchProducts(ctx context.Context, companyID, query string) ([]*entity.Product, error)
}

// ProductHandler maneja las peticiones HTTP de productos (protegido).
type ProductHandler struct {
	catalog Catalog
	log     *logger.Logger
}

// NewProductHandler construye el handler.
func NewProductHandler(catalog Catalog, log *logger.Logger) *ProductHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ProductHandler{catalog: catalog, log: log.Component("http.produtos")}
}

// Create godoc
// @Summary      Crear producto a partir de un ítem
// @Tags         produtos
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateProductRequest  true  "Datos del producto"
// @Success      201   {object}  dto.CreateProductResponse
// @Success      200   {object}  dto.CreateProductResponse  "El código ya existía"
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/produtos [post]
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateProductRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	p, created, err := h.catalog.CreateProduct(c.UserContext(), GetCompanyID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.CreateProductResponse{Product: *notas.ToProductResponse(p), Created: created})
}

// CreateMissing godoc
// @Summary      Crear en lote los productos que faltan
// @Tags         produtos
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateMissingRequest  true  "Ítems sin producto"
// @Success      200   {object}  map[string]interface{}
// @Router       /api/produtos/lote [post]
func (h *ProductHandler) CreateMissing(c *fiber.Ctx) error {
	var in dto.CreateMissingRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	list, created, err := h.catalog.CreateMissing(c.UserContext(), GetCompanyID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"produtos": toProductResponses(list), "criados": created})
}

// Search godoc
// @Summary      Buscar productos por código, nombre o EAN
// @Tags         produtos
// @Security     Bearer
// @Produce      json
// @Param        q    query  string  true  "Texto (mínimo 2 caracteres)"
// @Success      200  {array}  dto.ProductResponse
// @Router       /api/produtos [get]
func (h *ProductHandler) Search(c *fiber.Ctx) error {
	list, err := h.catalog.SearchProducts(c.UserContext(), GetCompanyID(c), c.Query("q"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(toProductResponses(list))
}

func toProductResponses(list []*entity.Product) []dto.ProductResponse {
	out := make([]dto.ProductResponse, 0, len(list))
	for _, p := range list {
		if r := notas.ToProductResponse(p); r != nil {
			out = append(out, *r)
		}
	}
	return out
}
