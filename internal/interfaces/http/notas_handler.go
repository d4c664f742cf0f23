package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/jobs"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

// Importer pasada de importación exclusiva por filial.
type Importer interface {
	RunPassExclusive(ctx context.Context, tenant entity.Tenant, ov notas.PassOverrides) (*notas.BatchSummary, error)
}

// ImportQueue encola la pasada para el worker.
type ImportQueue interface {
	EnqueueImportBranch(ctx context.Context, p jobs.ImportBranchPayload) (*asynq.TaskInfo, error)
}

// DocumentQueries lecturas de notas y de la filial.
type DocumentQueries interface {
	BranchConfig(ctx context.Context, tenant entity.Tenant) (*dto.BranchConfigResponse, error)
	List(ctx context.Context, tenant entity.Tenant, req dto.ListDocumentsRequest) (*dto.DocumentPage, error)
	Dashboard(ctx context.Context, tenant entity.Tenant) (*dto.DashboardResponse, error)
	Get(ctx context.Context, tenant entity.Tenant, id string) (*dto.DocumentResponse, error)
	LineItems(ctx context.Context, tenant entity.Tenant, id string) ([]dto.LineItemResponse, error)
}

// Mapper sugerencias y validación del mapeo de ítems.
type Mapper interface {
	Suggest(ctx context.Context, tenant entity.Tenant, documentID string) ([]notas.Suggestion, error)
	Validate(ctx context.Context, tenant entity.Tenant, items []notas.MappedItem) (*dto.MappingValidationResponse, error)
}

// Fulfiller entrada en estoque y financiero.
type Fulfiller interface {
	Fulfill(ctx context.Context, tenant entity.Tenant, in notas.FulfillInput) (*notas.FulfillmentResult, error)
}

// ManualRegistrar registro de notas fuera de la distribución.
type ManualRegistrar interface {
	Register(ctx context.Context, tenant entity.Tenant, req dto.ManualEntryRequest) (*notas.ManualEntryResult, error)
}

// Acknowledger ciencia de la operación bajo demanda.
type Acknowledger interface {
	Acknowledge(ctx context.Context, tenant entity.Tenant, in notas.AcknowledgeInput) (*notas.AcknowledgeResult, error)
}

// NotasHandler rutas de /api/notas (protegido, por filial).
type NotasHandler struct {
	importer    Importer
	queue       ImportQueue
	queries     DocumentQueries
	mapper      Mapper
	fulfillment Fulfiller
	manual      ManualRegistrar
	ack         Acknowledger
	log         *logger.Logger
}

// NotasDeps servicios del handler. Queue es opcional: sin ella ?async=true responde 422.
type NotasDeps struct {
	Importer    Importer
	Queue       ImportQueue
	Queries     DocumentQueries
	Mapper      Mapper
	Fulfillment Fulfiller
	Manual      ManualRegistrar
	Ack         Acknowledger
	Logger      *logger.Logger
}

// NewNotasHandler construye el handler.
func NewNotasHandler(d NotasDeps) *NotasHandler {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &NotasHandler{
		importer:    d.Importer,
		queue:       d.Queue,
		queries:     d.Queries,
		mapper:      d.Mapper,
		fulfillment: d.Fulfillment,
		manual:      d.Manual,
		ack:         d.Ack,
		log:         log.Component("http.notas"),
	}
}

// Import godoc
// @Summary      Importar notas destinadas (una pasada de distribución DF-e)
// @Tags         notas
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        async  query  bool               false  "Encolar en lugar de ejecutar"
// @Param        body   body   dto.ImportRequest  false  "Parámetros opcionales"
// @Success      200    {object}  dto.BatchSummaryResponse
// @Success      202    {object}  map[string]string
// @Failure      409    {object}  dto.ErrorResponse
// @Failure      412    {object}  dto.ErrorResponse
// @Failure      502    {object}  dto.ErrorResponse
// @Router       /api/notas/importar [post]
func (h *NotasHandler) Import(c *fiber.Ctx) error {
	var in dto.ImportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	tenant := tenantOf(c)

	if c.QueryBool("async") {
		if h.queue == nil {
			return writeError(c, h.log, &domain.OperationError{Operation: "importación", Reason: "cola de trabajos no configurada"})
		}
		info, err := h.queue.EnqueueImportBranch(c.UserContext(), jobs.ImportBranchPayload{
			CompanyID: tenant.CompanyID, BranchID: tenant.BranchID, UserID: tenant.UserID,
		})
		if err != nil {
			return writeError(c, h.log, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"tarefa": info.ID, "fila": info.Queue})
	}

	summary, err := h.importer.RunPassExclusive(c.UserContext(), tenant, notas.ToPassOverrides(in))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(notas.ToBatchSummaryResponse(summary))
}

// List godoc
// @Summary      Listar notas destinadas de la filial
// @Tags         notas
// @Security     Bearer
// @Produce      json
// @Param        q       query  string  false  "Número, emitente, naturaleza o chave"
// @Param        de      query  string  false  "Emisión desde (YYYY-MM-DD)"
// @Param        ate     query  string  false  "Emisión hasta (YYYY-MM-DD, inclusive)"
// @Param        limit   query  int     false  "Límite"  default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200     {object}  dto.DocumentPage
// @Router       /api/notas [get]
func (h *NotasHandler) List(c *fiber.Ctx) error {
	req := dto.ListDocumentsRequest{
		PageRequest: dto.PageRequest{Limit: c.QueryInt("limit", 0), Offset: c.QueryInt("offset", 0)},
		Search:      c.Query("q"),
	}
	var err error
	if req.From, err = queryDate(c, "de", false); err != nil {
		return writeError(c, h.log, err)
	}
	if req.To, err = queryDate(c, "ate", true); err != nil {
		return writeError(c, h.log, err)
	}
	page, err := h.queries.List(c.UserContext(), tenantOf(c), req)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(page)
}

// Dashboard godoc
// @Summary      Contadores del panel
// @Tags         notas
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.DashboardResponse
// @Router       /api/notas/dashboard [get]
func (h *NotasHandler) Dashboard(c *fiber.Ctx) error {
	out, err := h.queries.Dashboard(c.UserContext(), tenantOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Get godoc
// @Summary      Obtener nota
// @Tags         notas
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la nota"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/notas/{id} [get]
func (h *NotasHandler) Get(c *fiber.Ctx) error {
	out, err := h.queries.Get(c.UserContext(), tenantOf(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Items ítems recalculados del XML.
// GET /api/notas/:id/itens
func (h *NotasHandler) Items(c *fiber.Ctx) error {
	out, err := h.queries.LineItems(c.UserContext(), tenantOf(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Suggest producto sugerido para cada ítem.
// GET /api/notas/:id/sugestoes
func (h *NotasHandler) Suggest(c *fiber.Ctx) error {
	out, err := h.mapper.Suggest(c.UserContext(), tenantOf(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(notas.ToSuggestionResponses(out))
}

// ValidateMapping errores y avisos del mapeo antes de la entrada.
// POST /api/notas/:id/validar
func (h *NotasHandler) ValidateMapping(c *fiber.Ctx) error {
	var in dto.FulfillRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	out, err := h.mapper.Validate(c.UserContext(), tenantOf(c), notas.ToFulfillInput(c.Params("id"), in).Items)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Fulfill godoc
// @Summary      Dar entrada a la nota (estoque + títulos a pagar)
// @Tags         notas
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "ID de la nota"
// @Param        body  body  dto.FulfillRequest  true  "Mapeo de ítems"
// @Success      201   {object}  dto.FulfillResponse
// @Success      200   {object}  dto.FulfillResponse  "Ya tuvo entrada o mapeo pendiente"
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/notas/{id}/entrada [post]
func (h *NotasHandler) Fulfill(c *fiber.Ctx) error {
	var in dto.FulfillRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	res, err := h.fulfillment.Fulfill(c.UserContext(), tenantOf(c), notas.ToFulfillInput(c.Params("id"), in))
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := fiber.StatusOK
	if res.Status == notas.StatusFulfilled {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(notas.ToFulfillResponse(res))
}

// Manual godoc
// @Summary      Registrar nota manual (sin XML)
// @Tags         notas
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ManualEntryRequest  true  "Nota manual"
// @Success      201   {object}  dto.ManualEntryResponse
// @Success      200   {object}  dto.ManualEntryResponse  "Nota manual editada"
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/notas/manual [post]
func (h *NotasHandler) Manual(c *fiber.Ctx) error {
	var in dto.ManualEntryRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	res, err := h.manual.Register(c.UserContext(), tenantOf(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := fiber.StatusOK
	if res.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(notas.ToManualEntryResponse(res))
}

// Acknowledge godoc
// @Summary      Enviar ciencia de la operación
// @Tags         notas
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true   "ID de la nota"
// @Param        body  body  dto.AcknowledgeRequest  false  "Justificativa"
// @Success      200   {object}  dto.AcknowledgeResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/notas/{id}/manifestar [post]
func (h *NotasHandler) Acknowledge(c *fiber.Ctx) error {
	var in dto.AcknowledgeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	res, err := h.ack.Acknowledge(c.UserContext(), tenantOf(c), notas.AcknowledgeInput{
		DocumentID:    c.Params("id"),
		Justification: in.Justification,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(notas.ToAcknowledgeResponse(res))
}

// queryDate fecha YYYY-MM-DD; endOfDay la lleva al último instante del día.
func queryDate(c *fiber.Ctx, key string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, &invalidQueryError{key: key, value: raw}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

type invalidQueryError struct{ key, value string }

func (e *invalidQueryError) Error() string {
	return "parámetro " + e.key + " inválido: " + e.value + " (use YYYY-MM-DD)"
}

func (e *invalidQueryError) Unwrap() error { return domain.ErrInvalidInput }
