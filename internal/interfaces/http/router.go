package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Notas     NotasDeps
	Catalog   Catalog
	Branch    BranchConfigReader
	Sealer    CredentialSealer
	JWTSecret string
	Logger    *logger.Logger
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Notas.Logger == nil {
		deps.Notas.Logger = deps.Logger
	}
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	anyRole := RequireRole(entity.RoleAdmin, entity.RoleFiscal, entity.RoleEstoque)
	fiscal := RequireRole(entity.RoleAdmin, entity.RoleFiscal)
	estoque := RequireRole(entity.RoleAdmin, entity.RoleEstoque)

	// Filial
	branchHandler := NewBranchHandler(deps.Branch, deps.Sealer, deps.Logger)
	filial := api.Group("/filial", RequireBranch())
	filial.Get("/config", anyRole, branchHandler.Config)
	filial.Put("/certificado", RequireRole(entity.RoleAdmin), branchHandler.SealCredential)

	// Notas destinadas (por filial)
	notasHandler := NewNotasHandler(deps.Notas)
	notas := api.Group("/notas", RequireBranch())
	notas.Get("/", anyRole, notasHandler.List)
	notas.Get("/dashboard", anyRole, notasHandler.Dashboard)
	notas.Post("/importar", fiscal, notasHandler.Import)
	notas.Post("/manual", fiscal, notasHandler.Manual)
	notas.Get("/:id", anyRole, notasHandler.Get)
	notas.Get("/:id/itens", anyRole, notasHandler.Items)
	notas.Get("/:id/sugestoes", estoque, notasHandler.Suggest)
	notas.Post("/:id/validar", estoque, notasHandler.ValidateMapping)
	notas.Post("/:id/entrada", estoque, notasHandler.Fulfill)
	notas.Post("/:id/manifestar", fiscal, notasHandler.Acknowledge)

	// Catálogo (por empresa)
	productHandler := NewProductHandler(deps.Catalog, deps.Logger)
	produtos := api.Group("/produtos")
	produtos.Get("/", anyRole, productHandler.Search)
	produtos.Post("/", estoque, productHandler.Create)
	produtos.Post("/lote", estoque, productHandler.CreateMissing)
}
