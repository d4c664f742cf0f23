package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

// FiscalDocumentRepository define el puerto de persistencia para las notas destinadas.
type FiscalDocumentRepository interface {
	// Upsert crea o sobrescribe todos los campos por clave natural (empresa, filial, número, serie).
	// Completa doc.ID y devuelve true si la fila es nueva.
	Upsert(ctx context.Context, doc *entity.FiscalDocument) (bool, error)
	GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.FiscalDocument, error)
	GetByKey(ctx context.Context, tenant entity.Tenant, number int64, series string) (*entity.FiscalDocument, error)
	// UpdateAcknowledgment solo toca situación y protocolo.
	UpdateAcknowledgment(ctx context.Context, tenant entity.Tenant, id string, statusCode int, protocol string) error
	List(ctx context.Context, filter DocumentFilter) ([]*entity.FiscalDocument, int, error)
	Stats(ctx context.Context, filter DocumentFilter) (*DocumentStats, error)
}

// DocumentFilter filtros del listado. RecipientTaxIDs acepta variantes (dígitos y con máscara);
// las notas emitidas por la propia filial se excluyen.
type DocumentFilter struct {
	CompanyID       string
	BranchID        string
	RecipientTaxIDs []string
	Search          string
	IssuedFrom      *time.Time
	IssuedTo        *time.Time
	Limit           int
	Offset          int
}

// DocumentStats resumen del panel.
type DocumentStats struct {
	Total      int
	Authorized int
	Cancelled  int
	Pending    int
	TotalValue decimal.Decimal
}
