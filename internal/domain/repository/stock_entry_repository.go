package repository

import (
	"context"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

// StockEntryRepository entradas de estoque generadas por las notas.
// Debe usarse dentro de una transacción.
type StockEntryRepository interface {
	// NextSequence bloquea la secuencia de la empresa hasta el fin de la transacción
	// y devuelve max + 1.
	NextSequence(ctx context.Context, companyID string) (int64, error)
	Create(ctx context.Context, entry *entity.StockEntry) error
	// DeleteByObservation borra las entradas de un fornecedor con esa observación.
	DeleteByObservation(ctx context.Context, tenant entity.Tenant, supplierID, observation string) (int64, error)
}
