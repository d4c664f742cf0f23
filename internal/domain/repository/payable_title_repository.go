package repository

import (
	"context"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

// PayableTitleRepository títulos a pagar generados por las notas.
type PayableTitleRepository interface {
	// LockDocument serializa hasta el fin de la transacción las operaciones sobre una nota.
	LockDocument(ctx context.Context, tenant entity.Tenant, series, number string) error
	// FindFirstByDocument primer título de la nota (nil si no hay).
	FindFirstByDocument(ctx context.Context, tenant entity.Tenant, series, number string) (*entity.PayableTitle, error)
	Create(ctx context.Context, title *entity.PayableTitle) error
	// DeleteByDocument borra los títulos de tipo Entrada de la nota para ese fornecedor.
	DeleteByDocument(ctx context.Context, tenant entity.Tenant, supplierID, series, number string) (int64, error)
}
