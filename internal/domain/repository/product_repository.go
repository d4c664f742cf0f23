package repository

import (
	"context"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para Product (DIP).
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByCode(ctx context.Context, companyID, code string) (*entity.Product, error)
	GetByBarcode(ctx context.Context, companyID, barcode string) (*entity.Product, error)
	// FindByNamePrefix productos cuyo nombre empieza por prefix (sin distinguir mayúsculas).
	FindByNamePrefix(ctx context.Context, companyID, prefix string, limit int) ([]*entity.Product, error)
	// SetBarcodeIfEmpty completa el código de barras solo si el producto no tiene uno.
	SetBarcodeIfEmpty(ctx context.Context, companyID, code, barcode string) error
	// Search coincidencia parcial en código, nombre o código de barras.
	Search(ctx context.Context, companyID, query string, limit int) ([]*entity.Product, error)
}
