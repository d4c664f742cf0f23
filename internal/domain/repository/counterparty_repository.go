package repository

import (
	"context"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

// CounterpartyRepository directorio de fornecedores/clientes de la empresa.
type CounterpartyRepository interface {
	GetByID(ctx context.Context, companyID, id string) (*entity.Counterparty, error)
	// FindByTaxID coincidencia exacta con el CNPJ o CPF tal como está guardado.
	FindByTaxID(ctx context.Context, companyID, taxID string) (*entity.Counterparty, error)
}
