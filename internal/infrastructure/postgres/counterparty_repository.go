package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
)

var _ repository.CounterpartyRepository = (*CounterpartyRepo)(nil)

// CounterpartyRepo cadastro de fornecedores (solo lectura).
type CounterpartyRepo struct {
	q Querier
}

// NewCounterpartyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCounterpartyRepository(q Querier) *CounterpartyRepo {
	return &CounterpartyRepo{q: q}
}

const counterpartyColumns = `id, company_id, name, trade_name, cnpj, cpf, street, number, district, city, uf, zip, phone`

func (r *CounterpartyRepo) get(ctx context.Context, query string, args ...any) (*entity.Counterparty, error) {
	var c entity.Counterparty
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.TradeName, &c.CNPJ, &c.CPF,
		&c.Street, &c.Number, &c.District, &c.City, &c.State, &c.ZIP, &c.Phone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get counterparty: %w", err)
	}
	return &c, nil
}

// GetByID nil, nil si no existe en la empresa.
func (r *CounterpartyRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Counterparty, error) {
	return r.get(ctx,
		`SELECT `+counterpartyColumns+` FROM counterparties WHERE company_id = $1 AND id = $2`,
		companyID, id)
}

// FindByTaxID coincidencia exacta en CNPJ o CPF; con duplicados devuelve el de menor id.
func (r *CounterpartyRepo) FindByTaxID(ctx context.Context, companyID, taxID string) (*entity.Counterparty, error) {
	if taxID == "" {
		return nil, nil
	}
	return r.get(ctx,
		`SELECT `+counterpartyColumns+` FROM counterparties
		WHERE company_id = $1 AND (cnpj = $2 OR cpf = $2)
		ORDER BY id LIMIT 1`,
		companyID, taxID)
}
