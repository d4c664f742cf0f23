package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
)

var _ repository.StockEntryRepository = (*StockEntryRepo)(nil)

// StockEntryRepo entradas de estoque. Debe construirse sobre una tx: NextSequence toma un lock transaccional.
type StockEntryRepo struct {
	q Querier
}

// NewStockEntryRepository construye el adaptador sobre la tx en curso.
func NewStockEntryRepository(q Querier) *StockEntryRepo {
	return &StockEntryRepo{q: q}
}

// NextSequence serializa por empresa con un advisory lock que se libera en el commit/rollback.
func (r *StockEntryRepo) NextSequence(ctx context.Context, companyID string) (int64, error) {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('stock_entries:' || $1::text))`, companyID); err != nil {
		return 0, fmt.Errorf("lock stock sequence: %w", err)
	}
	var next int64
	if err := r.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM stock_entries WHERE company_id = $1`,
		companyID,
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("next stock sequence: %w", err)
	}
	return next, nil
}

// Create persiste la entrada.
func (r *StockEntryRepo) Create(ctx context.Context, e *entity.StockEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO stock_entries (id, sequence, company_id, branch_id, product_code, counterparty_id, entry_date,
			quantity, total, user_id, observation, series, document_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		RETURNING created_at`,
		e.ID, e.Sequence, e.CompanyID, e.BranchID, e.ProductCode, e.CounterpartyID, e.Date,
		e.Quantity, e.Total, e.UserID, e.Observation, e.Series, e.DocumentNumber,
	).Scan(&e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("stock sequence %d already used: %w", e.Sequence, err)
		}
		return fmt.Errorf("insert stock entry: %w", err)
	}
	return nil
}

// DeleteByObservation borra las entradas del fornecedor con esa observación.
func (r *StockEntryRepo) DeleteByObservation(ctx context.Context, tenant entity.Tenant, supplierID, observation string) (int64, error) {
	cmd, err := r.q.Exec(ctx, `
		DELETE FROM stock_entries
		WHERE company_id = $1 AND branch_id = $2 AND counterparty_id = $3 AND observation = $4`,
		tenant.CompanyID, tenant.BranchID, supplierID, observation,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stock entries: %w", err)
	}
	return cmd.RowsAffected(), nil
}
