package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
)

var _ repository.PayableTitleRepository = (*PayableTitleRepo)(nil)

// PayableTitleRepo títulos a pagar.
type PayableTitleRepo struct {
	q Querier
}

// NewPayableTitleRepository construye el adaptador. LockDocument exige una tx.
func NewPayableTitleRepository(q Querier) *PayableTitleRepo {
	return &PayableTitleRepo{q: q}
}

// LockDocument advisory lock por nota hasta el fin de la transacción.
func (r *PayableTitleRepo) LockDocument(ctx context.Context, tenant entity.Tenant, series, number string) error {
	key := fmt.Sprintf("payable_titles:%s:%s:%s:%s", tenant.CompanyID, tenant.BranchID, series, number)
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock document titles: %w", err)
	}
	return nil
}

// FindFirstByDocument primera parcela de la nota, nil si no hay.
func (r *PayableTitleRepo) FindFirstByDocument(ctx context.Context, tenant entity.Tenant, series, number string) (*entity.PayableTitle, error) {
	var t entity.PayableTitle
	err := r.q.QueryRow(ctx, `
		SELECT id, company_id, branch_id, supplier_id, type, number, series, installment, amount,
			due_date, issue_date, status, user_id, history, created_at
		FROM payable_titles
		WHERE company_id = $1 AND branch_id = $2 AND series = $3 AND number = $4
		ORDER BY installment, created_at LIMIT 1`,
		tenant.CompanyID, tenant.BranchID, series, number,
	).Scan(&t.ID, &t.CompanyID, &t.BranchID, &t.SupplierID, &t.Type, &t.Number, &t.Series, &t.Installment,
		&t.Amount, &t.DueDate, &t.IssueDate, &t.Status, &t.UserID, &t.History, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find payable title: %w", err)
	}
	return &t, nil
}

// Create persiste una parcela. Parcela repetida de la misma nota devuelve domain.ErrDuplicate.
func (r *PayableTitleRepo) Create(ctx context.Context, t *entity.PayableTitle) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO payable_titles (id, company_id, branch_id, supplier_id, type, number, series, installment,
			amount, due_date, issue_date, status, user_id, history, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		RETURNING created_at`,
		t.ID, t.CompanyID, t.BranchID, t.SupplierID, t.Type, t.Number, t.Series, t.Installment,
		t.Amount, t.DueDate, t.IssueDate, t.Status, t.UserID, t.History,
	).Scan(&t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: parcela %s de la nota %s-%s", domain.ErrDuplicate, t.Installment, t.Series, t.Number)
		}
		return fmt.Errorf("insert payable title: %w", err)
	}
	return nil
}

// DeleteByDocument borra los títulos de Entrada de la nota para ese fornecedor.
func (r *PayableTitleRepo) DeleteByDocument(ctx context.Context, tenant entity.Tenant, supplierID, series, number string) (int64, error) {
	cmd, err := r.q.Exec(ctx, `
		DELETE FROM payable_titles
		WHERE company_id = $1 AND branch_id = $2 AND supplier_id = $3 AND series = $4 AND number = $5 AND type = $6`,
		tenant.CompanyID, tenant.BranchID, supplierID, series, number, entity.TitleTypeEntry,
	)
	if err != nil {
		return 0, fmt.Errorf("delete payable titles: %w", err)
	}
	return cmd.RowsAffected(), nil
}
