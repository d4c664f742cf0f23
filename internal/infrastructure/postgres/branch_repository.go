package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
)

var _ repository.BranchRepository = (*BranchRepo)(nil)

// BranchRepo configuración fiscal de las filiales.
type BranchRepo struct {
	q Querier
}

// NewBranchRepository construye el adaptador. Pasar pool o tx (Querier).
func NewBranchRepository(q Querier) *BranchRepo {
	return &BranchRepo{q: q}
}

const branchColumns = `company_id, branch_id, name, uf, cnpj, ult_nsu, cert_path, cert_blob, cert_password,
	environment, import_active, updated_at`

func scanBranch(row pgx.Row) (*entity.Branch, error) {
	var (
		b      entity.Branch
		cursor string
	)
	if err := row.Scan(&b.CompanyID, &b.BranchID, &b.Name, &b.Jurisdiction, &b.TaxID, &cursor,
		&b.CertPath, &b.CertBlob, &b.CertPassword, &b.Environment, &b.ImportActive, &b.UpdatedAt); err != nil {
		return nil, err
	}
	c, err := entity.NewImportCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("filial %s: %w", b.BranchID, err)
	}
	b.Cursor = c
	return &b, nil
}

// Get nil, nil si la filial no existe.
func (r *BranchRepo) Get(ctx context.Context, companyID, branchID string) (*entity.Branch, error) {
	b, err := scanBranch(r.q.QueryRow(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE company_id = $1 AND branch_id = $2`,
		companyID, branchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return b, nil
}

// ListImportActive filiales con importación automática habilitada.
func (r *BranchRepo) ListImportActive(ctx context.Context) ([]*entity.Branch, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE import_active ORDER BY company_id, branch_id`)
	if err != nil {
		return nil, fmt.Errorf("list active branches: %w", err)
	}
	defer rows.Close()
	var list []*entity.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// SaveCursor guarda el NSU solo si es mayor que el actual (comparación numérica).
func (r *BranchRepo) SaveCursor(ctx context.Context, tenant entity.Tenant, cursor entity.ImportCursor) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE branches
		SET ult_nsu = CASE WHEN ($3::text)::numeric > COALESCE(NULLIF(ult_nsu, '')::numeric, 0) THEN $3::text ELSE ult_nsu END,
		    updated_at = now()
		WHERE company_id = $1 AND branch_id = $2`,
		tenant.CompanyID, tenant.BranchID, cursor.String(),
	)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveCredential reemplaza certificado y contraseña (ya sellados).
func (r *BranchRepo) SaveCredential(ctx context.Context, tenant entity.Tenant, blob []byte, sealedPassword string) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE branches SET cert_blob = $3, cert_password = $4, cert_path = '', updated_at = now()
		WHERE company_id = $1 AND branch_id = $2`,
		tenant.CompanyID, tenant.BranchID, blob, sealedPassword,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
