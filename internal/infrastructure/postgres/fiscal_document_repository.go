package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
)

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

// FiscalDocumentRepo notas destinadas sobre PostgreSQL (usable con pool o tx).
type FiscalDocumentRepo struct {
	q Querier
}

// NewFiscalDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalDocumentRepository(q Querier) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{q: q}
}

const documentColumns = `
	id, company_id, branch_id, counterparty_id, number, series, model, access_key,
	issuer_state_code, numeric_code, nature_of_operation, operation_type, issued_at, entry_date,
	issuer_cnpj, issuer_cpf, issuer_name, issuer_trade_name, issuer_ie, issuer_email, COALESCE(issuer_address, '{}'::jsonb),
	recipient_cnpj, recipient_cpf, recipient_name, recipient_trade_name, recipient_ie, recipient_email, COALESCE(recipient_address, '{}'::jsonb),
	total_products, total, total_discount, total_freight, total_insurance,
	total_icms, total_ipi, total_pis, total_cofins, total_other,
	status_code, cancelled, voided, denied, protocol, xml, created_at, updated_at`

func scanDocument(row pgx.Row) (*entity.FiscalDocument, error) {
	var d entity.FiscalDocument
	err := row.Scan(
		&d.ID, &d.CompanyID, &d.BranchID, &d.CounterpartyID, &d.Number, &d.Series, &d.Model, &d.AccessKey,
		&d.IssuerStateCode, &d.NumericCode, &d.NatureOfOperation, &d.OperationType, &d.IssuedAt, &d.EntryDate,
		&d.Issuer.CNPJ, &d.Issuer.CPF, &d.Issuer.Name, &d.Issuer.TradeName, &d.Issuer.StateRegistration, &d.Issuer.Email, &d.Issuer.Address,
		&d.Recipient.CNPJ, &d.Recipient.CPF, &d.Recipient.Name, &d.Recipient.TradeName, &d.Recipient.StateRegistration, &d.Recipient.Email, &d.Recipient.Address,
		&d.Totals.Products, &d.Totals.Total, &d.Totals.Discount, &d.Totals.Freight, &d.Totals.Insurance,
		&d.Totals.ICMS, &d.Totals.IPI, &d.Totals.PIS, &d.Totals.COFINS, &d.Totals.Other,
		&d.StatusCode, &d.Cancelled, &d.Voided, &d.Denied, &d.Protocol, &d.XML, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Upsert inserta o sobrescribe por (empresa, filial, número, serie). xmax = 0 solo en filas recién insertadas.
func (r *FiscalDocumentRepo) Upsert(ctx context.Context, doc *entity.FiscalDocument) (bool, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	query := `
		INSERT INTO fiscal_documents (
			id, company_id, branch_id, counterparty_id, number, series, model, access_key,
			issuer_state_code, numeric_code, nature_of_operation, operation_type, issued_at, entry_date,
			issuer_cnpj, issuer_cpf, issuer_name, issuer_trade_name, issuer_ie, issuer_email, issuer_address,
			recipient_cnpj, recipient_cpf, recipient_name, recipient_trade_name, recipient_ie, recipient_email, recipient_address,
			total_products, total, total_discount, total_freight, total_insurance,
			total_icms, total_ipi, total_pis, total_cofins, total_other,
			status_code, cancelled, voided, denied, protocol, xml, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33, $34, $35, $36, $37, $38,
			$39, $40, $41, $42, $43, $44, now(), now())
		ON CONFLICT (company_id, branch_id, number, series) DO UPDATE SET
			counterparty_id      = EXCLUDED.counterparty_id,
			model                = EXCLUDED.model,
			access_key           = EXCLUDED.access_key,
			issuer_state_code    = EXCLUDED.issuer_state_code,
			numeric_code         = EXCLUDED.numeric_code,
			nature_of_operation  = EXCLUDED.nature_of_operation,
			operation_type       = EXCLUDED.operation_type,
			issued_at            = EXCLUDED.issued_at,
			entry_date           = EXCLUDED.entry_date,
			issuer_cnpj          = EXCLUDED.issuer_cnpj,
			issuer_cpf           = EXCLUDED.issuer_cpf,
			issuer_name          = EXCLUDED.issuer_name,
			issuer_trade_name    = EXCLUDED.issuer_trade_name,
			issuer_ie            = EXCLUDED.issuer_ie,
			issuer_email         = EXCLUDED.issuer_email,
			issuer_address       = EXCLUDED.issuer_address,
			recipient_cnpj       = EXCLUDED.recipient_cnpj,
			recipient_cpf        = EXCLUDED.recipient_cpf,
			recipient_name       = EXCLUDED.recipient_name,
			recipient_trade_name = EXCLUDED.recipient_trade_name,
			recipient_ie         = EXCLUDED.recipient_ie,
			recipient_email      = EXCLUDED.recipient_email,
			recipient_address    = EXCLUDED.recipient_address,
			total_products       = EXCLUDED.total_products,
			total                = EXCLUDED.total,
			total_discount       = EXCLUDED.total_discount,
			total_freight        = EXCLUDED.total_freight,
			total_insurance      = EXCLUDED.total_insurance,
			total_icms           = EXCLUDED.total_icms,
			total_ipi            = EXCLUDED.total_ipi,
			total_pis            = EXCLUDED.total_pis,
			total_cofins         = EXCLUDED.total_cofins,
			total_other          = EXCLUDED.total_other,
			status_code          = EXCLUDED.status_code,
			cancelled            = EXCLUDED.cancelled,
			voided               = EXCLUDED.voided,
			denied               = EXCLUDED.denied,
			protocol             = EXCLUDED.protocol,
			xml                  = EXCLUDED.xml,
			updated_at           = now()
		RETURNING id, (xmax = 0), created_at, updated_at`

	var inserted bool
	err := r.q.QueryRow(ctx, query,
		doc.ID, doc.CompanyID, doc.BranchID, doc.CounterpartyID, doc.Number, doc.Series, doc.Model, doc.AccessKey,
		doc.IssuerStateCode, doc.NumericCode, doc.NatureOfOperation, doc.OperationType, doc.IssuedAt, doc.EntryDate,
		doc.Issuer.CNPJ, doc.Issuer.CPF, doc.Issuer.Name, doc.Issuer.TradeName, doc.Issuer.StateRegistration, doc.Issuer.Email, doc.Issuer.Address,
		doc.Recipient.CNPJ, doc.Recipient.CPF, doc.Recipient.Name, doc.Recipient.TradeName, doc.Recipient.StateRegistration, doc.Recipient.Email, doc.Recipient.Address,
		doc.Totals.Products, doc.Totals.Total, doc.Totals.Discount, doc.Totals.Freight, doc.Totals.Insurance,
		doc.Totals.ICMS, doc.Totals.IPI, doc.Totals.PIS, doc.Totals.COFINS, doc.Totals.Other,
		doc.StatusCode, doc.Cancelled, doc.Voided, doc.Denied, doc.Protocol, doc.XML,
	).Scan(&doc.ID, &inserted, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("upsert fiscal document: %w", err)
	}
	return inserted, nil
}

// GetByID nil, nil si no existe en la empresa/filial.
func (r *FiscalDocumentRepo) GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.FiscalDocument, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	query := `SELECT ` + documentColumns + `
		FROM fiscal_documents WHERE id = $1 AND company_id = $2 AND branch_id = $3`
	d, err := scanDocument(r.q.QueryRow(ctx, query, id, tenant.CompanyID, tenant.BranchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal document: %w", err)
	}
	return d, nil
}

// GetByKey busca por la clave natural.
func (r *FiscalDocumentRepo) GetByKey(ctx context.Context, tenant entity.Tenant, number int64, series string) (*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + `
		FROM fiscal_documents WHERE company_id = $1 AND branch_id = $2 AND number = $3 AND series = $4`
	d, err := scanDocument(r.q.QueryRow(ctx, query, tenant.CompanyID, tenant.BranchID, number, series))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal document by key: %w", err)
	}
	return d, nil
}

// UpdateAcknowledgment solo situación y protocolo.
func (r *FiscalDocumentRepo) UpdateAcknowledgment(ctx context.Context, tenant entity.Tenant, id string, statusCode int, protocol string) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE fiscal_documents SET status_code = $4, protocol = $5, updated_at = now()
		WHERE id = $1 AND company_id = $2 AND branch_id = $3`,
		id, tenant.CompanyID, tenant.BranchID, statusCode, protocol,
	)
	if err != nil {
		return fmt.Errorf("update acknowledgment: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// documentWhere arma el WHERE común a List y Stats. Los registros manuales (xml NULL) siempre entran.
func documentWhere(f repository.DocumentFilter) (string, []any) {
	args := []any{f.CompanyID, f.BranchID, f.RecipientTaxIDs}
	conds := []string{
		"company_id = $1",
		"branch_id = $2",
		"(xml IS NULL OR recipient_cnpj = ANY($3) OR recipient_cpf = ANY($3))",
		"NOT (xml IS NOT NULL AND issuer_cnpj <> '' AND issuer_cnpj = ANY($3))",
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%", s)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(issuer_name ILIKE $%d OR nature_of_operation ILIKE $%d OR access_key = $%d OR number::text = $%d)",
			n-1, n-1, n, n))
	}
	if f.IssuedFrom != nil {
		args = append(args, *f.IssuedFrom)
		conds = append(conds, fmt.Sprintf("issued_at >= $%d", len(args)))
	}
	if f.IssuedTo != nil {
		args = append(args, *f.IssuedTo)
		conds = append(conds, fmt.Sprintf("issued_at <= $%d", len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List página de notas ordenada por emisión y número descendentes, con el total sin paginar.
func (r *FiscalDocumentRepo) List(ctx context.Context, f repository.DocumentFilter) ([]*entity.FiscalDocument, int, error) {
	where, args := documentWhere(f)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM fiscal_documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fiscal documents: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := `SELECT ` + documentColumns + ` FROM fiscal_documents` + where +
		fmt.Sprintf(" ORDER BY issued_at DESC NULLS LAST, number DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list fiscal documents: %w", err)
	}
	defer rows.Close()
	list := []*entity.FiscalDocument{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan fiscal document: %w", err)
		}
		list = append(list, d)
	}
	return list, total, rows.Err()
}

// Stats contadores del panel con la misma prioridad de etiquetas que StatusLabel.
func (r *FiscalDocumentRepo) Stats(ctx context.Context, f repository.DocumentFilter) (*repository.DocumentStats, error) {
	where, args := documentWhere(f)
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT cancelled AND NOT voided AND NOT denied AND status_code = 100),
			COUNT(*) FILTER (WHERE cancelled),
			COUNT(*) FILTER (WHERE NOT cancelled AND NOT voided AND NOT denied AND status_code <> 100),
			COALESCE(SUM(total), 0)
		FROM fiscal_documents` + where
	var st repository.DocumentStats
	if err := r.q.QueryRow(ctx, query, args...).Scan(
		&st.Total, &st.Authorized, &st.Cancelled, &st.Pending, &st.TotalValue,
	); err != nil {
		return nil, fmt.Errorf("fiscal document stats: %w", err)
	}
	return &st, nil
}
