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

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `company_id, code, name, barcode, ncm, unit, type, origin, active, created_at`

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	if err := row.Scan(&p.CompanyID, &p.Code, &p.Name, &p.Barcode, &p.NCM, &p.Unit,
		&p.Type, &p.Origin, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	list := []*entity.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *ProductRepo) one(ctx context.Context, query string, args ...any) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Create persiste un nuevo producto. Código repetido en la empresa devuelve domain.ErrDuplicate.
func (r *ProductRepo) Create(ctx context.Context, product *entity.Product) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO products (company_id, code, name, barcode, ncm, unit, type, origin, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING created_at`,
		product.CompanyID, product.Code, product.Name, product.Barcode, product.NCM, product.Unit,
		product.Type, product.Origin, product.Active,
	).Scan(&product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByCode obtiene un producto por empresa y código.
func (r *ProductRepo) GetByCode(ctx context.Context, companyID, code string) (*entity.Product, error) {
	return r.one(ctx, `SELECT `+productColumns+` FROM products WHERE company_id = $1 AND code = $2`,
		companyID, code)
}

// GetByBarcode primer producto activo con ese EAN.
func (r *ProductRepo) GetByBarcode(ctx context.Context, companyID, barcode string) (*entity.Product, error) {
	if barcode == "" {
		return nil, nil
	}
	return r.one(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE company_id = $1 AND barcode = $2 AND active
		ORDER BY code LIMIT 1`,
		companyID, barcode)
}

// FindByNamePrefix productos activos cuyo nombre empieza por prefix.
func (r *ProductRepo) FindByNamePrefix(ctx context.Context, companyID, prefix string, limit int) ([]*entity.Product, error) {
	return r.list(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE company_id = $1 AND active AND name ILIKE $2
		ORDER BY name, code LIMIT $3`,
		companyID, escapeLike(prefix)+"%", limit)
}

// SetBarcodeIfEmpty completa el EAN sin pisar uno existente.
func (r *ProductRepo) SetBarcodeIfEmpty(ctx context.Context, companyID, code, barcode string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE products SET barcode = $3
		WHERE company_id = $1 AND code = $2 AND barcode = ''`,
		companyID, code, barcode,
	)
	if err != nil {
		return fmt.Errorf("set product barcode: %w", err)
	}
	return nil
}

// Search coincidencia parcial en código, nombre o código de barras.
func (r *ProductRepo) Search(ctx context.Context, companyID, query string, limit int) ([]*entity.Product, error) {
	pattern := "%" + escapeLike(query) + "%"
	return r.list(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE company_id = $1 AND active AND (code ILIKE $2 OR name ILIKE $2 OR barcode ILIKE $2)
		ORDER BY name, code LIMIT $3`,
		companyID, pattern, limit)
}
