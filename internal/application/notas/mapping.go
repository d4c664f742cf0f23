package notas

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// Criterios de la sugerencia, en orden de prioridad.
const (
	MatchByEAN         = "ean"
	MatchByCode        = "codigo"
	MatchByDescription = "descricao"
)

const (
	descriptionPrefixLen = 20
	descriptionMinLen    = 5
	searchMinLen         = 2
	searchLimit          = 10
)

// Suggestion ítem de la nota con el producto sugerido (nil si no hubo coincidencia).
type Suggestion struct {
	Item      entity.LineItem
	Product   *entity.Product
	MatchedBy string
}

// MappingService asiste al operador a relacionar los ítems de la nota con el catálogo.
type MappingService struct {
	documents repository.FiscalDocumentRepository
	products  repository.ProductRepository
	parser    *sefaz.Parser
	now       func() time.Time
}

// NewMappingService construye el servicio.
func NewMappingService(documents repository.FiscalDocumentRepository, products repository.ProductRepository, parser *sefaz.Parser) *MappingService {
	if parser == nil {
		parser = sefaz.NewParser()
	}
	return &MappingService{documents: documents, products: products, parser: parser, now: time.Now}
}

// Suggest por EAN (salvo "SEM GTIN"), luego por código del fornecedor y por último por
// descripción, solo si el prefijo coincide con un único producto.
func (s *MappingService) Suggest(ctx context.Context, tenant entity.Tenant, documentID string) ([]Suggestion, error) {
	doc, err := s.electronic(ctx, tenant, documentID)
	if err != nil {
		return nil, err
	}
	var out []Suggestion
	for item, err := range s.parser.LineItems([]byte(*doc.XML)) {
		if err != nil {
			return nil, err
		}
		sg := Suggestion{Item: item}
		sg.Product, sg.MatchedBy, err = s.match(ctx, tenant.CompanyID, item)
		if err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	return out, nil
}

func (s *MappingService) match(ctx context.Context, companyID string, item entity.LineItem) (*entity.Product, string, error) {
	if ean := strings.TrimSpace(item.EAN); ean != "" && !strings.EqualFold(ean, nfe.NoGTIN) {
		p, err := s.products.GetByBarcode(ctx, companyID, ean)
		if err != nil || p != nil {
			return p, MatchByEAN, err
		}
	}
	if code := strings.TrimSpace(item.SupplierCode); code != "" {
		p, err := s.products.GetByCode(ctx, companyID, code)
		if err != nil || p != nil {
			return p, MatchByCode, err
		}
	}
	desc := strings.TrimSpace(item.Description)
	if utf8.RuneCountInString(desc) > descriptionMinLen {
		found, err := s.products.FindByNamePrefix(ctx, companyID, truncate(desc, descriptionPrefixLen), 2)
		if err != nil {
			return nil, "", err
		}
		if len(found) == 1 {
			return found[0], MatchByDescription, nil
		}
	}
	return nil, "", nil
}

// Validate errores para producto no informado o inexistente; avisos para productos inactivos.
func (s *MappingService) Validate(ctx context.Context, tenant entity.Tenant, items []MappedItem) (*dto.MappingValidationResponse, error) {
	res := &dto.MappingValidationResponse{Errors: []dto.MappingIssue{}, Warnings: []dto.MappingIssue{}}
	for _, it := range items {
		code := strings.TrimSpace(it.ProductCode)
		if code == "" {
			res.Errors = append(res.Errors, dto.MappingIssue{Index: it.Index, Message: ReasonProductMissing})
			continue
		}
		p, err := s.products.GetByCode(ctx, tenant.CompanyID, code)
		if err != nil {
			return nil, err
		}
		switch {
		case p == nil:
			res.Errors = append(res.Errors, dto.MappingIssue{Index: it.Index, Message: fmt.Sprintf("%s: %s", ReasonProductNotFound, code)})
		case !p.Active:
			res.Warnings = append(res.Warnings, dto.MappingIssue{Index: it.Index, Message: fmt.Sprintf("producto %s inactivo", code)})
		}
	}
	res.Valid = len(res.Errors) == 0
	return res, nil
}

// CreateProduct alta desde los datos del ítem. Si el código ya existe devuelve ese producto.
func (s *MappingService) CreateProduct(ctx context.Context, companyID string, req dto.CreateProductRequest) (*entity.Product, bool, error) {
	if err := dto.Validate(req); err != nil {
		return nil, false, err
	}
	code := strings.TrimSpace(req.Code)
	existing, err := s.products.GetByCode(ctx, companyID, code)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	barcode := strings.TrimSpace(req.Barcode)
	if strings.EqualFold(barcode, nfe.NoGTIN) {
		barcode = ""
	}
	p := &entity.Product{
		CompanyID: companyID,
		Code:      code,
		Name:      strings.TrimSpace(req.Name),
		Barcode:   barcode,
		NCM:       truncate(nfe.Digits(req.NCM), 8),
		Unit:      strings.ToUpper(strings.TrimSpace(req.Unit)),
		Type:      "P",
		Origin:    "0",
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, false, fmt.Errorf("crear producto %s: %w", code, err)
	}
	return p, true, nil
}

// CreateMissing alta en lote; los códigos existentes se devuelven sin crear.
func (s *MappingService) CreateMissing(ctx context.Context, companyID string, req dto.CreateMissingRequest) ([]*entity.Product, int, error) {
	if err := dto.Validate(req); err != nil {
		return nil, 0, err
	}
	var (
		out     []*entity.Product
		created int
	)
	for _, it := range req.Items {
		p, isNew, err := s.CreateProduct(ctx, companyID, it)
		if err != nil {
			return out, created, err
		}
		if isNew {
			created++
		}
		out = append(out, p)
	}
	return out, created, nil
}

// SearchProducts código, nombre o código de barras; a partir de 2 caracteres.
func (s *MappingService) SearchProducts(ctx context.Context, companyID, query string) ([]*entity.Product, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < searchMinLen {
		return []*entity.Product{}, nil
	}
	return s.products.Search(ctx, companyID, query, searchLimit)
}

func (s *MappingService) electronic(ctx context.Context, tenant entity.Tenant, id string) (*entity.FiscalDocument, error) {
	doc, err := s.documents.GetByID(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: nota %s", domain.ErrNotFound, id)
	}
	if doc.IsManual() {
		return nil, &domain.OperationError{Operation: "itens", Reason: "la nota manual no tiene XML"}
	}
	return doc, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
