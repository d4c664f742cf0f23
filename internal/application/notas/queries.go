package notas

import (
	"context"
	"fmt"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// QueryService lecturas de la pantalla de notas destinadas.
type QueryService struct {
	documents repository.FiscalDocumentRepository
	branches  repository.BranchRepository
	parser    *sefaz.Parser
}

// NewQueryService construye el servicio.
func NewQueryService(documents repository.FiscalDocumentRepository, branches repository.BranchRepository, parser *sefaz.Parser) *QueryService {
	if parser == nil {
		parser = sefaz.NewParser()
	}
	return &QueryService{documents: documents, branches: branches, parser: parser}
}

// BranchConfig UF, CNPJ en dígitos, último NSU, ruta del certificado y ambiente.
func (s *QueryService) BranchConfig(ctx context.Context, tenant entity.Tenant) (*dto.BranchConfigResponse, error) {
	b, err := s.branch(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return &dto.BranchConfigResponse{
		CompanyID:     b.CompanyID,
		BranchID:      b.BranchID,
		Jurisdiction:  b.Jurisdiction,
		TaxID:         nfe.Digits(b.TaxID),
		Cursor:        b.Cursor.String(),
		CertPath:      b.CertPath,
		HasCredential: b.HasCredential(),
		Environment:   b.Environment,
		ImportActive:  b.ImportActive,
	}, nil
}

// List notas destinadas al CNPJ de la filial (con o sin máscara), sin las emitidas por ella misma.
func (s *QueryService) List(ctx context.Context, tenant entity.Tenant, req dto.ListDocumentsRequest) (*dto.DocumentPage, error) {
	req.DefaultPage()
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	filter, err := s.filter(ctx, tenant)
	if err != nil {
		return nil, err
	}
	filter.Search = req.Search
	filter.IssuedFrom, filter.IssuedTo = req.From, req.To
	filter.Limit, filter.Offset = req.Limit, req.Offset

	docs, total, err := s.documents.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, ToDocumentResponse(d))
	}
	return &dto.DocumentPage{
		Items: items,
		Page:  dto.NewPageResponse(req.PageRequest, total),
	}, nil
}

// Dashboard contadores del panel sobre el mismo filtro del listado.
func (s *QueryService) Dashboard(ctx context.Context, tenant entity.Tenant) (*dto.DashboardResponse, error) {
	filter, err := s.filter(ctx, tenant)
	if err != nil {
		return nil, err
	}
	st, err := s.documents.Stats(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.DashboardResponse{
		Total:      st.Total,
		Authorized: st.Authorized,
		Cancelled:  st.Cancelled,
		Pending:    st.Pending,
		TotalValue: st.TotalValue,
	}, nil
}

// Get una nota en el formato de exportación.
func (s *QueryService) Get(ctx context.Context, tenant entity.Tenant, id string) (*dto.DocumentResponse, error) {
	d, err := s.document(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	out := ToDocumentResponse(d)
	return &out, nil
}

// LineItems ítems recalculados del XML en cada llamada.
func (s *QueryService) LineItems(ctx context.Context, tenant entity.Tenant, id string) ([]dto.LineItemResponse, error) {
	d, err := s.document(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if d.IsManual() {
		return []dto.LineItemResponse{}, nil
	}
	out := []dto.LineItemResponse{}
	for item, err := range s.parser.LineItems([]byte(*d.XML)) {
		if err != nil {
			return nil, err
		}
		out = append(out, ToLineItemResponse(item))
	}
	return out, nil
}

func (s *QueryService) filter(ctx context.Context, tenant entity.Tenant) (repository.DocumentFilter, error) {
	b, err := s.branch(ctx, tenant)
	if err != nil {
		return repository.DocumentFilter{}, err
	}
	return repository.DocumentFilter{
		CompanyID:       tenant.CompanyID,
		BranchID:        tenant.BranchID,
		RecipientTaxIDs: nfe.TaxIDVariants(b.TaxID),
	}, nil
}

func (s *QueryService) branch(ctx context.Context, tenant entity.Tenant) (*entity.Branch, error) {
	if !tenant.Valid() {
		return nil, fmt.Errorf("%w: empresa y filial son obligatorias", domain.ErrInvalidInput)
	}
	b, err := s.branches.Get(ctx, tenant.CompanyID, tenant.BranchID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: filial %s", domain.ErrNotFound, tenant.BranchID)
	}
	return b, nil
}

func (s *QueryService) document(ctx context.Context, tenant entity.Tenant, id string) (*entity.FiscalDocument, error) {
	d, err := s.documents.GetByID(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: nota %s", domain.ErrNotFound, id)
	}
	return d, nil
}

// ToDocumentResponse exportación canónica del registro.
func ToDocumentResponse(d *entity.FiscalDocument) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:             d.ID,
		CompanyID:      d.CompanyID,
		BranchID:       d.BranchID,
		Number:         d.Number,
		Series:         d.Series,
		DisplayNumber:  d.DisplayNumber(),
		AccessKey:      d.AccessKey,
		IssuedAt:       d.IssuedAt,
		IssuerTaxID:    d.Issuer.TaxID(),
		IssuerName:     d.Issuer.Name,
		RecipientTaxID: d.Recipient.TaxID(),
		RecipientName:  d.Recipient.Name,
		Total:          d.Totals.Total,
		StatusCode:     d.StatusCode,
		StatusLabel:    d.StatusLabel(),
		Protocol:       d.Protocol,
		Manual:         d.IsManual(),
	}
}

// ToLineItemResponse ítem del XML en JSON.
func ToLineItemResponse(it entity.LineItem) dto.LineItemResponse {
	return dto.LineItemResponse{
		Index:        it.Index,
		SupplierCode: it.SupplierCode,
		Description:  it.Description,
		NCM:          it.NCM,
		CFOP:         it.CFOP,
		Unit:         it.Unit,
		EAN:          it.EAN,
		Quantity:     it.Quantity,
		UnitValue:    it.UnitValue,
		Total:        it.Total,
	}
}

// ToProductResponse salida de un producto.
func ToProductResponse(p *entity.Product) *dto.ProductResponse {
	if p == nil {
		return nil
	}
	return &dto.ProductResponse{
		CompanyID: p.CompanyID,
		Code:      p.Code,
		Name:      p.Name,
		Barcode:   p.Barcode,
		NCM:       p.NCM,
		Unit:      p.Unit,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
}

// ToBatchSummaryResponse resumen de la pasada para la API.
func ToBatchSummaryResponse(s *BatchSummary) dto.BatchSummaryResponse {
	return dto.BatchSummaryResponse{
		CompanyID:      s.Tenant.CompanyID,
		BranchID:       s.Tenant.BranchID,
		Status:         s.Status,
		Message:        s.Message,
		Fetched:        s.Fetched,
		Created:        s.Created,
		Updated:        s.Updated,
		Skipped:        s.Skipped,
		Invalid:        s.Invalid,
		Acknowledged:   s.Acknowledged,
		AckFailed:      s.AckFailed,
		PreviousCursor: s.PreviousCursor,
		Cursor:         s.Cursor,
		HasMore:        s.HasMore,
		SkippedNSUs:    s.SkippedNSUs,
	}
}

// ToFulfillResponse resultado de la entrada para la API.
func ToFulfillResponse(r *FulfillmentResult) dto.FulfillResponse {
	out := dto.FulfillResponse{
		Status:       string(r.Status),
		StockEntries: len(r.StockEntries),
		Titles:       len(r.Titles),
	}
	if r.Document != nil {
		out.DocumentID = r.Document.ID
	}
	for _, p := range r.Pending {
		out.Pending = append(out.Pending, dto.PendingItemResponse{Index: p.Index, Reason: p.Reason})
	}
	switch r.Status {
	case StatusAlreadyFulfilled:
		out.ExistingTitle = r.ExistingTitle.ID
		out.Message = fmt.Sprintf("la nota ya tuvo entrada (título %s/%s)", r.ExistingTitle.Number, r.ExistingTitle.Installment)
	case StatusMappingPending:
		out.Message = fmt.Sprintf("%d ítem(s) sin producto", len(r.Pending))
	default:
		out.Message = "entrada realizada"
	}
	return out
}
