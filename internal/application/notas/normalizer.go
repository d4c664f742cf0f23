package notas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	domainnfe "github.com/jhoicas/notas-destinadas/internal/domain/nfe"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// Normalizer convierte un origen (XML distribuido o nota manual) en el registro canónico
// y lo guarda por clave natural, sobrescribiendo todos los campos si ya existía.
type Normalizer struct {
	documents      repository.FiscalDocumentRepository
	counterparties repository.CounterpartyRepository
	parser         *sefaz.Parser
}

// NewNormalizer construye el normalizador sobre los repositorios fuera de transacción.
func NewNormalizer(documents repository.FiscalDocumentRepository, counterparties repository.CounterpartyRepository, parser *sefaz.Parser) *Normalizer {
	if parser == nil {
		parser = sefaz.NewParser()
	}
	return &Normalizer{documents: documents, counterparties: counterparties, parser: parser}
}

// Ingest normaliza y hace upsert. Devuelve el registro (con ID) y true si fue creado.
// Un XML sin los bloques obligatorios devuelve un error que envuelve nfe.ErrInvalidDocument.
func (n *Normalizer) Ingest(ctx context.Context, tenant entity.Tenant, src entity.DocumentSource) (*entity.FiscalDocument, bool, error) {
	return n.ingest(ctx, n.documents, n.counterparties, tenant, src)
}

func (n *Normalizer) ingest(ctx context.Context, documents repository.FiscalDocumentRepository, counterparties repository.CounterpartyRepository, tenant entity.Tenant, src entity.DocumentSource) (*entity.FiscalDocument, bool, error) {
	if !tenant.Valid() {
		return nil, false, fmt.Errorf("%w: empresa y filial son obligatorias", domain.ErrInvalidInput)
	}
	var (
		doc *entity.FiscalDocument
		err error
	)
	switch s := src.(type) {
	case entity.ElectronicSource:
		doc, err = n.fromXML(s)
	case entity.ManualSource:
		doc, err = n.fromManual(ctx, counterparties, tenant, s)
	default:
		return nil, false, fmt.Errorf("%w: origen de nota desconocido", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, false, err
	}
	doc.CompanyID = tenant.CompanyID
	doc.BranchID = tenant.BranchID
	if err := domainnfe.ValidateDocument(doc); err != nil {
		return nil, false, err
	}
	created, err := documents.Upsert(ctx, doc)
	if err != nil {
		return nil, false, fmt.Errorf("upsert nota %s: %w", doc.DisplayNumber(), err)
	}
	return doc, created, nil
}

func (n *Normalizer) fromXML(s entity.ElectronicSource) (*entity.FiscalDocument, error) {
	if len(s.XML) == 0 {
		return nil, fmt.Errorf("%w: XML vacío", domainnfe.ErrInvalidDocument)
	}
	doc, err := n.parser.Parse(s.XML)
	if err != nil {
		return nil, err
	}
	doc.CounterpartyID = s.DefaultCounterpartyID
	return doc, nil
}

// fromManual el emitente sale del cadastro del fornecedor informado.
func (n *Normalizer) fromManual(ctx context.Context, counterparties repository.CounterpartyRepository, tenant entity.Tenant, s entity.ManualSource) (*entity.FiscalDocument, error) {
	if strings.TrimSpace(s.SupplierID) == "" {
		return nil, fmt.Errorf("%w: fornecedor obligatorio", domain.ErrInvalidInput)
	}
	supplier, err := counterparties.GetByID(ctx, tenant.CompanyID, s.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("buscar fornecedor: %w", err)
	}
	if supplier == nil {
		return nil, fmt.Errorf("%w: fornecedor %s no existe", domain.ErrInvalidInput, s.SupplierID)
	}

	supplierID := supplier.ID
	doc := &entity.FiscalDocument{
		CounterpartyID: &supplierID,
		Number:         s.Number,
		Series:         strings.TrimSpace(s.Series),
		Issuer: entity.Party{
			CNPJ:      nfe.Digits(supplier.CNPJ),
			CPF:       nfe.Digits(supplier.CPF),
			Name:      supplier.Name,
			TradeName: supplier.TradeName,
			Address: entity.Address{
				Street:   supplier.Street,
				Number:   supplier.Number,
				District: supplier.District,
				City:     supplier.City,
				State:    supplier.State,
				ZIP:      supplier.ZIP,
				Phone:    supplier.Phone,
			},
		},
		Totals: entity.Totals{Total: s.Total},
	}
	if !s.IssuedAt.IsZero() {
		issued := s.IssuedAt
		doc.IssuedAt = &issued
	}
	if !s.EntryDate.IsZero() {
		entry := s.EntryDate
		doc.EntryDate = &entry
	}
	return doc, nil
}

// manualTotal total informado o, si viene en cero, la suma de los ítems.
func manualTotal(s entity.ManualSource) entity.ManualSource {
	if !s.Total.IsZero() {
		return s
	}
	for _, it := range s.Items {
		s.Total = s.Total.Add(it.Total)
	}
	return s
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
