package notas

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// FulfillmentStatus resultado definido de una entrada; ninguno es un error.
type FulfillmentStatus string

const (
	StatusFulfilled        FulfillmentStatus = "fulfilled"
	StatusMappingPending   FulfillmentStatus = "mapping_pending"
	StatusAlreadyFulfilled FulfillmentStatus = "already_fulfilled"
)

// Motivos de un ítem pendiente.
const (
	ReasonProductMissing  = "producto no informado"
	ReasonProductNotFound = "producto no encontrado"
	ReasonInvalidQuantity = "cantidad inválida"
	ReasonUnknownItem     = "ítem inexistente en la nota"
)

// MappedItem ítem de la nota (por nItem) con el producto elegido por el operador.
// Cantidad y total en cero toman los valores del XML.
type MappedItem struct {
	Index       string
	ProductCode string
	Quantity    decimal.Decimal
	Total       decimal.Decimal
	Barcode     string
}

// FulfillInput nota registrada + mapeo curado.
type FulfillInput struct {
	DocumentID string
	Items      []MappedItem
}

// PendingMappingItem ítem que no se pudo resolver. No se persiste.
type PendingMappingItem struct {
	Index  string
	Reason string
}

// FulfillmentResult lo creado, lo pendiente o el título que ya existía.
type FulfillmentResult struct {
	Status        FulfillmentStatus
	Document      *entity.FiscalDocument
	StockEntries  []*entity.StockEntry
	Titles        []*entity.PayableTitle
	Pending       []PendingMappingItem
	ExistingTitle *entity.PayableTitle
}

// FulfillmentService da entrada en estoque y genera los títulos a pagar de una nota distribuida.
type FulfillmentService struct {
	tx     TxRunner
	parser *sefaz.Parser
	log    *logger.Logger
	now    func() time.Time
}

// NewFulfillmentService construye el servicio.
func NewFulfillmentService(tx TxRunner, parser *sefaz.Parser, log *logger.Logger) *FulfillmentService {
	if parser == nil {
		parser = sefaz.NewParser()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FulfillmentService{tx: tx, parser: parser, log: log.Component("notas.entrada"), now: time.Now}
}

// Fulfill todo lo posterior a la guarda corre en una transacción: un fallo deshace
// todas las entradas y títulos de esta llamada.
func (s *FulfillmentService) Fulfill(ctx context.Context, tenant entity.Tenant, in FulfillInput) (*FulfillmentResult, error) {
	if !tenant.Valid() || strings.TrimSpace(in.DocumentID) == "" {
		return nil, fmt.Errorf("%w: empresa, filial y nota son obligatorias", domain.ErrInvalidInput)
	}

	res := &FulfillmentResult{}
	err := s.tx.RunNotas(ctx, func(repos TxRepos) error {
		doc, err := repos.Documents.GetByID(ctx, tenant, in.DocumentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: nota %s", domain.ErrNotFound, in.DocumentID)
		}
		if doc.IsManual() {
			return &domain.OperationError{Operation: "entrada", Reason: "las notas manuales generan sus entradas al registrarse"}
		}
		res.Document = doc

		number := strconv.FormatInt(doc.Number, 10)
		if err := repos.Titles.LockDocument(ctx, tenant, doc.Series, number); err != nil {
			return err
		}
		existing, err := repos.Titles.FindFirstByDocument(ctx, tenant, doc.Series, number)
		if err != nil {
			return err
		}
		if existing != nil {
			res.Status = StatusAlreadyFulfilled
			res.ExistingTitle = existing
			return nil
		}

		supplierID, err := resolveCounterparty(ctx, repos, tenant, doc)
		if err != nil {
			return err
		}
		doc.CounterpartyID = supplierID

		items, err := s.lineItems(doc)
		if err != nil {
			return err
		}

		type resolved struct {
			product  *entity.Product
			quantity decimal.Decimal
			total    decimal.Decimal
			barcode  string
		}
		var ok []resolved
		for _, m := range in.Items {
			line, found := items[m.Index]
			switch {
			case !found:
				res.Pending = append(res.Pending, PendingMappingItem{Index: m.Index, Reason: ReasonUnknownItem})
				continue
			case strings.TrimSpace(m.ProductCode) == "":
				res.Pending = append(res.Pending, PendingMappingItem{Index: m.Index, Reason: ReasonProductMissing})
				continue
			}
			product, err := repos.Products.GetByCode(ctx, tenant.CompanyID, strings.TrimSpace(m.ProductCode))
			if err != nil {
				return err
			}
			if product == nil {
				res.Pending = append(res.Pending, PendingMappingItem{Index: m.Index, Reason: ReasonProductNotFound})
				continue
			}
			quantity, total := m.Quantity, m.Total
			if quantity.IsZero() && line.Quantity.Valid {
				quantity = line.Quantity.Decimal
			}
			if total.IsZero() && line.Total.Valid {
				total = line.Total.Decimal
			}
			if !quantity.IsPositive() {
				res.Pending = append(res.Pending, PendingMappingItem{Index: m.Index, Reason: ReasonInvalidQuantity})
				continue
			}
			ok = append(ok, resolved{product: product, quantity: quantity, total: total, barcode: barcodeOf(m.Barcode, line.EAN)})
		}

		if len(ok) == 0 {
			res.Status = StatusMappingPending
			return nil
		}

		now := s.now()
		observation := fmt.Sprintf(entity.StockObservationAuto, doc.Number)
		for _, r := range ok {
			entry, err := createStockEntry(ctx, repos, tenant, doc, r.product.Code, r.quantity, r.total, observation, doc.EmissionDateOr(now))
			if err != nil {
				return err
			}
			res.StockEntries = append(res.StockEntries, entry)
			if r.barcode != "" && r.product.Barcode == "" {
				if err := repos.Products.SetBarcodeIfEmpty(ctx, tenant.CompanyID, r.product.Code, r.barcode); err != nil {
					return fmt.Errorf("código de barras de %s: %w", r.product.Code, err)
				}
			}
		}

		installments, err := s.parser.Installments([]byte(*doc.XML))
		if err != nil {
			return err
		}
		if res.Titles, err = createTitles(ctx, repos, tenant, doc, installments, now); err != nil {
			return err
		}

		res.Status = StatusFulfilled
		if len(res.Pending) > 0 {
			res.Status = StatusMappingPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.log.Tenant(tenant.CompanyID, tenant.BranchID)
	ev := log.Info()
	if res.Status == StatusMappingPending {
		ev = log.Warn()
	}
	ev.Str("nota", res.Document.DisplayNumber()).
		Str("resultado", string(res.Status)).
		Int("entradas", len(res.StockEntries)).
		Int("titulos", len(res.Titles)).
		Int("pendientes", len(res.Pending)).
		Msg("entrada de nota procesada")
	return res, nil
}

// lineItems ítems del XML por nItem.
func (s *FulfillmentService) lineItems(doc *entity.FiscalDocument) (map[string]entity.LineItem, error) {
	out := make(map[string]entity.LineItem)
	for item, err := range s.parser.LineItems([]byte(*doc.XML)) {
		if err != nil {
			return nil, err
		}
		out[item.Index] = item
	}
	return out, nil
}

// resolveCounterparty busca el emitente por CNPJ/CPF en los dos formatos guardados;
// gana la primera coincidencia. Sin coincidencia se conserva el fornecedor por defecto (puede ser nil).
func resolveCounterparty(ctx context.Context, repos TxRepos, tenant entity.Tenant, doc *entity.FiscalDocument) (*string, error) {
	for _, variant := range nfe.TaxIDVariants(doc.Issuer.TaxID()) {
		c, err := repos.Counterparties.FindByTaxID(ctx, tenant.CompanyID, variant)
		if err != nil {
			return nil, fmt.Errorf("buscar fornecedor: %w", err)
		}
		if c != nil {
			id := c.ID
			return &id, nil
		}
	}
	return doc.CounterpartyID, nil
}

func barcodeOf(informed, fromXML string) string {
	if b := strings.TrimSpace(informed); b != "" {
		return b
	}
	if b := strings.TrimSpace(fromXML); b != "" && !strings.EqualFold(b, nfe.NoGTIN) {
		return b
	}
	return ""
}

// createStockEntry reserva la secuencia (lock de la empresa hasta el commit) y crea la entrada.
func createStockEntry(ctx context.Context, repos TxRepos, tenant entity.Tenant, doc *entity.FiscalDocument, productCode string, quantity, total decimal.Decimal, observation string, date time.Time) (*entity.StockEntry, error) {
	seq, err := repos.StockEntries.NextSequence(ctx, tenant.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("secuencia de estoque: %w", err)
	}
	entry := &entity.StockEntry{
		Sequence:       seq,
		CompanyID:      tenant.CompanyID,
		BranchID:       tenant.BranchID,
		ProductCode:    productCode,
		CounterpartyID: doc.CounterpartyID,
		Date:           date,
		Quantity:       quantity,
		Total:          total,
		UserID:         tenant.UserID,
		Observation:    observation,
		Series:         doc.Series,
		DocumentNumber: doc.Number,
	}
	if err := repos.StockEntries.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("crear entrada de estoque: %w", err)
	}
	return entry, nil
}

// createTitles un título por duplicata; sin duplicatas, uno solo por el total de la nota.
// Todos nacen abiertos.
func createTitles(ctx context.Context, repos TxRepos, tenant entity.Tenant, doc *entity.FiscalDocument, installments []entity.Installment, now time.Time) ([]*entity.PayableTitle, error) {
	issue := doc.EmissionDateOr(now)
	number := strconv.FormatInt(doc.Number, 10)
	if len(installments) == 0 {
		if !doc.Totals.Total.IsPositive() {
			return nil, nil
		}
		installments = []entity.Installment{{Number: "1", Amount: doc.Totals.Total}}
	}

	titles := make([]*entity.PayableTitle, 0, len(installments))
	for _, in := range installments {
		due := issue
		if in.DueDate != nil {
			due = dateOnly(*in.DueDate)
		}
		t := &entity.PayableTitle{
			CompanyID:   tenant.CompanyID,
			BranchID:    tenant.BranchID,
			SupplierID:  doc.CounterpartyID,
			Type:        entity.TitleTypeEntry,
			Number:      number,
			Series:      doc.Series,
			Installment: in.Number,
			Amount:      in.Amount,
			DueDate:     due,
			IssueDate:   issue,
			Status:      entity.TitleStatusOpen,
			UserID:      tenant.UserID,
			History:     fmt.Sprintf("NF-e %d - %s", doc.Number, in.Number),
		}
		if err := repos.Titles.Create(ctx, t); err != nil {
			return nil, fmt.Errorf("crear título %s/%s: %w", number, in.Number, err)
		}
		titles = append(titles, t)
	}
	return titles, nil
}
