package notas

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

// ManualEntryResult resultado del registro de una nota manual.
type ManualEntryResult struct {
	Document        *entity.FiscalDocument
	Created         bool
	StockEntries    []*entity.StockEntry
	Titles          []*entity.PayableTitle
	ReplacedEntries int64
	ReplacedTitles  int64
}

// ManualEntryService registra notas que nunca llegaron por distribución. No pasa por la guarda
// de FulfillmentService: en cada edición borra y vuelve a generar las entradas y los títulos.
type ManualEntryService struct {
	tx         TxRunner
	normalizer *Normalizer
	log        *logger.Logger
	now        func() time.Time
}

// NewManualEntryService construye el servicio.
func NewManualEntryService(tx TxRunner, normalizer *Normalizer, log *logger.Logger) *ManualEntryService {
	if log == nil {
		log = logger.Nop()
	}
	return &ManualEntryService{tx: tx, normalizer: normalizer, log: log.Component("notas.manual"), now: time.Now}
}

// Register crea o reemplaza la nota manual y sus artefactos en una sola transacción.
func (s *ManualEntryService) Register(ctx context.Context, tenant entity.Tenant, req dto.ManualEntryRequest) (*ManualEntryResult, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	src := manualTotal(manualSourceFrom(req))
	for _, it := range src.Items {
		if !it.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: cantidad inválida para el producto %s", domain.ErrInvalidInput, it.ProductCode)
		}
	}

	res := &ManualEntryResult{}
	err := s.tx.RunNotas(ctx, func(repos TxRepos) error {
		number := strconv.FormatInt(src.Number, 10)
		if err := repos.Titles.LockDocument(ctx, tenant, src.Series, number); err != nil {
			return err
		}
		existing, err := repos.Documents.GetByKey(ctx, tenant, src.Number, src.Series)
		if err != nil {
			return err
		}
		if existing != nil && !existing.IsManual() {
			return fmt.Errorf("%w: la nota %s ya fue recibida por distribución", domain.ErrConflict, existing.DisplayNumber())
		}

		doc, created, err := s.normalizer.ingest(ctx, repos.Documents, repos.Counterparties, tenant, src)
		if err != nil {
			return err
		}
		res.Document, res.Created = doc, created

		// la edición puede cambiar el fornecedor: se borra lo generado con el anterior y con el nuevo.
		suppliers := []string{src.SupplierID}
		if existing != nil && existing.CounterpartyID != nil && *existing.CounterpartyID != src.SupplierID {
			suppliers = append(suppliers, *existing.CounterpartyID)
		}
		observation := fmt.Sprintf(entity.StockObservationManual, src.Number)
		for _, supplier := range suppliers {
			n, err := repos.StockEntries.DeleteByObservation(ctx, tenant, supplier, observation)
			if err != nil {
				return fmt.Errorf("borrar entradas anteriores: %w", err)
			}
			res.ReplacedEntries += n
			if n, err = repos.Titles.DeleteByDocument(ctx, tenant, supplier, src.Series, number); err != nil {
				return fmt.Errorf("borrar títulos anteriores: %w", err)
			}
			res.ReplacedTitles += n
		}

		entryDate := doc.EmissionDateOr(s.now())
		if doc.EntryDate != nil {
			entryDate = dateOnly(*doc.EntryDate)
		}
		for _, it := range src.Items {
			product, err := repos.Products.GetByCode(ctx, tenant.CompanyID, it.ProductCode)
			if err != nil {
				return err
			}
			if product == nil {
				return fmt.Errorf("%w: producto %s no existe", domain.ErrInvalidInput, it.ProductCode)
			}
			entry, err := createStockEntry(ctx, repos, tenant, doc, product.Code, it.Quantity, it.Total, observation, entryDate)
			if err != nil {
				return err
			}
			res.StockEntries = append(res.StockEntries, entry)
		}

		installments := make([]entity.Installment, 0, len(src.Installments))
		for _, in := range src.Installments {
			due := in.DueDate
			installments = append(installments, entity.Installment{Number: in.Number, DueDate: &due, Amount: in.Amount})
		}
		res.Titles, err = createTitles(ctx, repos, tenant, doc, installments, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Tenant(tenant.CompanyID, tenant.BranchID).Info().
		Str("nota", res.Document.DisplayNumber()).
		Bool("nueva", res.Created).
		Int("entradas", len(res.StockEntries)).
		Int("titulos", len(res.Titles)).
		Int64("entradas_reemplazadas", res.ReplacedEntries).
		Int64("titulos_reemplazados", res.ReplacedTitles).
		Msg("nota manual registrada")
	return res, nil
}

func manualSourceFrom(req dto.ManualEntryRequest) entity.ManualSource {
	src := entity.ManualSource{
		SupplierID: req.SupplierID,
		Number:     req.Number,
		Series:     req.Series,
		IssuedAt:   req.IssuedAt,
		EntryDate:  req.EntryDate,
		Total:      req.Total,
	}
	for _, it := range req.Items {
		src.Items = append(src.Items, entity.ManualItem{ProductCode: it.ProductCode, Quantity: it.Quantity, Total: it.Total})
	}
	for _, in := range req.Installments {
		src.Installments = append(src.Installments, entity.ManualInstallment{Number: in.Number, DueDate: in.DueDate, Amount: in.Amount})
	}
	return src
}
