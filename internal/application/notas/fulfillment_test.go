package notas_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	domainnfe "github.com/jhoicas/notas-destinadas/internal/domain/nfe"
)

// fulfillSetup nota 450 ingerida, productos PA y PB y el fornecedor con CNPJ enmascarado.
func fulfillSetup(t *testing.T, xml []byte) (*memStore, *notas.FulfillmentService, *entity.FiscalDocument) {
	t.Helper()
	s := newStore()
	s.addProduct(entity.Product{Code: "PA", Name: "Parafuso 10mm", Active: true})
	s.addProduct(entity.Product{Code: "PB", Name: "Arruela 10mm", Barcode: "7890000000001", Active: true})
	s.addParty(entity.Counterparty{ID: "forn-1", Name: "Distribuidora Paulista", CNPJ: "12.345.678/0001-99"})

	doc, _, err := newNormalizer(s).Ingest(context.Background(), tenant, entity.ElectronicSource{XML: xml})
	require.NoError(t, err)
	return s, notas.NewFulfillmentService(s, nil, nil), doc
}

func bothItems(docID string) notas.FulfillInput {
	return notas.FulfillInput{
		DocumentID: docID,
		Items: []notas.MappedItem{
			{Index: "1", ProductCode: "PA"},
			{Index: "2", ProductCode: "PB"},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenario principal: nota 450, total 1200, sin duplicatas
// ──────────────────────────────────────────────────────────────────────────────

func TestFulfill_Nota450_CreaEntradasYUnTitulo(t *testing.T) {
	s, svc, doc := fulfillSetup(t, readFixture(t, "nfe_450.xml"))

	res, err := svc.Fulfill(context.Background(), tenant, bothItems(doc.ID))
	require.NoError(t, err)
	assert.Equal(t, notas.StatusFulfilled, res.Status)
	assert.Empty(t, res.Pending)

	stock := s.stockEntries()
	require.Len(t, stock, 2)
	assert.Equal(t, int64(1), stock[0].Sequence)
	assert.Equal(t, int64(2), stock[1].Sequence)
	assert.Equal(t, "PA", stock[0].ProductCode)
	assert.True(t, decimal.NewFromInt(10).Equal(stock[0].Quantity), "cantidad tomada del XML")
	assert.True(t, decimal.NewFromInt(1000).Equal(stock[0].Total))
	assert.True(t, decimal.NewFromInt(2).Equal(stock[1].Quantity))
	assert.Equal(t, "NF 450", stock[0].Observation)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), stock[0].Date)
	require.NotNil(t, stock[0].CounterpartyID)
	assert.Equal(t, "forn-1", *stock[0].CounterpartyID)

	titles := s.payableTitles()
	require.Len(t, titles, 1)
	assert.True(t, decimal.RequireFromString("1200.00").Equal(titles[0].Amount))
	assert.Equal(t, entity.TitleStatusOpen, titles[0].Status)
	assert.Equal(t, entity.TitleTypeEntry, titles[0].Type)
	assert.Equal(t, "450", titles[0].Number)
	assert.Equal(t, "1", titles[0].Series)
	assert.Equal(t, "u-1", titles[0].UserID)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), titles[0].DueDate)
}

func TestFulfill_SegundaLlamada_YaRealizada(t *testing.T) {
	s, svc, doc := fulfillSetup(t, readFixture(t, "nfe_450.xml"))
	ctx := context.Background()

	first, err := svc.Fulfill(ctx, tenant, bothItems(doc.ID))
	require.NoError(t, err)
	require.Len(t, first.Titles, 1)

	second, err := svc.Fulfill(ctx, tenant, bothItems(doc.ID))
	require.NoError(t, err, "la guarda es un resultado, no un error")
	assert.Equal(t, notas.StatusAlreadyFulfilled, second.Status)
	require.NotNil(t, second.ExistingTitle)
	assert.Equal(t, first.Titles[0].ID, second.ExistingTitle.ID, "referencia el título existente")
	assert.Empty(t, second.StockEntries)
	assert.Len(t, s.stockEntries(), 2, "ninguna fila nueva")
	assert.Len(t, s.payableTitles(), 1)
}

func TestFulfill_ActualizaCodigoDeBarrasVacio(t *testing.T) {
	s, svc, doc := fulfillSetup(t, readFixture(t, "nfe_450.xml"))

	_, err := svc.Fulfill(context.Background(), tenant, bothItems(doc.ID))
	require.NoError(t, err)

	pa, _ := productRepo{s}.GetByCode(context.Background(), companyID, "PA")
	assert.Equal(t, "7891234567895", pa.Barcode, "EAN del XML completa el producto")
	pb, _ := productRepo{s}.GetByCode(context.Background(), companyID, "PB")
	assert.Equal(t, "7890000000001", pb.Barcode, "no se pisa un código existente")
}

// ──────────────────────────────────────────────────────────────────────────────
// Pendientes y atomicidad
// ──────────────────────────────────────────────────────────────────────────────

func TestFulfill_ItemSinProducto_QuedaPendiente(t *testing.T) {
	s, svc, doc := fulfillSetup(t, readFixture(t, "nfe_450.xml"))

	res, err := svc.Fulfill(context.Background(), tenant, notas.FulfillInput{
		DocumentID: doc.ID,
		Items: []notas.MappedItem{
			{Index: "1", ProductCode: "PA"},
			{Index: "2", ProductCode: "NAO-EXISTE"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, notas.StatusMappingPending, res.Status)
	require.Len(t, res.Pending, 1)
	assert.Equal(t, "2", res.Pending[0].Index)
	assert.Equal(t, notas.ReasonProductNotFound, res.Pending[0].Reason)

	assert.Len(t, s.stockEntries(), 1, "los demás ítems se crean")
	assert.Len(t, s.payableTitles(), 1)
}

func TestFulfill_TodosPendientes_NoEscribeNada(t *testing.T) {
	s, svc, doc := fulfillSetup(t, readFixture(t, "nfe_450.xml"))

	res, err := svc.Fulfill(context.Background(), tenant, notas.FulfillInput{
		DocumentID: doc.ID,
		Items: []notas.MappedItem{
			{Index: "1"},
			{Index: "9", ProductCode: "PA"},
			{Index: "2", ProductCode: "PB", Quantity: decimal.NewFromInt(-1)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, notas.StatusMappingPending, res.Status)
	require.Len(t, res.Pending, 3)
	assert.Equal(t, notas.ReasonProductMissing, res.Pending[0].Reason)
	assert.Equal(t, notas.ReasonUnknownItem, res.Pending[1].Reason)
	assert.Equal(t, notas.ReasonInvalidQuantity, res.Pending[2].Reason)
	assert.Empty(t, s.stockEntries())
	assert.Empty(t, s.payableTitles())
}

func TestFulfill_FallaEnTitulos_DeshaceEntradas(t *testing.T) {
	s, svc, doc := fulfillSetup(t, readFixture(t, "nfe_450.xml"))
	s.failTitleCreate = errBoom

	_, err := svc.Fulfill(context.Background(), tenant, bothItems(doc.ID))
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, s.stockEntries(), "rollback de las entradas ya creadas")
	assert.Empty(t, s.payableTitles())

	pa, _ := productRepo{s}.GetByCode(context.Background(), companyID, "PA")
	assert.Empty(t, pa.Barcode, "rollback también del código de barras")
}

// ──────────────────────────────────────────────────────────────────────────────
// Fornecedor, duplicatas y errores
// ──────────────────────────────────────────────────────────────────────────────

func TestFulfill_FornecedorEnAmbosFormatos(t *testing.T) {
	for _, stored := range []string{"12345678000199", "12.345.678/0001-99"} {
		t.Run(stored, func(t *testing.T) {
			s := newStore()
			s.addProduct(entity.Product{Code: "PA", Active: true})
			s.addParty(entity.Counterparty{ID: "forn-x", CNPJ: stored})
			doc, _, err := newNormalizer(s).Ingest(context.Background(), tenant, entity.ElectronicSource{XML: readFixture(t, "nfe_450.xml")})
			require.NoError(t, err)

			res, err := notas.NewFulfillmentService(s, nil, nil).Fulfill(context.Background(), tenant, notas.FulfillInput{
				DocumentID: doc.ID,
				Items:      []notas.MappedItem{{Index: "1", ProductCode: "PA"}},
			})
			require.NoError(t, err)
			require.NotNil(t, res.StockEntries[0].CounterpartyID)
			assert.Equal(t, "forn-x", *res.StockEntries[0].CounterpartyID)
		})
	}
}

func TestFulfill_SinFornecedor_Tolerado(t *testing.T) {
	s := newStore()
	s.addProduct(entity.Product{Code: "PA", Active: true})
	doc, _, err := newNormalizer(s).Ingest(context.Background(), tenant, entity.ElectronicSource{XML: readFixture(t, "nfe_450.xml")})
	require.NoError(t, err)

	res, err := notas.NewFulfillmentService(s, nil, nil).Fulfill(context.Background(), tenant, notas.FulfillInput{
		DocumentID: doc.ID,
		Items:      []notas.MappedItem{{Index: "1", ProductCode: "PA"}},
	})
	require.NoError(t, err)
	assert.Nil(t, res.StockEntries[0].CounterpartyID)
	assert.Nil(t, res.Titles[0].SupplierID)
}

func TestFulfill_UnTituloPorDuplicata(t *testing.T) {
	xml := withInstallments(readFixture(t, "nfe_450.xml"),
		dup("001", "2024-02-15", "600.00"),
		dup("002", "quinze", "600.00"),
	)
	s, svc, doc := fulfillSetup(t, xml)

	res, err := svc.Fulfill(context.Background(), tenant, bothItems(doc.ID))
	require.NoError(t, err)
	require.Len(t, res.Titles, 2)
	assert.Equal(t, "001", res.Titles[0].Installment)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), res.Titles[0].DueDate)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), res.Titles[1].DueDate, "vencimiento inválido usa la emisión")
	assert.Equal(t, "NF-e 450 - 002", res.Titles[1].History)
	assert.Len(t, s.payableTitles(), 2)
}

func TestFulfill_DuplicataMalFormada_Revierte(t *testing.T) {
	xml := withInstallments(readFixture(t, "nfe_450.xml"),
		dup("001", "2024-02-15", "600.00"),
		dup("002", "2024-03-15", "600,00"),
	)
	s, svc, doc := fulfillSetup(t, xml)

	res, err := svc.Fulfill(context.Background(), tenant, bothItems(doc.ID))
	assert.ErrorIs(t, err, domainnfe.ErrInvalidDocument)
	assert.Nil(t, res)
	assert.Empty(t, s.stockEntries(), "la transacción se revierte entera")
	assert.Empty(t, s.payableTitles(), "no se registra un contas a pagar menor que la nota")
}

func TestFulfill_Errores(t *testing.T) {
	s, svc, _ := fulfillSetup(t, readFixture(t, "nfe_450.xml"))
	ctx := context.Background()

	_, err := svc.Fulfill(ctx, tenant, notas.FulfillInput{DocumentID: "no-existe"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Fulfill(ctx, entity.Tenant{}, notas.FulfillInput{DocumentID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	manual := &entity.FiscalDocument{CompanyID: companyID, BranchID: branchID, Number: 9, Series: "1"}
	_, err = docRepo{s}.Upsert(ctx, manual)
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, tenant, notas.FulfillInput{DocumentID: manual.ID})
	assert.ErrorIs(t, err, domain.ErrOperation, "la nota manual no pasa por la entrada")
}
