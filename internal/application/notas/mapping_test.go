package notas_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

func newMapping(s *memStore) *notas.MappingService {
	return notas.NewMappingService(docRepo{s}, productRepo{s}, nil)
}

func TestSuggest_PorEANCodigoYDescripcion(t *testing.T) {
	cases := []struct {
		name     string
		products []entity.Product
		want     [2]string // criterio de los ítems 1 y 2
		code     [2]string
	}{
		{
			name:     "EAN primero",
			products: []entity.Product{{Code: "X1", Name: "Qualquer", Barcode: "7891234567895"}, {Code: "A", Name: "Por codigo"}},
			want:     [2]string{notas.MatchByEAN, ""},
			code:     [2]string{"X1", ""},
		},
		{
			name:     "código del fornecedor",
			products: []entity.Product{{Code: "A", Name: "Outro nome"}, {Code: "B", Name: "Arruela"}},
			want:     [2]string{notas.MatchByCode, notas.MatchByCode},
			code:     [2]string{"A", "B"},
		},
		{
			name:     "descripción única",
			products: []entity.Product{{Code: "P-77", Name: "ARRUELA LISA 10MM INOX"}},
			want:     [2]string{"", notas.MatchByDescription},
			code:     [2]string{"", "P-77"},
		},
		{
			name:     "descripción ambigua no sugiere",
			products: []entity.Product{{Code: "P-1", Name: "Arruela lisa 10mm zinc"}, {Code: "P-2", Name: "Arruela lisa 10mm inox"}},
			want:     [2]string{"", ""},
			code:     [2]string{"", ""},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore()
			for _, p := range tc.products {
				s.addProduct(p)
			}
			doc := ingest(t, s, readFixture(t, "nfe_450.xml"))

			got, err := newMapping(s).Suggest(context.Background(), tenant, doc.ID)
			require.NoError(t, err)
			require.Len(t, got, 2)
			for i := range got {
				assert.Equal(t, tc.want[i], got[i].MatchedBy, "criterio del ítem %d", i+1)
				if tc.code[i] == "" {
					assert.Nil(t, got[i].Product)
				} else {
					require.NotNil(t, got[i].Product)
					assert.Equal(t, tc.code[i], got[i].Product.Code)
				}
			}
		})
	}
}

func TestSuggest_NotaManualOInexistente(t *testing.T) {
	s := newStore()
	manual := &entity.FiscalDocument{CompanyID: companyID, BranchID: branchID, Number: 9, Series: "1"}
	_, err := docRepo{s}.Upsert(context.Background(), manual)
	require.NoError(t, err)

	_, err = newMapping(s).Suggest(context.Background(), tenant, manual.ID)
	assert.ErrorIs(t, err, domain.ErrOperation)
	_, err = newMapping(s).Suggest(context.Background(), tenant, "nada")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidateMapping(t *testing.T) {
	s := newStore()
	s.addProduct(entity.Product{Code: "PA", Active: true})
	s.addProduct(entity.Product{Code: "OLD", Active: false})

	res, err := newMapping(s).Validate(context.Background(), tenant, []notas.MappedItem{
		{Index: "1", ProductCode: "PA"},
		{Index: "2"},
		{Index: "3", ProductCode: "NAO"},
		{Index: "4", ProductCode: "OLD"},
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "2", res.Errors[0].Index)
	assert.Equal(t, "3", res.Errors[1].Index)
	require.Len(t, res.Warnings, 1, "inactivo es aviso, no error")
	assert.Equal(t, "4", res.Warnings[0].Index)
}

func TestCreateProduct_DesdeItem(t *testing.T) {
	s := newStore()
	svc := newMapping(s)
	ctx := context.Background()

	p, created, err := svc.CreateProduct(ctx, companyID, dto.CreateProductRequest{
		Code: "B", Name: "Arruela lisa 10mm", Unit: "un", NCM: "7318.22.00", Barcode: "SEM GTIN",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "73182200", p.NCM)
	assert.Equal(t, "UN", p.Unit)
	assert.Empty(t, p.Barcode, "SEM GTIN no es código de barras")
	assert.True(t, p.Active)

	again, created, err := svc.CreateProduct(ctx, companyID, dto.CreateProductRequest{Code: "B", Name: "Otro"})
	require.NoError(t, err)
	assert.False(t, created, "el código existente se devuelve")
	assert.Equal(t, "Arruela lisa 10mm", again.Name)

	_, _, err = svc.CreateProduct(ctx, companyID, dto.CreateProductRequest{Name: "sin código"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateMissing_Lote(t *testing.T) {
	s := newStore()
	s.addProduct(entity.Product{Code: "A", Name: "Ya existe"})

	out, created, err := newMapping(s).CreateMissing(context.Background(), companyID, dto.CreateMissingRequest{
		Items: []dto.CreateProductRequest{{Code: "A", Name: "Parafuso"}, {Code: "B", Name: "Arruela"}},
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, created)
}

func TestSearchProducts(t *testing.T) {
	s := newStore()
	for i, name := range []string{"Parafuso A", "Parafuso B", "Porca"} {
		s.addProduct(entity.Product{Code: string(rune('A' + i)), Name: name})
	}
	svc := newMapping(s)

	got, err := svc.SearchProducts(context.Background(), companyID, "p")
	require.NoError(t, err)
	assert.Empty(t, got, "menos de 2 caracteres no busca")

	got, err = svc.SearchProducts(context.Background(), companyID, "paraf")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
