package nfe_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/nfe"
)

func TestFlagsFromStatus(t *testing.T) {
	assert.Equal(t, nfe.Flags{}, nfe.FlagsFromStatus(100), "autorizada no marca banderas")
	assert.True(t, nfe.FlagsFromStatus(101).Cancelled)
	assert.True(t, nfe.FlagsFromStatus(151).Cancelled)
	assert.True(t, nfe.FlagsFromStatus(102).Voided)
	assert.True(t, nfe.FlagsFromStatus(110).Denied)
	assert.True(t, nfe.FlagsFromStatus(302).Denied)
}

func TestValidateDocument(t *testing.T) {
	doc := &entity.FiscalDocument{
		Number: 450,
		Series: "1",
		Issuer: entity.Party{CNPJ: "12345678000199"},
		Totals: entity.Totals{Total: decimal.RequireFromString("1200.00")},
	}
	require.NoError(t, nfe.ValidateDocument(doc))

	doc.Number = 0
	doc.Series = " "
	err := nfe.ValidateDocument(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, nfe.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "nNF")
	assert.Contains(t, err.Error(), "serie")
}
