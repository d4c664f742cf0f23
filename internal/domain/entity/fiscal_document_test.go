package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

func TestFiscalDocument_StatusLabel(t *testing.T) {
	cases := []struct {
		name string
		doc  entity.FiscalDocument
		want string
	}{
		{"cancelada gana a todo", entity.FiscalDocument{StatusCode: 100, Cancelled: true, Denied: true}, entity.StatusLabelCancelled},
		{"inutilizada", entity.FiscalDocument{StatusCode: 100, Voided: true}, entity.StatusLabelVoided},
		{"denegada", entity.FiscalDocument{StatusCode: 110, Denied: true}, entity.StatusLabelDenied},
		{"autorizada", entity.FiscalDocument{StatusCode: 100}, entity.StatusLabelAuthorized},
		{"ciencia registrada queda pendiente", entity.FiscalDocument{StatusCode: 210200}, entity.StatusLabelPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.doc.StatusLabel())
		})
	}
}

func TestFiscalDocument_DisplayNumberYManual(t *testing.T) {
	xml := "<nfeProc/>"
	d := entity.FiscalDocument{Number: 450, Series: "1", XML: &xml}
	assert.Equal(t, "1-450", d.DisplayNumber())
	assert.False(t, d.IsManual())

	d.XML = nil
	assert.True(t, d.IsManual())
}

func TestFiscalDocument_EmissionDateOr(t *testing.T) {
	fallback := time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)
	d := entity.FiscalDocument{}
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), d.EmissionDateOr(fallback))

	issued := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	d.IssuedAt = &issued
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), d.EmissionDateOr(fallback))
}

func TestDocumentSource_Variantes(t *testing.T) {
	assert.Equal(t, entity.SourceElectronic, entity.SourceKind(entity.ElectronicSource{}))
	assert.Equal(t, entity.SourceManual, entity.SourceKind(entity.ManualSource{}))
	assert.Equal(t, "", entity.SourceKind(nil))
}
