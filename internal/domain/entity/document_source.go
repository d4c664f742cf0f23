package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentSource origen de un registro fiscal. Las dos variantes comparten la
// normalización y el upsert, pero cada una tiene su propio despacho de artefactos.
type DocumentSource interface {
	sourceKind() string
}

// Variantes de origen.
const (
	SourceElectronic = "electronic"
	SourceManual     = "manual"
)

// ElectronicSource XML completo (procNFe) recibido por distribución o subido por el operador.
type ElectronicSource struct {
	XML                   []byte
	DefaultCounterpartyID *string
}

func (ElectronicSource) sourceKind() string { return SourceElectronic }

// ManualSource nota digitada por el operador: no tiene XML y sus entradas de estoque y
// títulos se regeneran en cada edición.
type ManualSource struct {
	SupplierID   string
	Number       int64
	Series       string
	IssuedAt     time.Time
	EntryDate    time.Time
	Total        decimal.Decimal
	Items        []ManualItem
	Installments []ManualInstallment
}

func (ManualSource) sourceKind() string { return SourceManual }

// ManualItem ítem de la nota manual, ya con producto del catálogo.
type ManualItem struct {
	ProductCode string
	Quantity    decimal.Decimal
	Total       decimal.Decimal
}

// ManualInstallment parcela de la nota manual.
type ManualInstallment struct {
	Number  string
	DueDate time.Time
	Amount  decimal.Decimal
}

// SourceKind devuelve la variante ("electronic" o "manual").
func SourceKind(s DocumentSource) string {
	if s == nil {
		return ""
	}
	return s.sourceKind()
}
