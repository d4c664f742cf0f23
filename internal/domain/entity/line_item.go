package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem ítem (det/prod) derivado del XML en cada consulta; nunca se persiste.
// Valores numéricos mal formados quedan en null.
type LineItem struct {
	Index        string // nItem
	SupplierCode string // cProd
	Description  string // xProd
	NCM          string
	CFOP         string
	Unit         string // uCom
	EAN          string // cEAN
	Quantity     decimal.NullDecimal
	UnitValue    decimal.NullDecimal
	Total        decimal.NullDecimal
}

// Installment duplicata (cobr/dup) de la nota.
type Installment struct {
	Number  string
	DueDate *time.Time // nil si dVenc falta o es inválido
	Amount  decimal.Decimal
}
