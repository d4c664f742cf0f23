package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Prefijos de la observación de las entradas de estoque; llevan el número de la nota
// para rastrear y deshacer las generadas por una entrada manual.
const (
	StockObservationAuto   = "NF %d"
	StockObservationManual = "NF Manual %d"
)

// StockEntry entrada de estoque generada a partir de una nota.
// Sequence se asigna como max+1 dentro de la empresa con lock exclusivo.
type StockEntry struct {
	ID             string
	Sequence       int64
	CompanyID      string
	BranchID       string
	ProductCode    string
	CounterpartyID *string
	Date           time.Time
	Quantity       decimal.Decimal
	Total          decimal.Decimal
	UserID         string
	Observation    string
	Series         string
	DocumentNumber int64
	CreatedAt      time.Time
}
