package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estado y tipo de los títulos a pagar generados por notas de entrada.
const (
	TitleStatusOpen = "A" // Aberto
	TitleTypeEntry  = "Entrada"
)

// PayableTitle título (parcela) a pagar. Clave: (empresa, filial, serie, número, parcela).
type PayableTitle struct {
	ID          string
	CompanyID   string
	BranchID    string
	SupplierID  *string
	Type        string
	Number      string // número de la nota
	Series      string
	Installment string
	Amount      decimal.Decimal
	DueDate     time.Time
	IssueDate   time.Time
	Status      string
	UserID      string
	History     string
	CreatedAt   time.Time
}
