package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Etiquetas de situación expuestas al exterior.
const (
	StatusLabelCancelled  = "Cancelled"
	StatusLabelVoided     = "Voided"
	StatusLabelDenied     = "Denied"
	StatusLabelAuthorized = "Authorized"
	StatusLabelPending    = "Pending"
)

// FiscalDocument nota fiscal de entrada recibida (destinada a la empresa).
// Clave natural: (CompanyID, BranchID, Number, Series). XML nil = registro manual.
type FiscalDocument struct {
	ID             string
	CompanyID      string
	BranchID       string
	CounterpartyID *string // fornecedor por defecto o informado en la entrada manual

	Number            int64
	Series            string
	Model             string
	AccessKey         string
	IssuerStateCode   *int // cUF
	NumericCode       *int // cNF
	NatureOfOperation string
	OperationType     *int // tpNF: 0 entrada, 1 saída
	IssuedAt          *time.Time
	EntryDate         *time.Time

	Issuer    Party
	Recipient Party
	Totals    Totals

	StatusCode int
	Cancelled  bool
	Voided     bool
	Denied     bool
	Protocol   string

	XML *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Party emitente o destinatário tal como vienen en la nota.
type Party struct {
	CNPJ              string
	CPF               string
	Name              string
	TradeName         string
	StateRegistration string
	Email             string
	Address           Address
}

// TaxID CNPJ si existe, si no CPF.
func (p Party) TaxID() string {
	if p.CNPJ != "" {
		return p.CNPJ
	}
	return p.CPF
}

// Address endereço del emitente o destinatário.
type Address struct {
	Street     string
	Number     string
	Complement string
	District   string
	CityCode   *int
	City       string
	State      string
	ZIP        string
	Phone      string
}

// Totals bloque ICMSTot. Total (vNF) es obligatorio; el resto es opcional.
type Totals struct {
	Products  decimal.NullDecimal
	Total     decimal.Decimal
	Discount  decimal.NullDecimal
	Freight   decimal.NullDecimal
	Insurance decimal.NullDecimal
	ICMS      decimal.NullDecimal
	IPI       decimal.NullDecimal
	PIS       decimal.NullDecimal
	COFINS    decimal.NullDecimal
	Other     decimal.NullDecimal
}

// IsManual true si el registro no proviene de un XML distribuido.
func (d *FiscalDocument) IsManual() bool {
	return d.XML == nil
}

// DisplayNumber número combinado "serie-numero".
func (d *FiscalDocument) DisplayNumber() string {
	return fmt.Sprintf("%s-%d", d.Series, d.Number)
}

// StatusLabel prioridad: cancelada, inutilizada, denegada, autorizada (100), pendiente.
func (d *FiscalDocument) StatusLabel() string {
	switch {
	case d.Cancelled:
		return StatusLabelCancelled
	case d.Voided:
		return StatusLabelVoided
	case d.Denied:
		return StatusLabelDenied
	case d.StatusCode == 100:
		return StatusLabelAuthorized
	default:
		return StatusLabelPending
	}
}

// EmissionDateOr fecha de emisión truncada al día, o fallback si no hay.
func (d *FiscalDocument) EmissionDateOr(fallback time.Time) time.Time {
	if d.IssuedAt != nil {
		y, m, day := d.IssuedAt.Date()
		return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}
	y, m, day := fallback.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
