package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Importación ───────────────────────────────────────────────────────────────

// ImportRequest body opcional de POST /api/notas/importar. Vacío = configuración de la filial.
type ImportRequest struct {
	Jurisdiction    string `json:"uf,omitempty" validate:"omitempty,len=2"`
	TaxID           string `json:"cnpj,omitempty"`
	Cursor          string `json:"ult_nsu,omitempty" validate:"omitempty,numeric,max=15"`
	Environment     int    `json:"ambiente,omitempty" validate:"omitempty,oneof=1 2"`
	AutoAcknowledge *bool  `json:"manifestar,omitempty"`
	Justification   string `json:"justificativa,omitempty" validate:"omitempty,max=255"`
}

// BatchSummaryResponse resultado de una pasada de importación.
type BatchSummaryResponse struct {
	CompanyID      string   `json:"company_id"`
	BranchID       string   `json:"branch_id"`
	Status         string   `json:"cstat"`
	Message        string   `json:"xmotivo"`
	Fetched        int      `json:"recebidos"`
	Created        int      `json:"criados"`
	Updated        int      `json:"atualizados"`
	Skipped        int      `json:"descartados"`
	Invalid        int      `json:"invalidos"`
	Acknowledged   int      `json:"manifestados"`
	AckFailed      int      `json:"falhas_manifestacao"`
	PreviousCursor string   `json:"nsu_anterior"`
	Cursor         string   `json:"nsu_atual"`
	HasMore        bool     `json:"tem_mais"`
	SkippedNSUs    []string `json:"nsu_descartados,omitempty"`
}

// ── Listado y panel ───────────────────────────────────────────────────────────

// ListDocumentsRequest filtros de GET /api/notas (q, de, ate, limit, offset).
type ListDocumentsRequest struct {
	PageRequest
	Search string `validate:"omitempty,max=100"`
	From   *time.Time
	To     *time.Time
}

// DocumentResponse exportación canónica del registro.
type DocumentResponse struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"company_id"`
	BranchID       string          `json:"branch_id"`
	Number         int64           `json:"numero"`
	Series         string          `json:"serie"`
	DisplayNumber  string          `json:"numero_completo"`
	AccessKey      string          `json:"chave,omitempty"`
	IssuedAt       *time.Time      `json:"emissao,omitempty"`
	IssuerTaxID    string          `json:"emitente_documento"`
	IssuerName     string          `json:"emitente_nome"`
	RecipientTaxID string          `json:"destinatario_documento"`
	RecipientName  string          `json:"destinatario_nome"`
	Total          decimal.Decimal `json:"valor_total"`
	StatusCode     int             `json:"status"`
	StatusLabel    string          `json:"status_label"`
	Protocol       string          `json:"protocolo,omitempty"`
	Manual         bool            `json:"manual"`
}

// DocumentPage respuesta paginada del listado.
type DocumentPage struct {
	Items []DocumentResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// DashboardResponse contadores del panel.
type DashboardResponse struct {
	Total      int             `json:"total"`
	Authorized int             `json:"autorizadas"`
	Cancelled  int             `json:"canceladas"`
	Pending    int             `json:"pendentes"`
	TotalValue decimal.Decimal `json:"valor_total"`
}

// LineItemResponse ítem derivado del XML.
type LineItemResponse struct {
	Index        string              `json:"n_item"`
	SupplierCode string              `json:"codigo_fornecedor"`
	Description  string              `json:"descricao"`
	NCM          string              `json:"ncm,omitempty"`
	CFOP         string              `json:"cfop,omitempty"`
	Unit         string              `json:"unidade,omitempty"`
	EAN          string              `json:"ean,omitempty"`
	Quantity     decimal.NullDecimal `json:"quantidade"`
	UnitValue    decimal.NullDecimal `json:"valor_unitario"`
	Total        decimal.NullDecimal `json:"valor_total"`
}

// ── Entrada (fulfillment) ─────────────────────────────────────────────────────

// FulfillRequest body de POST /api/notas/:id/entrada.
type FulfillRequest struct {
	Items []MappedItemRequest `json:"itens" validate:"required,min=1,dive"`
}

// MappedItemRequest ítem de la nota con el producto del catálogo elegido por el operador.
type MappedItemRequest struct {
	Index       string          `json:"n_item" validate:"required"`
	ProductCode string          `json:"produto"`
	Quantity    decimal.Decimal `json:"quantidade"`
	Total       decimal.Decimal `json:"total"`
	Barcode     string          `json:"ean,omitempty" validate:"omitempty,max=14"`
}

// PendingItemResponse ítem que quedó sin procesar.
type PendingItemResponse struct {
	Index  string `json:"n_item"`
	Reason string `json:"motivo"`
}

// FulfillResponse resultado de la entrada.
type FulfillResponse struct {
	Status        string                `json:"status"` // fulfilled | mapping_pending | already_fulfilled
	DocumentID    string                `json:"nota_id"`
	StockEntries  int                   `json:"entradas_estoque"`
	Titles        int                   `json:"titulos"`
	Pending       []PendingItemResponse `json:"pendentes,omitempty"`
	ExistingTitle string                `json:"titulo_existente,omitempty"`
	Message       string                `json:"mensagem"`
}

// ── Nota manual ───────────────────────────────────────────────────────────────

// ManualEntryRequest body de POST /api/notas/manual.
type ManualEntryRequest struct {
	SupplierID   string                     `json:"fornecedor_id" validate:"required"`
	Number       int64                      `json:"numero" validate:"required,gt=0"`
	Series       string                     `json:"serie" validate:"required,max=3"`
	IssuedAt     time.Time                  `json:"emissao" validate:"required"`
	EntryDate    time.Time                  `json:"entrada"`
	Total        decimal.Decimal            `json:"total"`
	Items        []ManualItemRequest        `json:"itens" validate:"required,min=1,dive"`
	Installments []ManualInstallmentRequest `json:"parcelas" validate:"dive"`
}

// ManualItemRequest ítem de la nota manual.
type ManualItemRequest struct {
	ProductCode string          `json:"produto" validate:"required"`
	Quantity    decimal.Decimal `json:"quantidade"`
	Total       decimal.Decimal `json:"total"`
}

// ManualInstallmentRequest parcela de la nota manual.
type ManualInstallmentRequest struct {
	Number  string          `json:"numero" validate:"required,max=10"`
	DueDate time.Time       `json:"vencimento" validate:"required"`
	Amount  decimal.Decimal `json:"valor"`
}

// ManualEntryResponse resultado del registro manual.
type ManualEntryResponse struct {
	DocumentID      string `json:"nota_id"`
	Created         bool   `json:"criada"`
	StockEntries    int    `json:"entradas_estoque"`
	Titles          int    `json:"titulos"`
	ReplacedEntries int64  `json:"entradas_substituidas"`
	ReplacedTitles  int64  `json:"titulos_substituidos"`
}

// ── Manifestación ─────────────────────────────────────────────────────────────

// AcknowledgeRequest body opcional de POST /api/notas/:id/manifestar.
type AcknowledgeRequest struct {
	Justification string `json:"justificativa,omitempty" validate:"omitempty,max=255"`
}

// AcknowledgeResponse resultado de la ciencia de la operación.
type AcknowledgeResponse struct {
	DocumentID string `json:"nota_id"`
	AccessKey  string `json:"chave"`
	StatusCode int    `json:"status"`
	Protocol   string `json:"protocolo"`
	Duplicate  bool   `json:"ja_registrada"`
}
