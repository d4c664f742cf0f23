package dto

import "time"

// CreateProductRequest alta de un producto del catálogo a partir de un ítem de la nota.
type CreateProductRequest struct {
	Code    string `json:"codigo" validate:"required,min=1,max=60"`
	Name    string `json:"descricao" validate:"required,min=1,max=120"`
	Unit    string `json:"unidade" validate:"omitempty,max=6"`
	NCM     string `json:"ncm" validate:"omitempty,max=10"`
	Barcode string `json:"ean" validate:"omitempty,max=14"`
}

// CreateMissingRequest alta en lote de los ítems sin producto.
type CreateMissingRequest struct {
	Items []CreateProductRequest `json:"itens" validate:"required,min=1,dive"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	CompanyID string    `json:"company_id"`
	Code      string    `json:"codigo"`
	Name      string    `json:"descricao"`
	Barcode   string    `json:"ean,omitempty"`
	NCM       string    `json:"ncm,omitempty"`
	Unit      string    `json:"unidade,omitempty"`
	Active    bool      `json:"ativo"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProductResponse Created=false cuando el código ya existía.
type CreateProductResponse struct {
	Product ProductResponse `json:"produto"`
	Created bool            `json:"criado"`
}

// ProductSuggestion sugerencia de producto para un ítem de la nota.
type ProductSuggestion struct {
	Item      LineItemResponse `json:"item"`
	Product   *ProductResponse `json:"produto,omitempty"`
	MatchedBy string           `json:"criterio,omitempty"` // ean | codigo | descricao
}

// MappingIssue problema encontrado al validar el mapeo de un ítem.
type MappingIssue struct {
	Index   string `json:"n_item"`
	Message string `json:"mensagem"`
}

// MappingValidationResponse errores bloquean la entrada; avisos no.
type MappingValidationResponse struct {
	Valid    bool           `json:"valido"`
	Errors   []MappingIssue `json:"erros"`
	Warnings []MappingIssue `json:"avisos"`
}
