package dto

// Límites de paginación de los listados.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`
}

// DefaultPage completa Limit vacío y corrige Offset negativo.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"tem_mais"`
}

// NewPageResponse página a partir del total filtrado.
func NewPageResponse(req PageRequest, total int) PageResponse {
	return PageResponse{
		Limit:   req.Limit,
		Offset:  req.Offset,
		Total:   total,
		HasMore: req.Offset+req.Limit < total,
	}
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
