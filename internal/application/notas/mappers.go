package notas

import (
	"time"

	"github.com/jhoicas/notas-destinadas/internal/application/dto"
)

// ToPassOverrides body de la importación a parámetros de la pasada.
func ToPassOverrides(req dto.ImportRequest) PassOverrides {
	return PassOverrides{
		Jurisdiction:    req.Jurisdiction,
		TaxID:           req.TaxID,
		Cursor:          req.Cursor,
		Environment:     req.Environment,
		AutoAcknowledge: req.AutoAcknowledge,
		Justification:   req.Justification,
	}
}

// ToFulfillInput mapeo elegido por el operador.
func ToFulfillInput(documentID string, req dto.FulfillRequest) FulfillInput {
	in := FulfillInput{DocumentID: documentID, Items: make([]MappedItem, 0, len(req.Items))}
	for _, it := range req.Items {
		in.Items = append(in.Items, MappedItem{
			Index:       it.Index,
			ProductCode: it.ProductCode,
			Quantity:    it.Quantity,
			Total:       it.Total,
			Barcode:     it.Barcode,
		})
	}
	return in
}

// ToSuggestionResponses sugerencias para la API.
func ToSuggestionResponses(list []Suggestion) []dto.ProductSuggestion {
	out := make([]dto.ProductSuggestion, 0, len(list))
	for _, s := range list {
		out = append(out, dto.ProductSuggestion{
			Item:      ToLineItemResponse(s.Item),
			Product:   ToProductResponse(s.Product),
			MatchedBy: s.MatchedBy,
		})
	}
	return out
}

// ToManualEntryResponse resultado del registro manual.
func ToManualEntryResponse(r *ManualEntryResult) dto.ManualEntryResponse {
	return dto.ManualEntryResponse{
		DocumentID:      r.Document.ID,
		Created:         r.Created,
		StockEntries:    len(r.StockEntries),
		Titles:          len(r.Titles),
		ReplacedEntries: r.ReplacedEntries,
		ReplacedTitles:  r.ReplacedTitles,
	}
}

// ToAcknowledgeResponse resultado de la ciencia.
func ToAcknowledgeResponse(r *AcknowledgeResult) dto.AcknowledgeResponse {
	return dto.AcknowledgeResponse{
		DocumentID: r.DocumentID,
		AccessKey:  string(r.AccessKey),
		StatusCode: r.StatusCode,
		Protocol:   r.Protocol,
		Duplicate:  r.Duplicate,
	}
}

// ToSealCredentialResponse titular y vencimiento (fecha ISO).
func ToSealCredentialResponse(info *CertificateInfo) dto.SealCredentialResponse {
	return dto.SealCredentialResponse{Subject: info.Subject, NotAfter: info.NotAfter.UTC().Format(time.DateOnly)}
}
