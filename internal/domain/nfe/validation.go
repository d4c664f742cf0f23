package nfe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

// ErrInvalidDocument agrupa errores de los campos obligatorios del registro.
var ErrInvalidDocument = errors.New("nota fiscal inválida")

// ValidateDocument exige los campos de los que dependen la clave natural y los artefactos:
// número, serie, emitente identificado y total. Los demás campos son opcionales.
func ValidateDocument(doc *entity.FiscalDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: registro nulo", ErrInvalidDocument)
	}
	var errs []error
	if doc.Number <= 0 {
		errs = append(errs, fmt.Errorf("%w: nNF ausente o inválido", ErrInvalidDocument))
	}
	if strings.TrimSpace(doc.Series) == "" {
		errs = append(errs, fmt.Errorf("%w: serie ausente", ErrInvalidDocument))
	}
	if doc.Issuer.TaxID() == "" && doc.Issuer.Name == "" {
		errs = append(errs, fmt.Errorf("%w: emitente sin identificación", ErrInvalidDocument))
	}
	if doc.Totals.Total.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: vNF negativo", ErrInvalidDocument))
	}
	return errors.Join(errs...)
}
