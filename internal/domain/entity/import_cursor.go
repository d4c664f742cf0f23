package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jhoicas/notas-destinadas/internal/domain"
)

// ImportCursor último NSU procesado de una filial. Inmutable: Advance devuelve un cursor nuevo
// y nunca permite retroceder.
type ImportCursor struct {
	value uint64
}

// NewImportCursor interpreta el NSU guardado; vacío equivale a "0".
func NewImportCursor(raw string) (ImportCursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ImportCursor{}, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return ImportCursor{}, fmt.Errorf("%w: NSU %q no numérico", domain.ErrInvalidInput, raw)
	}
	return ImportCursor{value: v}, nil
}

// Advance mueve el cursor al NSU informado por la SEFAZ. Igual al actual es válido (nada nuevo).
func (c ImportCursor) Advance(next string) (ImportCursor, error) {
	n, err := NewImportCursor(next)
	if err != nil {
		return c, err
	}
	if n.value < c.value {
		return c, fmt.Errorf("%w: %d -> %d", domain.ErrCursorRewind, c.value, n.value)
	}
	return n, nil
}

// IsZero true si nunca se importó nada.
func (c ImportCursor) IsZero() bool { return c.value == 0 }

// Less compara numéricamente.
func (c ImportCursor) Less(o ImportCursor) bool { return c.value < o.value }

// String NSU sin ceros a la izquierda ("0" si vacío).
func (c ImportCursor) String() string { return strconv.FormatUint(c.value, 10) }
