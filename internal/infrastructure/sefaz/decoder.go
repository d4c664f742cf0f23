package sefaz

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/jhoicas/notas-destinadas/internal/domain"
)

// DocZip documento compactado tal como viene en loteDistDFeInt.
type DocZip struct {
	NSU     string
	Schema  string
	Content string // base64(gzip(xml))
}

// Decoder desempaqueta docZip: base64 -> gzip -> texto UTF-8.
type Decoder struct {
	maxBytes int64
}

// NewDecoder límite de bytes descomprimidos por documento (0 = 5 MB).
func NewDecoder(maxBytes int64) *Decoder {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Decoder{maxBytes: maxBytes}
}

var xmlEncodingDecl = regexp.MustCompile(`^\s*<\?xml[^>]*encoding=["']([A-Za-z0-9._-]+)["']`)

// Decode devuelve el XML en UTF-8. Cualquier falla es un *domain.DecodeError con la etapa.
func (d *Decoder) Decode(z DocZip) ([]byte, error) {
	fail := func(stage string, err error) error {
		return &domain.DecodeError{NSU: z.NSU, Schema: z.Schema, Stage: stage, Err: err}
	}

	compressed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(z.Content))
	if err != nil {
		return nil, fail("base64", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fail("gzip", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, d.maxBytes+1))
	if err != nil {
		return nil, fail("gzip", err)
	}
	if int64(len(raw)) > d.maxBytes {
		return nil, fail("gzip", fmt.Errorf("documento supera %d bytes", d.maxBytes))
	}

	text, err := toUTF8(raw)
	if err != nil {
		return nil, fail("charset", err)
	}
	return text, nil
}

// toUTF8 respeta el encoding declarado en el prólogo; sin declaración se exige UTF-8 válido.
func toUTF8(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	m := xmlEncodingDecl.FindSubmatchIndex(raw)
	if m == nil || isUTF8Label(string(raw[m[2]:m[3]])) {
		if !utf8.Valid(raw) {
			return nil, errors.New("contenido no es UTF-8 válido")
		}
		return raw, nil
	}

	label := string(raw[m[2]:m[3]])
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("encoding %q no soportado: %w", label, err)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decodificar %s: %w", label, err)
	}
	// El prólogo pasa a declarar UTF-8 para que el parser no vuelva a transcodificar.
	out := make([]byte, 0, len(decoded))
	loc := xmlEncodingDecl.FindSubmatchIndex(decoded)
	if loc == nil {
		return decoded, nil
	}
	out = append(out, decoded[:loc[2]]...)
	out = append(out, "UTF-8"...)
	out = append(out, decoded[loc[3]:]...)
	return out, nil
}

func isUTF8Label(label string) bool {
	l := strings.ToLower(label)
	return l == "utf-8" || l == "utf8"
}
