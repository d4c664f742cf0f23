package sefaz_test

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
)

func TestDecode_UTF8(t *testing.T) {
	xmlBytes := nfeXML(t, 450)
	out, err := sefaz.NewDecoder(0).Decode(sefaz.DocZip{NSU: "1", Schema: "procNFe_v4.00.xsd", Content: gz64(t, xmlBytes)})
	require.NoError(t, err)
	assert.Equal(t, xmlBytes, out)
}

func TestDecode_ISO88591SeConvierte(t *testing.T) {
	latin, err := charmap.ISO8859_1.NewEncoder().String(`<?xml version="1.0" encoding="ISO-8859-1"?><natOp>Remessa para industrialização</natOp>`)
	require.NoError(t, err)

	out, err := sefaz.NewDecoder(0).Decode(sefaz.DocZip{NSU: "7", Content: gz64(t, []byte(latin))})
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?><natOp>Remessa para industrialização</natOp>`, string(out))
}

func TestDecode_Etapas(t *testing.T) {
	var notGzip bytes.Buffer
	notGzip.WriteString("texto plano")

	var invalidUTF8 bytes.Buffer
	zw := gzip.NewWriter(&invalidUTF8)
	_, _ = zw.Write([]byte("<natOp>a\xe7\xe3o</natOp>"))
	_ = zw.Close()

	cases := []struct {
		name    string
		content string
		stage   string
	}{
		{"base64", "%%%", "base64"},
		{"gzip", base64.StdEncoding.EncodeToString(notGzip.Bytes()), "gzip"},
		{"charset", base64.StdEncoding.EncodeToString(invalidUTF8.Bytes()), "charset"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := sefaz.NewDecoder(0).Decode(sefaz.DocZip{NSU: "9", Schema: "procNFe", Content: tc.content})
			var de *domain.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.stage, de.Stage)
			assert.Equal(t, "9", de.NSU)
			assert.ErrorIs(t, err, domain.ErrDecode)
		})
	}
}

func TestDecode_LimiteDeTamano(t *testing.T) {
	_, err := sefaz.NewDecoder(16).Decode(sefaz.DocZip{NSU: "1", Content: gz64(t, nfeXML(t, 1))})
	assert.ErrorIs(t, err, domain.ErrDecode)
}
