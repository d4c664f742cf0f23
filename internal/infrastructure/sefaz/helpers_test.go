package sefaz_test

import (
	"bytes"
	"compress/gzip"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
)

const fixtureKey = "35240112345678000199550010000004501123456782"

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return b
}

// gz64 empaqueta como la SEFAZ: gzip y luego base64.
func gz64(t *testing.T, content []byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// nfeXML variante mínima de la nota con otro número.
func nfeXML(t *testing.T, number int) []byte {
	t.Helper()
	s := string(readFixture(t, "nfe_450.xml"))
	return []byte(strings.Replace(s, "<nNF>450</nNF>", fmt.Sprintf("<nNF>%d</nNF>", number), 1))
}

type docZipFixture struct {
	NSU     string
	Schema  string
	Content string
}

func distResponse(cStat, motivo, ultNSU, maxNSU string, docs ...docZipFixture) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>`)
	sb.WriteString(`<nfeDistDFeInteresseResponse xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe"><nfeDistDFeInteresseResult>`)
	sb.WriteString(`<retDistDFeInt xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.01"><tpAmb>2</tpAmb><verAplic>1.7.6</verAplic>`)
	sb.WriteString(`<cStat>` + cStat + `</cStat><xMotivo>` + motivo + `</xMotivo><dhResp>2024-01-15T10:00:00-03:00</dhResp>`)
	if ultNSU != "" {
		sb.WriteString(`<ultNSU>` + ultNSU + `</ultNSU><maxNSU>` + maxNSU + `</maxNSU>`)
	}
	if len(docs) > 0 {
		sb.WriteString(`<loteDistDFeInt>`)
		for _, d := range docs {
			sb.WriteString(`<docZip NSU="` + d.NSU + `" schema="` + d.Schema + `">` + d.Content + `</docZip>`)
		}
		sb.WriteString(`</loteDistDFeInt>`)
	}
	sb.WriteString(`</retDistDFeInt></nfeDistDFeInteresseResult></nfeDistDFeInteresseResponse></soap:Body></soap:Envelope>`)
	return sb.String()
}

func eventResponse(batchStat, eventStat, motivo, protocol string) string {
	return `<?xml version="1.0" encoding="utf-8"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<nfeResultMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeRecepcaoEvento4">` +
		`<retEnvEvento xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.00"><idLote>1</idLote><tpAmb>2</tpAmb>` +
		`<cOrgao>91</cOrgao><cStat>` + batchStat + `</cStat><xMotivo>Lote de evento processado</xMotivo>` +
		`<retEvento versao="1.00"><infEvento><tpAmb>2</tpAmb><cOrgao>91</cOrgao><cStat>` + eventStat + `</cStat>` +
		`<xMotivo>` + motivo + `</xMotivo><chNFe>` + fixtureKey + `</chNFe><tpEvento>210210</tpEvento>` +
		`<nSeqEvento>1</nSeqEvento><dhRegEvento>2024-01-15T10:05:00-03:00</dhRegEvento><nProt>` + protocol + `</nProt>` +
		`</infEvento></retEvento></retEnvEvento></nfeResultMsg></soap:Body></soap:Envelope>`
}

// fakeSEFAZ servidor que registra el último body recibido y responde con status/body fijos.
type fakeSEFAZ struct {
	*httptest.Server
	mu       sync.Mutex
	lastBody string
	lastCT   string
	status   int
	response string
}

func newFakeSEFAZ(t *testing.T, status int, response string) *fakeSEFAZ {
	t.Helper()
	f := &fakeSEFAZ{status: status, response: response}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lastBody = string(body)
		f.lastCT = r.Header.Get("Content-Type")
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.response)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeSEFAZ) contentType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCT
}

func (f *fakeSEFAZ) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

// transportFor apunta ambos servicios al servidor falso y usa su cliente HTTP plano.
// El .pfx se abre de verdad (testdata/test.pfx) salvo que fakeCert sea true.
func transportFor(f *fakeSEFAZ, fakeCert bool) *sefaz.Transport {
	tr := sefaz.NewTransport(5*time.Second, sefaz.Endpoints{Distribution: f.URL, Event: f.URL})
	tr.NewHTTPClient = func(tls.Certificate, time.Duration) *http.Client { return f.Client() }
	if fakeCert {
		tr.LoadCertificate = func(string, string) (tls.Certificate, error) { return tls.Certificate{}, nil }
	}
	return tr
}

var testCredential = sefaz.Credential{Path: "testdata/test.pfx", Password: "segredo123"}

func base64Of(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
