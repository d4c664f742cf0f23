package sefaz

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// DistributionQuery parámetros de una consulta distNSU.
type DistributionQuery struct {
	Jurisdiction string // UF de la filial (sigla o código IBGE)
	TaxID        string // CNPJ del interesado, con o sin máscara
	Cursor       string // último NSU recibido; vacío = "0"
	Environment  int
	Credential   Credential
}

// Document NF-e completa (procNFe) ya decodificada.
type Document struct {
	NSU    string
	Schema string
	XML    []byte
}

// DistributionResult una página de la distribución.
type DistributionResult struct {
	Status      string // cStat
	Message     string // xMotivo
	Cursor      string // ultNSU; vacío = sin cambio
	MaxCursor   string // maxNSU
	Documents   []Document
	Ignored     int // resúmenes y eventos, fuera del alcance
	Skipped     int // docZip corruptos
	SkippedNSUs []string
}

// HasMore true si la SEFAZ todavía tiene documentos por encima del cursor devuelto.
func (r *DistributionResult) HasMore() bool {
	return r.Cursor != "" && r.MaxCursor != "" && strings.TrimLeft(r.Cursor, "0") != strings.TrimLeft(r.MaxCursor, "0")
}

// DistributionClient consulta NFeDistribuicaoDFe. Hace una sola consulta por llamada
// y no reintenta.
type DistributionClient struct {
	transport *Transport
	decoder   *Decoder
	log       *logger.Logger
}

// NewDistributionClient construye el cliente.
func NewDistributionClient(transport *Transport, decoder *Decoder, log *logger.Logger) *DistributionClient {
	if decoder == nil {
		decoder = NewDecoder(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DistributionClient{transport: transport, decoder: decoder, log: log.Component("sefaz.distribuicao")}
}

// Fetch pide la siguiente página a partir de q.Cursor. Solo los docZip procNFe se decodifican;
// un docZip corrupto se registra y se descarta sin abortar el lote.
func (c *DistributionClient) Fetch(ctx context.Context, q DistributionQuery) (*DistributionResult, error) {
	cnpj, err := nfe.NormalizeCNPJ(q.TaxID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	uf, err := nfe.UFCode(q.Jurisdiction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if !nfe.ValidEnvironment(q.Environment) {
		return nil, fmt.Errorf("%w: ambiente %d", domain.ErrInvalidInput, q.Environment)
	}
	cursor := q.Cursor
	if strings.TrimSpace(cursor) == "" {
		cursor = "0"
	}

	cert, err := c.transport.certificate(q.Credential)
	if err != nil {
		return nil, err
	}
	payload, err := envelope(distributionRequest(q.Environment, uf, cnpj, cursor))
	if err != nil {
		return nil, fmt.Errorf("soap: serializar distDFeInt: %w", err)
	}

	resp, err := c.transport.post(ctx, "distribuicao", c.transport.distributionURL(q.Environment), actionDistribution, cert, payload)
	if err != nil {
		return nil, err
	}
	ret := resp.FindElement("//retDistDFeInt")
	if ret == nil {
		return nil, &domain.RemoteServiceError{Operation: "distribuicao", Message: "respuesta sin retDistDFeInt"}
	}

	result := &DistributionResult{
		Status:    childText(ret, "./cStat"),
		Message:   childText(ret, "./xMotivo"),
		Cursor:    childText(ret, "./ultNSU"),
		MaxCursor: childText(ret, "./maxNSU"),
	}
	switch result.Status {
	case nfe.DistDocumentsFound, nfe.DistNoDocuments:
	default:
		return nil, &domain.RemoteServiceError{Operation: "distribuicao", Status: result.Status, Message: result.Message}
	}

	for _, z := range ret.FindElements("./loteDistDFeInt/docZip") {
		doc := DocZip{
			NSU:     z.SelectAttrValue("NSU", ""),
			Schema:  z.SelectAttrValue("schema", ""),
			Content: z.Text(),
		}
		if !strings.HasPrefix(doc.Schema, nfe.SchemaProcNFe) {
			result.Ignored++
			continue
		}
		xmlBytes, err := c.decoder.Decode(doc)
		if err != nil {
			result.Skipped++
			result.SkippedNSUs = append(result.SkippedNSUs, doc.NSU)
			c.log.Warn().Err(err).Str("nsu", doc.NSU).Str("schema", doc.Schema).Msg("docZip descartado")
			continue
		}
		result.Documents = append(result.Documents, Document{NSU: doc.NSU, Schema: doc.Schema, XML: xmlBytes})
	}

	c.log.Debug().
		Str("cstat", result.Status).
		Str("ult_nsu", result.Cursor).
		Str("max_nsu", result.MaxCursor).
		Int("documentos", len(result.Documents)).
		Int("ignorados", result.Ignored).
		Int("descartados", result.Skipped).
		Msg("distribución consultada")
	return result, nil
}

// distributionRequest arma nfeDistDFeInteresse/nfeDadosMsg/distDFeInt.
func distributionRequest(env int, uf, cnpj, cursor string) *etree.Element {
	op := etree.NewElement("nfeDistDFeInteresse")
	op.CreateAttr("xmlns", wsdlDistribution)
	msg := op.CreateElement("nfeDadosMsg")

	dist := msg.CreateElement("distDFeInt")
	dist.CreateAttr("xmlns", nfe.NamespaceNFe)
	dist.CreateAttr("versao", nfe.DistributionVer)
	dist.CreateElement("tpAmb").SetText(fmt.Sprint(env))
	dist.CreateElement("cUFAutor").SetText(uf)
	dist.CreateElement("CNPJ").SetText(cnpj)
	dist.CreateElement("distNSU").CreateElement("ultNSU").SetText(nfe.PadCursor(cursor))
	return op
}
