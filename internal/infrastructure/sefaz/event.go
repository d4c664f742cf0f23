package sefaz

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// brasilia horario oficial usado en dhEvento.
var brasilia = time.FixedZone("BRT", -3*60*60)

// EventRequest manifestación del destinatario sobre una NF-e.
type EventRequest struct {
	TaxID       string // CNPJ del destinatario
	AccessKey   nfe.AccessKey
	Environment int
	Credential  Credential
	// Justification solo se envía en eventos que admiten xJust.
	Justification string
}

// EventResult respuesta de retEvento.
type EventResult struct {
	Status       string // cStat del evento
	Message      string
	Protocol     string // nProt
	RegisteredAt string // dhRegEvento
	Duplicate    bool   // la SEFAZ ya tenía el evento (573)
}

// EventClient envía eventos a NFeRecepcaoEvento4 (Ambiente Nacional).
type EventClient struct {
	transport *Transport
	signer    nfe.Signer
	log       *logger.Logger
	now       func() time.Time
}

// NewEventClient construye el cliente.
func NewEventClient(transport *Transport, signer nfe.Signer, log *logger.Logger) *EventClient {
	if log == nil {
		log = logger.Nop()
	}
	return &EventClient{transport: transport, signer: signer, log: log.Component("sefaz.evento"), now: time.Now}
}

// SendAwareness envía "Ciência da Operação" (210210). Un 573 (duplicidad) se considera éxito.
func (c *EventClient) SendAwareness(ctx context.Context, req EventRequest) (*EventResult, error) {
	return c.send(ctx, nfe.EventAwareness, req)
}

func (c *EventClient) send(ctx context.Context, eventType string, req EventRequest) (*EventResult, error) {
	cnpj, err := nfe.NormalizeCNPJ(req.TaxID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if _, err := nfe.ParseAccessKey(string(req.AccessKey)); err != nil {
		return nil, &domain.OperationError{Operation: "manifestacao", Reason: err.Error()}
	}
	if !nfe.ValidEnvironment(req.Environment) {
		return nil, fmt.Errorf("%w: ambiente %d", domain.ErrInvalidInput, req.Environment)
	}
	cert, err := c.transport.certificate(req.Credential)
	if err != nil {
		return nil, err
	}

	const seq = 1
	refID := nfe.EventID(eventType, req.AccessKey, seq)
	unsigned, err := c.eventXML(eventType, refID, cnpj, req, seq)
	if err != nil {
		return nil, fmt.Errorf("nfe: serializar envEvento: %w", err)
	}
	signed, err := c.signer.Sign(unsigned, refID, cert)
	if err != nil {
		return nil, fmt.Errorf("nfe: firmar evento: %w", err)
	}

	op := etree.NewElement("nfeDadosMsg")
	op.CreateAttr("xmlns", wsdlEvent)
	signedDoc := etree.NewDocument()
	if err := signedDoc.ReadFromBytes(signed); err != nil {
		return nil, fmt.Errorf("nfe: releer evento firmado: %w", err)
	}
	op.AddChild(signedDoc.Root())
	payload, err := envelope(op)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envEvento: %w", err)
	}

	resp, err := c.transport.post(ctx, "evento", c.transport.eventURL(req.Environment), actionEvent, cert, payload)
	if err != nil {
		return nil, err
	}
	return parseEventResponse(resp)
}

// eventXML arma envEvento con un único evento.
func (c *EventClient) eventXML(eventType, refID, cnpj string, req EventRequest, seq int) ([]byte, error) {
	doc := etree.NewDocument()
	env := doc.CreateElement("envEvento")
	env.CreateAttr("xmlns", nfe.NamespaceNFe)
	env.CreateAttr("versao", nfe.EventVersion)
	env.CreateElement("idLote").SetText(lotID(c.now()))

	ev := env.CreateElement("evento")
	ev.CreateAttr("versao", nfe.EventVersion)
	inf := ev.CreateElement("infEvento")
	inf.CreateAttr("Id", refID)
	inf.CreateElement("cOrgao").SetText(nfe.CodeAmbienteNacional)
	inf.CreateElement("tpAmb").SetText(strconv.Itoa(req.Environment))
	inf.CreateElement("CNPJ").SetText(cnpj)
	inf.CreateElement("chNFe").SetText(string(req.AccessKey))
	inf.CreateElement("dhEvento").SetText(c.now().In(brasilia).Format("2006-01-02T15:04:05-07:00"))
	inf.CreateElement("tpEvento").SetText(eventType)
	inf.CreateElement("nSeqEvento").SetText(strconv.Itoa(seq))
	inf.CreateElement("verEvento").SetText(nfe.EventVersion)

	det := inf.CreateElement("detEvento")
	det.CreateAttr("versao", nfe.EventVersion)
	det.CreateElement("descEvento").SetText(nfe.EventDescription(eventType))
	if nfe.EventRequiresJustification(eventType) && strings.TrimSpace(req.Justification) != "" {
		det.CreateElement("xJust").SetText(strings.TrimSpace(req.Justification))
	}
	return doc.WriteToBytes()
}

// lotID idLote numérico de hasta 15 dígitos.
func lotID(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli()%1_000_000_000_000_000, 10)
}

func parseEventResponse(resp *etree.Document) (*EventResult, error) {
	ret := resp.FindElement("//retEnvEvento")
	if ret == nil {
		return nil, &domain.RemoteServiceError{Operation: "evento", Message: "respuesta sin retEnvEvento"}
	}
	if status := childText(ret, "./cStat"); status != nfe.EventBatchProcessed {
		return nil, &domain.RemoteServiceError{Operation: "evento", Status: status, Message: childText(ret, "./xMotivo")}
	}
	inf := ret.FindElement("./retEvento/infEvento")
	if inf == nil {
		return nil, &domain.RemoteServiceError{Operation: "evento", Message: "lote procesado sin retEvento"}
	}
	result := &EventResult{
		Status:       childText(inf, "./cStat"),
		Message:      childText(inf, "./xMotivo"),
		Protocol:     childText(inf, "./nProt"),
		RegisteredAt: childText(inf, "./dhRegEvento"),
	}
	switch result.Status {
	case nfe.EventRegistered, nfe.EventRegisteredNoLink:
		return result, nil
	case nfe.EventDuplicate:
		result.Duplicate = true
		return result, nil
	default:
		return nil, &domain.RemoteServiceError{Operation: "evento", Status: result.Status, Message: result.Message}
	}
}
