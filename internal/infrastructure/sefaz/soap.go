// Package sefaz implementa los web services de la NF-e usados por el destinatario:
// NFeDistribuicaoDFe (consulta por NSU) y NFeRecepcaoEvento4 (manifestación).
package sefaz

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz/signer"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// ── Endpoints del Ambiente Nacional ───────────────────────────────────────────

const (
	DistributionURLProduction   = "https://www1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx"
	DistributionURLHomologation = "https://hom1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx"
	EventURLProduction          = "https://www.nfe.fazenda.gov.br/NFeRecepcaoEvento4/NFeRecepcaoEvento4.asmx"
	EventURLHomologation        = "https://hom1.nfe.fazenda.gov.br/NFeRecepcaoEvento4/NFeRecepcaoEvento4.asmx"

	soapNS12           = "http://www.w3.org/2003/05/soap-envelope"
	wsdlDistribution   = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe"
	wsdlEvent          = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeRecepcaoEvento4"
	actionDistribution = wsdlDistribution + "/nfeDistDFeInteresse"
	actionEvent        = wsdlEvent + "/nfeRecepcaoEvento"

	maxResponseBytes = 10 << 20 // un lote de 50 docZip cabe con holgura
)

// Credential certificado A1 ya materializado en un archivo temporal.
type Credential struct {
	Path     string
	Password string
}

// Endpoints URLs de los servicios; vacío = el oficial del ambiente.
type Endpoints struct {
	Distribution string
	Event        string
}

// Transport cliente SOAP 1.2 con autenticación mutua por el certificado A1.
type Transport struct {
	timeout   time.Duration
	endpoints Endpoints

	// LoadCertificate abre el .pfx. Por defecto signer.LoadFromP12.
	LoadCertificate func(path, password string) (tls.Certificate, error)
	// NewHTTPClient construye el cliente HTTP para un certificado.
	NewHTTPClient func(cert tls.Certificate, timeout time.Duration) *http.Client
}

// NewTransport construye el transporte con el timeout de red indicado.
func NewTransport(timeout time.Duration, endpoints Endpoints) *Transport {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Transport{
		timeout:         timeout,
		endpoints:       endpoints,
		LoadCertificate: signer.LoadFromP12,
		NewHTTPClient:   mutualTLSClient,
	}
}

func mutualTLSClient(cert tls.Certificate, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates:  []tls.Certificate{cert},
				MinVersion:    tls.VersionTLS12,
				Renegotiation: tls.RenegotiateOnceAsClient,
			},
		},
	}
}

func (t *Transport) distributionURL(env int) string {
	if t.endpoints.Distribution != "" {
		return t.endpoints.Distribution
	}
	if env == nfe.EnvironmentProduction {
		return DistributionURLProduction
	}
	return DistributionURLHomologation
}

func (t *Transport) eventURL(env int) string {
	if t.endpoints.Event != "" {
		return t.endpoints.Event
	}
	if env == nfe.EnvironmentProduction {
		return EventURLProduction
	}
	return EventURLHomologation
}

// certificate abre el .pfx; errores de formato ya vienen como *domain.FormatError.
func (t *Transport) certificate(cred Credential) (tls.Certificate, error) {
	if cred.Path == "" {
		return tls.Certificate{}, &domain.CredentialError{Reason: "sin archivo de certificado"}
	}
	return t.LoadCertificate(cred.Path, cred.Password)
}

// envelope envuelve el contenido de la operación en un Envelope SOAP 1.2.
func envelope(operation *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	env := doc.CreateElement("soap12:Envelope")
	env.CreateAttr("xmlns:soap12", soapNS12)
	body := env.CreateElement("soap12:Body")
	body.AddChild(operation)
	doc.WriteSettings.CanonicalEndTags = true
	return doc.WriteToBytes()
}

// post envía el envelope y devuelve el documento de respuesta. Fallas de red, HTTP o
// SOAP Fault se devuelven como *domain.RemoteServiceError.
func (t *Transport) post(ctx context.Context, operation, url, action string, cert tls.Certificate, payload []byte) (*etree.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action="`+action+`"`)

	resp, err := t.NewHTTPClient(cert, t.timeout).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.RemoteServiceError{Operation: operation, Message: "timeout o cancelación", Err: ctx.Err()}
		}
		return nil, &domain.RemoteServiceError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.RemoteServiceError{Operation: operation, Message: "leer respuesta", Err: err}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, &domain.RemoteServiceError{
			Operation: operation,
			Message:   fmt.Sprintf("HTTP %d: respuesta no es XML: %s", resp.StatusCode, snippet(raw)),
		}
	}
	if fault := doc.FindElement("//Fault"); fault != nil {
		return nil, &domain.RemoteServiceError{Operation: operation, Message: "SOAP Fault: " + faultReason(fault)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.RemoteServiceError{
			Operation: operation,
			Message:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(raw)),
		}
	}
	return doc, nil
}

// faultReason acepta el formato SOAP 1.2 (Reason/Text) y el 1.1 (faultstring).
func faultReason(fault *etree.Element) string {
	for _, path := range []string{"./Reason/Text", "./faultstring"} {
		if el := fault.FindElement(path); el != nil {
			if s := strings.TrimSpace(el.Text()); s != "" {
				return s
			}
		}
	}
	return "sin detalle"
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func childText(el *etree.Element, path string) string {
	if el == nil {
		return ""
	}
	if found := el.FindElement(path); found != nil {
		return strings.TrimSpace(found.Text())
	}
	return ""
}
