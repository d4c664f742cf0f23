// Firma XMLDSig enveloped de los eventos de la NF-e.
// La <Signature> se agrega como hermana del elemento referenciado (infEvento).

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

var _ nfe.Signer = (*DigitalSignatureService)(nil)

// DigitalSignatureService implementa nfe.Signer.
type DigitalSignatureService struct{}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign firma el elemento con Id = referenceID e inserta ds:Signature justo después de él.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, referenceID string, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("nfe: XML vacío")
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("nfe: certificado sin cadena")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("nfe: el certificado debe incluir llave privada RSA")
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("nfe: parsear certificado: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("nfe: parsear XML: %w", err)
	}
	target := findByID(doc.Root(), referenceID)
	if target == nil {
		return nil, fmt.Errorf("nfe: no se encontró el elemento Id=%q", referenceID)
	}

	// 1) Digest del elemento referenciado, con el namespace heredado declarado.
	canonicalRef, err := canonicalizeElement(target)
	if err != nil {
		return nil, fmt.Errorf("nfe: canonicalizar %s: %w", referenceID, err)
	}
	refDigest := sha1.Sum(canonicalRef)

	// 2) SignedInfo
	signedInfoXML := buildSignedInfo(referenceID, base64.StdEncoding.EncodeToString(refDigest[:]))
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		return nil, fmt.Errorf("nfe: canonicalizar SignedInfo: %w", err)
	}
	signHash := sha1.Sum(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA1, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("nfe: firmar SignedInfo: %w", err)
	}

	// 3) Signature completa
	signatureXML := buildSignature(signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(x509Cert.Raw))

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("nfe: parsear Signature: %w", err)
	}
	parent := target.Parent()
	if parent == nil {
		return nil, fmt.Errorf("nfe: el elemento firmado no puede ser la raíz")
	}
	parent.InsertChildAt(target.Index()+1, sigDoc.Root())

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("nfe: serializar XML firmado: %w", err)
	}
	return out.Bytes(), nil
}

func findByID(el *etree.Element, id string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.SelectAttrValue("Id", "") == id {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// canonicalizeElement serializa una copia del elemento como documento propio. El xmlns por
// defecto de los ancestros se declara en la copia para que el C14N coincida con el del receptor.
func canonicalizeElement(el *etree.Element) ([]byte, error) {
	cp := el.Copy()
	if ns := el.NamespaceURI(); ns != "" && cp.SelectAttr("xmlns") == nil {
		cp.CreateAttr("xmlns", ns)
	}
	for _, sig := range cp.SelectElements("Signature") {
		cp.RemoveChild(sig)
	}
	sub := etree.NewDocument()
	sub.SetRoot(cp)
	raw, err := sub.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return canonicalizeXML(raw)
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(referenceID, digestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"></CanonicalizationMethod>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA1 + `"></SignatureMethod>`)
	sb.WriteString(`<Reference URI="#` + referenceID + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"></Transform>`)
	sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"></Transform></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA1 + `"></DigestMethod>`)
	sb.WriteString(`<DigestValue>` + digestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<SignatureValue>` + signatureValueB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}
