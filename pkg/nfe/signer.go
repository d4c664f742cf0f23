package nfe

import "crypto/tls"

// Signer firma un elemento con atributo Id e inyecta ds:Signature como hermano
// inmediatamente posterior (firma enveloped del padrão XMLDSig de la NF-e).
type Signer interface {
	// Sign recibe el XML completo, el Id del elemento a firmar y el certificado con llave privada.
	Sign(xmlBytes []byte, referenceID string, cert tls.Certificate) ([]byte, error)
}
