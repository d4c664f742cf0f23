// Carga de certificado A1 desde .pfx/.p12 (PKCS#12).

package signer

import (
	"bytes"
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"

	"github.com/jhoicas/notas-destinadas/internal/domain"
)

// LoadFromP12 carga certificado, cadena y llave privada desde un archivo .pfx.
// Bytes inválidos o contraseña incorrecta se devuelven como *domain.FormatError.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer pfx: %w", err)
	}
	return ParseP12(data, password)
}

// ParseP12 igual que LoadFromP12 pero desde memoria.
func ParseP12(data []byte, password string) (tls.Certificate, error) {
	// pkcs12.Decode solo acepta hoja + llave; los A1 de las AC brasileñas suelen traer la cadena.
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, &domain.FormatError{Err: err}
	}
	var certPEM, keyPEM bytes.Buffer
	for _, b := range blocks {
		if b.Type == "CERTIFICATE" {
			_ = pem.Encode(&certPEM, b)
		} else {
			_ = pem.Encode(&keyPEM, b)
		}
	}
	cert, err := tls.X509KeyPair(certPEM.Bytes(), keyPEM.Bytes())
	if err != nil {
		return tls.Certificate{}, &domain.FormatError{Err: err}
	}
	return cert, nil
}
