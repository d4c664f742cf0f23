// Package secretbox sella secretos en reposo (certificado A1 y su contraseña) con una llave
// derivada del secreto compartido de la aplicación: HKDF-SHA256 + XChaCha20-Poly1305.
package secretbox

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// prefix identifica el formato sellado; todo valor sin él se considera heredado.
var prefix = []byte("sb1:")

const info = "notas-destinadas/credentials/v1"

var (
	// ErrNotSealed el valor no tiene el formato sellado (almacenamiento heredado en claro).
	ErrNotSealed = errors.New("secretbox: valor no sellado")
	// ErrOpen el valor tiene formato sellado pero no autentica con la llave actual.
	ErrOpen = errors.New("secretbox: no se pudo abrir el valor")
)

// Box sella y abre valores con la llave derivada.
type Box struct {
	key []byte
}

// New deriva la llave a partir del secreto compartido.
func New(secret string) (*Box, error) {
	if secret == "" {
		return nil, fmt.Errorf("secretbox: secreto vacío")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("secretbox: derivar llave: %w", err)
	}
	return &Box{key: key}, nil
}

// Seal cifra plaintext: prefix || nonce(24) || ciphertext+tag.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("secretbox: nonce: %w", err)
	}
	out := make([]byte, 0, len(prefix)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, prefix...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, prefix), nil
}

// Open descifra un valor producido por Seal.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, prefix) {
		return nil, ErrNotSealed
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aead: %w", err)
	}
	body := sealed[len(prefix):]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrOpen
	}
	nonce, ct := body[:aead.NonceSize()], body[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, prefix)
	if err != nil {
		return nil, ErrOpen
	}
	return plain, nil
}

// SealString sella un texto y lo devuelve en base64 (columna de texto).
func (b *Box) SealString(s string) (string, error) {
	sealed, err := b.Seal([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenString abre un texto sellado con SealString.
func (b *Box) OpenString(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", ErrNotSealed
	}
	plain, err := b.Open(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
