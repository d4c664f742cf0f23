// Package credentials abre el certificado A1 de una filial y lo deja en un archivo temporal
// del que solo el proceso es dueño, durante el tiempo de vida del Handle.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
	"github.com/jhoicas/notas-destinadas/pkg/secretbox"
)

// Handle certificado listo para usar. Close borra el archivo temporal; es idempotente.
type Handle struct {
	path     string
	password string
	owned    bool

	once     sync.Once
	closeErr error
}

// Path ruta del .pfx.
func (h *Handle) Path() string { return h.path }

// Password contraseña del .pfx en claro. No debe registrarse en logs.
func (h *Handle) Password() string { return h.password }

// Close libera el archivo temporal.
func (h *Handle) Close() error {
	h.once.Do(func() {
		if h.owned {
			if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
				h.closeErr = fmt.Errorf("borrar certificado temporal: %w", err)
			}
		}
		h.password = ""
	})
	return h.closeErr
}

// Loader abre blob y contraseña sellados con secretbox.
type Loader struct {
	box     *secretbox.Box
	tempDir string
	log     *logger.Logger
}

// NewLoader box puede ser nil (sin secreto configurado): todo se trata como texto plano.
// tempDir vacío usa el directorio temporal del sistema.
func NewLoader(box *secretbox.Box, tempDir string, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{box: box, tempDir: tempDir, log: log.Component("credentials")}
}

// Load devuelve el certificado de la filial. El llamador debe cerrar el Handle.
// No valida el contenedor PKCS#12: eso lo hace quien lo abre (FormatError).
func (l *Loader) Load(ctx context.Context, branch *entity.Branch) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if branch == nil || !branch.HasCredential() {
		return nil, &domain.CredentialError{BranchID: branchID(branch), Reason: "sin certificado configurado"}
	}
	if strings.TrimSpace(branch.CertPassword) == "" {
		return nil, &domain.CredentialError{BranchID: branch.BranchID, Reason: "sin contraseña del certificado"}
	}
	log := l.log.Tenant(branch.CompanyID, branch.BranchID)

	password, sealed, err := l.openString(branch.CertPassword)
	if err != nil {
		return nil, err
	}
	if !sealed {
		log.Warn().Str("campo", "cert_password").Msg("credencial almacenada en claro; se usa tal cual")
	}

	blob := branch.CertBlob
	if len(blob) == 0 {
		raw, err := os.ReadFile(branch.CertPath)
		if err != nil {
			return nil, &domain.CredentialError{BranchID: branch.BranchID, Reason: fmt.Sprintf("leer %s: %v", branch.CertPath, err)}
		}
		blob = raw
	}

	plain, sealed, err := l.open(blob)
	if err != nil {
		return nil, err
	}
	if !sealed {
		log.Warn().Str("campo", "cert_blob").Msg("credencial almacenada en claro; se usa tal cual")
		if len(branch.CertBlob) == 0 {
			// El archivo configurado ya es el .pfx: se usa en su lugar, sin copia.
			return &Handle{path: branch.CertPath, password: password}, nil
		}
	}

	f, err := os.CreateTemp(l.tempDir, "nfe-cert-*.pfx")
	if err != nil {
		return nil, fmt.Errorf("crear certificado temporal: %w", err)
	}
	h := &Handle{path: f.Name(), password: password, owned: true}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		h.Close()
		return nil, fmt.Errorf("permisos del certificado temporal: %w", err)
	}
	if _, err := f.Write(plain); err != nil {
		f.Close()
		h.Close()
		return nil, fmt.Errorf("escribir certificado temporal: %w", err)
	}
	if err := f.Close(); err != nil {
		h.Close()
		return nil, fmt.Errorf("cerrar certificado temporal: %w", err)
	}
	return h, nil
}

// open devuelve el contenido y si venía sellado. Un valor no sellado o que no abre con la
// llave actual se considera texto plano heredado.
func (l *Loader) open(blob []byte) ([]byte, bool, error) {
	if l.box == nil {
		return blob, false, nil
	}
	plain, err := l.box.Open(blob)
	switch {
	case err == nil:
		return plain, true, nil
	case errors.Is(err, secretbox.ErrNotSealed), errors.Is(err, secretbox.ErrOpen):
		return blob, false, nil
	default:
		return nil, false, fmt.Errorf("abrir certificado: %w", err)
	}
}

func (l *Loader) openString(s string) (string, bool, error) {
	if l.box == nil {
		return s, false, nil
	}
	plain, err := l.box.OpenString(s)
	switch {
	case err == nil:
		return plain, true, nil
	case errors.Is(err, secretbox.ErrNotSealed), errors.Is(err, secretbox.ErrOpen):
		return s, false, nil
	default:
		return "", false, fmt.Errorf("abrir contraseña: %w", err)
	}
}

func branchID(b *entity.Branch) string {
	if b == nil {
		return ""
	}
	return b.BranchID
}
