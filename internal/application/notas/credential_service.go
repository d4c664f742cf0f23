package notas

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz/signer"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
	"github.com/jhoicas/notas-destinadas/pkg/secretbox"
)

// CertificateInfo titular y vencimiento del certificado guardado.
type CertificateInfo struct {
	Subject  string
	NotAfter time.Time
}

// CredentialService valida un .pfx con su contraseña y los guarda sellados en la filial.
type CredentialService struct {
	branches repository.BranchRepository
	box      *secretbox.Box
	log      *logger.Logger
}

// NewCredentialService box es obligatorio: sin secreto no se guarda nada en claro.
func NewCredentialService(branches repository.BranchRepository, box *secretbox.Box, log *logger.Logger) *CredentialService {
	if log == nil {
		log = logger.Nop()
	}
	return &CredentialService{branches: branches, box: box, log: log.Component("notas.certificado")}
}

// Inspect abre el contenedor sin guardarlo. Errores de formato o contraseña son *domain.FormatError.
func (s *CredentialService) Inspect(pfx []byte, password string) (*CertificateInfo, error) {
	cert, err := signer.ParseP12(pfx, password)
	if err != nil {
		return nil, err
	}
	leaf := cert.Leaf
	if leaf == nil {
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return nil, &domain.FormatError{Err: err}
		}
	}
	return &CertificateInfo{Subject: leaf.Subject.CommonName, NotAfter: leaf.NotAfter}, nil
}

// Seal valida, sella certificado y contraseña y los guarda en la filial.
func (s *CredentialService) Seal(ctx context.Context, tenant entity.Tenant, pfx []byte, password string) (*CertificateInfo, error) {
	if s.box == nil {
		return nil, &domain.CredentialError{BranchID: tenant.BranchID, Reason: "secreto de cifrado no configurado"}
	}
	if !tenant.Valid() {
		return nil, fmt.Errorf("%w: empresa y filial son obligatorias", domain.ErrInvalidInput)
	}
	info, err := s.Inspect(pfx, password)
	if err != nil {
		return nil, err
	}
	branch, err := s.branches.Get(ctx, tenant.CompanyID, tenant.BranchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fmt.Errorf("%w: filial %s", domain.ErrNotFound, tenant.BranchID)
	}

	blob, err := s.box.Seal(pfx)
	if err != nil {
		return nil, err
	}
	sealedPassword, err := s.box.SealString(password)
	if err != nil {
		return nil, err
	}
	if err := s.branches.SaveCredential(ctx, tenant, blob, sealedPassword); err != nil {
		return nil, fmt.Errorf("guardar certificado: %w", err)
	}

	s.log.Tenant(tenant.CompanyID, tenant.BranchID).Info().
		Str("titular", info.Subject).
		Time("validade", info.NotAfter).
		Msg("certificado sellado y guardado")
	return info, nil
}
