package notas

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/credentials"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// AcknowledgeInput nota a manifestar. Justificación vacía usa la configurada.
type AcknowledgeInput struct {
	DocumentID    string
	Justification string
}

// AcknowledgeResult situación tras la ciencia.
type AcknowledgeResult struct {
	DocumentID string
	AccessKey  nfe.AccessKey
	StatusCode int
	Protocol   string
	Duplicate  bool
}

// AcknowledgmentService envía la ciencia de la operación y guarda situación y protocolo.
// Repetir la llamada es seguro: el evento duplicado cuenta como éxito.
type AcknowledgmentService struct {
	documents   repository.FiscalDocumentRepository
	branches    repository.BranchRepository
	credentials CredentialLoader
	events      EventGateway
	parser      *sefaz.Parser
	settings    Settings
	log         *logger.Logger
}

// NewAcknowledgmentService construye el servicio.
func NewAcknowledgmentService(
	documents repository.FiscalDocumentRepository,
	branches repository.BranchRepository,
	creds CredentialLoader,
	events EventGateway,
	parser *sefaz.Parser,
	settings Settings,
	log *logger.Logger,
) *AcknowledgmentService {
	if parser == nil {
		parser = sefaz.NewParser()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AcknowledgmentService{
		documents:   documents,
		branches:    branches,
		credentials: creds,
		events:      events,
		parser:      parser,
		settings:    settings,
		log:         log.Component("notas.manifestacao"),
	}
}

// Acknowledge manifiesta una nota bajo demanda. Abre el certificado de la filial solo para esta llamada.
func (s *AcknowledgmentService) Acknowledge(ctx context.Context, tenant entity.Tenant, in AcknowledgeInput) (*AcknowledgeResult, error) {
	if !tenant.Valid() || strings.TrimSpace(in.DocumentID) == "" {
		return nil, fmt.Errorf("%w: empresa, filial y nota son obligatorias", domain.ErrInvalidInput)
	}
	doc, err := s.documents.GetByID(ctx, tenant, in.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: nota %s", domain.ErrNotFound, in.DocumentID)
	}
	// Sin chave no hace falta abrir el certificado.
	if _, err := s.accessKey(doc); err != nil {
		return nil, err
	}

	branch, err := s.branches.Get(ctx, tenant.CompanyID, tenant.BranchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fmt.Errorf("%w: filial %s", domain.ErrNotFound, tenant.BranchID)
	}
	handle, err := s.credentials.Load(ctx, branch)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	return s.acknowledge(ctx, tenant, doc, ackParams{
		taxID:         branch.TaxID,
		environment:   environmentOf(branch, s.settings),
		justification: in.Justification,
		credential:    handle,
	})
}

type ackParams struct {
	taxID         string
	environment   int
	justification string
	credential    *credentials.Handle
}

func (s *AcknowledgmentService) acknowledge(ctx context.Context, tenant entity.Tenant, doc *entity.FiscalDocument, p ackParams) (*AcknowledgeResult, error) {
	key, err := s.accessKey(doc)
	if err != nil {
		return nil, err
	}
	justification := p.justification
	if strings.TrimSpace(justification) == "" {
		justification = s.settings.Justification
	}

	ev, err := s.events.SendAwareness(ctx, sefaz.EventRequest{
		TaxID:         p.taxID,
		AccessKey:     key,
		Environment:   p.environment,
		Credential:    credentialOf(p.credential),
		Justification: justification,
	})
	if err != nil {
		return nil, err
	}

	protocol := ev.Protocol
	if protocol == "" {
		protocol = doc.Protocol
	}
	if err := s.documents.UpdateAcknowledgment(ctx, tenant, doc.ID, nfe.StatusAwarenessRecorded, protocol); err != nil {
		return nil, fmt.Errorf("guardar ciencia de %s: %w", doc.DisplayNumber(), err)
	}
	doc.StatusCode, doc.Protocol = nfe.StatusAwarenessRecorded, protocol

	s.log.Tenant(tenant.CompanyID, tenant.BranchID).Info().
		Str("chave", string(key)).
		Str("protocolo", protocol).
		Bool("duplicado", ev.Duplicate).
		Str("justificativa", justification).
		Msg("ciencia de la operación registrada")
	return &AcknowledgeResult{
		DocumentID: doc.ID,
		AccessKey:  key,
		StatusCode: nfe.StatusAwarenessRecorded,
		Protocol:   protocol,
		Duplicate:  ev.Duplicate,
	}, nil
}

// accessKey campo dedicado o, si falta, el Id del XML.
func (s *AcknowledgmentService) accessKey(doc *entity.FiscalDocument) (nfe.AccessKey, error) {
	if doc.AccessKey != "" {
		if key, err := nfe.ParseAccessKey(doc.AccessKey); err == nil {
			return key, nil
		}
	}
	if doc.IsManual() {
		return "", &domain.OperationError{Operation: "ciencia", Reason: fmt.Sprintf("la nota %s es manual y no tiene chave", doc.DisplayNumber())}
	}
	key, err := s.parser.AccessKey([]byte(*doc.XML))
	if err != nil {
		return "", &domain.OperationError{Operation: "ciencia", Reason: fmt.Sprintf("la nota %s no tiene chave: %v", doc.DisplayNumber(), err)}
	}
	return key, nil
}

func environmentOf(branch *entity.Branch, settings Settings) int {
	if nfe.ValidEnvironment(branch.Environment) {
		return branch.Environment
	}
	if nfe.ValidEnvironment(settings.Environment) {
		return settings.Environment
	}
	return nfe.EnvironmentProduction
}
