package notas

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	domainnfe "github.com/jhoicas/notas-destinadas/internal/domain/nfe"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/redislock"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

// PassOverrides parámetros que reemplazan los de la filial en una pasada. Vacío = configuración.
type PassOverrides struct {
	Jurisdiction    string
	TaxID           string
	Cursor          string
	Environment     int
	AutoAcknowledge *bool
	Justification   string
}

// BatchSummary resultado de una pasada.
type BatchSummary struct {
	Tenant         entity.Tenant
	Status         string // cStat de la distribución
	Message        string
	Fetched        int // documentos decodificados
	Created        int
	Updated        int
	Ignored        int // resúmenes y eventos
	Skipped        int // docZip corruptos
	Invalid        int // XML sin los bloques obligatorios
	Acknowledged   int
	AckFailed      int
	PreviousCursor string
	Cursor         string
	HasMore        bool
	SkippedNSUs    []string // corruptos e inválidos, para volver a consultarlos por consNSU
}

// Orchestrator una pasada de importación por filial: consulta, normaliza, manifiesta y
// avanza el NSU. No drena todas las páginas: la siguiente invocación sigue desde el cursor guardado.
type Orchestrator struct {
	branches     repository.BranchRepository
	credentials  CredentialLoader
	distribution DistributionGateway
	normalizer   *Normalizer
	ack          *AcknowledgmentService
	locker       BranchLocker
	settings     Settings
	concurrency  int
	log          *logger.Logger
}

// OrchestratorConfig dependencias del orquestador. Locker nil = sin exclusión entre procesos.
type OrchestratorConfig struct {
	Branches     repository.BranchRepository
	Credentials  CredentialLoader
	Distribution DistributionGateway
	Normalizer   *Normalizer
	Ack          *AcknowledgmentService
	Locker       BranchLocker
	Settings     Settings
	Concurrency  int
	Logger       *logger.Logger
}

// NewOrchestrator construye el orquestador.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Orchestrator{
		branches:     cfg.Branches,
		credentials:  cfg.Credentials,
		distribution: cfg.Distribution,
		normalizer:   cfg.Normalizer,
		ack:          cfg.Ack,
		locker:       cfg.Locker,
		settings:     cfg.Settings,
		concurrency:  cfg.Concurrency,
		log:          log.Component("notas.importacao"),
	}
}

// RunPass una consulta a la distribución. El NSU solo se guarda después de procesar el lote
// completo; errores de credencial, formato, SEFAZ o base de datos abortan sin moverlo.
// El llamador debe serializar las pasadas de una misma filial (ver RunPassExclusive).
func (o *Orchestrator) RunPass(ctx context.Context, tenant entity.Tenant, ov PassOverrides) (*BatchSummary, error) {
	if !tenant.Valid() {
		return nil, fmt.Errorf("%w: empresa y filial son obligatorias", domain.ErrInvalidInput)
	}
	branch, err := o.branches.Get(ctx, tenant.CompanyID, tenant.BranchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fmt.Errorf("%w: filial %s", domain.ErrNotFound, tenant.BranchID)
	}
	log := o.log.Tenant(tenant.CompanyID, tenant.BranchID)

	start := branch.Cursor
	if ov.Cursor != "" {
		if start, err = entity.NewImportCursor(ov.Cursor); err != nil {
			return nil, err
		}
	}
	jurisdiction := firstNonEmpty(ov.Jurisdiction, branch.Jurisdiction)
	taxID := firstNonEmpty(ov.TaxID, branch.TaxID)
	env := environmentOf(branch, o.settings)
	if ov.Environment != 0 {
		env = ov.Environment
	}
	autoAck := o.settings.AutoAcknowledge
	if ov.AutoAcknowledge != nil {
		autoAck = *ov.AutoAcknowledge
	}

	handle, err := o.credentials.Load(ctx, branch)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := handle.Close(); err != nil {
			log.Warn().Err(err).Msg("no se pudo liberar el certificado temporal")
		}
	}()

	log.Info().Str("ult_nsu", start.String()).Int("ambiente", env).Msg("inicio de la importación")
	result, err := o.distribution.Fetch(ctx, sefaz.DistributionQuery{
		Jurisdiction: jurisdiction,
		TaxID:        taxID,
		Cursor:       start.String(),
		Environment:  env,
		Credential:   credentialOf(handle),
	})
	if err != nil {
		return nil, err
	}

	sum := &BatchSummary{
		Tenant:         tenant,
		Status:         result.Status,
		Message:        result.Message,
		Fetched:        len(result.Documents),
		Ignored:        result.Ignored,
		Skipped:        result.Skipped,
		PreviousCursor: branch.Cursor.String(),
		Cursor:         branch.Cursor.String(),
		HasMore:        result.HasMore(),
		SkippedNSUs:    append([]string(nil), result.SkippedNSUs...),
	}

	for _, d := range result.Documents {
		doc, created, err := o.normalizer.Ingest(ctx, tenant, entity.ElectronicSource{XML: d.XML})
		if err != nil {
			if errors.Is(err, domainnfe.ErrInvalidDocument) {
				sum.Invalid++
				sum.SkippedNSUs = append(sum.SkippedNSUs, d.NSU)
				log.Warn().Err(err).Str("nsu", d.NSU).Msg("documento descartado")
				continue
			}
			return nil, fmt.Errorf("NSU %s: %w", d.NSU, err)
		}
		if created {
			sum.Created++
		} else {
			sum.Updated++
		}
		if !autoAck || o.ack == nil {
			continue
		}
		_, err = o.ack.acknowledge(ctx, tenant, doc, ackParams{
			taxID:         taxID,
			environment:   env,
			justification: ov.Justification,
			credential:    handle,
		})
		if err != nil {
			sum.AckFailed++
			log.Warn().Err(err).Str("nota", doc.DisplayNumber()).Msg("ciencia no enviada; el lote continúa")
			continue
		}
		sum.Acknowledged++
	}

	if result.Cursor != "" {
		next, err := branch.Cursor.Advance(result.Cursor)
		switch {
		case errors.Is(err, domain.ErrCursorRewind):
			log.Warn().Err(err).Msg("la SEFAZ devolvió un NSU anterior al guardado; se conserva el actual")
		case err != nil:
			return nil, err
		case branch.Cursor.Less(next):
			if err := o.branches.SaveCursor(ctx, tenant, next); err != nil {
				return nil, fmt.Errorf("guardar NSU: %w", err)
			}
			sum.Cursor = next.String()
		}
	}

	log.Info().
		Str("cstat", sum.Status).
		Int("recebidos", sum.Fetched).
		Int("criados", sum.Created).
		Int("atualizados", sum.Updated).
		Int("descartados", sum.Skipped).
		Int("invalidos", sum.Invalid).
		Strs("nsu_descartados", sum.SkippedNSUs).
		Int("manifestados", sum.Acknowledged).
		Str("ult_nsu", sum.Cursor).
		Bool("tem_mais", sum.HasMore).
		Msg("importación finalizada")
	return sum, nil
}

// RunPassExclusive RunPass bajo el lock de la filial. Sin locker corre directo.
func (o *Orchestrator) RunPassExclusive(ctx context.Context, tenant entity.Tenant, ov PassOverrides) (*BatchSummary, error) {
	if o.locker == nil {
		return o.RunPass(ctx, tenant, ov)
	}
	var sum *BatchSummary
	err := o.locker.WithLock(ctx, redislock.BranchKey(tenant.CompanyID, tenant.BranchID), func(ctx context.Context) error {
		var err error
		sum, err = o.RunPass(ctx, tenant, ov)
		return err
	})
	return sum, err
}

// RunAll una pasada por filial, con a lo sumo concurrency filiales a la vez. El fallo de una
// filial no detiene a las demás; los errores se devuelven juntos. Una filial ya en curso
// en otro proceso se omite.
func (o *Orchestrator) RunAll(ctx context.Context, tenants []entity.Tenant) ([]*BatchSummary, error) {
	var (
		mu        sync.Mutex
		summaries []*BatchSummary
		errs      []error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, t := range tenants {
		g.Go(func() error {
			sum, err := o.RunPassExclusive(ctx, t, PassOverrides{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, redislock.ErrNotAcquired):
				o.log.Tenant(t.CompanyID, t.BranchID).Info().Msg("importación ya en curso; se omite")
			case err != nil:
				errs = append(errs, fmt.Errorf("filial %s/%s: %w", t.CompanyID, t.BranchID, err))
			default:
				summaries = append(summaries, sum)
			}
			return nil
		})
	}
	_ = g.Wait()
	return summaries, errors.Join(errs...)
}

// RunActive RunAll sobre las filiales con importación activa.
func (o *Orchestrator) RunActive(ctx context.Context) ([]*BatchSummary, error) {
	branches, err := o.branches.ListImportActive(ctx)
	if err != nil {
		return nil, err
	}
	tenants := make([]entity.Tenant, 0, len(branches))
	for _, b := range branches {
		tenants = append(tenants, b.Tenant())
	}
	return o.RunAll(ctx, tenants)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
