package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/redislock"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

// Importer lo que las tareas necesitan del orquestador.
type Importer interface {
	RunPassExclusive(ctx context.Context, tenant entity.Tenant, ov notas.PassOverrides) (*notas.BatchSummary, error)
	RunActive(ctx context.Context) ([]*notas.BatchSummary, error)
}

// ImportJob handlers de las tareas de importación.
type ImportJob struct {
	importer Importer
	log      *logger.Logger
}

// NewImportJob construye los handlers.
func NewImportJob(importer Importer, log *logger.Logger) *ImportJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ImportJob{importer: importer, log: log.Component("jobs.import")}
}

// HandleImportBranch corre una pasada exclusiva. Payload inválido o credencial ausente no se reintentan;
// si otra pasada tiene el lock de la filial la tarea termina sin error.
func (j *ImportJob) HandleImportBranch(ctx context.Context, t *asynq.Task) error {
	var p ImportBranchPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("payload %s: %v: %w", TaskImportBranch, err, asynq.SkipRetry)
	}
	tenant := p.Tenant()
	if !tenant.Valid() {
		return fmt.Errorf("payload %s sin empresa/filial: %w", TaskImportBranch, asynq.SkipRetry)
	}
	log := j.log.Tenant(tenant.CompanyID, tenant.BranchID)

	start := time.Now()
	summary, err := j.importer.RunPassExclusive(ctx, tenant, notas.PassOverrides{})
	switch {
	case errors.Is(err, redislock.ErrNotAcquired):
		log.Info().Msg("pasada en curso en otro proceso; se omite")
		return nil
	case permanent(err):
		log.Error().Err(err).Msg("importación sin reintento")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	case err != nil:
		return err
	}
	log.Info().
		Int("recibidos", summary.Fetched).
		Int("creados", summary.Created).
		Str("ult_nsu", summary.Cursor).
		Bool("hay_mas", summary.HasMore).
		Dur("duracion", time.Since(start)).
		Msg("tarea de importación finalizada")
	return nil
}

// HandleImportSweep corre todas las filiales activas. Falla (y se reintenta) solo si alguna falló.
func (j *ImportJob) HandleImportSweep(ctx context.Context, _ *asynq.Task) error {
	summaries, err := j.importer.RunActive(ctx)
	j.log.Info().Int("filiales", len(summaries)).Err(err).Msg("barrido de importación")
	return err
}

// permanent errores de configuración o de datos que un reintento no arregla.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrCredential) ||
		errors.Is(err, domain.ErrCertificateFormat) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput)
}
