package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

// WorkerConfig dependencias del worker. ImportCron vacío desactiva el barrido programado.
type WorkerConfig struct {
	RedisOpts   asynq.RedisConnOpt
	Concurrency int
	ImportCron  string
	Job         *ImportJob
	Logger      *logger.Logger
}

// Worker servidor asynq más el scheduler opcional del barrido.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewWorker registra los handlers y, si hay cron, el barrido.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Job == nil {
		return nil, errors.New("jobs: ImportJob es obligatorio")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("jobs.worker")
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{QueueImports: 1},
		Logger:      asynqLogger{log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn().Err(err).Str("tarea", task.Type()).Int("intento", retried).Int("max", maxRetry).Msg("tarea fallida")
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskImportBranch, cfg.Job.HandleImportBranch)
	mux.HandleFunc(TaskImportSweep, cfg.Job.HandleImportSweep)

	var scheduler *asynq.Scheduler
	if cfg.ImportCron != "" {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC, Logger: asynqLogger{log}})
		if _, err := scheduler.Register(cfg.ImportCron, NewImportSweepTask(),
			asynq.Queue(QueueImports), asynq.MaxRetry(1), asynq.Unique(time.Minute)); err != nil {
			return nil, fmt.Errorf("jobs: cron %q: %w", cfg.ImportCron, err)
		}
	}
	return &Worker{server: srv, mux: mux, scheduler: scheduler, log: log}, nil
}

// Run procesa tareas hasta que se cancele ctx.
func (w *Worker) Run(ctx context.Context) error {
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
		defer w.scheduler.Shutdown()
	}
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.log.Info().Msg("worker iniciado")
	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info().Msg("worker detenido")
	return nil
}

// asynqLogger adapta asynq.Logger a zerolog.
type asynqLogger struct{ log *logger.Logger }

func (l asynqLogger) Debug(args ...any) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
