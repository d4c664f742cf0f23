// Package main procesa las importaciones encoladas y el barrido programado de filiales.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhoicas/notas-destinadas/internal/app"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/jobs"
	"github.com/jhoicas/notas-destinadas/pkg/config"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicialización")
	}
	defer svc.Close()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   app.AsynqRedis(cfg.Redis),
		Concurrency: cfg.Jobs.BranchConcurrency,
		ImportCron:  cfg.Jobs.ImportCron,
		Job:         jobs.NewImportJob(svc.Orchestrator, log),
		Logger:      log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("worker")
	}
	log.Info().Str("cron", cfg.Jobs.ImportCron).Int("concurrencia", cfg.Jobs.BranchConcurrency).Msg("iniciando worker")
	if err := worker.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker finalizado con error")
	}
}
