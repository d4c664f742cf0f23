package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/notas-destinadas/internal/app"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/jobs"
	httpRouter "github.com/jhoicas/notas-destinadas/internal/interfaces/http"
	"github.com/jhoicas/notas-destinadas/pkg/config"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Int("ambiente_sefaz", cfg.SEFAZ.Environment).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	ctx := context.Background()
	svc, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicialización")
	}
	defer svc.Close()

	queue := jobs.NewClient(app.AsynqRedis(cfg.Redis), cfg.Jobs.LockTTL)
	defer queue.Close()

	fiberApp := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.SEFAZ.Timeout + 15*time.Second, // una importación síncrona espera a la SEFAZ
		IdleTimeout:  time.Second * 60,
		BodyLimit:    1 << 20,
	})
	fiberApp.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	fiberApp.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Notas Destinadas API",
	}))

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		if err := svc.Pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db_down", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(fiberApp, httpRouter.RouterDeps{
		Notas: httpRouter.NotasDeps{
			Importer:    svc.Orchestrator,
			Queue:       queue,
			Queries:     svc.Queries,
			Mapper:      svc.Mapping,
			Fulfillment: svc.Fulfillment,
			Manual:      svc.Manual,
			Ack:         svc.Ack,
		},
		Catalog:   svc.Mapping,
		Branch:    svc.Queries,
		Sealer:    svc.Credentials,
		JWTSecret: cfg.JWT.Secret,
		Logger:    log,
	})

	go func() {
		if err := fiberApp.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
