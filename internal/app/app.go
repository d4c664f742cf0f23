// Package app arma el grafo de servicios compartido por la API, el worker y las herramientas.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/credentials"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/postgres"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/redislock"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz/signer"
	"github.com/jhoicas/notas-destinadas/pkg/config"
	"github.com/jhoicas/notas-destinadas/pkg/logger"
	"github.com/jhoicas/notas-destinadas/pkg/secretbox"
)

// Services casos de uso listos para usar. Close libera pool y Redis.
type Services struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client

	Orchestrator *notas.Orchestrator
	Queries      *notas.QueryService
	Mapping      *notas.MappingService
	Fulfillment  *notas.FulfillmentService
	Manual       *notas.ManualEntryService
	Ack          *notas.AcknowledgmentService
	Credentials  *notas.CredentialService
}

// Build conecta a PostgreSQL y Redis, aplica migraciones si corresponde y arma los servicios.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Services, error) {
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	if cfg.DB.Migrate {
		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migraciones: %w", err)
		}
		if len(applied) > 0 {
			log.Info().Strs("migraciones", applied).Msg("migraciones aplicadas")
		}
	}
	rdb, err := redislock.NewClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var box *secretbox.Box
	if cfg.Crypto.SecretKey != "" {
		if box, err = secretbox.New(cfg.Crypto.SecretKey); err != nil {
			pool.Close()
			_ = rdb.Close()
			return nil, err
		}
	} else {
		log.Warn().Msg("CRYPTO_SECRET_KEY vacío: certificados en texto plano y carga de certificado deshabilitada")
	}

	documents := postgres.NewFiscalDocumentRepository(pool)
	branches := postgres.NewBranchRepository(pool)
	counterparties := postgres.NewCounterpartyRepository(pool)
	products := postgres.NewProductRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	parser := sefaz.NewParser()
	transport := sefaz.NewTransport(cfg.SEFAZ.Timeout, sefaz.Endpoints{
		Distribution: cfg.SEFAZ.DistributionURL,
		Event:        cfg.SEFAZ.EventURL,
	})
	distribution := sefaz.NewDistributionClient(transport, sefaz.NewDecoder(0), log)
	events := sefaz.NewEventClient(transport, signer.NewDigitalSignatureService(), log)
	loader := credentials.NewLoader(box, "", log)

	settings := notas.Settings{
		Environment:     cfg.SEFAZ.Environment,
		AutoAcknowledge: cfg.SEFAZ.AutoAcknowledge,
		Justification:   cfg.SEFAZ.Justification,
	}
	normalizer := notas.NewNormalizer(documents, counterparties, parser)
	ack := notas.NewAcknowledgmentService(documents, branches, loader, events, parser, settings, log)

	return &Services{
		Pool:  pool,
		Redis: rdb,
		Orchestrator: notas.NewOrchestrator(notas.OrchestratorConfig{
			Branches:     branches,
			Credentials:  loader,
			Distribution: distribution,
			Normalizer:   normalizer,
			Ack:          ack,
			Locker:       redislock.New(rdb, cfg.Jobs.LockTTL),
			Settings:     settings,
			Concurrency:  cfg.Jobs.BranchConcurrency,
			Logger:       log,
		}),
		Queries:     notas.NewQueryService(documents, branches, parser),
		Mapping:     notas.NewMappingService(documents, products, parser),
		Fulfillment: notas.NewFulfillmentService(txRunner, parser, log),
		Manual:      notas.NewManualEntryService(txRunner, normalizer, log),
		Ack:         ack,
		Credentials: notas.NewCredentialService(branches, box, log),
	}, nil
}

// Close libera conexiones.
func (s *Services) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// AsynqRedis opciones de conexión de la cola sobre la misma instancia Redis del lock.
func AsynqRedis(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}
