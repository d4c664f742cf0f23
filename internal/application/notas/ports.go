// Package notas casos de uso de las notas destinadas: importación por distribución DF-e,
// normalización, entrada en estoque y financiero, manifestación y consultas.
package notas

import (
	"context"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/credentials"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
)

// TxRepos repositorios atados a una misma transacción.
type TxRepos struct {
	Documents      repository.FiscalDocumentRepository
	Products       repository.ProductRepository
	Counterparties repository.CounterpartyRepository
	StockEntries   repository.StockEntryRepository
	Titles         repository.PayableTitleRepository
}

// TxRunner ejecuta fn dentro de una transacción de BD. Si fn devuelve error se hace rollback
// de todo lo creado.
type TxRunner interface {
	RunNotas(ctx context.Context, fn func(repos TxRepos) error) error
}

// CredentialLoader abre el certificado de la filial. El llamador cierra el Handle.
type CredentialLoader interface {
	Load(ctx context.Context, branch *entity.Branch) (*credentials.Handle, error)
}

// DistributionGateway una consulta de NFeDistribuicaoDFe.
type DistributionGateway interface {
	Fetch(ctx context.Context, q sefaz.DistributionQuery) (*sefaz.DistributionResult, error)
}

// EventGateway envío del evento de ciencia de la operación.
type EventGateway interface {
	SendAwareness(ctx context.Context, req sefaz.EventRequest) (*sefaz.EventResult, error)
}

// BranchLocker lock exclusivo por clave (una filial) mientras corre fn.
type BranchLocker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Settings valores por defecto cuando la filial o la llamada no los informan.
type Settings struct {
	Environment     int
	AutoAcknowledge bool
	Justification   string
}

func credentialOf(h *credentials.Handle) sefaz.Credential {
	return sefaz.Credential{Path: h.Path(), Password: h.Password()}
}
