package repository

import (
	"context"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

// BranchRepository configuración fiscal de las filiales (credencial, UF, NSU).
type BranchRepository interface {
	Get(ctx context.Context, companyID, branchID string) (*entity.Branch, error)
	ListImportActive(ctx context.Context) ([]*entity.Branch, error)
	// SaveCursor persiste el NSU; la consulta no deja que el valor guardado retroceda.
	SaveCursor(ctx context.Context, tenant entity.Tenant, cursor entity.ImportCursor) error
	SaveCredential(ctx context.Context, tenant entity.Tenant, blob []byte, sealedPassword string) error
}
