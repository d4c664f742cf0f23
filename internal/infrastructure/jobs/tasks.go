// Package jobs importación de notas en segundo plano sobre asynq: una tarea por filial
// y un barrido programado de todas las filiales activas.
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
)

const (
	// QueueImports cola de las importaciones DF-e.
	QueueImports = "notas"
	// TaskImportBranch una pasada de distribución para una filial.
	TaskImportBranch = "notas:import_branch"
	// TaskImportSweep pasada sobre todas las filiales con importación activa.
	TaskImportSweep = "notas:import_sweep"
)

// ImportBranchPayload filial a importar y, opcionalmente, quién lo pidió.
type ImportBranchPayload struct {
	CompanyID string `json:"company_id"`
	BranchID  string `json:"branch_id"`
	UserID    string `json:"user_id,omitempty"`
}

// Tenant empresa/filial del payload.
func (p ImportBranchPayload) Tenant() entity.Tenant {
	return entity.Tenant{CompanyID: p.CompanyID, BranchID: p.BranchID, UserID: p.UserID}
}

// NewImportBranchTask construye la tarea de una filial.
func NewImportBranchTask(p ImportBranchPayload) (*asynq.Task, error) {
	if !p.Tenant().Valid() {
		return nil, fmt.Errorf("jobs: empresa y filial son obligatorias")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportBranch, data), nil
}

// NewImportSweepTask construye la tarea del barrido; no lleva payload.
func NewImportSweepTask() *asynq.Task {
	return asynq.NewTask(TaskImportSweep, nil)
}
