package entity

import "strings"

// Tenant empresa y filial sobre las que opera cada llamada. Se pasa explícitamente;
// ningún componente lo resuelve desde estado global.
type Tenant struct {
	CompanyID string
	BranchID  string
	UserID    string // operador que dispara la acción; vacío en jobs
}

// Valid exige empresa y filial.
func (t Tenant) Valid() bool {
	return strings.TrimSpace(t.CompanyID) != "" && strings.TrimSpace(t.BranchID) != ""
}
