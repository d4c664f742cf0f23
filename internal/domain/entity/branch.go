package entity

import "time"

// Branch configuración fiscal de una filial para la distribución DF-e.
// CertBlob y CertPassword se guardan sellados; pueden venir en claro en bases heredadas.
type Branch struct {
	CompanyID    string
	BranchID     string
	Name         string
	Jurisdiction string // UF (sigla)
	TaxID        string // CNPJ, con o sin máscara
	Cursor       ImportCursor
	CertPath     string
	CertBlob     []byte
	CertPassword string
	Environment  int // 1 = producción, 2 = homologación
	ImportActive bool
	UpdatedAt    time.Time
}

// Tenant empresa/filial de esta configuración.
func (b *Branch) Tenant() Tenant {
	return Tenant{CompanyID: b.CompanyID, BranchID: b.BranchID}
}

// HasCredential true si hay certificado en archivo o binario.
func (b *Branch) HasCredential() bool {
	return len(b.CertBlob) > 0 || b.CertPath != ""
}
