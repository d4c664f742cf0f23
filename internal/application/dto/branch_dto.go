package dto

// BranchConfigResponse configuración de importación de la filial. Nunca incluye el certificado
// ni la contraseña.
type BranchConfigResponse struct {
	CompanyID     string `json:"company_id"`
	BranchID      string `json:"branch_id"`
	Jurisdiction  string `json:"uf"`
	TaxID         string `json:"cnpj"`
	Cursor        string `json:"ult_nsu"`
	CertPath      string `json:"cert_path,omitempty"`
	HasCredential bool   `json:"possui_certificado"`
	Environment   int    `json:"ambiente"`
	ImportActive  bool   `json:"importacao_ativa"`
}

// SealCredentialResponse resultado de guardar el certificado sellado.
type SealCredentialResponse struct {
	Subject  string `json:"titular"`
	NotAfter string `json:"validade"`
}
