package entity

// Counterparty entidad del cadastro (fornecedor). CNPJ/CPF pueden estar con o sin máscara.
type Counterparty struct {
	ID        string
	CompanyID string
	Name      string
	TradeName string
	CNPJ      string
	CPF       string
	Street    string
	Number    string
	District  string
	City      string
	State     string
	ZIP       string
	Phone     string
}

// TaxID CNPJ si existe, si no CPF.
func (c *Counterparty) TaxID() string {
	if c.CNPJ != "" {
		return c.CNPJ
	}
	return c.CPF
}
