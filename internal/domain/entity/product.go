package entity

import "time"

// Product producto del catálogo de la empresa. Code es único por empresa.
type Product struct {
	CompanyID string
	Code      string
	Name      string
	Barcode   string // EAN / GTIN
	NCM       string
	Unit      string
	Type      string // P = produto
	Origin    string // 0 = nacional
	Active    bool
	CreatedAt time.Time
}
