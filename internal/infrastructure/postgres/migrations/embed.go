// Package migrations esquema de la base embebido en el binario.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
