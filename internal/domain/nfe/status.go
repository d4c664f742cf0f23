// Package nfe reglas de dominio sobre los registros de notas destinadas: situación
// derivada del protocolo y validación de los campos que sostienen la clave natural.
package nfe

import pkgnfe "github.com/jhoicas/notas-destinadas/pkg/nfe"

// códigos de cStat del protocolo que marcan una nota como cancelada, inutilizada o denegada.
var (
	cancelledCodes = map[int]bool{pkgnfe.StatusCancelled: true, 151: true, 155: true}
	voidedCodes    = map[int]bool{102: true}
	deniedCodes    = map[int]bool{pkgnfe.StatusDenied: true, 301: true, 302: true, 303: true}
)

// Flags situación derivada del cStat del protocolo.
type Flags struct {
	Cancelled bool
	Voided    bool
	Denied    bool
}

// FlagsFromStatus traduce el cStat del protNFe a las banderas del registro.
func FlagsFromStatus(code int) Flags {
	return Flags{
		Cancelled: cancelledCodes[code],
		Voided:    voidedCodes[code],
		Denied:    deniedCodes[code],
	}
}
