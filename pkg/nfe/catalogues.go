// Package nfe contiene catálogos y reglas de la NF-e (Brasil) usados por la
// distribución DF-e y por los eventos del destinatario (Manual de Orientação do Contribuinte).
package nfe

import (
	"fmt"
	"strings"
)

// NamespaceNFe namespace de todos los documentos del portal fiscal.
const NamespaceNFe = "http://www.portalfiscal.inf.br/nfe"

// =============================================================================
// Ambientes (tpAmb)
// =============================================================================

const (
	EnvironmentProduction   = 1
	EnvironmentHomologation = 2
)

// ValidEnvironment informa si el código de ambiente es aceptado por la SEFAZ.
func ValidEnvironment(env int) bool {
	return env == EnvironmentProduction || env == EnvironmentHomologation
}

// =============================================================================
// Códigos IBGE de las unidades federativas (cUF / cUFAutor)
// =============================================================================

// CodeAmbienteNacional código de órgano del Ambiente Nacional (cOrgao de los eventos del destinatario).
const CodeAmbienteNacional = "91"

var ufCodes = map[string]string{
	"RO": "11", "AC": "12", "AM": "13", "RR": "14", "PA": "15", "AP": "16", "TO": "17",
	"MA": "21", "PI": "22", "CE": "23", "RN": "24", "PB": "25", "PE": "26", "AL": "27", "SE": "28", "BA": "29",
	"MG": "31", "ES": "32", "RJ": "33", "SP": "35",
	"PR": "41", "SC": "42", "RS": "43",
	"MS": "50", "MT": "51", "GO": "52", "DF": "53",
}

// UFCode devuelve el código IBGE de la jurisdicción. Acepta la sigla ("SP") o el código ("35").
func UFCode(jurisdiction string) (string, error) {
	j := strings.ToUpper(strings.TrimSpace(jurisdiction))
	if code, ok := ufCodes[j]; ok {
		return code, nil
	}
	for _, code := range ufCodes {
		if code == j {
			return code, nil
		}
	}
	return "", fmt.Errorf("nfe: UF desconocida %q", jurisdiction)
}

// =============================================================================
// Situación de la NF-e (cStat del protocolo) y estado tras la ciencia
// =============================================================================

const (
	StatusAuthorized        = 100    // Autorizado o uso da NF-e
	StatusCancelled         = 101    // Cancelamento de NF-e homologado
	StatusDenied            = 110    // Uso denegado
	StatusAwarenessRecorded = 210200 // estado local: ciencia registrada; no es el código del evento enviado
)

// =============================================================================
// Distribución DF-e (retDistDFeInt)
// =============================================================================

const (
	DistNoDocuments    = "137" // Nenhum documento localizado
	DistDocumentsFound = "138" // Documento localizado
	DistMisuse         = "656" // Consumo indevido
)

// Prefijos del atributo schema de cada docZip.
const (
	SchemaProcNFe     = "procNFe"
	SchemaResNFe      = "resNFe"
	SchemaResEvento   = "resEvento"
	SchemaProcEvento  = "procEventoNFe"
	DistributionVer   = "1.01"
	AccessKeyLength   = 44
	CursorDigits      = 15
)

// =============================================================================
// Eventos del destinatario (Manifestação do Destinatário)
// =============================================================================

const (
	EventAwareness        = "210210" // Ciência da Operação
	EventConfirmation     = "210200" // Confirmação da Operação
	EventUnknown          = "210220" // Desconhecimento da Operação
	EventNotPerformed     = "210240" // Operação não Realizada
	EventVersion          = "1.00"
	EventBatchProcessed   = "128" // Lote de evento processado
	EventRegistered       = "135" // Evento registrado e vinculado a NF-e
	EventRegisteredNoLink = "136" // Evento registrado, mas não vinculado a NF-e
	EventDuplicate        = "573" // Rejeição: Duplicidade de evento
)

var eventDescriptions = map[string]string{
	EventAwareness:    "Ciencia da Operacao",
	EventConfirmation: "Confirmacao da Operacao",
	EventUnknown:      "Desconhecimento da Operacao",
	EventNotPerformed: "Operacao nao Realizada",
}

// EventDescription devuelve descEvento tal como lo exige el schema (sin acentos).
func EventDescription(eventType string) string {
	return eventDescriptions[eventType]
}

// EventRequiresJustification solo "Operação não Realizada" admite xJust.
func EventRequiresJustification(eventType string) bool {
	return eventType == EventNotPerformed
}

// NoGTIN valor usado en cEAN cuando el producto no tiene código de barras.
const NoGTIN = "SEM GTIN"
