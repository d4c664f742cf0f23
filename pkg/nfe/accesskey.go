package nfe

import (
	"fmt"
	"strings"
)

// AccessKey chave de acesso de 44 dígitos:
// cUF(2) AAMM(4) CNPJ(14) mod(2) serie(3) nNF(9) tpEmis(1) cNF(8) cDV(1).
type AccessKey string

// ParseAccessKey valida longitud y que todos los caracteres sean dígitos.
func ParseAccessKey(s string) (AccessKey, error) {
	s = strings.TrimSpace(s)
	if len(s) != AccessKeyLength {
		return "", fmt.Errorf("nfe: chave de acesso debe tener %d caracteres, se recibieron %d", AccessKeyLength, len(s))
	}
	if Digits(s) != s {
		return "", fmt.Errorf("nfe: chave de acesso con caracteres no numéricos")
	}
	return AccessKey(s), nil
}

// AccessKeyFromID deriva la chave del atributo Id de infNFe ("NFe" + 44 dígitos).
func AccessKeyFromID(id string) (AccessKey, error) {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "NFe") || len(id) < 3+AccessKeyLength {
		return "", fmt.Errorf("nfe: Id de infNFe sin chave de acesso: %q", id)
	}
	return ParseAccessKey(id[3:])
}

// IssuerCNPJ CNPJ del emisor embebido en la chave.
func (k AccessKey) IssuerCNPJ() string { return string(k[6:20]) }

// Series serie de la NF-e embebida en la chave (sin ceros a la izquierda).
func (k AccessKey) Series() string {
	s := strings.TrimLeft(string(k[22:25]), "0")
	if s == "" {
		return "0"
	}
	return s
}

// CheckDigitOK verifica el dígito cDV (módulo 11 con pesos 2..9 de derecha a izquierda).
func (k AccessKey) CheckDigitOK() bool {
	return int(k[43]-'0') == AccessKeyCheckDigit(string(k[:43]))
}

// AccessKeyCheckDigit calcula cDV para los 43 primeros dígitos.
func AccessKeyCheckDigit(base string) int {
	var sum int
	weight := 2
	for i := len(base) - 1; i >= 0; i-- {
		sum += int(base[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	dv := 11 - sum%11
	if dv >= 10 {
		return 0
	}
	return dv
}

// EventID identificador del infEvento: "ID" + tpEvento + chave + nSeqEvento (2 dígitos).
func EventID(eventType string, key AccessKey, seq int) string {
	return fmt.Sprintf("ID%s%s%02d", eventType, key, seq)
}

// PadCursor completa el NSU con ceros a la izquierda (15 posiciones).
func PadCursor(nsu string) string {
	nsu = strings.TrimLeft(strings.TrimSpace(nsu), "0")
	if len(nsu) >= CursorDigits {
		return nsu
	}
	return strings.Repeat("0", CursorDigits-len(nsu)) + nsu
}
