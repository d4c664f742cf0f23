package nfe

import (
	"fmt"
	"unicode"
)

// pesos del módulo 11 para los dos dígitos verificadores del CNPJ.
var (
	cnpjWeights1 = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Digits elimina todo lo que no sea dígito ("12.345.678/0001-99" -> "12345678000199").
func Digits(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return string(out)
}

// NormalizeCNPJ devuelve el CNPJ solo con dígitos. Exige exactamente 14 dígitos;
// los dígitos verificadores se validan aparte con ValidateCNPJ.
func NormalizeCNPJ(s string) (string, error) {
	d := Digits(s)
	if len(d) != 14 {
		return "", fmt.Errorf("nfe: CNPJ debe tener 14 dígitos, se encontraron %d", len(d))
	}
	return d, nil
}

// MaskCNPJ aplica la máscara XX.XXX.XXX/XXXX-XX. Si no hay 14 dígitos devuelve la entrada sin cambios.
func MaskCNPJ(s string) string {
	d := Digits(s)
	if len(d) != 14 {
		return s
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}

// MaskCPF aplica la máscara XXX.XXX.XXX-XX. Si no hay 11 dígitos devuelve la entrada sin cambios.
func MaskCPF(s string) string {
	d := Digits(s)
	if len(d) != 11 {
		return s
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// TaxIDVariants formas en que un documento puede estar guardado en un cadastro:
// primero solo dígitos, luego con máscara. El orden importa: gana la primera coincidencia.
func TaxIDVariants(taxID string) []string {
	d := Digits(taxID)
	if d == "" {
		return nil
	}
	variants := []string{d}
	switch len(d) {
	case 14:
		variants = append(variants, MaskCNPJ(d))
	case 11:
		variants = append(variants, MaskCPF(d))
	}
	return variants
}

// ValidateCNPJ verifica los dos dígitos verificadores del CNPJ.
func ValidateCNPJ(s string) error {
	d, err := NormalizeCNPJ(s)
	if err != nil {
		return err
	}
	dv1 := cnpjDigit(d[:12], cnpjWeights1[:])
	dv2 := cnpjDigit(d[:12]+string(rune('0'+dv1)), cnpjWeights2[:])
	if int(d[12]-'0') != dv1 || int(d[13]-'0') != dv2 {
		return fmt.Errorf("nfe: dígitos verificadores del CNPJ inválidos: esperado %d%d, recibido %s", dv1, dv2, d[12:])
	}
	return nil
}

func cnpjDigit(base string, weights []int) int {
	var sum int
	for i := range base {
		sum += int(base[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}
