package nfe_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// ──────────────────────────────────────────────────────────────────────────────
// CNPJ / CPF
// ──────────────────────────────────────────────────────────────────────────────

func TestTaxIDVariants_CNPJ(t *testing.T) {
	assert.Equal(t,
		[]string{"12345678000199", "12.345.678/0001-99"},
		nfe.TaxIDVariants("12.345.678/0001-99"),
		"primero solo dígitos, luego con máscara")
	assert.Equal(t,
		[]string{"12345678000199", "12.345.678/0001-99"},
		nfe.TaxIDVariants("12345678000199"))
}

func TestTaxIDVariants_CPFyVacio(t *testing.T) {
	assert.Equal(t, []string{"12345678909", "123.456.789-09"}, nfe.TaxIDVariants("123.456.789-09"))
	assert.Nil(t, nfe.TaxIDVariants(" - "))
}

func TestValidateCNPJ(t *testing.T) {
	require.NoError(t, nfe.ValidateCNPJ("11.222.333/0001-81"))
	require.NoError(t, nfe.ValidateCNPJ("12345678000195"))
	assert.Error(t, nfe.ValidateCNPJ("12345678000199"), "dígitos verificadores incorrectos")
	assert.Error(t, nfe.ValidateCNPJ("1234"), "longitud inválida")
}

func TestNormalizeCNPJ(t *testing.T) {
	d, err := nfe.NormalizeCNPJ(" 12.345.678/0001-99 ")
	require.NoError(t, err)
	assert.Equal(t, "12345678000199", d)

	_, err = nfe.NormalizeCNPJ("123456789")
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Chave de acesso
// ──────────────────────────────────────────────────────────────────────────────

func buildKey(t *testing.T) string {
	t.Helper()
	base := "35" + "2401" + "12345678000199" + "55" + "001" + "000000450" + "1" + "12345678"
	require.Len(t, base, 43)
	return base + fmt.Sprint(nfe.AccessKeyCheckDigit(base))
}

func TestAccessKey_FromIDYPartes(t *testing.T) {
	key := buildKey(t)

	k, err := nfe.AccessKeyFromID("NFe" + key)
	require.NoError(t, err)
	assert.Equal(t, nfe.AccessKey(key), k)
	assert.True(t, k.CheckDigitOK())
	assert.Equal(t, "12345678000199", k.IssuerCNPJ())
	assert.Equal(t, "1", k.Series())
}

func TestAccessKey_IDInvalido(t *testing.T) {
	_, err := nfe.AccessKeyFromID("NFe123")
	assert.Error(t, err, "Id corto no produce chave")

	_, err = nfe.AccessKeyFromID("CTe" + buildKey(t))
	assert.Error(t, err, "solo se acepta el prefijo NFe")

	_, err = nfe.ParseAccessKey("3524011234567800019955001000000450112345678X")
	assert.Error(t, err, "caracteres no numéricos")
}

func TestEventIDyCursor(t *testing.T) {
	key := nfe.AccessKey(buildKey(t))
	id := nfe.EventID(nfe.EventAwareness, key, 1)
	assert.Equal(t, "ID210210"+string(key)+"01", id)

	assert.Equal(t, "000000000000000", nfe.PadCursor("0"))
	assert.Equal(t, "000000000000118", nfe.PadCursor("118"))
}

func TestUFCode(t *testing.T) {
	code, err := nfe.UFCode("sp")
	require.NoError(t, err)
	assert.Equal(t, "35", code)

	code, err = nfe.UFCode("43")
	require.NoError(t, err)
	assert.Equal(t, "43", code)

	_, err = nfe.UFCode("XX")
	assert.Error(t, err)
}

func TestEventCatalogue(t *testing.T) {
	assert.Equal(t, "210210", nfe.EventAwareness, "ciência da operação")
	assert.Equal(t, "210200", nfe.EventConfirmation, "confirmação da operação")
	assert.Equal(t, "Ciencia da Operacao", nfe.EventDescription(nfe.EventAwareness))
	assert.False(t, nfe.EventRequiresJustification(nfe.EventAwareness))
	assert.True(t, nfe.EventRequiresJustification(nfe.EventNotPerformed))
}
