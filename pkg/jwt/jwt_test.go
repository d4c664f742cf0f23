package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/notas-destinadas/pkg/jwt"
)

func TestGenerateParse_IdaYVuelta(t *testing.T) {
	id := pkgjwt.Identity{UserID: "u-1", CompanyID: "emp-1", BranchID: "fil-1", Role: "fiscal"}
	tok, err := pkgjwt.Generate("segredo", id, "test", 5)
	require.NoError(t, err)

	got, err := pkgjwt.Parse("segredo", tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParse_FirmaIncorrecta(t *testing.T) {
	tok, err := pkgjwt.Generate("segredo", pkgjwt.Identity{UserID: "u", CompanyID: "e"}, "test", 5)
	require.NoError(t, err)

	_, err = pkgjwt.Parse("otro", tok)
	assert.Error(t, err, "un secret distinto debe invalidar el token")
}

func TestParse_TokenExpirado(t *testing.T) {
	tok, err := pkgjwt.Generate("segredo", pkgjwt.Identity{UserID: "u", CompanyID: "e"}, "test", -1)
	require.NoError(t, err)

	_, err = pkgjwt.Parse("segredo", tok)
	assert.Error(t, err)
}

func TestGenerate_SecretVacio(t *testing.T) {
	_, err := pkgjwt.Generate("", pkgjwt.Identity{}, "test", 5)
	assert.Error(t, err)
}
