package postgres

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/postgres/migrations"
	"github.com/jhoicas/notas-destinadas/pkg/config"
)

func TestMigrationFiles_OrdenLexicoSoloSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"010_b.sql":  &fstest.MapFile{Data: []byte("SELECT 1;")},
		"002_a.sql":  &fstest.MapFile{Data: []byte("SELECT 1;")},
		"README.md":  &fstest.MapFile{Data: []byte("x")},
		"sub/03.sql": &fstest.MapFile{Data: []byte("SELECT 1;")},
	}
	names, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"002_a.sql", "010_b.sql"}, names)
}

func TestMigrationFiles_Embebidas(t *testing.T) {
	names, err := migrationFiles(migrations.FS)
	require.NoError(t, err)
	assert.Contains(t, names, "001_notas_destinadas.sql")
}

func TestDocumentWhere_NumeraParametros(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args := documentWhere(repository.DocumentFilter{
		CompanyID:       "emp-1",
		BranchID:        "fil-1",
		RecipientTaxIDs: []string{"98765432000198", "98.765.432/0001-98"},
		Search:          " 450 ",
		IssuedFrom:      &from,
	})
	require.Len(t, args, 6)
	assert.Equal(t, "%450%", args[3])
	assert.Equal(t, "450", args[4])
	assert.Equal(t, from, args[5])
	assert.Contains(t, where, "xml IS NULL OR recipient_cnpj = ANY($3)")
	assert.Contains(t, where, "issuer_name ILIKE $4")
	assert.Contains(t, where, "number::text = $5")
	assert.Contains(t, where, "issued_at >= $6")
	assert.NotContains(t, where, "issued_at <=")
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% algod\_o`, escapeLike("100% algod_o"))
}

func TestPoolConfig_Defaults(t *testing.T) {
	pc, err := poolConfig(config.DBConfig{DatabaseURL: "postgres://u:p@db.local:5432/notas?sslmode=disable"})
	require.NoError(t, err)
	assert.EqualValues(t, 10, pc.MaxConns, "sin DB_MAX_CONNS se usan 10 conexiones")
	assert.EqualValues(t, 1, pc.MinConns)
	assert.Equal(t, applicationName, pc.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "db.local", pc.ConnConfig.Host)
	assert.NotNil(t, pc.AfterConnect, "registra el tipo decimal en cada conexión")
}

func TestPoolConfig_RespetaDSNyIPv4(t *testing.T) {
	plain, err := poolConfig(config.DBConfig{
		DatabaseURL: "postgres://u:p@db.local/notas?application_name=worker",
		MaxConns:    3,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, plain.MaxConns)
	assert.Equal(t, "worker", plain.ConnConfig.RuntimeParams["application_name"], "el DSN tiene prioridad")

	v4, err := poolConfig(config.DBConfig{DatabaseURL: "postgres://u:p@db.local/notas", ForceIPv4: true})
	require.NoError(t, err)
	assert.NotNil(t, v4.ConnConfig.DialFunc)

	_, err = poolConfig(config.DBConfig{DatabaseURL: "postgres://u:p@db.local:puerto/notas"})
	assert.Error(t, err, "DSN inválido")
}
