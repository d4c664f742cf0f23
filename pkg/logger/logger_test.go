package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/notas-destinadas/pkg/logger"
)

func TestLogger_JSONConCamposDeContexto(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Env: "production", Level: "info", Out: &buf})

	log.Component("orchestrator").Tenant("emp-1", "fil-1").Info().Str("ult_nsu", "118").Msg("pasada finalizada")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "en production la salida debe ser JSON")
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "emp-1", entry["company_id"])
	assert.Equal(t, "fil-1", entry["branch_id"])
	assert.Equal(t, "118", entry["ult_nsu"])
	assert.Equal(t, "pasada finalizada", entry["message"])
}

func TestLogger_NivelFiltraEventos(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Env: "production", Level: "warn", Out: &buf})

	log.Info().Msg("no debe aparecer")
	assert.Empty(t, buf.String(), "info se descarta con nivel warn")

	log.Warn().Msg("sí aparece")
	assert.Contains(t, buf.String(), "sí aparece")
}
