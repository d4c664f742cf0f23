package notas_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/credentials"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

var defaultSettings = notas.Settings{
	Environment:     nfe.EnvironmentProduction,
	AutoAcknowledge: true,
	Justification:   "Ciencia automatica na importacao",
}

func newAckService(t *testing.T, s *memStore, events *fakeEvents) *notas.AcknowledgmentService {
	t.Helper()
	loader := credentials.NewLoader(nil, t.TempDir(), nil)
	return notas.NewAcknowledgmentService(docRepo{s}, branchRepo{s}, loader, events, nil, defaultSettings, nil)
}

func ingest(t *testing.T, s *memStore, xml []byte) *entity.FiscalDocument {
	t.Helper()
	doc, _, err := newNormalizer(s).Ingest(context.Background(), tenant, entity.ElectronicSource{XML: xml})
	require.NoError(t, err)
	return doc
}

func TestAcknowledge_RegistraCiencia(t *testing.T) {
	s := newStore()
	s.addBranch(testBranch(t))
	doc := ingest(t, s, readFixture(t, "nfe_450.xml"))
	events := &fakeEvents{}

	res, err := newAckService(t, s, events).Acknowledge(context.Background(), tenant, notas.AcknowledgeInput{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, nfe.AccessKey(fixtureKey), res.AccessKey)
	assert.Equal(t, nfe.StatusAwarenessRecorded, res.StatusCode)
	assert.Equal(t, "891240000000001", res.Protocol)
	assert.False(t, res.Duplicate)

	sent := events.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "98.765.432/0001-98", sent[0].TaxID)
	assert.Equal(t, nfe.EnvironmentHomologation, sent[0].Environment, "el ambiente de la filial manda")
	assert.Equal(t, defaultSettings.Justification, sent[0].Justification)
	assert.Equal(t, "segredo123", sent[0].Credential.Password)
	_, statErr := os.Stat(sent[0].Credential.Path)
	assert.True(t, os.IsNotExist(statErr), "el certificado temporal se borra al terminar")

	stored := s.documents()[0]
	assert.Equal(t, nfe.StatusAwarenessRecorded, stored.StatusCode)
	assert.Equal(t, "891240000000001", stored.Protocol)
	assert.Equal(t, "Distribuidora Paulista LTDA", stored.Issuer.Name, "solo cambian situación y protocolo")
}

func TestAcknowledge_Duplicado_EsExito(t *testing.T) {
	s := newStore()
	s.addBranch(testBranch(t))
	doc := ingest(t, s, readFixture(t, "nfe_450.xml"))
	events := &fakeEvents{result: &sefaz.EventResult{Status: nfe.EventDuplicate, Duplicate: true}}
	svc := newAckService(t, s, events)

	for range 2 {
		res, err := svc.Acknowledge(context.Background(), tenant, notas.AcknowledgeInput{DocumentID: doc.ID, Justification: "manual"})
		require.NoError(t, err, "repetir la ciencia es seguro")
		assert.True(t, res.Duplicate)
		assert.Equal(t, "135240000012345", res.Protocol, "sin protocolo nuevo se conserva el de autorización")
	}
	assert.Equal(t, "manual", events.sent()[0].Justification)
}

func TestAcknowledge_SinChave_OperationError(t *testing.T) {
	s := newStore()
	s.addBranch(testBranch(t))
	xml := strings.Replace(string(readFixture(t, "nfe_450.xml")), `Id="NFe`+fixtureKey+`"`, "", 1)
	xml = strings.Replace(xml, "<chNFe>"+fixtureKey+"</chNFe>", "", 1)
	doc := ingest(t, s, []byte(xml))
	require.Empty(t, doc.AccessKey)

	manual := &entity.FiscalDocument{CompanyID: companyID, BranchID: branchID, Number: 9, Series: "1"}
	_, err := docRepo{s}.Upsert(context.Background(), manual)
	require.NoError(t, err)

	events := &fakeEvents{}
	svc := newAckService(t, s, events)
	for _, id := range []string{doc.ID, manual.ID} {
		_, err := svc.Acknowledge(context.Background(), tenant, notas.AcknowledgeInput{DocumentID: id})
		assert.ErrorIs(t, err, domain.ErrOperation)
	}
	assert.Empty(t, events.sent(), "no se llama a la SEFAZ")
}

func TestAcknowledge_FallaRemota_NoActualiza(t *testing.T) {
	s := newStore()
	s.addBranch(testBranch(t))
	doc := ingest(t, s, readFixture(t, "nfe_450.xml"))
	events := &fakeEvents{err: &domain.RemoteServiceError{Operation: "evento", Status: "489", Message: "CNPJ invalido"}}

	_, err := newAckService(t, s, events).Acknowledge(context.Background(), tenant, notas.AcknowledgeInput{DocumentID: doc.ID})
	assert.ErrorIs(t, err, domain.ErrRemoteService)
	assert.Equal(t, nfe.StatusAuthorized, s.documents()[0].StatusCode)
}

func TestAcknowledge_SinCertificado(t *testing.T) {
	s := newStore()
	b := testBranch(t)
	b.CertBlob = nil
	s.addBranch(b)
	doc := ingest(t, s, readFixture(t, "nfe_450.xml"))

	_, err := newAckService(t, s, &fakeEvents{}).Acknowledge(context.Background(), tenant, notas.AcknowledgeInput{DocumentID: doc.ID})
	assert.ErrorIs(t, err, domain.ErrCredential)

	_, err = newAckService(t, s, &fakeEvents{}).Acknowledge(context.Background(), tenant, notas.AcknowledgeInput{DocumentID: "nada"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
