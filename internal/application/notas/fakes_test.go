package notas_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/notas-destinadas/internal/application/notas"
	"github.com/jhoicas/notas-destinadas/internal/domain"
	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	"github.com/jhoicas/notas-destinadas/internal/domain/repository"
	"github.com/jhoicas/notas-destinadas/internal/infrastructure/sefaz"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

const (
	companyID  = "emp-1"
	branchID   = "fil-1"
	fixtureKey = "35240112345678000199550010000004501123456782"
	branchCNPJ = "98765432000198"
)

var tenant = entity.Tenant{CompanyID: companyID, BranchID: branchID, UserID: "u-1"}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return b
}

// nfeXML la nota 450 con otro número.
func nfeXML(t *testing.T, number int) []byte {
	t.Helper()
	s := string(readFixture(t, "nfe_450.xml"))
	return []byte(strings.Replace(s, "<nNF>450</nNF>", fmt.Sprintf("<nNF>%d</nNF>", number), 1))
}

// withInstallments agrega cobr/dup después del bloque total.
func withInstallments(xml []byte, dups ...string) []byte {
	var sb strings.Builder
	sb.WriteString("<cobr>")
	for _, d := range dups {
		sb.WriteString(d)
	}
	sb.WriteString("</cobr>")
	return []byte(strings.Replace(string(xml), "</total>", "</total>"+sb.String(), 1))
}

func dup(number, due, amount string) string {
	return "<dup><nDup>" + number + "</nDup><dVenc>" + due + "</dVenc><vDup>" + amount + "</vDup></dup>"
}

func testBranch(t *testing.T) entity.Branch {
	t.Helper()
	return entity.Branch{
		CompanyID:    companyID,
		BranchID:     branchID,
		Jurisdiction: "SP",
		TaxID:        "98.765.432/0001-98",
		CertBlob:     readFixture(t, "test.pfx"),
		CertPassword: "segredo123",
		Environment:  nfe.EnvironmentHomologation,
		ImportActive: true,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// memStore: repositorios en memoria con transacción por copia
// ──────────────────────────────────────────────────────────────────────────────

type memStore struct {
	mu       sync.Mutex
	docs     map[string]entity.FiscalDocument
	branches map[string]entity.Branch
	products map[string]entity.Product
	parties  []entity.Counterparty
	stock    []entity.StockEntry
	titles   []entity.PayableTitle

	// inyección de fallas
	failTitleCreate error
	failUpsert      error

	cursorSaves []string
	lockedDocs  []string
}

func newStore() *memStore {
	return &memStore{
		docs:     map[string]entity.FiscalDocument{},
		branches: map[string]entity.Branch{},
		products: map[string]entity.Product{},
	}
}

func (s *memStore) clone() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := newStore()
	for k, v := range s.docs {
		c.docs[k] = v
	}
	for k, v := range s.branches {
		c.branches[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	c.parties = append(c.parties, s.parties...)
	c.stock = append(c.stock, s.stock...)
	c.titles = append(c.titles, s.titles...)
	c.failTitleCreate, c.failUpsert = s.failTitleCreate, s.failUpsert
	c.cursorSaves = append(c.cursorSaves, s.cursorSaves...)
	c.lockedDocs = append(c.lockedDocs, s.lockedDocs...)
	return c
}

func (s *memStore) commit(c *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs, s.branches, s.products = c.docs, c.branches, c.products
	s.parties, s.stock, s.titles = c.parties, c.stock, c.titles
	s.lockedDocs = c.lockedDocs
}

func (s *memStore) repos() notas.TxRepos {
	return notas.TxRepos{
		Documents:      docRepo{s},
		Products:       productRepo{s},
		Counterparties: partyRepo{s},
		StockEntries:   stockRepo{s},
		Titles:         titleRepo{s},
	}
}

// RunNotas aplica los cambios solo si fn no devuelve error.
func (s *memStore) RunNotas(ctx context.Context, fn func(repos notas.TxRepos) error) error {
	tx := s.clone()
	if err := fn(tx.repos()); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *memStore) addBranch(b entity.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.CompanyID+"/"+b.BranchID] = b
}

func (s *memStore) addProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CompanyID = companyID
	s.products[p.CompanyID+"/"+p.Code] = p
}

func (s *memStore) addParty(c entity.Counterparty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.CompanyID = companyID
	s.parties = append(s.parties, c)
}

func (s *memStore) documents() []entity.FiscalDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.FiscalDocument, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (s *memStore) stockEntries() []entity.StockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.StockEntry(nil), s.stock...)
}

func (s *memStore) payableTitles() []entity.PayableTitle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.PayableTitle(nil), s.titles...)
}

func (s *memStore) branch(t *testing.T) entity.Branch {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[companyID+"/"+branchID]
	require.True(t, ok)
	return b
}

// ── documentos ────────────────────────────────────────────────────────────────

type docRepo struct{ s *memStore }

var _ repository.FiscalDocumentRepository = docRepo{}

func (r docRepo) Upsert(ctx context.Context, doc *entity.FiscalDocument) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failUpsert != nil {
		return false, r.s.failUpsert
	}
	for id, d := range r.s.docs {
		if d.CompanyID == doc.CompanyID && d.BranchID == doc.BranchID && d.Number == doc.Number && d.Series == doc.Series {
			doc.ID = id
			r.s.docs[id] = *doc
			return false, nil
		}
	}
	doc.ID = uuid.New().String()
	r.s.docs[doc.ID] = *doc
	return true, nil
}

func (r docRepo) GetByID(ctx context.Context, t entity.Tenant, id string) (*entity.FiscalDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok || d.CompanyID != t.CompanyID || d.BranchID != t.BranchID {
		return nil, nil
	}
	return &d, nil
}

func (r docRepo) GetByKey(ctx context.Context, t entity.Tenant, number int64, series string) (*entity.FiscalDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.CompanyID == t.CompanyID && d.BranchID == t.BranchID && d.Number == number && d.Series == series {
			return &d, nil
		}
	}
	return nil, nil
}

func (r docRepo) UpdateAcknowledgment(ctx context.Context, t entity.Tenant, id string, statusCode int, protocol string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.StatusCode, d.Protocol = statusCode, protocol
	r.s.docs[id] = d
	return nil
}

func (r docRepo) matching(f repository.DocumentFilter) []*entity.FiscalDocument {
	var out []*entity.FiscalDocument
	for _, d := range r.s.docs {
		if d.CompanyID != f.CompanyID || d.BranchID != f.BranchID {
			continue
		}
		recipient := false
		for _, v := range f.RecipientTaxIDs {
			if d.Recipient.TaxID() == v {
				recipient = true
			}
		}
		if !d.IsManual() && !recipient {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(d.Issuer.Name), strings.ToLower(f.Search)) &&
			strconv.FormatInt(d.Number, 10) != f.Search {
			continue
		}
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out
}

func (r docRepo) List(ctx context.Context, f repository.DocumentFilter) ([]*entity.FiscalDocument, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.matching(f)
	total := len(all)
	if f.Offset >= len(all) {
		return []*entity.FiscalDocument{}, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r docRepo) Stats(ctx context.Context, f repository.DocumentFilter) (*repository.DocumentStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &repository.DocumentStats{}
	for _, d := range r.matching(f) {
		st.Total++
		switch d.StatusLabel() {
		case entity.StatusLabelAuthorized:
			st.Authorized++
		case entity.StatusLabelCancelled:
			st.Cancelled++
		case entity.StatusLabelPending:
			st.Pending++
		}
		st.TotalValue = st.TotalValue.Add(d.Totals.Total)
	}
	return st, nil
}

// ── filiales ──────────────────────────────────────────────────────────────────

type branchRepo struct{ s *memStore }

var _ repository.BranchRepository = branchRepo{}

func (r branchRepo) Get(ctx context.Context, company, branch string) (*entity.Branch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.branches[company+"/"+branch]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r branchRepo) ListImportActive(ctx context.Context) ([]*entity.Branch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Branch
	for _, b := range r.s.branches {
		if b.ImportActive {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BranchID < out[j].BranchID })
	return out, nil
}

func (r branchRepo) SaveCursor(ctx context.Context, t entity.Tenant, c entity.ImportCursor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := t.CompanyID + "/" + t.BranchID
	b, ok := r.s.branches[key]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Cursor.Less(c) {
		b.Cursor = c
	}
	r.s.branches[key] = b
	r.s.cursorSaves = append(r.s.cursorSaves, c.String())
	return nil
}

func (r branchRepo) SaveCredential(ctx context.Context, t entity.Tenant, blob []byte, sealedPassword string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := t.CompanyID + "/" + t.BranchID
	b, ok := r.s.branches[key]
	if !ok {
		return domain.ErrNotFound
	}
	b.CertBlob, b.CertPassword = blob, sealedPassword
	r.s.branches[key] = b
	return nil
}

// ── productos ─────────────────────────────────────────────────────────────────

type productRepo struct{ s *memStore }

var _ repository.ProductRepository = productRepo{}

func (r productRepo) Create(ctx context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := p.CompanyID + "/" + p.Code
	if _, ok := r.s.products[key]; ok {
		return domain.ErrDuplicate
	}
	r.s.products[key] = *p
	return nil
}

func (r productRepo) GetByCode(ctx context.Context, company, code string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[company+"/"+code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r productRepo) GetByBarcode(ctx context.Context, company, barcode string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.products {
		if p.CompanyID == company && p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, nil
}

func (r productRepo) FindByNamePrefix(ctx context.Context, company, prefix string, limit int) ([]*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Product
	for _, p := range r.s.products {
		if p.CompanyID == company && strings.HasPrefix(strings.ToUpper(p.Name), strings.ToUpper(prefix)) {
			p := p
			out = append(out, &p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r productRepo) SetBarcodeIfEmpty(ctx context.Context, company, code, barcode string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := company + "/" + code
	if p, ok := r.s.products[key]; ok && p.Barcode == "" {
		p.Barcode = barcode
		r.s.products[key] = p
	}
	return nil
}

func (r productRepo) Search(ctx context.Context, company, query string, limit int) ([]*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(query)
	var out []*entity.Product
	for _, p := range r.s.products {
		if p.CompanyID != company {
			continue
		}
		if strings.Contains(strings.ToLower(p.Code), q) || strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(p.Barcode, q) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── fornecedores ──────────────────────────────────────────────────────────────

type partyRepo struct{ s *memStore }

var _ repository.CounterpartyRepository = partyRepo{}

func (r partyRepo) GetByID(ctx context.Context, company, id string) (*entity.Counterparty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.parties {
		if c.CompanyID == company && c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (r partyRepo) FindByTaxID(ctx context.Context, company, taxID string) (*entity.Counterparty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.parties {
		if c.CompanyID == company && (c.CNPJ == taxID || c.CPF == taxID) {
			return &c, nil
		}
	}
	return nil, nil
}

// ── estoque ───────────────────────────────────────────────────────────────────

type stockRepo struct{ s *memStore }

var _ repository.StockEntryRepository = stockRepo{}

func (r stockRepo) NextSequence(ctx context.Context, company string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var max int64
	for _, e := range r.s.stock {
		if e.CompanyID == company && e.Sequence > max {
			max = e.Sequence
		}
	}
	return max + 1, nil
}

func (r stockRepo) Create(ctx context.Context, e *entity.StockEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.stock {
		if x.CompanyID == e.CompanyID && x.Sequence == e.Sequence {
			return domain.ErrDuplicate
		}
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	r.s.stock = append(r.s.stock, *e)
	return nil
}

func (r stockRepo) DeleteByObservation(ctx context.Context, t entity.Tenant, supplierID, observation string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var kept []entity.StockEntry
	var n int64
	for _, e := range r.s.stock {
		if e.CompanyID == t.CompanyID && e.BranchID == t.BranchID && e.Observation == observation &&
			e.CounterpartyID != nil && *e.CounterpartyID == supplierID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.stock = kept
	return n, nil
}

// ── títulos ───────────────────────────────────────────────────────────────────

type titleRepo struct{ s *memStore }

var _ repository.PayableTitleRepository = titleRepo{}

func (r titleRepo) LockDocument(ctx context.Context, t entity.Tenant, series, number string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lockedDocs = append(r.s.lockedDocs, series+"/"+number)
	return nil
}

func (r titleRepo) FindFirstByDocument(ctx context.Context, t entity.Tenant, series, number string) (*entity.PayableTitle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.titles {
		if x.CompanyID == t.CompanyID && x.BranchID == t.BranchID && x.Series == series && x.Number == number {
			return &x, nil
		}
	}
	return nil, nil
}

func (r titleRepo) Create(ctx context.Context, x *entity.PayableTitle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failTitleCreate != nil {
		return r.s.failTitleCreate
	}
	if x.ID == "" {
		x.ID = uuid.New().String()
	}
	r.s.titles = append(r.s.titles, *x)
	return nil
}

func (r titleRepo) DeleteByDocument(ctx context.Context, t entity.Tenant, supplierID, series, number string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var kept []entity.PayableTitle
	var n int64
	for _, x := range r.s.titles {
		if x.CompanyID == t.CompanyID && x.BranchID == t.BranchID && x.Series == series && x.Number == number &&
			x.Type == entity.TitleTypeEntry && x.SupplierID != nil && *x.SupplierID == supplierID {
			n++
			continue
		}
		kept = append(kept, x)
	}
	r.s.titles = kept
	return n, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Gateways SEFAZ falsos
// ──────────────────────────────────────────────────────────────────────────────

type fakeDistribution struct {
	mu      sync.Mutex
	result  *sefaz.DistributionResult
	err     error
	queries []sefaz.DistributionQuery
}

func (f *fakeDistribution) Fetch(ctx context.Context, q sefaz.DistributionQuery) (*sefaz.DistributionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEvents struct {
	mu       sync.Mutex
	result   *sefaz.EventResult
	err      error
	requests []sefaz.EventRequest
}

func (f *fakeEvents) SendAwareness(ctx context.Context, req sefaz.EventRequest) (*sefaz.EventResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &sefaz.EventResult{Status: nfe.EventRegistered, Protocol: "891240000000001"}, nil
}

func (f *fakeEvents) sent() []sefaz.EventRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sefaz.EventRequest(nil), f.requests...)
}

var errBoom = errors.New("falla simulada")
