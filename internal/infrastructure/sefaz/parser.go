package sefaz

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/notas-destinadas/internal/domain/entity"
	domainnfe "github.com/jhoicas/notas-destinadas/internal/domain/nfe"
	"github.com/jhoicas/notas-destinadas/pkg/nfe"
)

// Parser extrae los campos de una NF-e (nfeProc o NFe) por ruta local-name.
// Campos opcionales ausentes o mal formados quedan en cero/null; solo la clave natural
// y los bloques emit, dest y ICMSTot son obligatorios.
type Parser struct{}

// NewParser crea el parser.
func NewParser() *Parser { return &Parser{} }

func (p *Parser) infNFe(xmlBytes []byte) (*etree.Element, *etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, nil, fmt.Errorf("%w: XML mal formado: %v", domainnfe.ErrInvalidDocument, err)
	}
	inf := doc.FindElement("//infNFe")
	if inf == nil {
		return nil, nil, fmt.Errorf("%w: sin infNFe", domainnfe.ErrInvalidDocument)
	}
	if ns := inf.NamespaceURI(); ns != "" && ns != nfe.NamespaceNFe {
		return nil, nil, fmt.Errorf("%w: namespace inesperado %q", domainnfe.ErrInvalidDocument, ns)
	}
	return inf, doc, nil
}

// Parse construye el registro sin empresa/filial (el normalizador las completa).
func (p *Parser) Parse(xmlBytes []byte) (*entity.FiscalDocument, error) {
	inf, doc, err := p.infNFe(xmlBytes)
	if err != nil {
		return nil, err
	}
	ide := inf.SelectElement("ide")
	emit := inf.SelectElement("emit")
	dest := inf.SelectElement("dest")
	tot := inf.FindElement("./total/ICMSTot")
	switch {
	case ide == nil:
		return nil, fmt.Errorf("%w: sin bloque ide", domainnfe.ErrInvalidDocument)
	case emit == nil:
		return nil, fmt.Errorf("%w: sin bloque emit", domainnfe.ErrInvalidDocument)
	case dest == nil:
		return nil, fmt.Errorf("%w: sin bloque dest", domainnfe.ErrInvalidDocument)
	case tot == nil:
		return nil, fmt.Errorf("%w: sin bloque ICMSTot", domainnfe.ErrInvalidDocument)
	}

	number, err := strconv.ParseInt(text(ide, "nNF"), 10, 64)
	if err != nil || number <= 0 {
		return nil, fmt.Errorf("%w: nNF %q", domainnfe.ErrInvalidDocument, text(ide, "nNF"))
	}
	total, err := decimal.NewFromString(text(tot, "vNF"))
	if err != nil {
		return nil, fmt.Errorf("%w: vNF %q", domainnfe.ErrInvalidDocument, text(tot, "vNF"))
	}

	d := &entity.FiscalDocument{
		Number:            number,
		Series:            text(ide, "serie"),
		Model:             text(ide, "mod"),
		IssuerStateCode:   intPtr(ide, "cUF"),
		NumericCode:       intPtr(ide, "cNF"),
		NatureOfOperation: text(ide, "natOp"),
		OperationType:     intPtr(ide, "tpNF"),
		IssuedAt:          firstTime(ide, "dhEmi", "dEmi"),
		EntryDate:         firstTime(ide, "dhSaiEnt", "dSaiEnt"),
		Issuer:            party(emit, "enderEmit"),
		Recipient:         party(dest, "enderDest"),
		Totals: entity.Totals{
			Products:  nullDecimal(tot, "vProd"),
			Total:     total,
			Discount:  nullDecimal(tot, "vDesc"),
			Freight:   nullDecimal(tot, "vFrete"),
			Insurance: nullDecimal(tot, "vSeg"),
			ICMS:      nullDecimal(tot, "vICMS"),
			IPI:       nullDecimal(tot, "vIPI"),
			PIS:       nullDecimal(tot, "vPIS"),
			COFINS:    nullDecimal(tot, "vCOFINS"),
			Other:     nullDecimal(tot, "vOutro"),
		},
	}
	if d.Series == "" {
		return nil, fmt.Errorf("%w: serie ausente", domainnfe.ErrInvalidDocument)
	}
	if key, err := accessKey(doc, inf); err == nil {
		d.AccessKey = string(key)
	}

	// Sin protNFe se asume autorizada (el XML distribuido es de una nota con uso autorizado).
	d.StatusCode = nfe.StatusAuthorized
	if prot := doc.FindElement("//protNFe/infProt"); prot != nil {
		if code, err := strconv.Atoi(text(prot, "cStat")); err == nil {
			d.StatusCode = code
		}
		d.Protocol = text(prot, "nProt")
	}
	flags := domainnfe.FlagsFromStatus(d.StatusCode)
	d.Cancelled, d.Voided, d.Denied = flags.Cancelled, flags.Voided, flags.Denied

	s := string(xmlBytes)
	d.XML = &s
	return d, nil
}

// AccessKey chave de protNFe/infProt/chNFe o, si falta, del Id de infNFe.
func (p *Parser) AccessKey(xmlBytes []byte) (nfe.AccessKey, error) {
	inf, doc, err := p.infNFe(xmlBytes)
	if err != nil {
		return "", err
	}
	return accessKey(doc, inf)
}

func accessKey(doc *etree.Document, inf *etree.Element) (nfe.AccessKey, error) {
	if ch := doc.FindElement("//protNFe/infProt/chNFe"); ch != nil {
		if key, err := nfe.ParseAccessKey(ch.Text()); err == nil {
			return key, nil
		}
	}
	return nfe.AccessKeyFromID(inf.SelectAttrValue("Id", ""))
}

// LineItems secuencia perezosa de los det/prod. Cada iteración vuelve a leer el XML,
// así que la secuencia puede recorrerse varias veces. Un XML ilegible produce un único error.
func (p *Parser) LineItems(xmlBytes []byte) iter.Seq2[entity.LineItem, error] {
	return func(yield func(entity.LineItem, error) bool) {
		inf, _, err := p.infNFe(xmlBytes)
		if err != nil {
			yield(entity.LineItem{}, err)
			return
		}
		for i, det := range inf.SelectElements("det") {
			prod := det.SelectElement("prod")
			if prod == nil {
				continue
			}
			index := det.SelectAttrValue("nItem", "")
			if index == "" {
				index = strconv.Itoa(i + 1)
			}
			item := entity.LineItem{
				Index:        index,
				SupplierCode: text(prod, "cProd"),
				Description:  text(prod, "xProd"),
				NCM:          text(prod, "NCM"),
				CFOP:         text(prod, "CFOP"),
				Unit:         text(prod, "uCom"),
				EAN:          text(prod, "cEAN"),
				Quantity:     nullDecimal(prod, "qCom"),
				UnitValue:    nullDecimal(prod, "vUnCom"),
				Total:        nullDecimal(prod, "vProd"),
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Installments duplicatas de cobr/dup. dVenc inválido deja DueDate en nil; un vDup
// ausente o mal formado invalida todo el cronograma.
func (p *Parser) Installments(xmlBytes []byte) ([]entity.Installment, error) {
	inf, _, err := p.infNFe(xmlBytes)
	if err != nil {
		return nil, err
	}
	var out []entity.Installment
	for i, dup := range inf.FindElements("./cobr/dup") {
		number := text(dup, "nDup")
		if number == "" {
			number = fmt.Sprintf("%03d", i+1)
		}
		amount, err := decimal.NewFromString(text(dup, "vDup"))
		if err != nil {
			return nil, fmt.Errorf("%w: vDup %q de la duplicata %s", domainnfe.ErrInvalidDocument, text(dup, "vDup"), number)
		}
		out = append(out, entity.Installment{
			Number:  number,
			DueDate: firstTime(dup, "dVenc"),
			Amount:  amount,
		})
	}
	return out, nil
}

// ── coerciones ────────────────────────────────────────────────────────────────

func party(el *etree.Element, addressTag string) entity.Party {
	p := entity.Party{
		CNPJ:              text(el, "CNPJ"),
		CPF:               text(el, "CPF"),
		Name:              text(el, "xNome"),
		TradeName:         text(el, "xFant"),
		StateRegistration: text(el, "IE"),
		Email:             text(el, "email"),
	}
	if addr := el.SelectElement(addressTag); addr != nil {
		p.Address = entity.Address{
			Street:     text(addr, "xLgr"),
			Number:     text(addr, "nro"),
			Complement: text(addr, "xCpl"),
			District:   text(addr, "xBairro"),
			CityCode:   intPtr(addr, "cMun"),
			City:       text(addr, "xMun"),
			State:      text(addr, "UF"),
			ZIP:        text(addr, "CEP"),
			Phone:      text(addr, "fone"),
		}
	}
	return p
}

func text(el *etree.Element, tag string) string {
	if el == nil {
		return ""
	}
	if child := el.SelectElement(tag); child != nil {
		return strings.TrimSpace(child.Text())
	}
	return ""
}

func intPtr(el *etree.Element, tag string) *int {
	v, err := strconv.Atoi(text(el, tag))
	if err != nil {
		return nil
	}
	return &v
}

func nullDecimal(el *etree.Element, tag string) decimal.NullDecimal {
	v, err := decimal.NewFromString(text(el, tag))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// firstTime primer tag presente con fecha válida (dh* con zona o d* solo fecha).
func firstTime(el *etree.Element, tags ...string) *time.Time {
	for _, tag := range tags {
		raw := text(el, tag)
		if raw == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
	}
	return nil
}
