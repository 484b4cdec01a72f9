package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dvloznov/lifelog/internal/schema"
	"github.com/dvloznov/lifelog/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// FallbackMerchant is the last-resort generic merchant name.
const FallbackMerchant = "Comercio Local"

var (
	errMissingAmount   = errors.New("amount is missing")
	errUnknownCategory = errors.New("category is not in the taxonomy")
	errUnknownPayment  = errors.New("payment method is not in the taxonomy")
	errBadDate         = errors.New("date is not a calendar date")
)

// RawTransaction is one transaction as the model returns it, before the
// field-resolution rules run.
type RawTransaction struct {
	Amount          *decimal.Decimal     `json:"amount"`
	Currency        *string              `json:"currency"`
	Category        string               `json:"category"`
	Subcategory     *string              `json:"subcategory"`
	Merchant        *string              `json:"merchant"`
	Item            *string              `json:"item"`
	Date            *string              `json:"date"`
	PaymentMethod   *string              `json:"payment_method"`
	IsFixed         *bool                `json:"is_fixed"`
	IsClientExpense bool                 `json:"is_client_expense"`
	Installments    *schema.Installments `json:"installments"`
}

// Resolver applies the finance field rules to raw model output. It is a
// value bound at construction and safe for concurrent use.
type Resolver struct {
	Taxonomy *taxonomy.Taxonomy
	Clock    Clock
}

// Today returns the invocation date in the clock's location.
func (r Resolver) Today() time.Time {
	return r.Clock.Now()
}

// ResolveBatch resolves every raw transaction. source is the text the batch
// came from; it drives merchant and payment defaults. The first failing
// transaction fails the whole batch.
func (r Resolver) ResolveBatch(raws []RawTransaction, source string) (schema.FinanceBatch, error) {
	batch := schema.FinanceBatch{Transactions: make([]schema.FinanceEntry, 0, len(raws))}
	for i, raw := range raws {
		// A lone transaction may borrow keywords from the whole text.
		keywords := ""
		if len(raws) == 1 {
			keywords = source
		}
		entry, err := r.Resolve(raw, source, keywords)
		if err != nil {
			return schema.FinanceBatch{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		batch.Transactions = append(batch.Transactions, entry)
	}
	return batch, nil
}

// Resolve turns one raw transaction into a validated entry. keywordText is
// extra text merchant inference may search besides the item.
func (r Resolver) Resolve(raw RawTransaction, source, keywordText string) (schema.FinanceEntry, error) {
	tax := r.Taxonomy

	if raw.Amount == nil {
		return schema.FinanceEntry{}, errMissingAmount
	}
	entry := schema.FinanceEntry{
		Amount:          raw.Amount.Abs().Round(2),
		Item:            strings.TrimSpace(deref(raw.Item)),
		IsClientExpense: raw.IsClientExpense,
	}

	date, err := r.resolveDate(deref(raw.Date))
	if err != nil {
		return schema.FinanceEntry{}, err
	}
	entry.Date = date

	entry.Currency = resolveCurrency(deref(raw.Currency), tax.HomeCurrency)

	category, ok := tax.Canonical(raw.Category)
	if !ok {
		return schema.FinanceEntry{}, fmt.Errorf("%w: %q", errUnknownCategory, raw.Category)
	}
	entry.Category = category
	cat, _ := tax.Lookup(category)

	if sub := strings.TrimSpace(deref(raw.Subcategory)); sub != "" && len(cat.Subcategories) > 0 {
		canonical, ok := tax.CanonicalSubcategory(category, sub)
		if !ok {
			return schema.FinanceEntry{}, fmt.Errorf("%w: subcategory %q of %q", errUnknownCategory, sub, category)
		}
		entry.Subcategory = canonical
	}

	entry.IsFixed = cat.Fixed
	if raw.IsFixed != nil {
		entry.IsFixed = *raw.IsFixed
	}

	entry.Merchant = resolveMerchant(deref(raw.Merchant), entry.Item+" "+keywordText, cat.DefaultMerchant)

	if tax.Extended() {
		method, err := resolvePayment(tax, deref(raw.PaymentMethod), source)
		if err != nil {
			return schema.FinanceEntry{}, err
		}
		entry.PaymentMethod = method
	}

	if in := raw.Installments; in != nil && in.Total > 1 {
		entry.Installments = &schema.Installments{Current: in.Current, Total: in.Total}
		if entry.Installments.Current == 0 {
			entry.Installments.Current = 1
		}
	}

	if err := entry.Validate(tax); err != nil {
		return schema.FinanceEntry{}, err
	}
	return entry, nil
}

var relativeDays = map[string]int{
	"hoy":                  0,
	"today":                0,
	"ayer":                 -1,
	"yesterday":            -1,
	"anteayer":             -2,
	"antes de ayer":        -2,
	"antier":               -2,
	"day before yesterday": -2,
}

// Layouts accepted besides ISO; day-first as written locally.
var dateLayouts = []string{"02/01/2006", "2/1/2006", "02-01-2006", "2006/01/02"}

func (r Resolver) resolveDate(raw string) (string, error) {
	today := r.Today()
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if key == "" {
		return today.Format(schema.DateLayout), nil
	}
	if offset, ok := relativeDays[key]; ok {
		return today.AddDate(0, 0, offset).Format(schema.DateLayout), nil
	}
	if schema.ValidDate(key) {
		return key, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, key); err == nil {
			return t.Format(schema.DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", errBadDate, raw)
}

var currencyAliases = map[string]string{
	"US$":     "USD",
	"U$S":     "USD",
	"U$D":     "USD",
	"DOLAR":   "USD",
	"DÓLAR":   "USD",
	"DOLARES": "USD",
	"DÓLARES": "USD",
	"EURO":    "EUR",
	"EUROS":   "EUR",
	"€":       "EUR",
	"PESOS":   "",
	"PESO":    "",
	"$":       "",
}

func resolveCurrency(raw, home string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if alias, ok := currencyAliases[code]; ok {
		code = alias
	}
	if code == "" {
		return home
	}
	return code
}

// merchantRule infers a generic merchant when a keyword appears in the text.
type merchantRule struct {
	keywords []string
	merchant string
}

// Ordered: the first rule with a matching word wins.
var merchantRules = []merchantRule{
	{keywords: []string{"luz", "electricidad", "energía", "energia", "edenor", "edesur"}, merchant: "Servicios Eléctricos"},
	{keywords: []string{"gas", "metrogas", "garrafa"}, merchant: "Distribuidora de Gas"},
	{keywords: []string{"agua", "aysa"}, merchant: "Proveedor de Agua"},
	{keywords: []string{"internet", "wifi", "fibra"}, merchant: "Proveedor de Internet"},
	{keywords: []string{"celular", "teléfono", "telefono", "línea", "linea"}, merchant: "Compañía Telefónica"},
	{keywords: []string{"nafta", "combustible", "gasoil", "diesel", "gasolina", "fuel"}, merchant: "Estación de Servicio"},
	{keywords: []string{"peaje", "peajes", "autopista"}, merchant: "Autopista"},
	{keywords: []string{"alfajor", "alfajores", "golosina", "golosinas", "caramelos", "chicles", "snack", "snacks", "kiosco"}, merchant: "Kiosco"},
	{keywords: []string{"farmacia", "remedio", "remedios", "medicamento", "medicamentos"}, merchant: "Farmacia"},
	{keywords: []string{"super", "supermercado", "almacén", "almacen", "verdulería", "verduleria"}, merchant: "Supermercado"},
	{keywords: []string{"expensas"}, merchant: "Administración del Edificio"},
	{keywords: []string{"taxi", "remis"}, merchant: "Servicio de Taxi"},
	{keywords: []string{"colectivo", "subte", "tren", "sube"}, merchant: "Transporte Público"},
}

// InferMerchant returns the generic merchant for the first keyword found in
// text, matching whole words only.
func InferMerchant(text string) (string, bool) {
	words := wordSet(text)
	for _, rule := range merchantRules {
		for _, kw := range rule.keywords {
			if words[kw] {
				return rule.merchant, true
			}
		}
	}
	return "", false
}

func resolveMerchant(raw, keywordText, categoryDefault string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if name != "" && !schema.IsPlaceholderMerchant(name) && !schema.IsConcatenatedMerchant(name) {
		return name
	}
	if inferred, ok := InferMerchant(keywordText); ok {
		return inferred
	}
	if categoryDefault != "" {
		return categoryDefault
	}
	return FallbackMerchant
}

var (
	genericCardWords = []string{"tarjeta", "card", "crédito", "credito", "tc"}
	cashWords        = []string{"efectivo", "cash", "billete", "billetes"}
)

func resolvePayment(tax *taxonomy.Taxonomy, raw, source string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if method, ok := tax.CanonicalPayment(raw); ok {
			return method, nil
		}
		if method, ok := paymentByBrand(tax, raw); ok {
			return method, nil
		}
		if containsAny(wordSet(raw), genericCardWords) {
			return tax.DefaultCard, nil
		}
		if containsAny(wordSet(raw), cashWords) {
			return tax.Cash, nil
		}
		return "", fmt.Errorf("%w: %q", errUnknownPayment, raw)
	}

	if method, ok := paymentByBrand(tax, source); ok {
		return method, nil
	}
	if containsAny(wordSet(source), genericCardWords) {
		return tax.DefaultCard, nil
	}
	return tax.Cash, nil
}

// paymentByBrand finds the single payment method whose label contains a
// distinctive word of text, e.g. "amex" or "débito".
func paymentByBrand(tax *taxonomy.Taxonomy, text string) (string, bool) {
	words := wordSet(text)
	match := ""
	for _, method := range tax.PaymentMethods {
		for w := range wordSet(method) {
			if len(w) < 3 || w == "crédito" || w == "credito" {
				continue
			}
			if words[w] {
				if match != "" && match != method {
					return "", false
				}
				match = method
			}
		}
	}
	return match, match != ""
}

func wordSet(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func containsAny(words map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if words[c] {
			return true
		}
	}
	return false
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
