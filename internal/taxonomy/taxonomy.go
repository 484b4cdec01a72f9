// Package taxonomy holds the closed label sets finance records are checked
// against: categories, subcategories and payment methods.
package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one label of the taxonomy.
type Category struct {
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Subcategories []string `yaml:"subcategories,omitempty" json:"subcategories,omitempty"`
	// Fixed marks recurring structural costs such as rent or salary.
	Fixed bool `yaml:"fixed,omitempty" json:"fixed,omitempty"`
	// DefaultMerchant is used when the text names no merchant.
	DefaultMerchant string `yaml:"default_merchant,omitempty" json:"default_merchant,omitempty"`
}

// Taxonomy is the active finance vocabulary. It is read-only after
// construction and safe to share between goroutines.
type Taxonomy struct {
	Name           string     `yaml:"name" json:"name"`
	HomeCurrency   string     `yaml:"home_currency" json:"home_currency"`
	Categories     []Category `yaml:"categories" json:"categories"`
	PaymentMethods []string   `yaml:"payment_methods,omitempty" json:"payment_methods,omitempty"`
	DefaultCard    string     `yaml:"default_card,omitempty" json:"default_card,omitempty"`
	Cash           string     `yaml:"cash,omitempty" json:"cash,omitempty"`
	// Profile lines describe the owner (assets, income, clients) to the model.
	Profile []string `yaml:"profile,omitempty" json:"profile,omitempty"`
	// Fallback is the category used when nothing else fits.
	Fallback string `yaml:"fallback" json:"fallback"`
}

// Load reads a taxonomy from a YAML file and validates it.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML taxonomy and validates it.
func Parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("Parse: decoding yaml: %w", err)
	}
	if t.HomeCurrency == "" {
		t.HomeCurrency = DefaultHomeCurrency
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that the label sets are usable.
func (t *Taxonomy) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(t.HomeCurrency) != 3 || strings.ToUpper(t.HomeCurrency) != t.HomeCurrency {
		errs = append(errs, fmt.Errorf("home currency %q is not a three-letter code", t.HomeCurrency))
	}
	if len(t.Categories) == 0 {
		errs = append(errs, errors.New("at least one category is required"))
	}

	seen := make(map[string]bool, len(t.Categories))
	for _, c := range t.Categories {
		key := normalizeLabel(c.Name)
		if key == "" {
			errs = append(errs, errors.New("category with empty name"))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate category %q", c.Name))
		}
		seen[key] = true
	}
	if t.Fallback == "" || !seen[normalizeLabel(t.Fallback)] {
		errs = append(errs, fmt.Errorf("fallback category %q is not in the taxonomy", t.Fallback))
	}

	if len(t.PaymentMethods) > 0 {
		if !t.HasPaymentMethod(t.DefaultCard) {
			errs = append(errs, fmt.Errorf("default card %q is not a payment method", t.DefaultCard))
		}
		if !t.HasPaymentMethod(t.Cash) {
			errs = append(errs, fmt.Errorf("cash %q is not a payment method", t.Cash))
		}
	} else if t.DefaultCard != "" || t.Cash != "" {
		errs = append(errs, errors.New("default card and cash need payment methods"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("taxonomy %q: %w", t.Name, err)
	}
	return nil
}

// Extended reports whether the taxonomy tracks payment methods.
func (t *Taxonomy) Extended() bool {
	return len(t.PaymentMethods) > 0
}

// UsesPaymentMethods implements schema.Vocabulary.
func (t *Taxonomy) UsesPaymentMethods() bool {
	return t.Extended()
}

// HasCategory reports exact membership.
func (t *Taxonomy) HasCategory(label string) bool {
	return t.category(label) != nil
}

// HasSubcategory reports whether sub is listed under category.
func (t *Taxonomy) HasSubcategory(category, sub string) bool {
	c := t.category(category)
	if c == nil {
		return false
	}
	for _, s := range c.Subcategories {
		if s == sub {
			return true
		}
	}
	return false
}

// HasPaymentMethod reports exact membership.
func (t *Taxonomy) HasPaymentMethod(label string) bool {
	for _, p := range t.PaymentMethods {
		if p == label {
			return true
		}
	}
	return false
}

// CategoryNames returns the category labels in declaration order.
func (t *Taxonomy) CategoryNames() []string {
	names := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the category with exactly this label.
func (t *Taxonomy) Lookup(label string) (Category, bool) {
	c := t.category(label)
	if c == nil {
		return Category{}, false
	}
	return *c, true
}

// Canonical maps a loosely written label to its exact taxonomy spelling.
func (t *Taxonomy) Canonical(label string) (string, bool) {
	key := normalizeLabel(label)
	if key == "" {
		return "", false
	}
	for _, c := range t.Categories {
		if normalizeLabel(c.Name) == key {
			return c.Name, true
		}
	}
	return "", false
}

// CanonicalSubcategory maps a loosely written subcategory of category.
func (t *Taxonomy) CanonicalSubcategory(category, sub string) (string, bool) {
	c := t.category(category)
	if c == nil {
		return "", false
	}
	key := normalizeLabel(sub)
	for _, s := range c.Subcategories {
		if normalizeLabel(s) == key {
			return s, true
		}
	}
	return "", false
}

// CanonicalPayment maps a loosely written payment method to its exact spelling.
func (t *Taxonomy) CanonicalPayment(label string) (string, bool) {
	key := normalizeLabel(label)
	if key == "" {
		return "", false
	}
	for _, p := range t.PaymentMethods {
		if normalizeLabel(p) == key {
			return p, true
		}
	}
	return "", false
}

func (t *Taxonomy) category(label string) *Category {
	for i := range t.Categories {
		if t.Categories[i].Name == label {
			return &t.Categories[i]
		}
	}
	return nil
}

// normalizeLabel upper-cases and collapses whitespace for comparison.
func normalizeLabel(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
