package taxonomy

import (
	"strings"
)

// Prompt renders the taxonomy as model instructions.
func (t *Taxonomy) Prompt() string {
	var b strings.Builder

	if len(t.Profile) > 0 {
		b.WriteString("OWNER CONTEXT:\n")
		for _, line := range t.Profile {
			b.WriteString("- " + line + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Use ONLY the following categories:\n\n")
	for _, c := range t.Categories {
		b.WriteString("- \"" + c.Name + "\"")
		if c.Description != "" {
			b.WriteString(" (" + c.Description + ")")
		}
		b.WriteString("\n")
		for _, s := range c.Subcategories {
			b.WriteString("    - subcategory \"" + s + "\"\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("CATEGORY ASSIGNMENT RULES:\n")
	b.WriteString("1. Category must be EXACTLY one of the names shown above.\n")
	b.WriteString("2. Subcategory must be one listed under its category, or an empty string.\n")
	b.WriteString("3. If you are unsure, use category \"" + t.Fallback + "\".\n")
	b.WriteString("4. Currency defaults to \"" + t.HomeCurrency + "\" unless another currency is explicitly stated.\n")

	if t.Extended() {
		b.WriteString("\nPAYMENT METHODS (strict):\n")
		for _, p := range t.PaymentMethods {
			b.WriteString("- \"" + p + "\"\n")
		}
		b.WriteString("\nPAYMENT RULES:\n")
		b.WriteString("1. An explicitly mentioned payment method wins.\n")
		b.WriteString("2. A generic mention of a card without a brand means \"" + t.DefaultCard + "\".\n")
		b.WriteString("3. Otherwise use \"" + t.Cash + "\".\n")
	} else {
		b.WriteString("5. Leave payment_method empty.\n")
	}

	return b.String()
}
