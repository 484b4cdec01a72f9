// Package schema defines the records produced by the lifelog pipeline and the
// constraints every record must satisfy before it leaves the core.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the life-domain an input is routed to.
type Category int

const (
	// Other is the zero value so an unset category never routes to an extractor.
	Other Category = iota
	Finance
	Health
	Journal
)

var categoryNames = [...]string{
	Other:   "OTHER",
	Finance: "FINANCE",
	Health:  "HEALTH",
	Journal: "JOURNAL",
}

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{Finance, Health, Journal, Other}
}

// CategoryNames returns the wire names of all categories.
func CategoryNames() []string {
	cats := Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	return names
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return categoryNames[Other]
	}
	return categoryNames[c]
}

// ParseCategory maps a wire name to a Category. Anything that is not one of
// the four known names is treated as Other.
func ParseCategory(s string) Category {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FINANCE":
		return Finance
	case "HEALTH":
		return Health
	case "JOURNAL":
		return Journal
	default:
		return Other
	}
}

// MarshalJSON encodes the category by name.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a category name; unknown names become Other.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	*c = ParseCategory(s)
	return nil
}

// RoutingDecision is the router's verdict for one input.
type RoutingDecision struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// Validate checks the decision invariants.
func (d RoutingDecision) Validate() error {
	if d.Category < Other || d.Category > Journal {
		return invalid("category", "unknown category %d", int(d.Category))
	}
	if d.Confidence != d.Confidence || d.Confidence < 0 || d.Confidence > 1 {
		return invalid("confidence", "%v is outside [0, 1]", d.Confidence)
	}
	return nil
}
