// Package qualification compares qualification classes against a
// configurable ordering table.
package qualification

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidTable = errors.New("invalid class table")

// Tier is one class in ascending order. MaxAmount is the largest contract
// value the class qualifies for; the top tier may be +Inf.
type Tier struct {
	Label     string
	MaxAmount float64
}

// ClassTable is an immutable, totally ordered set of classes.
type ClassTable struct {
	tiers []Tier
	rank  map[string]int
}

// NewClassTable validates that labels are unique and max amounts strictly
// increase with rank.
func NewClassTable(tiers []Tier) (*ClassTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTable)
	}

	t := &ClassTable{
		tiers: make([]Tier, len(tiers)),
		rank:  make(map[string]int, len(tiers)),
	}
	for i, tier := range tiers {
		key := Normalize(tier.Label)
		if key == "" {
			return nil, fmt.Errorf("%w: empty label at position %d", ErrInvalidTable, i)
		}
		if _, dup := t.rank[key]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidTable, tier.Label)
		}
		if math.IsNaN(tier.MaxAmount) || tier.MaxAmount <= 0 {
			return nil, fmt.Errorf("%w: class %q has invalid max amount", ErrInvalidTable, tier.Label)
		}
		if i > 0 && tier.MaxAmount <= tiers[i-1].MaxAmount {
			return nil, fmt.Errorf("%w: max amount of %q does not exceed %q", ErrInvalidTable, tier.Label, tiers[i-1].Label)
		}
		t.rank[key] = i
		t.tiers[i] = Tier{Label: key, MaxAmount: tier.MaxAmount}
	}
	return t, nil
}

// Rank returns the zero-based position of label, or false when unknown.
func (t *ClassTable) Rank(label string) (int, bool) {
	r, ok := t.rank[Normalize(label)]
	return r, ok
}

// IsSufficient reports whether owned ranks at or above required. An unknown
// label on either side is never sufficient.
func (t *ClassTable) IsSufficient(owned, required string) bool {
	o, ok := t.Rank(owned)
	if !ok {
		return false
	}
	r, ok := t.Rank(required)
	if !ok {
		return false
	}
	return o >= r
}

// MaxAmount returns the contract ceiling for label.
func (t *ClassTable) MaxAmount(label string) (float64, bool) {
	r, ok := t.Rank(label)
	if !ok {
		return 0, false
	}
	return t.tiers[r].MaxAmount, true
}

// Canonical returns the table spelling of label.
func (t *ClassTable) Canonical(label string) (string, bool) {
	r, ok := t.Rank(label)
	if !ok {
		return "", false
	}
	return t.tiers[r].Label, true
}

// Highest returns the highest-ranked known label among labels.
func (t *ClassTable) Highest(labels ...string) (string, bool) {
	best := -1
	for _, l := range labels {
		if r, ok := t.Rank(l); ok && r > best {
			best = r
		}
	}
	if best < 0 {
		return "", false
	}
	return t.tiers[best].Label, true
}

// Lowest returns the first tier label.
func (t *ClassTable) Lowest() string {
	return t.tiers[0].Label
}

// Labels returns the labels in ascending order.
func (t *ClassTable) Labels() []string {
	out := make([]string, len(t.tiers))
	for i, tier := range t.tiers {
		out[i] = tier.Label
	}
	return out
}

// Normalize canonicalizes a class label: Roman numerals upper-cased and any
// "bis" suffix written as "-bis", so "iii bis" and "IIIbis" become "III-bis".
func Normalize(label string) string {
	s := strings.ToLower(strings.Join(strings.Fields(label), " "))
	s = strings.Trim(s, ".:;,")
	if s == "" {
		return ""
	}
	if strings.HasSuffix(s, "bis") {
		base := strings.TrimRight(strings.TrimSuffix(s, "bis"), " -_")
		if base == "" {
			return ""
		}
		return strings.ToUpper(base) + "-bis"
	}
	return strings.ToUpper(s)
}
