// Package rules validates synthesized Falco rules and persists accepted ones.
package rules

import (
	"fmt"
	"strings"
)

// DefaultPriority replaces a missing or unknown rule priority.
const DefaultPriority = "WARNING"

// Definition is one Falco rule in the engine's native syntax. Only these five
// keys are ever written to the rule store.
type Definition struct {
	Rule      string `yaml:"rule" json:"rule" validate:"required"`
	Desc      string `yaml:"desc" json:"desc" validate:"required"`
	Condition string `yaml:"condition" json:"condition" validate:"required"`
	Output    string `yaml:"output" json:"output" validate:"required,falco_output"`
	Priority  string `yaml:"priority" json:"priority"`
}

// Kind classifies a validation rejection.
type Kind string

const (
	// KindStructural means the candidate is not a rule or a list of rules.
	KindStructural Kind = "structural"
	// KindSchema means a required field is missing or empty.
	KindSchema Kind = "schema"
	// KindSyntax means a field violates the engine's grammar.
	KindSyntax Kind = "syntax"
)

// Rejection explains why a candidate batch was discarded.
type Rejection struct {
	Kind   Kind
	Index  int // zero-based record index, -1 for the whole candidate
	Field  string
	Reason string
}

func (r *Rejection) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rule candidate rejected (%s)", r.Kind)
	if r.Index >= 0 {
		fmt.Fprintf(&b, ": rule #%d", r.Index+1)
	}
	if r.Field != "" {
		fmt.Fprintf(&b, ": field %q", r.Field)
	}
	b.WriteString(": ")
	b.WriteString(r.Reason)
	return b.String()
}

func structural(index int, format string, args ...any) *Rejection {
	return &Rejection{Kind: KindStructural, Index: index, Reason: fmt.Sprintf(format, args...)}
}

// Names returns the rule names of a batch in order.
func Names(batch []Definition) []string {
	names := make([]string, len(batch))
	for i, d := range batch {
		names[i] = d.Rule
	}
	return names
}

// CheckDuplicates rejects a batch whose names repeat within the batch or
// already exist in the store.
func CheckDuplicates(batch []Definition, existing map[string]struct{}) error {
	seen := make(map[string]struct{}, len(batch))
	for i, d := range batch {
		if _, ok := existing[d.Rule]; ok {
			return &Rejection{Kind: KindSchema, Index: i, Field: "rule",
				Reason: fmt.Sprintf("rule %q already exists in the store", d.Rule)}
		}
		if _, ok := seen[d.Rule]; ok {
			return &Rejection{Kind: KindSchema, Index: i, Field: "rule",
				Reason: fmt.Sprintf("rule %q is defined twice in the candidate", d.Rule)}
		}
		seen[d.Rule] = struct{}{}
	}
	return nil
}
