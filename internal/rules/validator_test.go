package rules

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func newTestValidator() *Validator {
	return NewValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const validRule = `- rule: Block cat reading shadow
  desc: Detect cat opening /etc/shadow
  condition: open_read and proc.name = cat and fd.name = /etc/shadow
  output: "Shadow read (user=%user.name proc=%proc.name file=%fd.name)"
  priority: WARNING
`

func expectRejection(t *testing.T, err error, kind Kind) *Rejection {
	t.Helper()
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *Rejection, got %v", err)
	}
	if rej.Kind != kind {
		t.Fatalf("rejection kind = %s, want %s (%v)", rej.Kind, kind, rej)
	}
	return rej
}

func TestValidate_AcceptsSequence(t *testing.T) {
	report, err := newTestValidator().Validate(validRule)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(report.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(report.Rules))
	}
	r := report.Rules[0]
	if r.Rule != "Block cat reading shadow" {
		t.Errorf("Rule = %q", r.Rule)
	}
	if r.Priority != "WARNING" {
		t.Errorf("Priority = %q, want WARNING", r.Priority)
	}
	if len(report.Fixes) != 0 {
		t.Errorf("unexpected fixes: %v", report.Fixes)
	}
}

func TestValidate_SingleMappingIsOneElementBatch(t *testing.T) {
	candidate := `rule: Single
desc: one rule
condition: spawned_process
output: "proc=%proc.name"
priority: NOTICE
`
	report, err := newTestValidator().Validate(candidate)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(report.Rules) != 1 || report.Rules[0].Rule != "Single" {
		t.Fatalf("unexpected rules: %+v", report.Rules)
	}
}

func TestValidate_StripsMarkdownFences(t *testing.T) {
	candidate := "Here is your rule:\n```yaml\n" + validRule + "```\nDone."
	report, err := newTestValidator().Validate(candidate)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(report.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(report.Rules))
	}
}

func TestValidate_StructuralRejections(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t"},
		{"scalar", "just some prose from the model"},
		{"list of scalars", "- one\n- two\n"},
		{"mixed list", validRule + "- plain string\n"},
		{"empty list", "[]"},
		{"invalid yaml", "- rule: [unclosed\n"},
		{"multiple documents", validRule + "---\n" + validRule},
		{"nested value", `- rule: x
  desc: y
  condition:
    nested: true
  output: "a=%proc.name"
  priority: WARNING
`},
		{"duplicate key", `- rule: x
  rule: y
  desc: d
  condition: c
  output: "a=%proc.name"
  priority: WARNING
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestValidator().Validate(tt.candidate)
			expectRejection(t, err, KindStructural)
		})
	}
}

func TestValidate_MissingFieldRejectsWholeBatch(t *testing.T) {
	for _, field := range []string{"rule", "desc", "condition", "output", "priority"} {
		t.Run(field, func(t *testing.T) {
			var lines []string
			for _, l := range strings.Split(strings.TrimSpace(validRule), "\n") {
				key := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "- "))
				if strings.HasPrefix(key, field+":") {
					continue
				}
				lines = append(lines, l)
			}
			broken := strings.Join(lines, "\n")
			if field == "rule" {
				broken = "- " + strings.TrimSpace(broken)
			}

			_, err := newTestValidator().Validate(validRule + broken + "\n")
			rej := expectRejection(t, err, KindSchema)
			if rej.Index != 1 {
				t.Errorf("Index = %d, want 1", rej.Index)
			}
			if rej.Field != field {
				t.Errorf("Field = %q, want %q", rej.Field, field)
			}
		})
	}
}

func TestValidate_EmptyValuesRejected(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		field     string
	}{
		{"blank condition", `- rule: x
  desc: y
  condition: "   "
  output: "a=%proc.name"
  priority: WARNING
`, "condition"},
		{"null output", `- rule: x
  desc: y
  condition: spawned_process
  output: ~
  priority: WARNING
`, "output"},
		{"empty desc", `- rule: x
  desc: ""
  condition: spawned_process
  output: "a=%proc.name"
  priority: WARNING
`, "desc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestValidator().Validate(tt.candidate)
			rej := expectRejection(t, err, KindSchema)
			if rej.Field != tt.field {
				t.Errorf("Field = %q, want %q", rej.Field, tt.field)
			}
		})
	}
}

func TestValidate_AbsentPriorityRejected(t *testing.T) {
	tests := map[string]string{
		"missing key": strings.Replace(validRule, "  priority: WARNING\n", "", 1),
		"null value":  strings.Replace(validRule, "priority: WARNING", "priority: ~", 1),
		"empty value": strings.Replace(validRule, "priority: WARNING", "priority:", 1),
	}
	for name, candidate := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := newTestValidator().Validate(candidate)
			rej := expectRejection(t, err, KindSchema)
			if rej.Field != "priority" {
				t.Errorf("Field = %q, want priority", rej.Field)
			}
		})
	}
}

func TestValidate_OutputSyntax(t *testing.T) {
	tests := []struct {
		output string
		valid  bool
	}{
		{"user=%user.name%", false},
		{"container=%container.name[%container.id]", false},
		{"proc=%proc.aname[2]", false},
		{"user=%user.name container=%container.name", true},
		{"100% sure file=%fd.name", true},
		{"plain text output", true},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			candidate := `- rule: x
  desc: y
  condition: spawned_process
  output: "` + tt.output + `"
  priority: WARNING
`
			_, err := newTestValidator().Validate(candidate)
			if tt.valid {
				if err != nil {
					t.Fatalf("expected accept, got %v", err)
				}
				return
			}
			rej := expectRejection(t, err, KindSyntax)
			if rej.Field != "output" {
				t.Errorf("Field = %q, want output", rej.Field)
			}
		})
	}
}

func TestValidate_PriorityAutoFix(t *testing.T) {
	candidate := strings.Replace(validRule, "priority: WARNING", `priority: "BOGUS"`, 1)

	report, err := newTestValidator().Validate(candidate)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := report.Rules[0].Priority; got != DefaultPriority {
		t.Errorf("Priority = %q, want %q", got, DefaultPriority)
	}
	if len(report.Fixes) != 1 || report.Fixes[0].Field != "priority" {
		t.Errorf("Fixes = %+v, want one priority fix", report.Fixes)
	}
}

func TestValidate_PriorityNormalized(t *testing.T) {
	tests := map[string]string{
		"critical":      "CRITICAL",
		"Informational": "INFO",
		"info":          "INFO",
		"":              DefaultPriority,
	}
	for in, want := range tests {
		candidate := strings.Replace(validRule, "priority: WARNING", `priority: "`+in+`"`, 1)
		report, err := newTestValidator().Validate(candidate)
		if err != nil {
			t.Fatalf("Validate(priority=%q) error = %v", in, err)
		}
		if got := report.Rules[0].Priority; got != want {
			t.Errorf("priority %q normalized to %q, want %q", in, got, want)
		}
	}
}

func TestValidate_StripsUnsupportedFields(t *testing.T) {
	candidate := validRule + "  actions: [kill]\n  tags: [filesystem]\n"

	report, err := newTestValidator().Validate(candidate)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(report.Fixes) != 2 {
		t.Fatalf("Fixes = %+v, want 2", report.Fixes)
	}

	encoded, err := Encode(report.Rules)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(encoded), "actions") || strings.Contains(string(encoded), "kill") {
		t.Errorf("stripped field leaked into encoded rule:\n%s", encoded)
	}
}

func TestValidate_AcceptsAliases(t *testing.T) {
	candidate := `- name: Aliased
  description: uses alias keys
  condition: spawned_process
  output: "proc=%proc.name"
  priority: ERROR
`
	report, err := newTestValidator().Validate(candidate)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if report.Rules[0].Rule != "Aliased" || report.Rules[0].Desc != "uses alias keys" {
		t.Errorf("aliases not mapped: %+v", report.Rules[0])
	}
}

func TestValidate_Idempotent(t *testing.T) {
	candidates := []string{
		validRule,
		strings.Replace(validRule, "priority: WARNING", "priority: BOGUS", 1) + "  actions: [kill]\n",
		"user=%user.name%",
		validRule + "- rule: second\n  desc: d\n",
	}

	v := newTestValidator()
	for _, c := range candidates {
		r1, err1 := v.Validate(c)
		r2, err2 := v.Validate(c)

		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("accept/reject differs between runs: %v vs %v", err1, err2)
		}
		if err1 != nil {
			if err1.Error() != err2.Error() {
				t.Errorf("rejection differs: %q vs %q", err1, err2)
			}
			continue
		}
		if !reflect.DeepEqual(r1, r2) {
			t.Errorf("reports differ:\n%+v\n%+v", r1, r2)
		}
	}
}

func TestValidate_RevalidatingOutputIsStable(t *testing.T) {
	v := newTestValidator()
	candidate := strings.Replace(validRule, "priority: WARNING", "priority: bogus", 1)

	first, err := v.Validate(candidate)
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := Encode(first.Rules)
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.Validate(string(encoded))
	if err != nil {
		t.Fatalf("re-validating accepted output failed: %v", err)
	}
	if !reflect.DeepEqual(first.Rules, second.Rules) {
		t.Errorf("rules changed on second pass:\n%+v\n%+v", first.Rules, second.Rules)
	}
	if len(second.Fixes) != 0 {
		t.Errorf("second pass applied fixes: %+v", second.Fixes)
	}
}

func TestCheckDuplicates(t *testing.T) {
	batch := []Definition{{Rule: "a"}, {Rule: "b"}}

	if err := CheckDuplicates(batch, map[string]struct{}{"c": {}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := CheckDuplicates(batch, map[string]struct{}{"b": {}})
	rej := expectRejection(t, err, KindSchema)
	if rej.Index != 1 {
		t.Errorf("Index = %d, want 1", rej.Index)
	}

	err = CheckDuplicates([]Definition{{Rule: "a"}, {Rule: "a"}}, nil)
	expectRejection(t, err, KindSchema)
}

func TestRejectionError(t *testing.T) {
	rej := &Rejection{Kind: KindSchema, Index: 1, Field: "condition", Reason: "required field is missing"}
	want := `rule candidate rejected (schema): rule #2: field "condition": required field is missing`
	if rej.Error() != want {
		t.Errorf("Error() = %q, want %q", rej.Error(), want)
	}
}
