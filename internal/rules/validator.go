package rules

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kerneural/internal/event"
)

var (
	// fencePattern captures the body of a Markdown code block.
	fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n(.*?)```")

	// A field reference closed by a second sigil: %user.name%
	selfTerminatedField = regexp.MustCompile(`%[A-Za-z0-9_.]+%`)
	// A field reference followed by an index accessor: %container.name[
	indexedField = regexp.MustCompile(`%[A-Za-z0-9_.]+\[`)
)

// requiredFields are the keys every rule must carry, in check order.
var requiredFields = []string{"rule", "desc", "condition", "output", "priority"}

// fieldAliases maps accepted keys to their canonical rule key.
var fieldAliases = map[string]string{
	"rule":        "rule",
	"name":        "rule",
	"desc":        "desc",
	"description": "desc",
	"condition":   "condition",
	"output":      "output",
	"priority":    "priority",
}

// Fix records an automatic correction applied to an accepted rule.
type Fix struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Report is the result of a successful validation.
type Report struct {
	Rules []Definition `json:"rules"`
	Fixes []Fix        `json:"fixes,omitempty"`
}

// Validator is the gate between synthesized text and the rule store. It
// rejects anything the engine could fail to load and auto-fixes only what is
// locally unambiguous: unsupported keys and unknown priorities.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validation for the output template grammar.
	v.RegisterValidation("falco_output", func(fl validator.FieldLevel) bool {
		return outputViolation(fl.Field().String()) == ""
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// Validate parses candidate text and returns the cleaned batch. Any fatal
// problem in any record rejects the whole batch with a *Rejection.
func (v *Validator) Validate(candidate string) (*Report, error) {
	records, err := parseCandidate(candidate)
	if err != nil {
		return nil, err
	}

	report := &Report{Rules: make([]Definition, 0, len(records))}
	for i, node := range records {
		def, err := v.validateRecord(i, node, report)
		if err != nil {
			return nil, err
		}
		report.Rules = append(report.Rules, def)
	}

	for _, fix := range report.Fixes {
		v.logger.Warn("rule candidate auto-fixed",
			"index", fix.Index,
			"field", fix.Field,
			"fix", fix.Message,
		)
	}

	return report, nil
}

// StripFences returns the first fenced code block of text, or text unchanged
// when it has none.
func StripFences(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// parseCandidate decodes the candidate into a list of mapping nodes.
func parseCandidate(candidate string) ([]*yaml.Node, error) {
	text := strings.TrimSpace(StripFences(candidate))
	if text == "" {
		return nil, structural(-1, "candidate is empty")
	}

	dec := yaml.NewDecoder(strings.NewReader(text))
	var docs []*yaml.Node
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, structural(-1, "invalid YAML: %v", err)
		}
		docs = append(docs, &doc)
	}

	if len(docs) != 1 {
		return nil, structural(-1, "expected one YAML document, found %d", len(docs))
	}
	if len(docs[0].Content) == 0 {
		return nil, structural(-1, "candidate is empty")
	}

	root := docs[0].Content[0]
	switch root.Kind {
	case yaml.MappingNode:
		return []*yaml.Node{root}, nil
	case yaml.SequenceNode:
		if len(root.Content) == 0 {
			return nil, structural(-1, "candidate is an empty list")
		}
		for i, item := range root.Content {
			if item.Kind != yaml.MappingNode {
				return nil, structural(i, "list item is not a mapping")
			}
		}
		return root.Content, nil
	default:
		return nil, structural(-1, "candidate must be a rule mapping or a list of rule mappings")
	}
}

func (v *Validator) validateRecord(index int, node *yaml.Node, report *Report) (Definition, error) {
	values := make(map[string]string, len(requiredFields))

	for j := 0; j+1 < len(node.Content); j += 2 {
		keyNode, valueNode := node.Content[j], node.Content[j+1]
		if keyNode.Kind != yaml.ScalarNode {
			return Definition{}, structural(index, "mapping key at line %d is not a scalar", keyNode.Line)
		}

		key := strings.TrimSpace(keyNode.Value)
		canonical, supported := fieldAliases[key]
		if !supported {
			report.Fixes = append(report.Fixes, Fix{
				Index:   index,
				Field:   key,
				Message: "removed unsupported field",
			})
			continue
		}

		if _, dup := values[canonical]; dup {
			return Definition{}, &Rejection{Kind: KindStructural, Index: index, Field: canonical,
				Reason: "field is defined more than once"}
		}
		if valueNode.Kind != yaml.ScalarNode {
			return Definition{}, &Rejection{Kind: KindStructural, Index: index, Field: canonical,
				Reason: "value must be a scalar"}
		}
		if valueNode.ShortTag() == "!!null" {
			// A null value counts as an absent key.
			continue
		}
		values[canonical] = strings.TrimSpace(valueNode.Value)
	}

	for _, field := range requiredFields {
		if _, ok := values[field]; !ok {
			return Definition{}, &Rejection{Kind: KindSchema, Index: index, Field: field,
				Reason: "required field is missing"}
		}
	}

	def := Definition{
		Rule:      values["rule"],
		Desc:      values["desc"],
		Condition: values["condition"],
		Output:    values["output"],
		Priority:  values["priority"],
	}

	if err := v.validate.Struct(def); err != nil {
		return Definition{}, v.rejectionFor(index, def, err)
	}

	if p, ok := event.ParsePriority(def.Priority); ok {
		def.Priority = p.RuleKeyword()
	} else {
		report.Fixes = append(report.Fixes, Fix{
			Index:   index,
			Field:   "priority",
			Message: fmt.Sprintf("coerced invalid priority %q to %s", def.Priority, DefaultPriority),
		})
		def.Priority = DefaultPriority
	}

	return def, nil
}

// rejectionFor converts the first struct validation failure into a Rejection.
func (v *Validator) rejectionFor(index int, def Definition, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Rejection{Kind: KindSchema, Index: index, Reason: err.Error()}
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "falco_output":
		return &Rejection{Kind: KindSyntax, Index: index, Field: fe.Field(),
			Reason: outputViolation(def.Output)}
	case "required":
		return &Rejection{Kind: KindSchema, Index: index, Field: fe.Field(),
			Reason: "value must not be empty"}
	default:
		return &Rejection{Kind: KindSchema, Index: index, Field: fe.Field(),
			Reason: fmt.Sprintf("failed %q check", fe.Tag())}
	}
}

// outputViolation describes the first illegal field reference in an output
// template, or returns "" when the template is acceptable.
func outputViolation(output string) string {
	if m := selfTerminatedField.FindString(output); m != "" {
		return fmt.Sprintf("field reference %q must not be closed with %%", m)
	}
	if m := indexedField.FindString(output); m != "" {
		return fmt.Sprintf("field reference %q must not use an index accessor", m)
	}
	return ""
}
