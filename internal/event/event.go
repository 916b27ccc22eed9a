// Package event defines the Falco alert record and reads it from the engine's
// JSON output stream.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse is returned when a stream line is not a structured event.
	ErrParse = errors.New("event: malformed record")
	// ErrStreamIO is returned when the event stream cannot be opened or read.
	ErrStreamIO = errors.New("event: stream unavailable")
)

// Priority is a Falco severity level.
type Priority string

// Severity vocabulary, most to least severe.
const (
	PriorityEmergency     Priority = "Emergency"
	PriorityAlert         Priority = "Alert"
	PriorityCritical      Priority = "Critical"
	PriorityError         Priority = "Error"
	PriorityWarning       Priority = "Warning"
	PriorityNotice        Priority = "Notice"
	PriorityInformational Priority = "Informational"
	PriorityDebug         Priority = "Debug"
)

// Priorities lists the vocabulary in descending severity.
var Priorities = []Priority{
	PriorityEmergency,
	PriorityAlert,
	PriorityCritical,
	PriorityError,
	PriorityWarning,
	PriorityNotice,
	PriorityInformational,
	PriorityDebug,
}

// ParsePriority resolves a priority name case-insensitively.
// "info" is accepted as an alias for Informational.
func ParsePriority(s string) (Priority, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "info" {
		return PriorityInformational, true
	}
	for _, p := range Priorities {
		if strings.ToLower(string(p)) == name {
			return p, true
		}
	}
	return "", false
}

// RuleKeyword returns the spelling Falco expects in a rule file.
func (p Priority) RuleKeyword() string {
	if p == PriorityInformational {
		return "INFO"
	}
	return strings.ToUpper(string(p))
}

// Event is one alert emitted by the detection engine.
type Event struct {
	Time         string         `json:"time"`
	Priority     Priority       `json:"priority"`
	Rule         string         `json:"rule"`
	Output       string         `json:"output,omitempty"`
	OutputFields map[string]any `json:"output_fields,omitempty"`
	Hostname     string         `json:"hostname,omitempty"`
	Source       string         `json:"source,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
}

// Parse decodes one stream line. The line must hold a JSON object.
func Parse(line []byte) (Event, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Event{}, fmt.Errorf("%w: not a JSON object", ErrParse)
	}

	var ev Event
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return ev, nil
}

// Field returns an output field rendered as a string, or "" when absent.
func (e Event) Field(name string) string {
	v, ok := e.OutputFields[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Serialize renders the event as the JSON document handed to the synthesizer.
func (e Event) Serialize() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}
	return string(data), nil
}
