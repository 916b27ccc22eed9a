// Package api provides the HTTP client the TUI uses to poll kerneural.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client handles API communication with the pipeline process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Status mirrors the pipeline status document.
type Status struct {
	Phase             string    `json:"phase"`
	LastAction        string    `json:"last_action"`
	EventCount        uint64    `json:"event_count"`
	CycleID           string    `json:"cycle_id"`
	UpdatedAt         time.Time `json:"updated_at"`
	RulesApplied      uint64    `json:"rules_applied"`
	Rejections        uint64    `json:"rejections"`
	SynthesisFailures uint64    `json:"synthesis_failures"`
	ReloadFailures    uint64    `json:"reload_failures"`
}

// Alert is one recently received engine alert.
type Alert struct {
	Time      string `json:"time"`
	Priority  string `json:"priority"`
	Rule      string `json:"rule"`
	Container string `json:"container"`
	Process   string `json:"process"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Status Status  `json:"status"`
	Alerts []Alert `json:"alerts"`
}

// Rule is one rule from the store.
type Rule struct {
	Rule      string `json:"rule"`
	Desc      string `json:"desc"`
	Condition string `json:"condition"`
	Output    string `json:"output"`
	Priority  string `json:"priority"`
}

// RulesResponse is returned by GET /rules.
type RulesResponse struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
	Rules []Rule `json:"rules"`
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetStatus fetches the pipeline status and up to alerts recent alerts.
func (c *Client) GetStatus(alerts int) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(fmt.Sprintf("/status?alerts=%d", alerts), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRules fetches the persisted rules.
func (c *Client) GetRules() (*RulesResponse, error) {
	var resp RulesResponse
	if err := c.get("/rules", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Message)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
