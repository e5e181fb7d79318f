// Package modes defines the dashboard mode model: the built-in catalog,
// palette derivation, switch-phrase detection, and LLM-backed generation
// of modes for arbitrary industries.
//
// A Mode bundles everything the frontend needs to rebrand itself
// (theme, tabs, metrics) with the system prompt the assistant uses while
// that mode is active. The system prompt never leaves the server.
package modes

// Theme is a mode's color palette. Field names marshal with the
// snake_case keys the dashboard frontend expects.
type Theme struct {
	Primary    string `json:"primary" yaml:"primary"`
	Secondary  string `json:"secondary" yaml:"secondary"`
	Background string `json:"background" yaml:"background"`
	Surface    string `json:"surface" yaml:"surface"`
	Text       string `json:"text" yaml:"text"`
	TextMuted  string `json:"text_muted" yaml:"text_muted"`
}

// Tab is one navigation entry in the dashboard shell.
type Tab struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Icon  string `json:"icon" yaml:"icon"`
}

// Metric is a headline KPI shown when a mode activates. Value is either
// pre-formatted display text or a bare number.
type Metric struct {
	Label string `json:"label" yaml:"label"`
	Value any    `json:"value" yaml:"value"`
	Unit  string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Mode is a complete industry configuration. The JSON tags produce the
// payload shape clients receive in mode_switch envelopes; SystemPrompt
// is deliberately excluded from that shape.
type Mode struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	CompanyName    string   `json:"company_name" yaml:"company_name"`
	Tagline        string   `json:"tagline" yaml:"tagline"`
	Theme          Theme    `json:"theme" yaml:"theme"`
	Tabs           []Tab    `json:"tabs" yaml:"tabs"`
	SystemPrompt   string   `json:"-" yaml:"system_prompt"`
	DefaultMetrics []Metric `json:"defaultMetrics" yaml:"default_metrics"`
}
