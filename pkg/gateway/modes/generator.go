package modes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/prestolabs/presto/pkg/core"
)

const (
	defaultPrimaryColor = "#4CAF50"
	defaultTabIcon      = "📋"
)

// generationSystemPrompt asks the model for a complete mode
// configuration as bare JSON. Only the primary color comes from the
// model; the rest of the palette is derived algorithmically.
const generationSystemPrompt = `You are a mode configuration generator for a multi-industry dashboard app.
Generate a complete configuration for the requested industry.

You MUST respond with valid JSON only. No other text. Use this exact structure:
{
  "industry_name": "Display Name",
  "industry_id": "snake_case_id",
  "company_name": "Company Name",
  "tagline": "Company tagline/slogan",
  "primary_color": "#HexColor",
  "personality_traits": ["trait1", "trait2", "trait3"],
  "tabs": [
    {"id": "dashboard", "label": "Dashboard", "icon": "📊"},
    {"id": "tab2", "label": "Tab 2", "icon": "📋"},
    {"id": "settings", "label": "Settings", "icon": "⚙️"}
  ],
  "default_metrics": [
    {"label": "Metric 1", "value": "$1,234", "unit": null},
    {"label": "Metric 2", "value": "567", "unit": "/day"}
  ],
  "welcome_message": "Welcome message here",
  "system_prompt_fragment": "AI context for this industry"
}

Guidelines:
- company_name: IMPORTANT - If the user specifies a company name (like "H-E-B", "Walmart", "Joe's Tacos"), use EXACTLY that name. Only make up a fictional name if no company name was provided.
- primary_color: Choose a color that represents this industry (hex format, e.g., "#4CAF50"). If it's a real company, try to use their brand color.
- tabs: Include 4-5 relevant tabs. Always include "dashboard" as the first tab and "settings" as the last tab.
- default_metrics: Include exactly 4 key metrics/KPIs relevant to this industry with realistic pre-formatted values.
- personality_traits: 3-5 traits that define how the AI assistant should behave for this industry.
- system_prompt_fragment: Additional context for the AI including industry jargon, common questions, and domain knowledge. 2-3 sentences.
- welcome_message: Friendly greeting when entering this mode. Should feel warm and industry-appropriate.

Be creative but realistic. The dashboard should feel purpose-built for this industry.
Choose colors that have industry associations (e.g., green for eco/health, blue for finance/trust, purple for luxury).`

// toolsContext is appended to every mode system prompt so the
// assistant knows about the dashboard's visualization tools.
const toolsContext = `
You have access to visualization tools to display data in the dashboard:
- show_chart: Display charts (line, bar, pie, area) with data points
- show_metrics: Display key metrics/KPIs in the metrics panel

IMPORTANT: When you use a visualization tool, you MUST ALWAYS also provide a brief text response describing what you're showing.

For historical data (trends over time, usage patterns, etc.), generate plausible data going back 12 months with monthly data points, showing realistic patterns. This is a demo app - create compelling visualizations!

CHART PREFERENCE: For time-series data (anything "over time"), always use LINE charts with 12 monthly data points. Use BAR charts only for comparing discrete categories. Use PIE charts for showing composition/breakdown.`

// generationConfig mirrors the JSON structure the model returns.
type generationConfig struct {
	IndustryName         string   `json:"industry_name"`
	IndustryID           string   `json:"industry_id"`
	CompanyName          string   `json:"company_name"`
	Tagline              string   `json:"tagline"`
	PrimaryColor         string   `json:"primary_color"`
	PersonalityTraits    []string `json:"personality_traits"`
	Tabs                 []Tab    `json:"tabs"`
	DefaultMetrics       []Metric `json:"default_metrics"`
	WelcomeMessage       string   `json:"welcome_message"`
	SystemPromptFragment string   `json:"system_prompt_fragment"`
}

// Backend produces one completion for a system/user prompt pair.
type Backend interface {
	// Complete returns the model's raw text response.
	Complete(ctx context.Context, system, user string) (string, error)
	// Provider names the backend for logs and metrics.
	Provider() string
}

// Generator builds complete modes for arbitrary industries, asking a
// Backend for the creative decisions and deriving the rest.
type Generator struct {
	backend Backend
	log     *slog.Logger
}

// NewGenerator returns a generator over the given backend.
func NewGenerator(backend Backend, logger *slog.Logger) (*Generator, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{backend: backend, log: logger}, nil
}

// Provider names the underlying backend.
func (g *Generator) Provider() string {
	return g.backend.Provider()
}

// Generate produces a mode for industry. fullRequest, when non-empty,
// is the user's whole utterance and may carry a company name the model
// is told to honor. On failure the caller stays on its current mode.
func (g *Generator) Generate(ctx context.Context, industry, fullRequest string) (*Mode, error) {
	userPrompt := fullRequest
	if userPrompt == "" {
		userPrompt = "Generate a dashboard configuration for: " + industry
	}

	g.log.Info("generating mode",
		"industry", industry,
		"provider", g.backend.Provider())

	raw, err := g.backend.Complete(ctx, generationSystemPrompt, userPrompt)
	if err != nil {
		return nil, core.NewGenerationError("mode generation call failed", err)
	}

	mode, err := buildMode(industry, raw)
	if err != nil {
		return nil, err
	}

	g.log.Info("mode generated", "id", mode.ID, "name", mode.Name)
	return mode, nil
}

// buildMode parses the model's JSON and assembles a Mode, deriving the
// theme from the primary color and filling defaults for anything the
// model omitted.
func buildMode(industry, raw string) (*Mode, error) {
	jsonStr := stripFences(strings.TrimSpace(raw))
	if jsonStr == "" {
		return nil, core.NewGenerationError("model returned an empty response", nil)
	}

	var cfg generationConfig
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return nil, core.NewGenerationError("model returned malformed JSON", err)
	}

	primary := cfg.PrimaryColor
	if primary == "" {
		primary = defaultPrimaryColor
	}
	theme, err := DerivePalette(primary)
	if err != nil {
		return nil, core.NewGenerationError("model returned an invalid primary color", err)
	}

	mode := &Mode{
		ID:             cfg.IndustryID,
		Name:           cfg.IndustryName,
		CompanyName:    cfg.CompanyName,
		Tagline:        cfg.Tagline,
		Theme:          theme,
		SystemPrompt:   buildFullSystemPrompt(cfg),
		DefaultMetrics: cfg.DefaultMetrics,
	}
	if mode.ID == "" {
		mode.ID = strings.ReplaceAll(strings.ToLower(industry), " ", "_")
	}
	if mode.Name == "" {
		mode.Name = titleCase(industry)
	}
	if mode.CompanyName == "" {
		mode.CompanyName = titleCase(industry) + " Co."
	}
	if mode.Tagline == "" {
		mode.Tagline = fmt.Sprintf("Your trusted %s partner", industry)
	}

	mode.Tabs = make([]Tab, 0, len(cfg.Tabs))
	for _, t := range cfg.Tabs {
		if t.Icon == "" {
			t.Icon = defaultTabIcon
		}
		mode.Tabs = append(mode.Tabs, t)
	}
	return mode, nil
}

// buildFullSystemPrompt combines the generated fragment with the
// personality traits and the shared tools context.
func buildFullSystemPrompt(cfg generationConfig) string {
	industry := cfg.IndustryName
	if industry == "" {
		industry = "general"
	}
	industry = strings.ToLower(industry)
	traits := strings.Join(cfg.PersonalityTraits, ", ")

	return fmt.Sprintf(`You are a helpful assistant for a %s dashboard. %s

Your personality: %s

Keep responses clear, professional, and concise. Speak naturally like a friendly %s expert.
%s`, industry, cfg.SystemPromptFragment, traits, industry, toolsContext)
}

// stripFences removes a surrounding markdown code block, which some
// models add despite the JSON-only instruction.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// titleCase uppercases the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
