package tools

import (
	"context"
	"encoding/json"
)

// Standard dashboard tool names.
const (
	ToolShowChart   = "show_chart"
	ToolShowMetrics = "show_metrics"
)

const showChartSchema = `{
	"type": "object",
	"properties": {
		"chart_type": {
			"type": "string",
			"enum": ["line", "bar", "pie", "area"],
			"description": "The type of chart to display"
		},
		"title": {
			"type": "string",
			"description": "Chart title"
		},
		"data": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"label": {"type": "string"},
					"value": {"type": "number"}
				},
				"required": ["label", "value"]
			},
			"description": "Data points for the chart"
		}
	},
	"required": ["chart_type", "title", "data"]
}`

const showMetricsSchema = `{
	"type": "object",
	"properties": {
		"metrics": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"label": {
						"type": "string",
						"description": "The metric name/label"
					},
					"value": {
						"type": "number",
						"description": "The metric value"
					},
					"unit": {
						"type": "string",
						"description": "The unit of measurement (e.g., '$', '%', 'users')"
					}
				},
				"required": ["label", "value", "unit"]
			},
			"description": "Array of metrics to display"
		}
	},
	"required": ["metrics"]
}`

// ShowChartExecutor puts a chart on the dashboard. The result is the
// validated arguments, filtered to the documented fields.
type ShowChartExecutor struct{}

func (ShowChartExecutor) Name() string { return ToolShowChart }

func (ShowChartExecutor) Definition() Definition {
	return Definition{
		Name:        ToolShowChart,
		Description: "Display a chart or visualization in the dashboard. Use this when the user asks to see data visually, wants a graph, or requests data comparison.",
		Parameters:  json.RawMessage(showChartSchema),
	}
}

func (ShowChartExecutor) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{
		"chart_type": args["chart_type"],
		"title":      args["title"],
		"data":       args["data"],
	}, nil
}

// ShowMetricsExecutor replaces the dashboard's metrics panel contents.
type ShowMetricsExecutor struct{}

func (ShowMetricsExecutor) Name() string { return ToolShowMetrics }

func (ShowMetricsExecutor) Definition() Definition {
	return Definition{
		Name:        ToolShowMetrics,
		Description: "Update the metrics panel with key performance indicators. Use this when the user asks about specific numbers, KPIs, or wants to see summary statistics.",
		Parameters:  json.RawMessage(showMetricsSchema),
	}
}

func (ShowMetricsExecutor) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{
		"metrics": args["metrics"],
	}, nil
}
