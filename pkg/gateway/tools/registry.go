// Package tools implements the gateway's dashboard tools: the definitions
// advertised to the model, schema validation of incoming arguments, and
// execution. The standard tools are pass-throughs; the gateway validates and
// forwards, the client renders.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/xeipuuv/gojsonschema"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/core/realtime"
	"github.com/prestolabs/presto/pkg/gateway/metrics"
)

// Definition describes one callable tool: its wire name, a model-facing
// description, and a JSON-schema object constraining its arguments.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Realtime returns the flattened tool shape realtime session configuration
// expects: type/name/description/parameters at the top level rather than
// nested under a function key.
func (d Definition) Realtime() realtime.ToolDef {
	return realtime.ToolDef{
		Type:        "function",
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.ParametersMap(),
	}
}

// ParametersMap returns the parameter schema decoded into a generic map for
// SDKs that take schemas that way. NewRegistry guarantees the schema is a
// valid JSON object for every registered tool.
func (d Definition) ParametersMap() map[string]any {
	var params map[string]any
	if err := json.Unmarshal(d.Parameters, &params); err != nil {
		return map[string]any{}
	}
	return params
}

// Executor implements one tool. Execute receives arguments that already
// passed schema validation.
type Executor interface {
	Name() string
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
}

type registration struct {
	executor Executor
	schema   *gojsonschema.Schema
}

// Registry indexes executors by name and validates arguments against each
// tool's compiled parameter schema before execution.
type Registry struct {
	byName  map[string]registration
	ordered []string
}

// NewRegistry compiles every executor's parameter schema and indexes the
// executors by name.
func NewRegistry(executors ...Executor) (*Registry, error) {
	registry := &Registry{byName: make(map[string]registration, len(executors))}
	for _, ex := range executors {
		if ex == nil {
			continue
		}
		name := strings.TrimSpace(ex.Name())
		if name == "" {
			return nil, errors.New("tool executor has no name")
		}
		if _, exists := registry.byName[name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		def := ex.Definition()
		if len(def.Parameters) == 0 {
			return nil, fmt.Errorf("tool %q has no parameter schema", name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(def.Parameters))
		if err != nil {
			return nil, fmt.Errorf("compile parameter schema for tool %q: %w", name, err)
		}
		registry.byName[name] = registration{executor: ex, schema: schema}
		registry.ordered = append(registry.ordered, name)
	}
	return registry, nil
}

// Dashboard returns a registry with the standard visualization tools every
// mode's system prompt advertises.
func Dashboard() (*Registry, error) {
	return NewRegistry(ShowChartExecutor{}, ShowMetricsExecutor{})
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns every tool definition in registration order, which is
// the order they are advertised in session configuration.
func (r *Registry) Definitions() []Definition {
	if r == nil {
		return nil
	}
	out := make([]Definition, 0, len(r.ordered))
	for _, name := range r.ordered {
		out = append(out, r.byName[name].executor.Definition())
	}
	return out
}

// RealtimeTools returns every definition in the flattened realtime shape.
func (r *Registry) RealtimeTools() []realtime.ToolDef {
	defs := r.Definitions()
	out := make([]realtime.ToolDef, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.Realtime())
	}
	return out
}

// CompletionTools returns every definition in the chat-completions shape,
// with the schema nested under a function key.
func (r *Registry) CompletionTools() []openai.ChatCompletionToolParam {
	defs := r.Definitions()
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  shared.FunctionParameters(def.ParametersMap()),
			},
		})
	}
	return out
}

// Execute validates rawArgs against the named tool's schema and runs it. It
// always returns a result payload to forward: on failure the payload is an
// error object the model can read and recover from conversationally, and the
// returned error carries the failure for logging. The session survives every
// failure mode here.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs json.RawMessage) (json.RawMessage, error) {
	name = strings.TrimSpace(name)
	if r == nil {
		cause := errors.New("tool registry is not configured")
		return errorResult(cause.Error()), core.NewToolExecutionError(name, cause)
	}

	reg, ok := r.byName[name]
	if !ok {
		metrics.RecordToolExecution(name, "error")
		return errorResult("unknown tool: " + name), core.NewToolExecutionError(name, errors.New("unknown tool"))
	}

	// The model may send no arguments at all for a call.
	if len(bytes.TrimSpace(rawArgs)) == 0 {
		rawArgs = json.RawMessage("{}")
	}

	outcome, err := reg.schema.Validate(gojsonschema.NewBytesLoader(rawArgs))
	if err != nil {
		metrics.RecordToolExecution(name, "error")
		cause := fmt.Errorf("parse arguments: %w", err)
		return errorResult(cause.Error()), core.NewToolExecutionError(name, cause)
	}
	if !outcome.Valid() {
		details := make([]string, 0, len(outcome.Errors()))
		for _, desc := range outcome.Errors() {
			details = append(details, desc.String())
		}
		metrics.RecordToolExecution(name, "error")
		cause := fmt.Errorf("invalid arguments: %s", strings.Join(details, "; "))
		return errorResult(cause.Error()), core.NewToolExecutionError(name, cause)
	}

	var args map[string]any
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		metrics.RecordToolExecution(name, "error")
		cause := fmt.Errorf("parse arguments: %w", err)
		return errorResult(cause.Error()), core.NewToolExecutionError(name, cause)
	}

	result, err := reg.executor.Execute(ctx, args)
	if err != nil {
		metrics.RecordToolExecution(name, "error")
		return errorResult(err.Error()), core.NewToolExecutionError(name, err)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		metrics.RecordToolExecution(name, "error")
		cause := fmt.Errorf("encode result: %w", err)
		return errorResult(cause.Error()), core.NewToolExecutionError(name, cause)
	}
	metrics.RecordToolExecution(name, "success")
	return encoded, nil
}

func errorResult(message string) json.RawMessage {
	encoded, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return json.RawMessage(`{"error":"tool execution failed"}`)
	}
	return encoded
}
