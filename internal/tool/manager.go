package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"go.uber.org/zap"
)

// Tool-level error taxonomy. All are recoverable within a live conversation:
// the executor surfaces them to the model as failed tool output and the call
// continues. Nothing here is retried automatically.
var (
	// ErrToolValidation indicates malformed tool input. The agent should ask
	// the caller to repeat or clarify.
	ErrToolValidation = errors.New("tool input validation failed")

	// ErrStorageUnavailable indicates the document store was never
	// initialized (e.g. missing service credentials at process start).
	ErrStorageUnavailable = errors.New("storage not initialized")

	// ErrUnknownTool indicates the model invoked a tool that was never
	// registered for this session.
	ErrUnknownTool = errors.New("unknown tool")
)

// ExecutorFunc executes a tool invocation. argumentsJSON is the raw JSON
// argument payload produced by the model; the returned string is relayed
// back to the model verbatim.
type ExecutorFunc func(ctx context.Context, argumentsJSON string) (string, error)

// Definition defines a tool with its metadata and execution logic. Parameters
// is a JSON schema in the flat shape the OpenAI Realtime API expects.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Execute     ExecutorFunc
}

// Registry holds the tools bound to one agent session. Each call bridge gets
// its own registry so executors can close over call attribution.
type Registry struct {
	tools map[string]*Definition
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Definition)}
}

// Register adds a tool to the registry, replacing any previous definition
// with the same name.
func (r *Registry) Register(def *Definition) {
	if _, exists := r.tools[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.tools[def.Name] = def
}

// Definitions returns the function tool definitions for the OpenAI Realtime
// API session configuration, in registration order.
func (r *Registry) Definitions() []interface{} {
	defs := make([]interface{}, 0, len(r.order))
	for _, name := range r.order {
		def := r.tools[name]
		defs = append(defs, map[string]interface{}{
			"type":        "function",
			"name":        def.Name,
			"description": def.Description,
			"parameters":  def.Parameters,
		})
	}
	return defs
}

// Execute routes a tool invocation to its registered executor.
func (r *Registry) Execute(ctx context.Context, name, argumentsJSON string) (string, error) {
	def, ok := r.tools[name]
	if !ok || def.Execute == nil {
		logger.Base().Warn("model invoked unregistered tool", zap.String("tool", name))
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return def.Execute(ctx, argumentsJSON)
}
