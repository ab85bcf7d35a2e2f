package search

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// Dispatcher routes tool calls to registered tools by name and exposes their
// definitions for advertising to the model. Registration happens at startup;
// after that the dispatcher is read-only and safe for concurrent use.
type Dispatcher struct {
	tools map[string]Tool
	order []string
}

// NewDispatcher returns a dispatcher with the given tools registered in order.
func NewDispatcher(tools ...Tool) (*Dispatcher, error) {
	d := &Dispatcher{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := d.Register(t); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Register adds a tool. Names must be unique and non-empty.
func (d *Dispatcher) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := d.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	d.tools[name] = t
	d.order = append(d.order, name)
	return nil
}

// Definitions returns tool schemas in registration order.
func (d *Dispatcher) Definitions() []llms.Tool {
	defs := make([]llms.Tool, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.tools[name].Definition())
	}
	return defs
}

// Execute runs the named tool. An unknown name is reported to the model as a
// tool result, not an error, so a hallucinated tool call never kills a query.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any) (Outcome, error) {
	t, ok := d.tools[name]
	if !ok {
		return Outcome{Text: fmt.Sprintf("Tool '%s' not found", name)}, nil
	}
	return t.Execute(ctx, args)
}
