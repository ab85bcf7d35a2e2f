package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// ScriptedModel is a language-model client that replays canned responses in
// order. It records every request so tests can assert on the message
// sequence and the resolved call options (for example, whether tool
// definitions were advertised).
type ScriptedModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	err       error

	// Calls holds the message sequence of each request, in order.
	Calls [][]llms.MessageContent

	// Options holds the resolved call options of each request, in order.
	Options []llms.CallOptions
}

// NewScriptedModel returns a model that replies with the given responses,
// one per call. A call beyond the script fails the request.
func NewScriptedModel(responses ...*llms.ContentResponse) *ScriptedModel {
	return &ScriptedModel{responses: responses}
}

// NewFailingModel returns a model whose every call fails with err.
func NewFailingModel(err error) *ScriptedModel {
	return &ScriptedModel{err: err}
}

// GenerateContent implements the completion interface consumed by the agent
// loop.
func (m *ScriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Deep-ish copy: the loop appends to its own slice, but guard against
	// aliasing between recorded calls.
	snapshot := make([]llms.MessageContent, len(messages))
	copy(snapshot, messages)
	m.Calls = append(m.Calls, snapshot)

	var resolved llms.CallOptions
	for _, opt := range options {
		opt(&resolved)
	}
	m.Options = append(m.Options, resolved)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, errors.New("scripted model: no responses left")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

// CallCount returns how many requests the model has served.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// TextResponse builds a plain final-answer response.
func TextResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{Content: text, StopReason: "stop"},
		},
	}
}

// ToolCallResponse builds a response requesting the given tool calls.
func ToolCallResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{StopReason: "tool_calls", ToolCalls: calls},
		},
	}
}

// ToolCall builds a single tool-call request with JSON-encoded arguments.
func ToolCall(id, name, argsJSON string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: argsJSON,
		},
	}
}
