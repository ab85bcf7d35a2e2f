// Package agent runs the tool-calling loop: it sends the conversation to the
// language model, executes any tool calls the model requests, feeds the
// results back, and repeats until the model answers in text or the round
// budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"github.com/coursekit/coursekit/internal/search"
)

// ErrCompletion indicates the model call itself failed. Always fatal for the
// current query; tool-level problems never surface as this.
var ErrCompletion = errors.New("completion failed")

// systemPrompt steers the model toward tool use for course questions and
// plain answers for general knowledge. Kept static so it is never rebuilt
// per request.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to comprehensive tools for course information.

Available Tools:
1. **search_course_content**: For finding specific course content and detailed educational materials
2. **get_course_outline**: For retrieving complete course outlines including title, course link, and all lessons with their numbers and titles

Tool Usage Guidelines:
- **Sequential tool calling**: You can make multiple rounds of tool calls (maximum 2 rounds) to gather comprehensive information
- **Strategic approach**: Use results from first tools to inform second round of searches when needed
- **Round 1 examples**: Get course outline to identify relevant lessons, search for basic content
- **Round 2 examples**: Search specific lesson content based on outline results, get additional details from identified courses
- Use **search_course_content** for questions about specific course content and detailed educational materials
- Use **get_course_outline** for questions about course structure, lesson lists, or when users ask for a course outline/overview
- Synthesize tool results into accurate, fact-based responses
- If tools yield no results, state this clearly without offering alternatives

Response Protocol:
- **General knowledge questions**: Answer using existing knowledge without using tools
- **Course content questions**: Use search_course_content tool first, then answer
- **Course outline questions**: Use get_course_outline tool first, then answer
- **Course structure/overview questions**: Use get_course_outline tool to provide complete course information including title, course link, and all lessons
- **Complex queries**: Use sequential tools strategically (e.g., get outline, then search specific content)
- **No meta-commentary**:
 - Provide direct answers only, no reasoning process, tool explanations, or question-type analysis
 - Do not mention "based on the search results" or "using the outline tool"

For outline responses, always include:
- Course title
- Course link (if available)
- Complete list of lessons with lesson numbers and titles

All responses must be:
1. **Brief, Concise and focused** - Get to the point quickly
2. **Educational** - Maintain instructional value
3. **Clear** - Use accessible language
4. **Example-supported** - Include relevant examples when they aid understanding
Provide only the direct answer to what was asked.`

// CompletionModel is the slice of the model client the loop consumes.
// *anthropic.LLM and *openai.LLM both satisfy it.
type CompletionModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// ToolExecutor dispatches tool calls and advertises their schemas.
type ToolExecutor interface {
	Definitions() []llms.Tool
	Execute(ctx context.Context, name string, args map[string]any) (search.Outcome, error)
}

// Config holds loop construction parameters.
type Config struct {
	// Model is the model identifier passed on every call.
	Model string

	// MaxToolRounds caps how many rounds of tool execution a single query may
	// trigger. The final call after an exhausted budget advertises no tools,
	// forcing a text answer.
	MaxToolRounds int

	// Temperature and MaxTokens are forwarded on every call.
	Temperature float64
	MaxTokens   int

	// Limiter throttles model calls. Nil disables throttling.
	Limiter *rate.Limiter

	// Logger for per-round debugging. Nil uses slog.Default().
	Logger *slog.Logger
}

// Loop is a reusable, stateless tool-calling loop. All per-query state lives
// in Run's locals, so one Loop serves concurrent queries.
type Loop struct {
	model  CompletionModel
	tools  ToolExecutor
	cfg    Config
	logger *slog.Logger
}

// Result is the outcome of one completed query.
type Result struct {
	// Answer is the model's final text.
	Answer string

	// Sources are the provenance references collected from every tool
	// execution, in request order.
	Sources []search.Source

	// Rounds is how many tool rounds actually ran.
	Rounds int
}

// New returns a loop over model and tools.
func New(model CompletionModel, tools ToolExecutor, cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{model: model, tools: tools, cfg: cfg, logger: logger}
}

// Run answers one query. history carries prior exchanges as alternating
// user/assistant messages; it is read, never modified.
func (l *Loop) Run(ctx context.Context, query string, history []llms.MessageContent) (*Result, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, query))

	var sources []search.Source
	rounds := 0

	for {
		allowTools := rounds < l.cfg.MaxToolRounds

		choice, err := l.complete(ctx, messages, allowTools)
		if err != nil {
			return nil, err
		}

		if !allowTools || len(choice.ToolCalls) == 0 {
			l.logger.Debug("query answered", "rounds", rounds, "sources", len(sources))
			return &Result{Answer: choice.Content, Sources: sources, Rounds: rounds}, nil
		}

		messages = append(messages, assistantTurn(choice))

		for _, tc := range choice.ToolCalls {
			outcome := l.executeCall(ctx, tc)
			if outcome.err != nil {
				return nil, outcome.err
			}
			sources = append(sources, outcome.sources...)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       tc.FunctionCall.Name,
					Content:    outcome.text,
				}},
			})
		}

		rounds++
	}
}

// complete makes one model call, advertising tools only while the round
// budget allows another tool round.
func (l *Loop) complete(ctx context.Context, messages []llms.MessageContent, allowTools bool) (*llms.ContentChoice, error) {
	if l.cfg.Limiter != nil {
		if err := l.cfg.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for rate limiter: %w", ErrCompletion, err)
		}
	}

	opts := []llms.CallOption{
		llms.WithModel(l.cfg.Model),
		llms.WithTemperature(l.cfg.Temperature),
		llms.WithMaxTokens(l.cfg.MaxTokens),
	}
	if allowTools {
		opts = append(opts, llms.WithTools(l.tools.Definitions()))
	}

	resp, err := l.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", ErrCompletion)
	}
	return resp.Choices[0], nil
}

type callOutcome struct {
	text    string
	sources []search.Source
	err     error
}

// executeCall decodes one tool call's arguments and dispatches it. Malformed
// arguments become a tool-result string the model can react to; only executor
// errors propagate.
func (l *Loop) executeCall(ctx context.Context, tc llms.ToolCall) callOutcome {
	name := tc.FunctionCall.Name

	args, err := decodeArgs(tc.FunctionCall.Arguments)
	if err != nil {
		l.logger.Warn("malformed tool arguments", "tool", name, "error", err)
		return callOutcome{text: fmt.Sprintf("Error: invalid arguments for tool '%s'", name)}
	}

	out, err := l.tools.Execute(ctx, name, args)
	if err != nil {
		return callOutcome{err: fmt.Errorf("executing tool %s: %w", name, err)}
	}

	l.logger.Debug("tool executed", "tool", name, "sources", len(out.Sources))
	return callOutcome{text: out.Text, sources: out.Sources}
}

func decodeArgs(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// assistantTurn rebuilds the model's tool-use response as a conversation
// message, preserving any text alongside the tool calls.
func assistantTurn(choice *llms.ContentChoice) llms.MessageContent {
	msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		msg.Parts = append(msg.Parts, llms.TextContent{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
		msg.Parts = append(msg.Parts, tc)
	}
	return msg
}
