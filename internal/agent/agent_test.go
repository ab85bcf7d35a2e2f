package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/coursekit/coursekit/internal/log"
	"github.com/coursekit/coursekit/internal/search"
	"github.com/coursekit/coursekit/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubExecutor returns a canned outcome per tool name and records the
// dispatch order.
type stubExecutor struct {
	defs     []llms.Tool
	outcomes map[string]search.Outcome
	err      error
	executed []string
}

func (s *stubExecutor) Definitions() []llms.Tool { return s.defs }

func (s *stubExecutor) Execute(_ context.Context, name string, _ map[string]any) (search.Outcome, error) {
	s.executed = append(s.executed, name)
	if s.err != nil {
		return search.Outcome{}, s.err
	}
	out, ok := s.outcomes[name]
	if !ok {
		out = search.Outcome{Text: "Tool '" + name + "' not found"}
	}
	return out, nil
}

func twoToolDefs() []llms.Tool {
	return []llms.Tool{
		{Type: "function", Function: &llms.FunctionDefinition{Name: "search_course_content"}},
		{Type: "function", Function: &llms.FunctionDefinition{Name: "get_course_outline"}},
	}
}

func newLoop(model CompletionModel, tools ToolExecutor) *Loop {
	return New(model, tools, Config{
		Model:         "test-model",
		MaxToolRounds: 2,
		MaxTokens:     800,
		Logger:        log.NewNop(),
	})
}

func TestDirectAnswerWithoutTools(t *testing.T) {
	model := testutil.NewScriptedModel(testutil.TextResponse("General knowledge answer."))
	exec := &stubExecutor{defs: twoToolDefs()}

	result, err := newLoop(model, exec).Run(context.Background(), "What is 2+2?", nil)
	require.NoError(t, err)

	assert.Equal(t, "General knowledge answer.", result.Answer)
	assert.Zero(t, result.Rounds)
	assert.Empty(t, result.Sources)
	assert.Equal(t, 1, model.CallCount())

	// The first call still advertises both tools.
	require.Len(t, model.Options, 1)
	assert.Len(t, model.Options[0].Tools, 2)
	assert.Empty(t, exec.executed)
}

func TestSingleToolRound(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.ToolCallResponse(testutil.ToolCall("call_1", "search_course_content", `{"query":"retrieval"}`)),
		testutil.TextResponse("Lesson 3 covers retrieval."),
	)
	exec := &stubExecutor{
		defs: twoToolDefs(),
		outcomes: map[string]search.Outcome{
			"search_course_content": {
				Text:    "[Course - Lesson 3]\nretrieval content",
				Sources: []search.Source{{Text: "Course - Lesson 3", URL: "https://example.com/3"}},
			},
		},
	}

	result, err := newLoop(model, exec).Run(context.Background(), "What does lesson 3 cover?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Lesson 3 covers retrieval.", result.Answer)
	assert.Equal(t, 1, result.Rounds)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "Course - Lesson 3", result.Sources[0].Text)
	assert.Equal(t, []string{"search_course_content"}, exec.executed)

	// Second call carries the assistant tool-use turn and the paired result.
	require.Equal(t, 2, model.CallCount())
	second := model.Calls[1]
	var toolMsg *llms.MessageContent
	for i := range second {
		if second[i].Role == llms.ChatMessageTypeTool {
			toolMsg = &second[i]
		}
	}
	require.NotNil(t, toolMsg, "tool result message missing")
	resp, ok := toolMsg.Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call_1", resp.ToolCallID)
	assert.Equal(t, "[Course - Lesson 3]\nretrieval content", resp.Content)
}

func TestRoundBudgetForcesFinalAnswer(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.ToolCallResponse(testutil.ToolCall("call_1", "get_course_outline", `{"course_name":"MCP"}`)),
		testutil.ToolCallResponse(testutil.ToolCall("call_2", "search_course_content", `{"query":"servers"}`)),
		testutil.TextResponse("Final synthesis."),
	)
	exec := &stubExecutor{defs: twoToolDefs(), outcomes: map[string]search.Outcome{
		"get_course_outline":    {Text: "Course: MCP"},
		"search_course_content": {Text: "[MCP - Lesson 1]\ncontent"},
	}}

	result, err := newLoop(model, exec).Run(context.Background(), "Tell me everything", nil)
	require.NoError(t, err)

	assert.Equal(t, "Final synthesis.", result.Answer)
	assert.Equal(t, 2, result.Rounds)

	// Budget of 2 rounds means at most 3 model calls, and the last one must
	// not advertise tools so the model is forced to answer in text.
	require.Equal(t, 3, model.CallCount())
	assert.Len(t, model.Options[0].Tools, 2)
	assert.Len(t, model.Options[1].Tools, 2)
	assert.Empty(t, model.Options[2].Tools)
}

func TestSourcesAggregateInRequestOrder(t *testing.T) {
	// Two tool calls in round one, one in round two.
	model := testutil.NewScriptedModel(
		testutil.ToolCallResponse(
			testutil.ToolCall("call_1", "get_course_outline", `{"course_name":"A"}`),
			testutil.ToolCall("call_2", "search_course_content", `{"query":"first"}`),
		),
		testutil.ToolCallResponse(testutil.ToolCall("call_3", "search_course_content", `{"query":"second"}`)),
		testutil.TextResponse("done"),
	)
	exec := &orderedExecutor{defs: twoToolDefs()}

	result, err := newLoop(model, exec).Run(context.Background(), "q", nil)
	require.NoError(t, err)

	require.Len(t, result.Sources, 3)
	assert.Equal(t, "source-1", result.Sources[0].Text)
	assert.Equal(t, "source-2", result.Sources[1].Text)
	assert.Equal(t, "source-3", result.Sources[2].Text)
}

// orderedExecutor numbers each execution's source so aggregation order is
// observable.
type orderedExecutor struct {
	defs  []llms.Tool
	calls int
}

func (o *orderedExecutor) Definitions() []llms.Tool { return o.defs }

func (o *orderedExecutor) Execute(context.Context, string, map[string]any) (search.Outcome, error) {
	o.calls++
	n := o.calls
	return search.Outcome{
		Text:    "result",
		Sources: []search.Source{{Text: "source-" + string(rune('0'+n))}},
	}, nil
}

func TestUnknownToolIsReportedNotFatal(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.ToolCallResponse(testutil.ToolCall("call_1", "imaginary_tool", `{}`)),
		testutil.TextResponse("I could not use that tool."),
	)
	dispatcher, err := search.NewDispatcher()
	require.NoError(t, err)

	result, err := newLoop(model, dispatcher).Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "I could not use that tool.", result.Answer)

	resp, ok := model.Calls[1][len(model.Calls[1])-1].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "Tool 'imaginary_tool' not found", resp.Content)
}

func TestMalformedArgumentsAreReportedNotFatal(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.ToolCallResponse(testutil.ToolCall("call_1", "search_course_content", `{broken`)),
		testutil.TextResponse("recovered"),
	)
	exec := &stubExecutor{defs: twoToolDefs()}

	result, err := newLoop(model, exec).Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Answer)
	assert.Empty(t, exec.executed, "malformed arguments must not reach the executor")

	resp, ok := model.Calls[1][len(model.Calls[1])-1].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "Error: invalid arguments for tool 'search_course_content'", resp.Content)
}

func TestCompletionFailureIsFatal(t *testing.T) {
	boom := errors.New("api down")
	model := testutil.NewFailingModel(boom)
	exec := &stubExecutor{defs: twoToolDefs()}

	_, err := newLoop(model, exec).Run(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrCompletion)
	assert.ErrorIs(t, err, boom)
}

func TestToolExecutionFailureIsFatal(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.ToolCallResponse(testutil.ToolCall("call_1", "search_course_content", `{"query":"x"}`)),
	)
	boom := errors.New("retrieval unavailable")
	exec := &stubExecutor{defs: twoToolDefs(), err: boom}

	_, err := newLoop(model, exec).Run(context.Background(), "q", nil)
	assert.ErrorIs(t, err, boom)
}

func TestHistoryPrecedesQuery(t *testing.T) {
	model := testutil.NewScriptedModel(testutil.TextResponse("with context"))
	exec := &stubExecutor{defs: twoToolDefs()}
	history := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "earlier question"),
		llms.TextParts(llms.ChatMessageTypeAI, "earlier answer"),
	}

	_, err := newLoop(model, exec).Run(context.Background(), "follow-up", history)
	require.NoError(t, err)

	msgs := model.Calls[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[3].Role)
}

func TestRateLimitedLoopStillAnswers(t *testing.T) {
	model := testutil.NewScriptedModel(testutil.TextResponse("throttled ok"))
	loop := New(model, &stubExecutor{defs: twoToolDefs()}, Config{
		Model:         "test-model",
		MaxToolRounds: 2,
		MaxTokens:     800,
		Limiter:       rate.NewLimiter(rate.Inf, 0),
		Logger:        log.NewNop(),
	})

	result, err := loop.Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "throttled ok", result.Answer)
}
