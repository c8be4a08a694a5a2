package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
	"github.com/richinex/almanac/tools"
)

// scriptedProvider replays a fixed sequence of responses.
type scriptedProvider struct {
	responses []llm.LLMResponse
	err       error
	calls     int
	seen      [][]llm.ChatMessage
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

func (p *scriptedProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition) (llm.LLMResponse, error) {
	p.seen = append(p.seen, messages)
	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	if p.calls >= len(p.responses) {
		return llm.LLMResponse{Content: "script exhausted"}, nil
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

// recordingTool returns a canned envelope and records its inputs.
type recordingTool struct {
	name   string
	result model.FetchResult
	inputs []string
}

func (r *recordingTool) Name() string { return r.name }

func (r *recordingTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: r.name, Parameters: map[string]interface{}{"type": "object"}}
}

func (r *recordingTool) Execute(ctx context.Context, args json.RawMessage) (model.FetchResult, error) {
	r.inputs = append(r.inputs, string(args))
	return r.result, nil
}

func toolCallsResponse(calls ...llm.ToolCall) llm.LLMResponse {
	return llm.LLMResponse{ToolCalls: calls}
}

func textResponse(content string) llm.LLMResponse {
	return llm.LLMResponse{Content: content}
}

func TestExpandCompletes(t *testing.T) {
	fetch := &recordingTool{
		name:   "fetch_url",
		result: model.FetchResult{Status: model.StatusOK, Content: "page text", CacheHit: true},
	}
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		toolCallsResponse(llm.ToolCall{ID: "c1", Name: "fetch_url", Arguments: json.RawMessage(`{"url":"https://example.com/post"}`)}),
		textResponse(validOutput),
	}}

	agent := New(DefaultConfig(), provider, tools.NewSurfaceFromTools(fetch), nil)
	outcome := agent.Expand(context.Background(), testItem(), PromptContext{})

	if !outcome.IsCompleted() {
		t.Fatalf("outcome = %s (%s), want completed", outcome.Type, outcome.Error)
	}
	if outcome.Expansion == nil || outcome.Expansion.SourceSummary == "" {
		t.Fatal("expansion missing")
	}
	if outcome.Expansion.ExpandedAt.IsZero() {
		t.Error("ExpandedAt not set")
	}
	if len(outcome.Transcript) != 1 {
		t.Fatalf("len(Transcript) = %d, want 1", len(outcome.Transcript))
	}
	rec := outcome.Transcript[0]
	if rec.Seq != 1 || rec.Tool != "fetch_url" || rec.Status != model.StatusOK || !rec.CacheHit {
		t.Errorf("transcript record = %+v", rec)
	}
	if outcome.Metadata.Turns != 2 || outcome.Metadata.LLMCalls != 2 {
		t.Errorf("metadata = %+v, want 2 turns / 2 calls", outcome.Metadata)
	}
}

func TestExpandExecutesToolCallsInRequestOrder(t *testing.T) {
	var order []string
	mk := func(name string) *orderedTool {
		return &orderedTool{name: name, order: &order}
	}
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		toolCallsResponse(
			llm.ToolCall{ID: "c1", Name: "beta", Arguments: json.RawMessage(`{}`)},
			llm.ToolCall{ID: "c2", Name: "alpha", Arguments: json.RawMessage(`{}`)},
			llm.ToolCall{ID: "c3", Name: "beta", Arguments: json.RawMessage(`{}`)},
		),
		textResponse(validOutput),
	}}

	agent := New(DefaultConfig(), provider, tools.NewSurfaceFromTools(mk("alpha"), mk("beta")), nil)
	outcome := agent.Expand(context.Background(), testItem(), PromptContext{})

	if !outcome.IsCompleted() {
		t.Fatalf("outcome = %s (%s)", outcome.Type, outcome.Error)
	}
	want := []string{"beta", "alpha", "beta"}
	if len(order) != len(want) {
		t.Fatalf("executed %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("executed %v, want %v", order, want)
		}
	}
	for i, rec := range outcome.Transcript {
		if rec.Seq != i+1 {
			t.Errorf("Transcript[%d].Seq = %d, want %d", i, rec.Seq, i+1)
		}
		if rec.Tool != want[i] {
			t.Errorf("Transcript[%d].Tool = %q, want %q", i, rec.Tool, want[i])
		}
	}
}

type orderedTool struct {
	name  string
	order *[]string
}

func (o *orderedTool) Name() string { return o.name }

func (o *orderedTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: o.name, Parameters: map[string]interface{}{"type": "object"}}
}

func (o *orderedTool) Execute(ctx context.Context, args json.RawMessage) (model.FetchResult, error) {
	*o.order = append(*o.order, o.name)
	return model.FetchResult{Status: model.StatusOK, Content: "ok"}, nil
}

func TestExpandTurnLimit(t *testing.T) {
	// The model calls a tool every turn and never produces output.
	var responses []llm.LLMResponse
	for i := 0; i < 20; i++ {
		responses = append(responses, toolCallsResponse(
			llm.ToolCall{ID: "c", Name: "fetch_url", Arguments: json.RawMessage(`{}`)},
		))
	}
	fetch := &recordingTool{name: "fetch_url", result: model.FetchResult{Status: model.StatusOK, Content: "x"}}
	provider := &scriptedProvider{responses: responses}

	cfg := DefaultConfig()
	cfg.MaxTurns = 3
	agent := New(cfg, provider, tools.NewSurfaceFromTools(fetch), nil)
	outcome := agent.Expand(context.Background(), testItem(), PromptContext{})

	if outcome.Type != OutcomeTurnLimit {
		t.Fatalf("outcome = %s, want turn_limit_exceeded", outcome.Type)
	}
	if provider.calls != 3 {
		t.Errorf("model called %d times, want 3", provider.calls)
	}
	if len(outcome.Transcript) != 3 {
		t.Errorf("len(Transcript) = %d, want 3", len(outcome.Transcript))
	}
}

func TestExpandUnknownToolIsFatal(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		toolCallsResponse(llm.ToolCall{ID: "c1", Name: "rm_rf", Arguments: json.RawMessage(`{}`)}),
	}}

	agent := New(DefaultConfig(), provider, tools.NewSurfaceFromTools(), nil)
	outcome := agent.Expand(context.Background(), testItem(), PromptContext{})

	if outcome.Type != OutcomeToolFatal {
		t.Fatalf("outcome = %s, want tool_fatal", outcome.Type)
	}
	if !strings.Contains(outcome.Error, "rm_rf") {
		t.Errorf("Error = %q, want the offending tool name", outcome.Error)
	}
}

func TestExpandRepairCycle(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		textResponse("I looked at the page and it seems interesting."),
		textResponse(`{"source_summary": "s", "key_points": null, "related": [], "topics": []}`),
		textResponse(validOutput),
	}}

	agent := New(DefaultConfig(), provider, tools.NewSurfaceFromTools(), nil)
	outcome := agent.Expand(context.Background(), testItem(), PromptContext{})

	if !outcome.IsCompleted() {
		t.Fatalf("outcome = %s (%s), want completed after repairs", outcome.Type, outcome.Error)
	}
	if provider.calls != 3 {
		t.Errorf("model called %d times, want 3", provider.calls)
	}

	// The second call should carry the repair request.
	secondCall := provider.seen[1]
	last := secondCall[len(secondCall)-1]
	if last.Role != "user" || !strings.Contains(last.Content, "did not match the required JSON format") {
		t.Errorf("repair message not sent, last = %+v", last)
	}
}

func TestExpandValidationFailedAfterRepairBudget(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		textResponse("not json"),
		textResponse("still not json"),
		textResponse("never json"),
		textResponse("and again"),
	}}

	cfg := DefaultConfig()
	cfg.RepairAttempts = 2
	agent := New(cfg, provider, tools.NewSurfaceFromTools(), nil)
	outcome := agent.Expand(context.Background(), testItem(), PromptContext{})

	if outcome.Type != OutcomeValidationFailed {
		t.Fatalf("outcome = %s, want validation_failed", outcome.Type)
	}
	// Initial output plus two repairs.
	if provider.calls != 3 {
		t.Errorf("model called %d times, want 3", provider.calls)
	}
	if outcome.RawOutput != "never json" {
		t.Errorf("RawOutput = %q, want the last attempt", outcome.RawOutput)
	}
}

func TestExpandObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{responses: []llm.LLMResponse{textResponse(validOutput)}}
	agent := New(DefaultConfig(), provider, tools.NewSurfaceFromTools(), nil)
	outcome := agent.Expand(ctx, testItem(), PromptContext{})

	if outcome.Type != OutcomeAborted {
		t.Fatalf("outcome = %s, want aborted", outcome.Type)
	}
	if provider.calls != 0 {
		t.Errorf("model called %d times after cancellation, want 0", provider.calls)
	}
}

func TestExpandAbortsOnModelFailure(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection reset")}
	agent := New(DefaultConfig(), provider, tools.NewSurfaceFromTools(), nil)
	outcome := agent.Expand(context.Background(), testItem(), PromptContext{})

	if outcome.Type != OutcomeAborted {
		t.Fatalf("outcome = %s, want aborted", outcome.Type)
	}
	if !strings.Contains(outcome.Error, "model call failed") {
		t.Errorf("Error = %q", outcome.Error)
	}
}

func TestExpandPromptCarriesItemAndContext(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{textResponse(validOutput)}}
	agent := New(DefaultConfig(), provider, tools.NewSurfaceFromTools(), nil)

	item := model.InboxItem{ID: "i1", ItemType: model.ItemURL, Content: "https://example.com/x", Note: "rare technique"}
	pc := PromptContext{KnownTopics: []string{"llm-application-patterns"}, PriorContext: "Previously researched: caching"}
	outcome := agent.Expand(context.Background(), item, pc)
	if !outcome.IsCompleted() {
		t.Fatalf("outcome = %s", outcome.Type)
	}

	first := provider.seen[0]
	if first[0].Role != "system" {
		t.Fatalf("first message role = %q, want system", first[0].Role)
	}
	user := first[1].Content
	for _, want := range []string{"https://example.com/x", "rare technique", "llm-application-patterns", "Previously researched"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}
