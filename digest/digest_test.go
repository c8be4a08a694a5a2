package digest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
)

// cannedProvider returns a fixed response and captures the prompt.
type cannedProvider struct {
	response string
	prompt   string
}

func (p *cannedProvider) Name() string  { return "canned" }
func (p *cannedProvider) Model() string { return "canned-1" }

func (p *cannedProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	p.prompt = messages[len(messages)-1].Content
	return llm.LLMResponse{Content: p.response}, nil
}

func (p *cannedProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition) (llm.LLMResponse, error) {
	return p.Chat(ctx, messages)
}

func sampleExpansions() []model.Expansion {
	return []model.Expansion{
		{
			ItemID:        "a1",
			Source:        "https://example.com/sf",
			Note:          "looks useful",
			SourceSummary: "A deep dive into singleflight",
			KeyPoints:     []string{"dedups concurrent work"},
			Related:       []model.RelatedItem{{URL: "https://r.example.com", Title: "Related", Relevance: "same topic"}},
			Assessment:    "solid",
			Topics:        []string{"caching"},
		},
	}
}

func TestSynthesizeParsesModelOutput(t *testing.T) {
	provider := &cannedProvider{response: "```json\n" + `{
  "entries": [{"item_id": "a1", "title": "Singleflight Deep Dive", "one_liner": "How dedup works", "key_finding": "one flight per key", "worth_following": ["https://r.example.com"]}],
  "cross_connections": ["caching shows up everywhere"],
  "open_threads": ["benchmark under contention"]
}` + "\n```"}

	digest, err := Synthesize(context.Background(), llm.NewClient(provider), sampleExpansions())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(digest.Entries) != 1 || digest.Entries[0].Title != "Singleflight Deep Dive" {
		t.Errorf("Entries = %+v", digest.Entries)
	}
	if len(digest.CrossConnections) != 1 || len(digest.OpenThreads) != 1 {
		t.Errorf("digest = %+v", digest)
	}

	// Attribution comes from the expansion itself, not the inbox.
	for _, want := range []string{"a1", "https://example.com/sf", "looks useful", "singleflight", "https://r.example.com"} {
		if !strings.Contains(provider.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSynthesizeFallsBackOnUnparseableOutput(t *testing.T) {
	provider := &cannedProvider{response: "Sorry, I cannot produce JSON today."}

	digest, err := Synthesize(context.Background(), llm.NewClient(provider), sampleExpansions())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(digest.Entries) != 1 {
		t.Fatalf("fallback entries = %d, want 1", len(digest.Entries))
	}
	if digest.Entries[0].KeyFinding != "dedups concurrent work" {
		t.Errorf("KeyFinding = %q", digest.Entries[0].KeyFinding)
	}
}

func TestSynthesizeEmptyBatch(t *testing.T) {
	provider := &cannedProvider{}
	digest, err := Synthesize(context.Background(), llm.NewClient(provider), nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(digest.Entries) != 0 {
		t.Errorf("Entries = %+v, want none", digest.Entries)
	}
	if provider.prompt != "" {
		t.Error("no model call expected for an empty batch")
	}
}

func TestRenderMarkdown(t *testing.T) {
	digest := model.Digest{
		Date: "2026-08-29",
		Entries: []model.DigestEntry{{
			ItemID:         "a1",
			Title:          "Singleflight Deep Dive",
			OneLiner:       "How dedup works",
			KeyFinding:     "one flight per key",
			WorthFollowing: []string{"https://r.example.com"},
		}},
		CrossConnections: []string{"caching shows up everywhere"},
		OpenThreads:      []string{"benchmark under contention"},
	}
	md := RenderMarkdown(digest, sampleExpansions())
	for _, want := range []string{
		"# Daily Digest - 2026-08-29",
		"## What Was Processed",
		"### Singleflight Deep Dive",
		"*Source: https://example.com/sf*",
		"**Key finding:** one flight per key",
		"- https://r.example.com",
		"## Connections",
		"## Open Threads",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	md := RenderMarkdown(model.Digest{Date: "2026-08-29"}, nil)
	if !strings.Contains(md, "*No items processed today.*") {
		t.Errorf("markdown = %q", md)
	}
}

func TestForDate(t *testing.T) {
	day := func(s string) time.Time {
		ts, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		return ts
	}
	expansions := []model.Expansion{
		{ItemID: "old", ExpandedAt: day("2026-08-27")},
		{ItemID: "today1", ExpandedAt: day("2026-08-29").Add(9 * time.Hour)},
		{ItemID: "today2", ExpandedAt: day("2026-08-29").Add(17 * time.Hour)},
	}

	got := ForDate(expansions, "2026-08-29")
	if len(got) != 2 || got[0].ItemID != "today1" || got[1].ItemID != "today2" {
		t.Errorf("ForDate = %+v", got)
	}
	if out := ForDate(expansions, "2026-08-28"); len(out) != 0 {
		t.Errorf("ForDate for an empty day = %+v", out)
	}
}
