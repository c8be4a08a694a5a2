package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
	"github.com/richinex/almanac/security"
)

func TestSurfaceRegistersStandardTools(t *testing.T) {
	s := NewSurface(SurfaceConfig{
		Validator:    security.NewValidatorWithLookup(publicLookup(nil)),
		Cache:        newTestCache(t),
		SearchQuota:  2,
		FetchTimeout: 5 * time.Second,
	})

	defs := s.Definitions()
	want := []string{"fetch_url", "fetch_tweet", "github_repo", "github_search", "web_search"}
	if len(defs) != len(want) {
		t.Fatalf("len(Definitions()) = %d, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("Definitions()[%d].Name = %q, want %q", i, defs[i].Name, name)
		}
	}
	if s.SearchesRemaining() != 2 {
		t.Errorf("SearchesRemaining() = %d, want 2", s.SearchesRemaining())
	}
}

func TestSurfaceUnknownTool(t *testing.T) {
	s := NewSurfaceFromTools()
	_, err := s.Execute(context.Background(), "delete_all_files", json.RawMessage(`{}`))
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("err = %v, want ErrUnknownTool", err)
	}
}

type stubTool struct {
	name   string
	result model.FetchResult
}

func (s stubTool) Name() string { return s.name }

func (s stubTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: s.name}
}

func (s stubTool) Execute(ctx context.Context, args json.RawMessage) (model.FetchResult, error) {
	return s.result, nil
}

func TestSurfaceDispatchesByName(t *testing.T) {
	s := NewSurfaceFromTools(
		stubTool{name: "alpha", result: model.FetchResult{Status: model.StatusOK, Content: "from alpha"}},
		stubTool{name: "beta", result: model.FetchResult{Status: model.StatusBlocked, Reason: "nope"}},
	)

	result, err := s.Execute(context.Background(), "alpha", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Content != "from alpha" {
		t.Errorf("Content = %q, want from alpha", result.Content)
	}

	result, err = s.Execute(context.Background(), "beta", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != model.StatusBlocked {
		t.Errorf("Status = %q, want blocked", result.Status)
	}
}
