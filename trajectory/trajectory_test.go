package trajectory

import (
	"testing"

	"github.com/richinex/almanac/model"
)

func TestLoggerWritesReadableEvents(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	item := model.InboxItem{ID: "i1", ItemType: model.ItemURL, Content: "https://example.com", Note: "interesting"}
	logger.ItemStart(item)
	logger.ToolCall("i1", model.ToolCallRecord{
		Seq:        1,
		Tool:       "fetch_url",
		Input:      `{"url":"https://example.com"}`,
		Status:     model.StatusOK,
		CacheHit:   true,
		OutputSize: 120,
	})
	logger.ItemComplete("i1", &model.Expansion{
		SourceSummary: "a summary",
		Topics:        []string{"agents"},
		Related:       []model.RelatedItem{{URL: "https://r.example.com"}},
	}, "completed", 3)
	logger.Error("i1", "something mild")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := Load(dir, logger.RunID())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// ToolCall emits both a tool_call and a tool_result event.
	wantTypes := []string{"item_start", "tool_call", "tool_result", "item_complete", "error"}
	if len(events) != len(wantTypes) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("events[%d].Type = %q, want %q", i, events[i].Type, want)
		}
		if events[i].Timestamp == "" {
			t.Errorf("events[%d] missing timestamp", i)
		}
	}
	if events[1].ToolName != "fetch_url" || events[1].Seq != 1 {
		t.Errorf("tool_call event = %+v", events[1])
	}
	if events[3].TurnsUsed != 3 || events[3].RelatedCount != 1 || events[3].Outcome != "completed" {
		t.Errorf("item_complete event = %+v", events[3])
	}

	ids, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != logger.RunID() {
		t.Errorf("List() = %v, want [%s]", ids, logger.RunID())
	}
}

func TestListMissingDirectory(t *testing.T) {
	ids, err := List(t.TempDir() + "/nope")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("List() = %v, want empty", ids)
	}
}

func TestLoadMissingRun(t *testing.T) {
	if _, err := Load(t.TempDir(), "missing"); err == nil {
		t.Error("expected error for a missing trajectory")
	}
}
