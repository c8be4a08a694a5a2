package json

import "testing"

func TestExtractJSONPure(t *testing.T) {
	got, err := ExtractJSON(`{"a": 1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a": 1}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSONFenced(t *testing.T) {
	input := "```json\n{\"source_summary\": \"x\"}\n```"
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"source_summary": "x"}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSONEmbedded(t *testing.T) {
	input := `Here are my findings: {"key_points": ["a"]} and that is all.`
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"key_points": ["a"]}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSONInvalid(t *testing.T) {
	if _, err := ExtractJSON("no json here at all"); err == nil {
		t.Error("expected error for non-JSON input")
	}
}

func TestExtractJSONInto(t *testing.T) {
	var out struct {
		Topics []string `json:"topics"`
	}
	err := ExtractJSONInto("```json\n{\"topics\": [\"llm-agents\"]}\n```", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Topics) != 1 || out.Topics[0] != "llm-agents" {
		t.Errorf("topics = %v", out.Topics)
	}
}
