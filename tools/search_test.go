package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/richinex/almanac/model"
)

func newTavilyTestServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tvly-test" {
			t.Errorf("Authorization = %q", auth)
		}
		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprintf(w, `{"answer":"short answer","results":[{"title":"Result One","url":"https://one.example.com","content":"snippet for %s"}]}`, req.Query)
	}))
}

func TestSearchToolReturnsResults(t *testing.T) {
	var calls int
	server := newTavilyTestServer(t, &calls)
	defer server.Close()

	tool := NewSearchTool("tvly-test", NewSearchQuota(2), 5*time.Second)
	tool.endpoint = server.URL

	args, _ := json.Marshal(map[string]string{"query": "go singleflight"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != model.StatusOK {
		t.Fatalf("status = %q (%s), want ok", result.Status, result.Reason)
	}
	for _, want := range []string{"short answer", "Result One", "https://one.example.com", "go singleflight"} {
		if !strings.Contains(result.Content, want) {
			t.Errorf("content missing %q", want)
		}
	}
}

func TestSearchQuotaExhaustion(t *testing.T) {
	var calls int
	server := newTavilyTestServer(t, &calls)
	defer server.Close()

	quota := NewSearchQuota(2)
	tool := NewSearchTool("tvly-test", quota, 5*time.Second)
	tool.endpoint = server.URL

	for i := 0; i < 2; i++ {
		args, _ := json.Marshal(map[string]string{"query": fmt.Sprintf("query %d", i)})
		result, err := tool.Execute(context.Background(), args)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if result.Status != model.StatusOK {
			t.Fatalf("search %d status = %q, want ok", i, result.Status)
		}
	}
	if quota.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", quota.Remaining())
	}

	args, _ := json.Marshal(map[string]string{"query": "one too many"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != model.StatusBlocked {
		t.Errorf("status = %q, want blocked", result.Status)
	}
	if result.Reason != "quota_exceeded" {
		t.Errorf("Reason = %q, want quota_exceeded", result.Reason)
	}
	if calls != 2 {
		t.Errorf("API called %d times, want 2", calls)
	}
}

func TestSearchFailureDoesNotConsumeQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	quota := NewSearchQuota(2)
	tool := NewSearchTool("tvly-test", quota, 5*time.Second)
	tool.endpoint = server.URL

	args, _ := json.Marshal(map[string]string{"query": "anything"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != model.StatusError {
		t.Errorf("status = %q, want error", result.Status)
	}
	if quota.Remaining() != 2 {
		t.Errorf("Remaining() = %d, want 2 after failed search", quota.Remaining())
	}
}

func TestSearchWithoutAPIKey(t *testing.T) {
	tool := NewSearchTool("", NewSearchQuota(2), 5*time.Second)
	args, _ := json.Marshal(map[string]string{"query": "anything"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != model.StatusError {
		t.Errorf("status = %q, want error", result.Status)
	}
}
