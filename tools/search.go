package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// SearchQuota enforces a fixed number of successful searches per run.
// Timed-out or failed searches do not consume quota.
type SearchQuota struct {
	mu        sync.Mutex
	remaining int
}

// NewSearchQuota creates a quota with n searches available.
func NewSearchQuota(n int) *SearchQuota {
	return &SearchQuota{remaining: n}
}

// Remaining reports how many searches are left.
func (q *SearchQuota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining
}

// Exhausted reports whether the quota is spent.
func (q *SearchQuota) Exhausted() bool {
	return q.Remaining() <= 0
}

// consume spends one unit. The caller must have checked Exhausted
// first; consume is only called after a successful search.
func (q *SearchQuota) consume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.remaining > 0 {
		q.remaining--
	}
}

// SearchTool performs web searches through the Tavily API. Search
// results are point-in-time answers, never cached.
type SearchTool struct {
	client   *http.Client
	apiKey   string
	quota    *SearchQuota
	endpoint string
}

// NewSearchTool creates a web_search tool sharing the given quota.
func NewSearchTool(apiKey string, quota *SearchQuota, timeout time.Duration) *SearchTool {
	return &SearchTool{
		client:   &http.Client{Timeout: timeout},
		apiKey:   apiKey,
		quota:    quota,
		endpoint: tavilyEndpoint,
	}
}

// Name returns the tool name.
func (t *SearchTool) Name() string {
	return "web_search"
}

// Definition returns the tool schema.
func (t *SearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: "web_search",
		Description: "Search the web for information. Limited to a small number of searches per item, " +
			"so prefer fetching primary sources directly when you already have their URLs.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
	}
}

type searchArgs struct {
	Query string `json:"query"`
}

type tavilyRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Execute runs a web search, consuming quota only on success.
func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (model.FetchResult, error) {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return model.FetchResult{}, fmt.Errorf("web_search: invalid arguments: %w", err)
	}
	if a.Query == "" {
		return model.FetchResult{}, fmt.Errorf("web_search: query cannot be empty")
	}

	sourceURL := "web_search:" + a.Query
	if t.quota.Exhausted() {
		return blockedResult(sourceURL, "quota_exceeded"), nil
	}
	if t.apiKey == "" {
		return errorResult(sourceURL, "search API key not configured"), nil
	}

	result := t.search(ctx, sourceURL, a.Query)
	if result.OK() {
		t.quota.consume()
	}
	return result, nil
}

func (t *SearchTool) search(ctx context.Context, sourceURL, query string) model.FetchResult {
	payload, err := json.Marshal(tavilyRequest{Query: query, MaxResults: 5})
	if err != nil {
		return errorResult(sourceURL, "failed to encode search request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errorResult(sourceURL, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return errorResult(sourceURL, "request timed out")
		}
		return errorResult(sourceURL, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorResult(sourceURL, "HTTP %d from search API", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errorResult(sourceURL, "failed to read response body: %v", err)
	}

	var tr tavilyResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return errorResult(sourceURL, "malformed search API response: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n\n", query)
	if tr.Answer != "" {
		fmt.Fprintf(&b, "Summary: %s\n\n", tr.Answer)
	}
	for _, r := range tr.Results {
		fmt.Fprintf(&b, "- %s\n  %s\n", r.Title, r.URL)
		if r.Content != "" {
			fmt.Fprintf(&b, "  %s\n", truncate(r.Content, 300))
		}
	}

	return okResult(b.String(), sourceURL)
}
