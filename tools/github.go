package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/richinex/almanac/cache"
	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
)

const (
	githubAPIBase    = "https://api.github.com"
	readmeExcerptLen = 2000
)

// GithubTool looks up repository metadata and README content via the
// GitHub REST API. Results are cached under a synthetic
// "github:{owner}/{repo}" key. Rate limit headers are tracked so the
// caller can observe remaining quota; the tool never blocks on them.
type GithubTool struct {
	client  *http.Client
	cache   *cache.Cache
	token   string
	baseURL string

	mu            sync.Mutex
	rateRemaining int
	rateLimit     int
}

// NewGithubTool creates a github_repo tool. The token may be empty,
// which lowers the unauthenticated rate ceiling but still works.
func NewGithubTool(contentCache *cache.Cache, token string, timeout time.Duration) *GithubTool {
	return &GithubTool{
		client:        &http.Client{Timeout: timeout},
		cache:         contentCache,
		token:         token,
		baseURL:       githubAPIBase,
		rateRemaining: -1,
		rateLimit:     -1,
	}
}

// Name returns the tool name.
func (t *GithubTool) Name() string {
	return "github_repo"
}

// Definition returns the tool schema.
func (t *GithubTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: "github_repo",
		Description: "Fetch metadata and README for a GitHub repository. " +
			"Returns description, stars, language, topics, and a README excerpt.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"owner": map[string]interface{}{
					"type":        "string",
					"description": "Repository owner (user or org)",
				},
				"repo": map[string]interface{}{
					"type":        "string",
					"description": "Repository name",
				},
			},
			"required": []string{"owner", "repo"},
		},
	}
}

type githubArgs struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// RateRemaining reports the last observed rate limit state. Returns
// -1 values until the first API response.
func (t *GithubTool) RateRemaining() (remaining, limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rateRemaining, t.rateLimit
}

// Execute fetches repository metadata, caching under github:{owner}/{repo}.
func (t *GithubTool) Execute(ctx context.Context, args json.RawMessage) (model.FetchResult, error) {
	var a githubArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return model.FetchResult{}, fmt.Errorf("github_repo: invalid arguments: %w", err)
	}
	if a.Owner == "" || a.Repo == "" {
		return model.FetchResult{}, fmt.Errorf("github_repo: owner and repo are required")
	}

	key := fmt.Sprintf("github:%s/%s", a.Owner, a.Repo)
	sourceURL := fmt.Sprintf("https://github.com/%s/%s", a.Owner, a.Repo)
	return t.cache.GetOrFetchKeyed(ctx, key, func(ctx context.Context) (model.FetchResult, error) {
		return t.fetchRepo(ctx, sourceURL, a.Owner, a.Repo), nil
	})
}

// githubRepoResponse is the subset of repository metadata we render.
type githubRepoResponse struct {
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	HTMLURL     string   `json:"html_url"`
	UpdatedAt   string   `json:"updated_at"`
	License     struct {
		Name string `json:"name"`
	} `json:"license"`
}

type githubReadmeResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (t *GithubTool) fetchRepo(ctx context.Context, sourceURL, owner, repo string) model.FetchResult {
	body, status, err := t.apiGET(ctx, fmt.Sprintf("%s/repos/%s/%s", t.baseURL, owner, repo))
	if err != nil {
		if isTimeout(err) {
			return errorResult(sourceURL, "request timed out")
		}
		return errorResult(sourceURL, "request failed: %v", err)
	}
	if status == http.StatusNotFound {
		return notFoundResult(sourceURL, "repository not found")
	}
	if status < 200 || status >= 300 {
		return errorResult(sourceURL, "HTTP %d from GitHub API", status)
	}

	var meta githubRepoResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return errorResult(sourceURL, "malformed GitHub API response: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", meta.FullName)
	if meta.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", meta.Description)
	}
	fmt.Fprintf(&b, "Stars: %d | Forks: %d\n", meta.Stars, meta.Forks)
	if meta.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", meta.Language)
	}
	if len(meta.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(meta.Topics, ", "))
	}
	if meta.License.Name != "" {
		fmt.Fprintf(&b, "License: %s\n", meta.License.Name)
	}
	if meta.UpdatedAt != "" {
		fmt.Fprintf(&b, "Last updated: %s\n", meta.UpdatedAt)
	}

	// README failures degrade to metadata-only output.
	if readme := t.fetchReadme(ctx, owner, repo); readme != "" {
		fmt.Fprintf(&b, "\n--- README (excerpt) ---\n%s", readme)
	}

	return okResult(b.String(), sourceURL)
}

func (t *GithubTool) fetchReadme(ctx context.Context, owner, repo string) string {
	body, status, err := t.apiGET(ctx, fmt.Sprintf("%s/repos/%s/%s/readme", t.baseURL, owner, repo))
	if err != nil || status != http.StatusOK {
		return ""
	}

	var readme githubReadmeResponse
	if err := json.Unmarshal(body, &readme); err != nil {
		return ""
	}
	if readme.Encoding != "base64" {
		return truncate(readme.Content, readmeExcerptLen)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(readme.Content, "\n", ""))
	if err != nil {
		return ""
	}
	return truncate(string(decoded), readmeExcerptLen)
}

// apiGET performs an authenticated GitHub API request and records the
// rate limit headers.
func (t *GithubTool) apiGET(ctx context.Context, apiURL string) ([]byte, int, error) {
	headers := map[string]string{
		"Accept": "application/vnd.github+json",
	}
	if t.token != "" {
		headers["Authorization"] = "Bearer " + t.token
	}

	resp, err := doGET(ctx, t.client, apiURL, headers)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	t.recordRateHeaders(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (t *GithubTool) recordRateHeaders(resp *http.Response) {
	remaining, errR := strconv.Atoi(resp.Header.Get("X-Ratelimit-Remaining"))
	limit, errL := strconv.Atoi(resp.Header.Get("X-Ratelimit-Limit"))
	if errR != nil && errL != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if errR == nil {
		t.rateRemaining = remaining
	}
	if errL == nil {
		t.rateLimit = limit
	}
}

// GithubSearchTool searches GitHub repositories. Search results go
// stale quickly so they are never cached.
type GithubSearchTool struct {
	client  *http.Client
	token   string
	baseURL string
}

// NewGithubSearchTool creates a github_search tool.
func NewGithubSearchTool(token string, timeout time.Duration) *GithubSearchTool {
	return &GithubSearchTool{
		client:  &http.Client{Timeout: timeout},
		token:   token,
		baseURL: githubAPIBase,
	}
}

// Name returns the tool name.
func (t *GithubSearchTool) Name() string {
	return "github_search"
}

// Definition returns the tool schema.
func (t *GithubSearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "github_search",
		Description: "Search GitHub repositories by keyword. Returns the top matching repositories.",
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

type githubSearchArgs struct {
	Query string `json:"query"`
}

type githubSearchResponse struct {
	TotalCount int                  `json:"total_count"`
	Items      []githubRepoResponse `json:"items"`
}

// Execute searches repositories, uncached.
func (t *GithubSearchTool) Execute(ctx context.Context, args json.RawMessage) (model.FetchResult, error) {
	var a githubSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return model.FetchResult{}, fmt.Errorf("github_search: invalid arguments: %w", err)
	}
	if a.Query == "" {
		return model.FetchResult{}, fmt.Errorf("github_search: query cannot be empty")
	}

	apiURL := fmt.Sprintf("%s/search/repositories?q=%s&per_page=5", t.baseURL, url.QueryEscape(a.Query))
	sourceURL := "github_search:" + a.Query

	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if t.token != "" {
		headers["Authorization"] = "Bearer " + t.token
	}

	resp, err := doGET(ctx, t.client, apiURL, headers)
	if err != nil {
		if isTimeout(err) {
			return errorResult(sourceURL, "request timed out"), nil
		}
		return errorResult(sourceURL, "request failed: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorResult(sourceURL, "HTTP %d from GitHub API", resp.StatusCode), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errorResult(sourceURL, "failed to read response body: %v", err), nil
	}

	var result githubSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return errorResult(sourceURL, "malformed GitHub API response: %v", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d repositories for %q:\n\n", result.TotalCount, a.Query)
	for _, item := range result.Items {
		fmt.Fprintf(&b, "- %s (%d stars", item.FullName, item.Stars)
		if item.Language != "" {
			fmt.Fprintf(&b, ", %s", item.Language)
		}
		b.WriteString(")\n")
		if item.Description != "" {
			fmt.Fprintf(&b, "  %s\n", item.Description)
		}
		fmt.Fprintf(&b, "  %s\n", item.HTMLURL)
	}

	return okResult(b.String(), sourceURL), nil
}
