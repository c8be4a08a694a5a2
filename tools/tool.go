// Package tools provides the research tool surface for the agent.
//
// Every tool wraps the security validator and content cache, and
// returns the uniform model.FetchResult envelope. Ordinary failures
// (network errors, 404s, policy blocks) are encoded as statuses; a
// tool only returns a Go error for programmer-level contract
// violations such as malformed arguments.
//
// Information Hiding:
// - HTTP client configuration hidden per tool
// - Cache and validator wrapping applied uniformly
// - External API formats (fxtwitter, GitHub, Tavily) internalized
package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
)

const userAgent = "almanac/0.1 (research agent)"

// ErrUnknownTool reports a request for a tool that does not exist.
// This is a contract violation, not an ordinary failure.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is one capability on the surface.
type Tool interface {
	// Name returns the tool name as exposed to the model.
	Name() string

	// Definition returns the tool schema for native tool calling.
	Definition() llm.ToolDefinition

	// Execute runs the tool. Ordinary failures come back inside the
	// envelope; an error return means malformed arguments.
	Execute(ctx context.Context, args json.RawMessage) (model.FetchResult, error)
}

// okResult builds a successful envelope with the content hashed.
func okResult(content, sourceURL string) model.FetchResult {
	return model.FetchResult{
		Status:      model.StatusOK,
		Content:     content,
		ContentHash: hashContent(content),
		SourceURL:   sourceURL,
		FetchedAt:   time.Now(),
	}
}

// blockedResult builds a policy-block envelope.
func blockedResult(sourceURL, reason string) model.FetchResult {
	return model.FetchResult{
		Status:    model.StatusBlocked,
		SourceURL: sourceURL,
		Reason:    reason,
		FetchedAt: time.Now(),
	}
}

// errorResult builds a transient-failure envelope.
func errorResult(sourceURL, format string, args ...interface{}) model.FetchResult {
	return model.FetchResult{
		Status:    model.StatusError,
		SourceURL: sourceURL,
		Reason:    fmt.Sprintf(format, args...),
		FetchedAt: time.Now(),
	}
}

// notFoundResult builds a missing-resource envelope.
func notFoundResult(sourceURL, reason string) model.FetchResult {
	return model.FetchResult{
		Status:    model.StatusNotFound,
		SourceURL: sourceURL,
		Reason:    reason,
		FetchedAt: time.Now(),
	}
}

// hashContent returns the sha256 hex digest of content.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// doGET issues a GET with a single immediate retry for transient
// network errors. GETs are idempotent so the retry is safe; HTTP
// status handling stays with the caller.
func doGET(ctx context.Context, client *http.Client, url string, headers map[string]string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// Context expiry is final; network hiccups get one more try.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// truncate caps content at max characters, marking the cut.
func truncate(content string, max int) string {
	if len(content) <= max {
		return content
	}
	return content[:max] + "\n[truncated]"
}

// maxContentChars caps fetched content injected into model context.
const maxContentChars = 50000
