// fetch_url tool: validated, cached page retrieval.
//
// Redirects are followed manually so every hop passes the security
// validator; an automatic redirect chain would be an SSRF bypass.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/richinex/almanac/cache"
	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
	"github.com/richinex/almanac/security"
)

const maxRedirects = 5

// urlValidator decides whether a URL may be fetched.
type urlValidator interface {
	Validate(rawURL string) security.Decision
}

// FetchTool retrieves page content for arbitrary HTTP(S) URLs.
type FetchTool struct {
	client    *http.Client
	validator urlValidator
	cache     *cache.Cache
}

// NewFetchTool creates a fetch_url tool.
func NewFetchTool(validator *security.Validator, contentCache *cache.Cache, timeout time.Duration) *FetchTool {
	return &FetchTool{
		client: &http.Client{
			Timeout: timeout,
			// Redirects handled manually in fetch for per-hop validation.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		validator: validator,
		cache:     contentCache,
	}
}

// Name returns the tool name.
func (t *FetchTool) Name() string {
	return "fetch_url"
}

// Definition returns the tool schema.
func (t *FetchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: "fetch_url",
		Description: "Fetch and read content from a URL. Returns the text content of the page. " +
			"Does NOT work for Twitter/X - use fetch_tweet instead.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "The URL to fetch",
				},
			},
			"required": []string{"url"},
		},
	}
}

type fetchArgs struct {
	URL string `json:"url"`
}

// Execute fetches the URL through the validator and cache.
func (t *FetchTool) Execute(ctx context.Context, args json.RawMessage) (model.FetchResult, error) {
	var a fetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return model.FetchResult{}, fmt.Errorf("fetch_url: invalid arguments: %w", err)
	}
	if a.URL == "" {
		return model.FetchResult{}, fmt.Errorf("fetch_url: url cannot be empty")
	}

	if d := t.validator.Validate(a.URL); !d.Allowed {
		return blockedResult(a.URL, d.Reason), nil
	}

	return t.cache.GetOrFetch(ctx, a.URL, func(ctx context.Context) (model.FetchResult, error) {
		return t.fetch(ctx, a.URL), nil
	})
}

// fetch performs the network retrieval, following redirects with
// per-hop validation. Failures are envelope statuses, never errors.
func (t *FetchTool) fetch(ctx context.Context, rawURL string) model.FetchResult {
	currentURL := rawURL

	var resp *http.Response
	for hop := 0; ; hop++ {
		if hop > maxRedirects {
			return errorResult(rawURL, "too many redirects")
		}

		r, err := doGET(ctx, t.client, currentURL, nil)
		if err != nil {
			if isTimeout(err) || ctx.Err() == context.DeadlineExceeded {
				return errorResult(rawURL, "request timed out")
			}
			return errorResult(rawURL, "request failed: %v", err)
		}

		if r.StatusCode >= 300 && r.StatusCode < 400 {
			location := r.Header.Get("Location")
			r.Body.Close()
			if location == "" {
				return errorResult(rawURL, "redirect with no location")
			}
			redirectURL, err := resolveRedirect(currentURL, location)
			if err != nil {
				return errorResult(rawURL, "invalid redirect target: %v", err)
			}
			if d := t.validator.Validate(redirectURL); !d.Allowed {
				return blockedResult(rawURL, "blocked redirect: "+d.Reason)
			}
			currentURL = redirectURL
			continue
		}

		resp = r
		break
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notFoundResult(rawURL, "HTTP 404")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorResult(rawURL, "HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errorResult(rawURL, "failed to read response body: %v", err)
	}

	contentType := resp.Header.Get("Content-Type")
	content := renderBody(string(body), contentType)
	return okResult(truncate(content, maxContentChars), rawURL)
}

// isTimeout reports whether err is a network or deadline timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// resolveRedirect resolves a possibly-relative redirect location.
func resolveRedirect(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	target, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(target).String(), nil
}

// renderBody converts a response body to readable text based on its
// content type. HTML is stripped to text with a title prefix; JSON is
// pretty-printed; anything else passes through.
func renderBody(body, contentType string) string {
	switch {
	case strings.Contains(contentType, "text/html"):
		title, text := htmlToText(body)
		if title != "" {
			return fmt.Sprintf("Title: %s\n\n%s", title, text)
		}
		return text
	case strings.Contains(contentType, "application/json"):
		var v interface{}
		if err := json.Unmarshal([]byte(body), &v); err == nil {
			if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
				return string(pretty)
			}
		}
		return body
	default:
		return body
	}
}

// Tags whose text content is never part of the article body.
var skipTags = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"header": true,
}

// Tags that end a visual block; a newline keeps the text readable.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// htmlToText extracts the page title and a plain-text rendering of the
// document body.
func htmlToText(source string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return "", source
	}

	var b strings.Builder
	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && title == "" {
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
			if skipTags[n.Data] {
				skip = true
			}
		}
		if n.Type == html.TextNode && !skip {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				b.WriteString(trimmed)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] && !skip {
			b.WriteByte('\n')
		}
	}
	walk(doc, false)

	return title, strings.TrimSpace(b.String())
}
