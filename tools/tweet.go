package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/richinex/almanac/cache"
	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
)

const fxTwitterBase = "https://api.fxtwitter.com"

// TweetTool retrieves tweet content through the fxtwitter API, which
// serves tweet data without authentication.
type TweetTool struct {
	client  *http.Client
	cache   *cache.Cache
	baseURL string
}

// NewTweetTool creates a fetch_tweet tool.
func NewTweetTool(contentCache *cache.Cache, timeout time.Duration) *TweetTool {
	return &TweetTool{
		client:  &http.Client{Timeout: timeout},
		cache:   contentCache,
		baseURL: fxTwitterBase,
	}
}

// Name returns the tool name.
func (t *TweetTool) Name() string {
	return "fetch_tweet"
}

// Definition returns the tool schema.
func (t *TweetTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: "fetch_tweet",
		Description: "Fetch the content of a tweet from a Twitter/X URL. " +
			"Returns the tweet text, author, and engagement stats.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "The Twitter/X status URL",
				},
			},
			"required": []string{"url"},
		},
	}
}

type tweetArgs struct {
	URL string `json:"url"`
}

// Execute fetches the tweet, caching by the canonical status URL.
func (t *TweetTool) Execute(ctx context.Context, args json.RawMessage) (model.FetchResult, error) {
	var a tweetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return model.FetchResult{}, fmt.Errorf("fetch_tweet: invalid arguments: %w", err)
	}
	if a.URL == "" {
		return model.FetchResult{}, fmt.Errorf("fetch_tweet: url cannot be empty")
	}

	user, id, err := parseTwitterURL(a.URL)
	if err != nil {
		return blockedResult(a.URL, err.Error()), nil
	}

	canonical := fmt.Sprintf("https://twitter.com/%s/status/%s", user, id)
	return t.cache.GetOrFetch(ctx, canonical, func(ctx context.Context) (model.FetchResult, error) {
		return t.fetch(ctx, canonical, user, id), nil
	})
}

// parseTwitterURL extracts the username and status ID from a
// twitter.com or x.com status URL.
func parseTwitterURL(rawURL string) (user, id string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("not a valid URL")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "twitter.com" && host != "x.com" {
		return "", "", fmt.Errorf("not a twitter/x URL")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[1] != "status" {
		return "", "", fmt.Errorf("not a tweet status URL")
	}
	return parts[0], parts[2], nil
}

// fxTweetResponse is the subset of the fxtwitter payload we render.
type fxTweetResponse struct {
	Code  int `json:"code"`
	Tweet struct {
		Text   string `json:"text"`
		Author struct {
			Name       string `json:"name"`
			ScreenName string `json:"screen_name"`
		} `json:"author"`
		Likes     int    `json:"likes"`
		Retweets  int    `json:"retweets"`
		Replies   int    `json:"replies"`
		CreatedAt string `json:"created_at"`
		Article   struct {
			Title string `json:"title"`
			Text  string `json:"text"`
		} `json:"article"`
	} `json:"tweet"`
}

func (t *TweetTool) fetch(ctx context.Context, canonical, user, id string) model.FetchResult {
	apiURL := fmt.Sprintf("%s/%s/status/%s", t.baseURL, user, id)

	resp, err := doGET(ctx, t.client, apiURL, nil)
	if err != nil {
		if isTimeout(err) {
			return errorResult(canonical, "request timed out")
		}
		return errorResult(canonical, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notFoundResult(canonical, "tweet not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorResult(canonical, "HTTP %d from tweet API", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errorResult(canonical, "failed to read response body: %v", err)
	}

	var fx fxTweetResponse
	if err := json.Unmarshal(body, &fx); err != nil {
		return errorResult(canonical, "malformed tweet API response: %v", err)
	}
	if fx.Code != 0 && fx.Code != http.StatusOK {
		return notFoundResult(canonical, fmt.Sprintf("tweet API code %d", fx.Code))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tweet by %s (@%s)\n", fx.Tweet.Author.Name, fx.Tweet.Author.ScreenName)
	if fx.Tweet.CreatedAt != "" {
		fmt.Fprintf(&b, "Posted: %s\n", fx.Tweet.CreatedAt)
	}
	fmt.Fprintf(&b, "Engagement: %d likes, %d retweets, %d replies\n\n", fx.Tweet.Likes, fx.Tweet.Retweets, fx.Tweet.Replies)
	b.WriteString(fx.Tweet.Text)
	if fx.Tweet.Article.Text != "" {
		fmt.Fprintf(&b, "\n\n--- Attached article: %s ---\n%s", fx.Tweet.Article.Title, fx.Tweet.Article.Text)
	}

	return okResult(truncate(b.String(), maxContentChars), canonical)
}
