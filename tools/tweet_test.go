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

func TestParseTwitterURL(t *testing.T) {
	tests := []struct {
		rawURL   string
		wantUser string
		wantID   string
		wantErr  bool
	}{
		{"https://twitter.com/karpathy/status/1234567890", "karpathy", "1234567890", false},
		{"https://x.com/karpathy/status/1234567890", "karpathy", "1234567890", false},
		{"https://www.x.com/someone/status/99?s=20", "someone", "99", false},
		{"https://example.com/karpathy/status/1234", "", "", true},
		{"https://twitter.com/karpathy", "", "", true},
		{"https://twitter.com/karpathy/likes", "", "", true},
	}
	for _, tt := range tests {
		user, id, err := parseTwitterURL(tt.rawURL)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseTwitterURL(%q) expected error", tt.rawURL)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseTwitterURL(%q) error: %v", tt.rawURL, err)
			continue
		}
		if user != tt.wantUser || id != tt.wantID {
			t.Errorf("parseTwitterURL(%q) = (%q, %q), want (%q, %q)", tt.rawURL, user, id, tt.wantUser, tt.wantID)
		}
	}
}

func TestTweetToolFetchesAndCaches(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/karpathy/status/123" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"code":200,"tweet":{"text":"nanoGPT is fun","author":{"name":"Andrej","screen_name":"karpathy"},"likes":100,"retweets":20,"replies":5,"created_at":"2026-01-01"}}`)
	}))
	defer server.Close()

	tool := NewTweetTool(newTestCache(t), 5*time.Second)
	tool.baseURL = server.URL

	args, _ := json.Marshal(map[string]string{"url": "https://x.com/karpathy/status/123"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != model.StatusOK {
		t.Fatalf("status = %q (%s), want ok", result.Status, result.Reason)
	}
	for _, want := range []string{"Andrej", "@karpathy", "nanoGPT is fun", "100 likes"} {
		if !strings.Contains(result.Content, want) {
			t.Errorf("content missing %q:\n%s", want, result.Content)
		}
	}
	if result.SourceURL != "https://twitter.com/karpathy/status/123" {
		t.Errorf("SourceURL = %q, want canonical twitter.com URL", result.SourceURL)
	}

	// The x.com and twitter.com forms share one cache entry.
	args2, _ := json.Marshal(map[string]string{"url": "https://twitter.com/karpathy/status/123"})
	result2, err := tool.Execute(context.Background(), args2)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result2.CacheHit {
		t.Error("expected cache hit for the canonical form")
	}
	if calls != 1 {
		t.Errorf("API called %d times, want 1", calls)
	}
}

func TestTweetToolNonTweetURLBlocked(t *testing.T) {
	tool := NewTweetTool(newTestCache(t), 5*time.Second)

	args, _ := json.Marshal(map[string]string{"url": "https://example.com/article"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != model.StatusBlocked {
		t.Errorf("status = %q, want blocked", result.Status)
	}
}

func TestTweetToolMissingTweet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tool := NewTweetTool(newTestCache(t), 5*time.Second)
	tool.baseURL = server.URL

	args, _ := json.Marshal(map[string]string{"url": "https://x.com/nobody/status/0"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != model.StatusNotFound {
		t.Errorf("status = %q, want not_found", result.Status)
	}
}
