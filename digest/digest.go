// Package digest synthesizes a batch of expansions into a scannable
// daily summary.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsonutil "github.com/richinex/almanac/internal/json"
	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
)

const synthesisPromptHeader = `Synthesize these research expansions into a scannable daily digest.

EXPANSIONS:
`

const synthesisPromptFooter = `

For each expansion, provide:
1. A short title (3-5 words)
2. A one-liner summary
3. The single most important finding
4. 0-3 links worth following up (from the related items)

Also identify:
- Cross-connections between items (if any)
- Open threads worth investigating further

Output JSON:
` + "```json" + `
{
  "entries": [
    {
      "item_id": "...",
      "title": "...",
      "one_liner": "...",
      "key_finding": "...",
      "worth_following": ["url1", "url2"]
    }
  ],
  "cross_connections": ["Connection 1", "Connection 2"],
  "open_threads": ["Thread 1", "Thread 2"]
}
` + "```"

// synthesisPayload is the model's output shape.
type synthesisPayload struct {
	Entries          []model.DigestEntry `json:"entries"`
	CrossConnections []string            `json:"cross_connections"`
	OpenThreads      []string            `json:"open_threads"`
}

// Synthesize produces a digest from expansions using one model call.
// Source attribution comes from the expansions themselves, so archived
// items need no inbox entry. When the model output cannot be parsed,
// a mechanical fallback digest is built from the expansions directly.
func Synthesize(ctx context.Context, client *llm.Client, expansions []model.Expansion) (model.Digest, error) {
	date := time.Now().Format("2006-01-02")
	if len(expansions) == 0 {
		return model.Digest{Date: date}, nil
	}

	prompt := buildSynthesisPrompt(expansions)
	content, err := client.Chat(ctx, []llm.ChatMessage{llm.UserMessage(prompt)})
	if err != nil {
		return model.Digest{}, fmt.Errorf("digest synthesis failed: %w", err)
	}

	var payload synthesisPayload
	if err := jsonutil.ExtractJSONInto(content, &payload); err != nil {
		return fallbackDigest(date, expansions), nil
	}

	return model.Digest{
		Date:             date,
		Entries:          payload.Entries,
		CrossConnections: payload.CrossConnections,
		OpenThreads:      payload.OpenThreads,
	}, nil
}

func buildSynthesisPrompt(expansions []model.Expansion) string {
	var sections []string
	for _, exp := range expansions {
		source := exp.Source
		if source == "" {
			source = "Unknown"
		}
		note := exp.Note
		if note == "" {
			note = "None specified"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "\nItem ID: %s\nSource: %s\nUser's focus: %s\n\n", exp.ItemID, source, note)
		fmt.Fprintf(&b, "Summary: %s\n\nKey points:\n", exp.SourceSummary)
		for _, p := range exp.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		fmt.Fprintf(&b, "\nAssessment: %s\n\nRelated items found:\n", exp.Assessment)
		if len(exp.Related) == 0 {
			b.WriteString("None\n")
		}
		for _, r := range exp.Related {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", r.Title, r.URL, r.Relevance)
		}
		sections = append(sections, b.String())
	}
	return synthesisPromptHeader + strings.Join(sections, "---") + synthesisPromptFooter
}

// fallbackDigest builds a minimal digest when synthesis output is
// unusable. Expansions still appear, just without cross-connections.
func fallbackDigest(date string, expansions []model.Expansion) model.Digest {
	entries := make([]model.DigestEntry, 0, len(expansions))
	for _, exp := range expansions {
		finding := "See full expansion"
		if len(exp.KeyPoints) > 0 {
			finding = exp.KeyPoints[0]
		}
		oneLiner := exp.SourceSummary
		if len(oneLiner) > 100 {
			oneLiner = oneLiner[:100]
		}
		entries = append(entries, model.DigestEntry{
			ItemID:     exp.ItemID,
			Title:      "Expansion",
			OneLiner:   oneLiner,
			KeyFinding: finding,
		})
	}
	return model.Digest{Date: date, Entries: entries}
}

// ForDate filters expansions to those produced on the given day
// (2006-01-02 format).
func ForDate(expansions []model.Expansion, date string) []model.Expansion {
	var out []model.Expansion
	for _, exp := range expansions {
		if exp.ExpandedAt.Format("2006-01-02") == date {
			out = append(out, exp)
		}
	}
	return out
}

// RenderMarkdown renders a digest for human reading. expansions supply
// source attribution for the entries.
func RenderMarkdown(digest model.Digest, expansions []model.Expansion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Digest - %s\n\n", digest.Date)

	if len(digest.Entries) == 0 {
		b.WriteString("*No items processed today.*")
		return b.String()
	}

	sourceByID := make(map[string]string, len(expansions))
	for _, exp := range expansions {
		sourceByID[exp.ItemID] = exp.Source
	}

	b.WriteString("## What Was Processed\n\n")
	for _, entry := range digest.Entries {
		source := sourceByID[entry.ItemID]
		if source == "" {
			source = "Unknown source"
		}
		fmt.Fprintf(&b, "### %s\n*Source: %s*\n\n%s\n\n", entry.Title, source, entry.OneLiner)
		fmt.Fprintf(&b, "**Key finding:** %s\n", entry.KeyFinding)
		if len(entry.WorthFollowing) > 0 {
			b.WriteString("\n**Worth following:**\n")
			for _, link := range entry.WorthFollowing {
				fmt.Fprintf(&b, "- %s\n", link)
			}
		}
		b.WriteString("\n")
	}

	if len(digest.CrossConnections) > 0 {
		b.WriteString("## Connections\n\n")
		for _, conn := range digest.CrossConnections {
			fmt.Fprintf(&b, "- %s\n", conn)
		}
		b.WriteString("\n")
	}

	if len(digest.OpenThreads) > 0 {
		b.WriteString("## Open Threads\n\n")
		for _, thread := range digest.OpenThreads {
			fmt.Fprintf(&b, "- %s\n", thread)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
