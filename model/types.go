// Package model provides domain types shared across packages.
package model

import "time"

// ItemType classifies an inbox item.
type ItemType string

const (
	ItemURL   ItemType = "url"
	ItemRepo  ItemType = "repo"
	ItemTweet ItemType = "tweet"
	ItemNote  ItemType = "note"
)

// InboxItem is a user-seeded reference to be expanded.
// Immutable once created; produced by the inbox/CLI layer.
type InboxItem struct {
	ID        string    `json:"id"`
	ItemType  ItemType  `json:"item_type"`
	Content   string    `json:"content"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewInboxItem creates an item with a timestamp-based ID.
func NewInboxItem(itemType ItemType, content, note string) InboxItem {
	now := time.Now()
	return InboxItem{
		ID:        now.Format("20060102_150405"),
		ItemType:  itemType,
		Content:   content,
		Note:      note,
		CreatedAt: now,
	}
}

// FetchStatus tags the outcome of a content-retrieval tool call.
type FetchStatus string

const (
	StatusOK       FetchStatus = "ok"
	StatusBlocked  FetchStatus = "blocked"
	StatusError    FetchStatus = "error"
	StatusNotFound FetchStatus = "not_found"
)

// FetchResult is the uniform envelope for any content-retrieval outcome.
// Tools never return Go errors for ordinary failures; those are encoded
// in Status and Reason.
type FetchResult struct {
	Status      FetchStatus `json:"status"`
	Content     string      `json:"content"`
	ContentHash string      `json:"content_hash,omitempty"`
	SourceURL   string      `json:"source_url,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	FetchedAt   time.Time   `json:"fetched_at"`
	CacheHit    bool        `json:"cache_hit"`
}

// OK reports whether the fetch succeeded.
func (r FetchResult) OK() bool {
	return r.Status == StatusOK
}

// ToolCallRecord is one tool invocation within a run. Records are
// appended to an ordered transcript and never mutated afterwards.
type ToolCallRecord struct {
	Seq        int         `json:"seq"`
	Tool       string      `json:"tool"`
	Input      string      `json:"input"`
	Status     FetchStatus `json:"status"`
	OutputSize int         `json:"output_size"`
	CacheHit   bool        `json:"cache_hit"`
	DurationMs uint64      `json:"duration_ms"`
}

// RelatedItem is a resource discovered while expanding a seed.
type RelatedItem struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Relevance string `json:"relevance"`
	Source    string `json:"source,omitempty"`
}

// Expansion is the structured research summary produced for one
// InboxItem. SourceSummary, KeyPoints, Related, and Topics form the
// validated output contract; the remaining fields are carried for the
// archive and digest stages. Source and Note copy the seed item's
// content so attribution survives after the item leaves the inbox.
type Expansion struct {
	ItemID        string        `json:"item_id"`
	Source        string        `json:"source"`
	Note          string        `json:"note,omitempty"`
	SourceURL     string        `json:"source_url,omitempty"`
	SourceSummary string        `json:"source_summary"`
	KeyPoints     []string      `json:"key_points"`
	Related       []RelatedItem `json:"related"`
	Topics        []string      `json:"topics"`
	Assessment    string        `json:"assessment,omitempty"`
	ResearchNotes string        `json:"research_notes,omitempty"`
	ExpandedAt    time.Time     `json:"expanded_at"`
}

// DigestEntry summarizes one expansion for the digest.
type DigestEntry struct {
	ItemID         string   `json:"item_id"`
	Title          string   `json:"title"`
	OneLiner       string   `json:"one_liner"`
	KeyFinding     string   `json:"key_finding"`
	WorthFollowing []string `json:"worth_following,omitempty"`
}

// Digest is the cross-referenced summary of a batch of expansions.
type Digest struct {
	Date             string        `json:"date"`
	Entries          []DigestEntry `json:"entries"`
	CrossConnections []string      `json:"cross_connections,omitempty"`
	OpenThreads      []string      `json:"open_threads,omitempty"`
}
