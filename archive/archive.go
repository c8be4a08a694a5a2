// Package archive files expansions on disk by topic.
//
// Layout: one directory per sanitized topic name, one JSON file per
// expansion. An expansion with several topics is filed under each.
//
// Information Hiding:
// - Topic name sanitization hidden
// - File layout hidden
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/richinex/almanac/model"
)

// defaultTopic collects expansions the model left untagged.
const defaultTopic = "uncategorized"

// Archive is a topic-organized store of expansions.
type Archive struct {
	dir string
}

// New creates an archive rooted at dir.
func New(dir string) *Archive {
	return &Archive{dir: dir}
}

// topicPath returns the directory for a topic, sanitized for the
// filesystem.
func (a *Archive) topicPath(topic string) string {
	safe := strings.ToLower(topic)
	safe = strings.ReplaceAll(safe, " ", "-")
	safe = strings.ReplaceAll(safe, "/", "-")
	return filepath.Join(a.dir, safe)
}

// Store files an expansion under each of its topics and returns the
// paths written.
func (a *Archive) Store(expansion model.Expansion) ([]string, error) {
	topics := expansion.Topics
	if len(topics) == 0 {
		topics = []string{defaultTopic}
	}

	data, err := json.MarshalIndent(expansion, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode expansion %s: %w", expansion.ItemID, err)
	}

	var paths []string
	for _, topic := range topics {
		dir := a.topicPath(topic)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create topic directory %s: %w", dir, err)
		}
		path := filepath.Join(dir, expansion.ItemID+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ListTopics returns the topic names present in the archive, sorted.
func (a *Archive) ListTopics() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var topics []string
	for _, entry := range entries {
		if entry.IsDir() {
			topics = append(topics, entry.Name())
		}
	}
	sort.Strings(topics)
	return topics, nil
}

// LoadTopic returns all expansions filed under a topic.
func (a *Archive) LoadTopic(topic string) ([]model.Expansion, error) {
	dir := a.topicPath(topic)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read topic %s: %w", topic, err)
	}

	var expansions []model.Expansion
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		var expansion model.Expansion
		if err := json.Unmarshal(data, &expansion); err != nil {
			// Skip files that are not expansions.
			continue
		}
		expansions = append(expansions, expansion)
	}
	return expansions, nil
}

// FindRelated returns archived expansions sharing any of the given
// topics, deduplicated by item ID and excluding the listed IDs.
func (a *Archive) FindRelated(topics []string, excludeIDs map[string]bool) ([]model.Expansion, error) {
	seen := make(map[string]bool)
	var related []model.Expansion

	for _, topic := range topics {
		expansions, err := a.LoadTopic(topic)
		if err != nil {
			return nil, err
		}
		for _, exp := range expansions {
			if excludeIDs[exp.ItemID] || seen[exp.ItemID] {
				continue
			}
			seen[exp.ItemID] = true
			related = append(related, exp)
		}
	}
	return related, nil
}

// ContextSummary renders prior expansions as research context for the
// agent prompt, most recent first, capped at maxItems.
func ContextSummary(expansions []model.Expansion, maxItems int) string {
	if len(expansions) == 0 {
		return ""
	}

	sorted := make([]model.Expansion, len(expansions))
	copy(sorted, expansions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ExpandedAt.After(sorted[j].ExpandedAt)
	})
	if len(sorted) > maxItems {
		sorted = sorted[:maxItems]
	}

	var b strings.Builder
	b.WriteString("## Related prior research\n\n")
	for _, exp := range sorted {
		heading := exp.SourceURL
		if heading == "" {
			heading = exp.ItemID
		}
		fmt.Fprintf(&b, "### %s\n", heading)
		fmt.Fprintf(&b, "**Topics:** %s\n", strings.Join(exp.Topics, ", "))
		fmt.Fprintf(&b, "**Summary:** %s\n", clip(exp.SourceSummary, 300))
		points := exp.KeyPoints
		if len(points) > 3 {
			points = points[:3]
		}
		fmt.Fprintf(&b, "**Key points:** %s\n\n", strings.Join(points, "; "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
