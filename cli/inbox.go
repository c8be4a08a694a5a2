// Inbox file handling.
//
// The inbox is a JSON array of items waiting to be expanded. Items
// are appended by the add command and removed once archived.

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/richinex/almanac/model"
)

// LoadInbox reads the inbox file. A missing file is an empty inbox.
func LoadInbox(path string) ([]model.InboxItem, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	var items []model.InboxItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("malformed inbox file %s: %w", path, err)
	}
	return items, nil
}

// SaveInbox writes the inbox file atomically.
func SaveInbox(path string, items []model.InboxItem) error {
	if items == nil {
		items = []model.InboxItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode inbox: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write inbox: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace inbox: %w", err)
	}
	return nil
}

// AddToInbox appends an item to the inbox file.
func AddToInbox(path string, item model.InboxItem) error {
	items, err := LoadInbox(path)
	if err != nil {
		return err
	}
	return SaveInbox(path, append(items, item))
}

// RemoveFromInbox rewrites the inbox without the given item IDs.
func RemoveFromInbox(path string, ids map[string]bool) error {
	items, err := LoadInbox(path)
	if err != nil {
		return err
	}

	kept := items[:0]
	for _, item := range items {
		if !ids[item.ID] {
			kept = append(kept, item)
		}
	}
	return SaveInbox(path, kept)
}
