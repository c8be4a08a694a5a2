package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/richinex/almanac/model"
)

func TestInboxRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.json")

	// Missing file is an empty inbox.
	items, err := LoadInbox(path)
	if err != nil {
		t.Fatalf("LoadInbox: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %v, want empty", items)
	}

	a := model.NewInboxItem(model.ItemURL, "https://example.com/a", "interesting")
	b := model.InboxItem{ID: "b1", ItemType: model.ItemRepo, Content: "richinex/almanac"}
	if err := AddToInbox(path, a); err != nil {
		t.Fatalf("AddToInbox: %v", err)
	}
	if err := AddToInbox(path, b); err != nil {
		t.Fatalf("AddToInbox: %v", err)
	}

	items, err = LoadInbox(path)
	if err != nil {
		t.Fatalf("LoadInbox: %v", err)
	}
	if len(items) != 2 || items[0].ID != a.ID || items[1].ID != "b1" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Note != "interesting" || items[1].ItemType != model.ItemRepo {
		t.Errorf("fields lost in round trip: %+v", items)
	}
}

func TestRemoveFromInbox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.json")
	for _, id := range []string{"a", "b", "c"} {
		item := model.InboxItem{ID: id, ItemType: model.ItemURL, Content: "https://example.com/" + id}
		if err := AddToInbox(path, item); err != nil {
			t.Fatalf("AddToInbox: %v", err)
		}
	}

	if err := RemoveFromInbox(path, map[string]bool{"a": true, "c": true}); err != nil {
		t.Fatalf("RemoveFromInbox: %v", err)
	}

	items, err := LoadInbox(path)
	if err != nil {
		t.Fatalf("LoadInbox: %v", err)
	}
	if len(items) != 1 || items[0].ID != "b" {
		t.Errorf("items = %+v, want only b", items)
	}
}

func TestLoadInboxMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadInbox(path); err == nil {
		t.Error("expected error for malformed inbox")
	}
}
