// Package trajectory records agent runs as JSONL event streams for
// post-run analysis.
//
// Each run gets its own file under the trajectories directory. Events
// are appended as they happen so a crashed run still leaves a usable
// trace.
package trajectory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/almanac/model"
)

const resultPreviewLen = 500

// Event is one logged occurrence within a run.
type Event struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	ItemID    string `json:"item_id,omitempty"`

	// item_start
	Content string `json:"content,omitempty"`
	Note    string `json:"note,omitempty"`

	// tool_call / tool_result
	ToolName      string `json:"tool_name,omitempty"`
	ToolInput     string `json:"tool_input,omitempty"`
	ResultPreview string `json:"result_preview,omitempty"`
	Seq           int    `json:"seq,omitempty"`

	// item_complete
	ExpansionSummary string   `json:"expansion_summary,omitempty"`
	Topics           []string `json:"topics,omitempty"`
	RelatedCount     int      `json:"related_count,omitempty"`
	TurnsUsed        int      `json:"turns_used,omitempty"`
	Outcome          string   `json:"outcome,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// Logger appends run events to a JSONL file.
type Logger struct {
	runID string
	path  string

	mu   sync.Mutex
	file *os.File
}

// NewLogger opens a trajectory file for a fresh run under dir.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trajectory directory: %w", err)
	}
	runID := time.Now().Format("20060102_150405") + "_" + uuid.NewString()[:8]
	path := filepath.Join(dir, runID+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory file: %w", err)
	}
	return &Logger{runID: runID, path: path, file: file}, nil
}

// RunID returns the run identifier.
func (l *Logger) RunID() string {
	return l.runID
}

// Path returns the trajectory file path.
func (l *Logger) Path() string {
	return l.path
}

// Close flushes and closes the trajectory file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func (l *Logger) append(event Event) {
	event.Timestamp = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file.Write(append(data, '\n'))
}

// ItemStart records the beginning of an item expansion.
func (l *Logger) ItemStart(item model.InboxItem) {
	l.append(Event{
		Type:    "item_start",
		ItemID:  item.ID,
		Content: item.Content,
		Note:    item.Note,
	})
}

// ToolCall records one tool invocation from the transcript.
func (l *Logger) ToolCall(itemID string, record model.ToolCallRecord) {
	l.append(Event{
		Type:      "tool_call",
		ItemID:    itemID,
		ToolName:  record.Tool,
		ToolInput: record.Input,
		Seq:       record.Seq,
	})
	l.append(Event{
		Type:          "tool_result",
		ItemID:        itemID,
		ToolName:      record.Tool,
		ResultPreview: fmt.Sprintf("status=%s cache_hit=%t output_size=%d", record.Status, record.CacheHit, record.OutputSize),
		Seq:           record.Seq,
	})
}

// ItemComplete records a finished expansion.
func (l *Logger) ItemComplete(itemID string, expansion *model.Expansion, outcome string, turnsUsed int) {
	event := Event{
		Type:      "item_complete",
		ItemID:    itemID,
		Outcome:   outcome,
		TurnsUsed: turnsUsed,
	}
	if expansion != nil {
		summary := expansion.SourceSummary
		if len(summary) > 300 {
			summary = summary[:300]
		}
		event.ExpansionSummary = summary
		event.Topics = expansion.Topics
		event.RelatedCount = len(expansion.Related)
	}
	l.append(event)
}

// Error records a run-level failure.
func (l *Logger) Error(itemID, message string) {
	if len(message) > resultPreviewLen {
		message = message[:resultPreviewLen]
	}
	l.append(Event{Type: "error", ItemID: itemID, Error: message})
}

// Load reads all events from a trajectory file by run ID.
func Load(dir, runID string) ([]Event, error) {
	data, err := os.ReadFile(filepath.Join(dir, runID+".jsonl"))
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("malformed trajectory line: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

// List returns the run IDs present in the trajectories directory.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".jsonl") {
			ids = append(ids, strings.TrimSuffix(name, ".jsonl"))
		}
	}
	return ids, nil
}
