// Command execution for CLI commands.
//
// Information Hiding:
// - Provider and tool surface setup hidden
// - Archive/trajectory wiring hidden
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/almanac/agent"
	"github.com/richinex/almanac/archive"
	"github.com/richinex/almanac/cache"
	"github.com/richinex/almanac/config"
	"github.com/richinex/almanac/digest"
	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
	"github.com/richinex/almanac/security"
	"github.com/richinex/almanac/tools"
	"github.com/richinex/almanac/trajectory"
)

// priorContextItems caps how many archived expansions feed the prompt.
const priorContextItems = 5

// Options holds CLI execution options.
type Options struct {
	Provider string
	Verbose  bool
}

// newLogger builds the process logger. Verbose enables debug output.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}
	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}
	return llm.NewProviderWithKey(providerType, apiKey, settings.LLM.Model, settings.LLM.MaxTokens, 0.7)
}

// Add appends a seed to the inbox.
func Add(inboxPath, content, note string, itemType model.ItemType) error {
	item := model.NewInboxItem(itemType, content, note)
	if err := AddToInbox(inboxPath, item); err != nil {
		return err
	}
	fmt.Printf("Added %s item %s\n", item.ItemType, item.ID)
	return nil
}

// Expand processes every inbox item: runs the research loop, archives
// completed expansions, prunes them from the inbox, and writes a
// trajectory for the run.
func Expand(ctx context.Context, settings config.Settings, opts Options) error {
	logger, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	items, err := LoadInbox(settings.Paths.Inbox)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("Inbox is empty.")
		return nil
	}

	provider, err := createProvider(settings)
	if err != nil {
		return err
	}

	store, err := cache.OpenSqlite(settings.Paths.CacheDB)
	if err != nil {
		return fmt.Errorf("failed to open fetch cache: %w", err)
	}
	defer store.Close()
	contentCache := cache.New(store, logger)

	arch := archive.New(settings.Paths.Archive)
	traj, err := trajectory.NewLogger(settings.Paths.Trajectories)
	if err != nil {
		return err
	}
	defer traj.Close()

	agentConfig := agent.Config{
		MaxTurns:       settings.Agent.MaxTurns,
		RepairAttempts: settings.Agent.RepairAttempts,
	}

	var archivedIDs = make(map[string]bool)
	completed := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Printf("Expanding %s: %s\n", item.ID, item.Content)
		traj.ItemStart(item)

		// Fresh surface per item so the search quota resets.
		surface := tools.NewSurface(tools.SurfaceConfig{
			Validator:    security.NewValidator(),
			Cache:        contentCache,
			GithubToken:  settings.Tools.GithubToken,
			TavilyAPIKey: settings.Tools.TavilyAPIKey,
			SearchQuota:  settings.Tools.SearchQuota,
			FetchTimeout: settings.Tools.FetchTimeout,
		})
		a := agent.New(agentConfig, provider, surface, logger)

		pc, err := buildPromptContext(arch, item)
		if err != nil {
			return err
		}

		outcome := a.Expand(ctx, item, pc)
		for _, record := range outcome.Transcript {
			traj.ToolCall(item.ID, record)
		}

		if !outcome.IsCompleted() {
			traj.Error(item.ID, outcome.Error)
			traj.ItemComplete(item.ID, nil, outcome.Type.String(), outcome.Metadata.Turns)
			fmt.Fprintf(os.Stderr, "  %s: %s\n", outcome.Type, outcome.Error)
			continue
		}

		traj.ItemComplete(item.ID, outcome.Expansion, outcome.Type.String(), outcome.Metadata.Turns)
		paths, err := arch.Store(*outcome.Expansion)
		if err != nil {
			return err
		}
		archivedIDs[item.ID] = true
		completed++
		fmt.Printf("  archived under %d topic(s), %d tool calls, %d turns\n",
			len(paths), len(outcome.Transcript), outcome.Metadata.Turns)
	}

	if len(archivedIDs) > 0 {
		if err := RemoveFromInbox(settings.Paths.Inbox, archivedIDs); err != nil {
			return err
		}
	}

	fmt.Printf("Done: %d/%d items expanded. Trajectory: %s\n", completed, len(items), traj.Path())
	return nil
}

// buildPromptContext gathers known topics and related prior research.
func buildPromptContext(arch *archive.Archive, item model.InboxItem) (agent.PromptContext, error) {
	topics, err := arch.ListTopics()
	if err != nil {
		return agent.PromptContext{}, err
	}

	related, err := arch.FindRelated(topics, map[string]bool{item.ID: true})
	if err != nil {
		return agent.PromptContext{}, err
	}

	return agent.PromptContext{
		KnownTopics:  topics,
		PriorContext: archive.ContextSummary(related, priorContextItems),
	}, nil
}

// Digest synthesizes the day's archived expansions into a digest file.
func Digest(ctx context.Context, settings config.Settings, opts Options) error {
	provider, err := createProvider(settings)
	if err != nil {
		return err
	}

	arch := archive.New(settings.Paths.Archive)
	topics, err := arch.ListTopics()
	if err != nil {
		return err
	}
	all, err := arch.FindRelated(topics, nil)
	if err != nil {
		return err
	}
	expansions := digest.ForDate(all, time.Now().Format("2006-01-02"))
	if len(expansions) == 0 {
		fmt.Println("Nothing to digest.")
		return nil
	}

	d, err := digest.Synthesize(ctx, llm.NewClient(provider), expansions)
	if err != nil {
		return err
	}

	markdown := digest.RenderMarkdown(d, expansions)
	if err := os.MkdirAll(settings.Paths.Digests, 0o755); err != nil {
		return fmt.Errorf("failed to create digests directory: %w", err)
	}
	path := filepath.Join(settings.Paths.Digests, d.Date+".md")
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write digest: %w", err)
	}

	fmt.Printf("Digest written to %s (%d entries)\n", path, len(d.Entries))
	return nil
}

// Topics prints the archive's topics with their item counts.
func Topics(settings config.Settings) error {
	arch := archive.New(settings.Paths.Archive)
	topics, err := arch.ListTopics()
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		fmt.Println("Archive is empty.")
		return nil
	}
	for _, topic := range topics {
		expansions, err := arch.LoadTopic(topic)
		if err != nil {
			return err
		}
		fmt.Printf("%-40s %d item(s)\n", topic, len(expansions))
	}
	return nil
}

// Inbox prints the pending items.
func Inbox(settings config.Settings) error {
	items, err := LoadInbox(settings.Paths.Inbox)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("Inbox is empty.")
		return nil
	}
	for _, item := range items {
		fmt.Printf("%s  [%s]  %s\n", item.ID, item.ItemType, item.Content)
		if item.Note != "" {
			fmt.Printf("%18s note: %s\n", "", item.Note)
		}
	}
	return nil
}

// Trajectories prints recorded run IDs, most recent last.
func Trajectories(settings config.Settings) error {
	ids, err := trajectory.List(settings.Paths.Trajectories)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No trajectories recorded.")
		return nil
	}
	for _, id := range ids {
		events, err := trajectory.Load(settings.Paths.Trajectories, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %d event(s)\n", id, len(events))
	}
	return nil
}
