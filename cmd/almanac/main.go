// Package main provides the almanac CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/almanac/cli"
	"github.com/richinex/almanac/config"
	"github.com/richinex/almanac/model"
)

var (
	// Global flags
	provider string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "almanac",
		Short: "Bounded research agent for expanding saved links",
		Long: `almanac expands saved seeds (URLs, repos, tweets, questions) into
structured research findings using a turn-bounded LLM agent, files them
by topic, and synthesizes daily digests.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "anthropic", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(expandCmd())
	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(inboxCmd())
	rootCmd.AddCommand(topicsCmd())
	rootCmd.AddCommand(trajectoriesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSettings() (config.Settings, error) {
	return config.New(provider)
}

func addCmd() *cobra.Command {
	var note string
	var itemType string

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a seed to the inbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			t := model.ItemType(itemType)
			switch t {
			case model.ItemURL, model.ItemRepo, model.ItemTweet, model.ItemNote:
			default:
				return fmt.Errorf("unknown item type %q (url, repo, tweet, note)", itemType)
			}
			return cli.Add(settings.Paths.Inbox, args[0], note, t)
		},
	}

	cmd.Flags().StringVarP(&note, "note", "n", "", "Why this seed is interesting")
	cmd.Flags().StringVarP(&itemType, "type", "t", "url", "Item type (url, repo, tweet, note)")

	return cmd
}

func expandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand",
		Short: "Expand all inbox items into archived research findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			opts := cli.Options{Provider: provider, Verbose: verbose}
			return cli.Expand(context.Background(), settings, opts)
		},
	}
}

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Synthesize the day's expansions into a digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			opts := cli.Options{Provider: provider, Verbose: verbose}
			return cli.Digest(context.Background(), settings, opts)
		},
	}
}

func inboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "List pending inbox items",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			return cli.Inbox(settings)
		},
	}
}

func topicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List archive topics and their item counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			return cli.Topics(settings)
		},
	}
}

func trajectoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trajectories",
		Short: "List recorded agent run trajectories",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			return cli.Trajectories(settings)
		},
	}
}
