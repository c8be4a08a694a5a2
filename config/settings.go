// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/richinex/almanac/llm"
)

// Settings holds all application configuration.
type Settings struct {
	LLM   LLMConfig
	Agent AgentConfig
	Tools ToolsConfig
	Paths PathsConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider  string
	Model     string
	MaxTokens uint32
}

// AgentConfig holds run policy configuration.
type AgentConfig struct {
	MaxTurns       int
	RepairAttempts int
}

// ToolsConfig holds tool surface configuration.
type ToolsConfig struct {
	SearchQuota  int
	FetchTimeout time.Duration
	GithubToken  string
	TavilyAPIKey string
}

// PathsConfig holds on-disk locations.
type PathsConfig struct {
	Inbox        string
	Archive      string
	Digests      string
	Trajectories string
	CacheDB      string
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", llm.ModelOpenAIGPT4o, "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", llm.ModelAnthropicClaudeSonnet4, "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", llm.ModelDeepSeekChat, "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", llm.ModelGeminiFlash25, "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New creates settings for the specified provider, loading values from
// environment variables. Returns an error if the provider is unknown
// or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	maxTurns, err := getEnvInt("AGENT_MAX_TURNS", 10)
	if err != nil {
		return Settings{}, err
	}

	repairAttempts, err := getEnvInt("AGENT_REPAIR_ATTEMPTS", 2)
	if err != nil {
		return Settings{}, err
	}

	searchQuota, err := getEnvInt("SEARCH_QUOTA", 2)
	if err != nil {
		return Settings{}, err
	}

	fetchTimeoutSecs, err := getEnvInt("FETCH_TIMEOUT_SECS", 10)
	if err != nil {
		return Settings{}, err
	}

	// Get model from environment or use default
	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	return Settings{
		LLM: LLMConfig{
			Provider:  provider,
			Model:     model,
			MaxTokens: maxTokens,
		},
		Agent: AgentConfig{
			MaxTurns:       maxTurns,
			RepairAttempts: repairAttempts,
		},
		Tools: ToolsConfig{
			SearchQuota:  searchQuota,
			FetchTimeout: time.Duration(fetchTimeoutSecs) * time.Second,
			GithubToken:  os.Getenv("GITHUB_TOKEN"),
			TavilyAPIKey: os.Getenv("TAVILY_API_KEY"),
		},
		Paths: PathsConfig{
			Inbox:        getEnvString("ALMANAC_INBOX", "inbox.json"),
			Archive:      getEnvString("ALMANAC_ARCHIVE", "archive"),
			Digests:      getEnvString("ALMANAC_DIGESTS", "digests"),
			Trajectories: getEnvString("ALMANAC_TRAJECTORIES", "trajectories"),
			CacheDB:      getEnvString("ALMANAC_CACHE_DB", "fetch_cache/cache.db"),
		},
	}, nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}
