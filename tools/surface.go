package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richinex/almanac/cache"
	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
	"github.com/richinex/almanac/security"
)

// Surface is the set of tools exposed to the model for one run.
// Constructed per run because the search quota is per-run state;
// the cache and validator are shared across runs.
type Surface struct {
	tools []Tool
	index map[string]Tool
	quota *SearchQuota
}

// SurfaceConfig carries the shared dependencies and credentials for
// a tool surface.
type SurfaceConfig struct {
	Validator    *security.Validator
	Cache        *cache.Cache
	GithubToken  string
	TavilyAPIKey string
	SearchQuota  int
	FetchTimeout time.Duration
}

// NewSurface creates the standard research tool surface.
func NewSurface(cfg SurfaceConfig) *Surface {
	quota := NewSearchQuota(cfg.SearchQuota)
	s := &Surface{
		index: make(map[string]Tool),
		quota: quota,
	}
	s.register(NewFetchTool(cfg.Validator, cfg.Cache, cfg.FetchTimeout))
	s.register(NewTweetTool(cfg.Cache, cfg.FetchTimeout))
	s.register(NewGithubTool(cfg.Cache, cfg.GithubToken, cfg.FetchTimeout))
	s.register(NewGithubSearchTool(cfg.GithubToken, cfg.FetchTimeout))
	s.register(NewSearchTool(cfg.TavilyAPIKey, quota, cfg.FetchTimeout))
	return s
}

// NewSurfaceFromTools builds a surface from explicit tools.
func NewSurfaceFromTools(ts ...Tool) *Surface {
	s := &Surface{index: make(map[string]Tool)}
	for _, t := range ts {
		s.register(t)
	}
	return s
}

func (s *Surface) register(t Tool) {
	s.tools = append(s.tools, t)
	s.index[t.Name()] = t
}

// Definitions returns the tool schemas in registration order.
func (s *Surface) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(s.tools))
	for _, t := range s.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Execute dispatches a tool call by name. Requests for tools that do
// not exist return ErrUnknownTool.
func (s *Surface) Execute(ctx context.Context, name string, args json.RawMessage) (model.FetchResult, error) {
	t, ok := s.index[name]
	if !ok {
		return model.FetchResult{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t.Execute(ctx, args)
}

// SearchesRemaining reports the unused search quota, if the surface
// has a search tool.
func (s *Surface) SearchesRemaining() int {
	if s.quota == nil {
		return 0
	}
	return s.quota.Remaining()
}
