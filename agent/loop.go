// Turn-bounded tool-calling loop.
//
// The loop alternates model turns and tool execution. Tool calls
// within a turn run in the order the model requested them; the
// transcript preserves that order. Cancellation is observed at each
// turn boundary.
//
// Information Hiding:
// - Conversation assembly hidden
// - Repair cycle hidden
// - Transcript bookkeeping hidden

package agent

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
	"github.com/richinex/almanac/tools"
)

// Agent expands inbox items through a bounded research loop.
type Agent struct {
	config  Config
	client  *llm.Client
	surface *tools.Surface
	logger  *zap.Logger
}

// New creates an agent over the given provider and tool surface.
func New(config Config, provider llm.Provider, surface *tools.Surface, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		config:  config,
		client:  llm.NewClient(provider),
		surface: surface,
		logger:  logger,
	}
}

// Expand researches one inbox item and returns the outcome. The
// returned outcome always carries the full tool call transcript.
func (a *Agent) Expand(ctx context.Context, item model.InboxItem, pc PromptContext) RunOutcome {
	startTime := time.Now()
	var transcript []model.ToolCallRecord
	var totalUsage llm.TokenUsage
	llmCalls := 0
	turns := 0

	meta := func() Metadata {
		return Metadata{
			Turns:           turns,
			LLMCalls:        llmCalls,
			ExecutionTimeMs: uint64(time.Since(startTime).Milliseconds()),
			TokenUsage:      &totalUsage,
		}
	}

	conversation := []llm.ChatMessage{
		llm.SystemMessage(a.config.systemPrompt()),
		llm.UserMessage(buildUserPrompt(item, pc)),
	}

	for turns < a.config.MaxTurns {
		if err := ctx.Err(); err != nil {
			return NewAbortedOutcome("run cancelled: "+err.Error(), transcript, meta())
		}
		turns++

		a.logger.Debug("model turn",
			zap.String("item_id", item.ID),
			zap.Int("turn", turns))

		response, err := a.client.ChatWithTools(ctx, conversation, a.surface.Definitions())
		if err != nil {
			return NewAbortedOutcome("model call failed: "+err.Error(), transcript, meta())
		}
		llmCalls++
		totalUsage.Add(response.Usage)

		if len(response.ToolCalls) == 0 {
			return a.finalize(ctx, item, response.Content, conversation, transcript, &totalUsage, &llmCalls, meta)
		}

		conversation = append(conversation, llm.ChatMessage{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			record, output, err := a.executeToolCall(ctx, call, len(transcript)+1)
			if err != nil {
				if errors.Is(err, tools.ErrUnknownTool) {
					return NewToolFatalOutcome(err.Error(), transcript, meta())
				}
				// Malformed arguments go back to the model as text so
				// it can correct itself.
				output = "Tool error: " + err.Error()
				record.Status = model.StatusError
			}
			transcript = append(transcript, record)
			conversation = append(conversation, llm.ToolResultMessage(call.ID, output))
		}
	}

	return NewTurnLimitOutcome(transcript, meta())
}

// executeToolCall runs one tool call and renders its envelope for the
// conversation.
func (a *Agent) executeToolCall(ctx context.Context, call llm.ToolCall, seq int) (model.ToolCallRecord, string, error) {
	start := time.Now()
	record := model.ToolCallRecord{
		Seq:   seq,
		Tool:  call.Name,
		Input: string(call.Arguments),
	}

	result, err := a.surface.Execute(ctx, call.Name, call.Arguments)
	record.DurationMs = uint64(time.Since(start).Milliseconds())
	if err != nil {
		return record, "", err
	}

	record.Status = result.Status
	record.CacheHit = result.CacheHit
	record.OutputSize = len(result.Content)

	a.logger.Debug("tool call",
		zap.String("tool", call.Name),
		zap.String("status", string(result.Status)),
		zap.Bool("cache_hit", result.CacheHit),
		zap.Int("output_size", record.OutputSize))

	return record, renderEnvelope(result), nil
}

// renderEnvelope converts a fetch result into the text the model sees.
func renderEnvelope(result model.FetchResult) string {
	if result.OK() {
		return result.Content
	}
	return string(result.Status) + ": " + result.Reason
}

// finalize validates the model's final output, running the bounded
// repair cycle when the contract is violated. Repair round trips do
// not consume research turns.
func (a *Agent) finalize(
	ctx context.Context,
	item model.InboxItem,
	content string,
	conversation []llm.ChatMessage,
	transcript []model.ToolCallRecord,
	totalUsage *llm.TokenUsage,
	llmCalls *int,
	meta func() Metadata,
) RunOutcome {
	raw := content
	var lastErr *ContractError

	for attempt := 0; ; attempt++ {
		expansion, err := ParseExpansion(raw, item)
		if err == nil {
			expansion.ExpandedAt = time.Now()
			return NewCompletedOutcome(expansion, transcript, meta())
		}

		ce, ok := AsContractError(err)
		if !ok {
			return NewValidationFailedOutcome(err.Error(), raw, transcript, meta())
		}
		lastErr = ce
		if attempt >= a.config.RepairAttempts {
			break
		}
		if ctx.Err() != nil {
			break
		}

		a.logger.Debug("contract repair",
			zap.String("item_id", item.ID),
			zap.Int("attempt", attempt+1),
			zap.Strings("violations", ce.Violations))

		conversation = append(conversation,
			llm.AssistantMessage(raw),
			llm.UserMessage(ce.RepairRequest()),
		)
		response, callErr := a.client.ChatWithTools(ctx, conversation, a.surface.Definitions())
		if callErr != nil {
			return NewAbortedOutcome("repair call failed: "+callErr.Error(), transcript, meta())
		}
		*llmCalls++
		totalUsage.Add(response.Usage)
		raw = response.Content
	}

	return NewValidationFailedOutcome(lastErr.Error(), raw, transcript, meta())
}
