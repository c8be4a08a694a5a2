// Package agent runs the turn-bounded research expansion loop.
//
// Contains the outcome types produced by a run.
package agent

import (
	"github.com/richinex/almanac/llm"
	"github.com/richinex/almanac/model"
)

// OutcomeType indicates how a run ended.
type OutcomeType int

const (
	// OutcomeCompleted means the model produced a valid expansion.
	OutcomeCompleted OutcomeType = iota

	// OutcomeTurnLimit means the turn budget ran out before the model
	// produced its final output.
	OutcomeTurnLimit

	// OutcomeValidationFailed means the final output never satisfied
	// the contract, even after repair attempts.
	OutcomeValidationFailed

	// OutcomeToolFatal means the model requested a tool that does not
	// exist, which invalidates the rest of the run.
	OutcomeToolFatal

	// OutcomeAborted means the run stopped before producing output,
	// either from cancellation or a failed model call.
	OutcomeAborted
)

// String returns the outcome name.
func (t OutcomeType) String() string {
	switch t {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTurnLimit:
		return "turn_limit_exceeded"
	case OutcomeValidationFailed:
		return "validation_failed"
	case OutcomeToolFatal:
		return "tool_fatal"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Metadata carries execution statistics for a run.
type Metadata struct {
	Turns           int
	LLMCalls        int
	ExecutionTimeMs uint64
	TokenUsage      *llm.TokenUsage
}

// RunOutcome is the result of expanding one inbox item. Every variant
// carries the full ordered tool call transcript.
type RunOutcome struct {
	Type       OutcomeType
	Expansion  *model.Expansion // For Completed
	Error      string           // For non-completed variants
	RawOutput  string           // Last model output, for diagnostics
	Transcript []model.ToolCallRecord
	Metadata   Metadata
}

// NewCompletedOutcome creates a successful outcome.
func NewCompletedOutcome(expansion *model.Expansion, transcript []model.ToolCallRecord, meta Metadata) RunOutcome {
	return RunOutcome{
		Type:       OutcomeCompleted,
		Expansion:  expansion,
		Transcript: transcript,
		Metadata:   meta,
	}
}

// NewTurnLimitOutcome creates an outcome for an exhausted turn budget.
func NewTurnLimitOutcome(transcript []model.ToolCallRecord, meta Metadata) RunOutcome {
	return RunOutcome{
		Type:       OutcomeTurnLimit,
		Error:      "turn budget exhausted before final output",
		Transcript: transcript,
		Metadata:   meta,
	}
}

// NewValidationFailedOutcome creates an outcome for output that never
// satisfied the contract.
func NewValidationFailedOutcome(reason, rawOutput string, transcript []model.ToolCallRecord, meta Metadata) RunOutcome {
	return RunOutcome{
		Type:       OutcomeValidationFailed,
		Error:      reason,
		RawOutput:  rawOutput,
		Transcript: transcript,
		Metadata:   meta,
	}
}

// NewAbortedOutcome creates an outcome for a run cut short by
// cancellation or a model call failure.
func NewAbortedOutcome(reason string, transcript []model.ToolCallRecord, meta Metadata) RunOutcome {
	return RunOutcome{
		Type:       OutcomeAborted,
		Error:      reason,
		Transcript: transcript,
		Metadata:   meta,
	}
}

// NewToolFatalOutcome creates an outcome for an unknown tool request.
func NewToolFatalOutcome(reason string, transcript []model.ToolCallRecord, meta Metadata) RunOutcome {
	return RunOutcome{
		Type:       OutcomeToolFatal,
		Error:      reason,
		Transcript: transcript,
		Metadata:   meta,
	}
}

// IsCompleted reports whether the run produced a valid expansion.
func (o RunOutcome) IsCompleted() bool {
	return o.Type == OutcomeCompleted
}
