// Output contract validation for final model output.
//
// The contract requires the payload to parse as JSON and carry four
// fields: source_summary, key_points, related, topics. A field set to
// null does not count as present; an empty array does.

package agent

import (
	"errors"
	"fmt"
	"strings"

	jsonutil "github.com/richinex/almanac/internal/json"
	"github.com/richinex/almanac/model"
)

// contractPayload distinguishes absent fields from null and from
// empty values, which flat struct decoding cannot.
type contractPayload struct {
	SourceSummary *string              `json:"source_summary"`
	KeyPoints     *[]string            `json:"key_points"`
	Related       *[]model.RelatedItem `json:"related"`
	Topics        *[]string            `json:"topics"`
	Assessment    string               `json:"assessment"`
	ResearchNotes string               `json:"research_notes"`
}

// ContractError describes why output failed validation. Its message
// is sent back to the model verbatim as the repair request.
type ContractError struct {
	Violations []string
}

func (e *ContractError) Error() string {
	return "output contract violated: " + strings.Join(e.Violations, "; ")
}

// RepairRequest renders the violations as an instruction the model
// can act on.
func (e *ContractError) RepairRequest() string {
	var b strings.Builder
	b.WriteString("Your output did not match the required JSON format:\n")
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	b.WriteString("\nRespond again with ONLY the JSON object, including the fields " +
		"source_summary (string), key_points (array of strings), related (array), " +
		"and topics (array of non-empty strings).")
	return b.String()
}

// ParseExpansion validates raw model output against the contract and
// builds the expansion for the given item. A *ContractError return
// means the output is repairable.
func ParseExpansion(raw string, item model.InboxItem) (*model.Expansion, error) {
	var payload contractPayload
	if err := jsonutil.ExtractJSONInto(raw, &payload); err != nil {
		return nil, &ContractError{Violations: []string{fmt.Sprintf("output is not valid JSON: %v", err)}}
	}

	var violations []string
	if payload.SourceSummary == nil {
		violations = append(violations, "source_summary is missing or null")
	}
	if payload.KeyPoints == nil {
		violations = append(violations, "key_points is missing or null")
	}
	if payload.Related == nil {
		violations = append(violations, "related is missing or null")
	}
	switch {
	case payload.Topics == nil:
		violations = append(violations, "topics is missing or null")
	default:
		for i, topic := range *payload.Topics {
			if strings.TrimSpace(topic) == "" {
				violations = append(violations, fmt.Sprintf("topics[%d] is empty", i))
			}
		}
	}
	if len(violations) > 0 {
		return nil, &ContractError{Violations: violations}
	}

	expansion := &model.Expansion{
		ItemID:        item.ID,
		Source:        item.Content,
		Note:          item.Note,
		SourceSummary: *payload.SourceSummary,
		KeyPoints:     *payload.KeyPoints,
		Related:       *payload.Related,
		Topics:        *payload.Topics,
		Assessment:    payload.Assessment,
		ResearchNotes: payload.ResearchNotes,
	}
	if item.ItemType == model.ItemURL {
		expansion.SourceURL = item.Content
	}
	return expansion, nil
}

// AsContractError unwraps a contract violation if err is one.
func AsContractError(err error) (*ContractError, bool) {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
