// Agent configuration.
//
// Information Hiding:
// - Default values hidden

package agent

// Config holds the run policy for the expansion loop.
type Config struct {
	// MaxTurns caps the number of model turns per item.
	MaxTurns int

	// RepairAttempts caps contract-repair round trips after the model
	// stops calling tools.
	RepairAttempts int

	// SystemPrompt overrides the built-in research prompt when set.
	SystemPrompt string
}

// DefaultConfig returns the standard run policy.
func DefaultConfig() Config {
	return Config{
		MaxTurns:       10,
		RepairAttempts: 2,
	}
}

func (c Config) systemPrompt() string {
	if c.SystemPrompt != "" {
		return c.SystemPrompt
	}
	return researchSystemPrompt
}
