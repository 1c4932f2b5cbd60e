// Package pattern mines recurring command sequences from invocation history
// and scores them by frequency and recency.
//
// Mining is a batch job: every contiguous window of length min..max over the
// most recent successful invocations is keyed by its command sequence, and
// sequences seen often enough are persisted as CommandPattern rows.
package pattern

import "github.com/runger/cmdlens/internal/storage"

// Separator joins a command sequence into its pattern id.
const Separator = storage.SequenceSeparator

// Config holds mining and scoring parameters.
type Config struct {
	// MinLength and MaxLength bound the window lengths used when a caller
	// does not pass its own (defaults: 2 and 5).
	MinLength int
	MaxLength int

	// HistoryWindow is how many recent successful invocations are scanned (default: 1000).
	HistoryWindow int

	// MinFrequency discards sequences seen fewer times (default: 2).
	MinFrequency int

	// Saturation is the frequency at which the frequency factor reaches 1 (default: 20).
	Saturation float64

	// RecencyScaleDays is the age in days at which the recency factor halves (default: 30).
	RecencyScaleDays float64

	// FrequencyWeight and RecencyWeight combine the two factors (defaults: 0.7 and 0.3).
	FrequencyWeight float64
	RecencyWeight   float64

	// RecencyFloor is the minimum recency factor for parseable timestamps (default: 0.1).
	RecencyFloor float64
}

// DefaultConfig returns the default mining configuration.
func DefaultConfig() Config {
	return Config{
		MinLength:        2,
		MaxLength:        5,
		HistoryWindow:    1000,
		MinFrequency:     2,
		Saturation:       20,
		RecencyScaleDays: 30,
		FrequencyWeight:  0.7,
		RecencyWeight:    0.3,
		RecencyFloor:     0.1,
	}
}
