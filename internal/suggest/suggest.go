// Package suggest predicts the next command by matching the caller's most
// recent commands against the prefixes of mined patterns.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/runger/cmdlens/internal/storage"
)

// Suggestion is one predicted next command.
type Suggestion struct {
	NextCommand      string  `json:"next_command"`
	Confidence       float64 `json:"confidence"`
	PatternFrequency int64   `json:"pattern_frequency"`
	// Context is the id of the pattern that produced the winning confidence.
	Context string `json:"context"`
}

// Match ranks candidate next commands. patterns must be ordered by
// confidence descending; recent is chronological with the newest command last.
//
// For every window size W in 1..min(len(recent), len(seq)-1), a pattern whose
// first W commands equal the last W recent commands proposes seq[W]. Each
// distinct command keeps the highest confidence that proposed it, along with
// that pattern's frequency and id; the first pattern wins ties.
func Match(patterns []storage.CommandPattern, recent []string, limit int) []Suggestion {
	best := make(map[string]int)
	var out []Suggestion

	for _, p := range patterns {
		seq := p.CommandSequence
		maxW := min(len(recent), len(seq)-1)
		for w := 1; w <= maxW; w++ {
			if !slices.Equal(seq[:w], recent[len(recent)-w:]) {
				continue
			}

			next := seq[w]
			if i, ok := best[next]; ok {
				if p.Confidence > out[i].Confidence {
					out[i].Confidence = p.Confidence
					out[i].PatternFrequency = p.Frequency
					out[i].Context = p.PatternID
				}
				continue
			}
			best[next] = len(out)
			out = append(out, Suggestion{
				NextCommand:      next,
				Confidence:       p.Confidence,
				PatternFrequency: p.Frequency,
				Context:          p.PatternID,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.PatternFrequency != b.PatternFrequency {
			return a.PatternFrequency > b.PatternFrequency
		}
		return a.NextCommand < b.NextCommand
	})

	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Suggestion{}
	}
	return out
}

// PatternSource loads persisted patterns ordered by confidence descending.
type PatternSource interface {
	PatternsByConfidence(ctx context.Context) ([]storage.CommandPattern, error)
}

// Engine serves suggestions from the patterns in a store.
type Engine struct {
	source PatternSource
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger uses slog.Default().
func NewEngine(source PatternSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{source: source, logger: logger}
}

// Suggest returns at most limit next-command predictions for recent.
func (e *Engine) Suggest(ctx context.Context, recent []string, limit int) ([]Suggestion, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative (got %d)", storage.ErrInvalidArgument, limit)
	}

	patterns, err := e.source.PatternsByConfidence(ctx)
	if err != nil {
		return nil, err
	}

	suggestions := Match(patterns, recent, limit)
	e.logger.Debug("matched pattern suggestions",
		"recent", len(recent),
		"patterns", len(patterns),
		"suggestions", len(suggestions),
	)
	return suggestions, nil
}
