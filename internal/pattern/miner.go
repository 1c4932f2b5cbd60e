package pattern

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/runger/cmdlens/internal/storage"
)

// candidate accumulates every window occurrence of one sequence.
type candidate struct {
	sequence []string
	gaps     []float64 // whole seconds between consecutive commands
	lastSeen string    // latest end-of-window timestamp
}

// frequency counts occurrences: each full window contributes len-1 gaps.
// Windows with unparseable timestamps contribute fewer and so count less.
func (c *candidate) frequency() int64 {
	per := len(c.sequence) - 1
	if per < 1 {
		per = 1
	}
	return int64(len(c.gaps) / per)
}

func (c *candidate) avgGap() *float64 {
	if len(c.gaps) == 0 {
		return nil
	}
	var sum float64
	for _, g := range c.gaps {
		sum += g
	}
	avg := sum / float64(len(c.gaps))
	return &avg
}

// extract slides windows of every length in [minLen, maxLen] across the
// chronological history and groups them by pattern id.
func extract(history []storage.CommandHistory, minLen, maxLen int) map[string]*candidate {
	times := make([]time.Time, len(history))
	valid := make([]bool, len(history))
	for i, h := range history {
		t, err := storage.ParseTime(h.Timestamp)
		times[i], valid[i] = t, err == nil
	}

	out := make(map[string]*candidate)
	for length := minLen; length <= maxLen; length++ {
		for start := 0; start+length <= len(history); start++ {
			window := history[start : start+length]

			seq := make([]string, length)
			for i, h := range window {
				seq[i] = h.CommandID
			}
			id := strings.Join(seq, Separator)

			cand, ok := out[id]
			if !ok {
				cand = &candidate{sequence: seq}
				out[id] = cand
			}

			for j := start; j < start+length-1; j++ {
				if valid[j] && valid[j+1] {
					gap := times[j+1].Sub(times[j]).Truncate(time.Second)
					cand.gaps = append(cand.gaps, gap.Seconds())
				}
			}

			if end := window[length-1].Timestamp; end > cand.lastSeen {
				cand.lastSeen = end
			}
		}
	}
	return out
}

// Mine derives scored patterns from chronological history. Every returned
// pattern carries last_seen = now; confidence uses the latest occurrence.
// The result is ordered by confidence, then frequency, then pattern id.
func (c Config) Mine(history []storage.CommandHistory, minLen, maxLen int, now time.Time) []storage.CommandPattern {
	if minLen < 1 {
		minLen = 1
	}
	if maxLen < minLen || len(history) < minLen {
		return nil
	}

	stamp := storage.FormatTime(now)
	patterns := make([]storage.CommandPattern, 0)
	for id, cand := range extract(history, minLen, maxLen) {
		if len(cand.sequence) < 2 {
			continue
		}
		freq := cand.frequency()
		if freq < int64(c.MinFrequency) {
			continue
		}
		patterns = append(patterns, storage.CommandPattern{
			PatternID:              id,
			CommandSequence:        cand.sequence,
			Frequency:              freq,
			Confidence:             c.Confidence(freq, cand.lastSeen, now),
			LastSeen:               stamp,
			AvgTimeBetweenCommands: cand.avgGap(),
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.PatternID < b.PatternID
	})
	return patterns
}

// PatternStore is the subset of the event store the miner needs.
type PatternStore interface {
	RefreshPatterns(ctx context.Context, window int, mine storage.MineFunc) ([]storage.CommandPattern, error)
}

// Miner runs pattern detection against a store.
type Miner struct {
	store  PatternStore
	cfg    Config
	logger *slog.Logger
}

// NewMiner creates a miner. A nil logger uses slog.Default().
func NewMiner(store PatternStore, cfg Config, logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, cfg: cfg, logger: logger}
}

// Config returns the miner's configuration.
func (m *Miner) Config() Config {
	return m.cfg
}

// Detect mines windows of length minLen..maxLen over the configured history
// window and persists the qualifying patterns. max < min yields no patterns.
func (m *Miner) Detect(ctx context.Context, minLen, maxLen int) ([]storage.CommandPattern, error) {
	start := time.Now()
	patterns, err := m.store.RefreshPatterns(ctx, m.cfg.HistoryWindow,
		func(history []storage.CommandHistory, now time.Time) []storage.CommandPattern {
			return m.cfg.Mine(history, minLen, maxLen, now)
		})
	if err != nil {
		return nil, err
	}
	if patterns == nil {
		patterns = []storage.CommandPattern{}
	}

	m.logger.Info("detected command patterns",
		"count", len(patterns),
		"min_len", minLen,
		"max_len", maxLen,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return patterns, nil
}
