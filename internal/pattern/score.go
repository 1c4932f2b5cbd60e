package pattern

import (
	"math"
	"time"

	"github.com/runger/cmdlens/internal/storage"
)

// unparsedRecency is used when last_seen cannot be parsed.
const unparsedRecency = 0.5

// RecencyFactor scores how recently a pattern was seen:
// 1/(1+days/scale) over whole elapsed days, floored at RecencyFloor and
// capped at 1.
func (c Config) RecencyFactor(lastSeen string, now time.Time) float64 {
	t, err := storage.ParseTime(lastSeen)
	if err != nil {
		return unparsedRecency
	}

	days := math.Trunc(now.Sub(t).Hours() / 24)
	factor := 1.0 / (1.0 + days/c.RecencyScaleDays)
	return math.Min(math.Max(factor, c.RecencyFloor), 1.0)
}

// FrequencyFactor normalises frequency against Saturation, capped at 1.
func (c Config) FrequencyFactor(frequency int64) float64 {
	return math.Min(float64(frequency)/c.Saturation, 1.0)
}

// Confidence combines the frequency and recency factors, capped at 1.
func (c Config) Confidence(frequency int64, lastSeen string, now time.Time) float64 {
	ff := c.FrequencyFactor(frequency)
	rf := c.RecencyFactor(lastSeen, now)
	return math.Min(ff*c.FrequencyWeight+rf*c.RecencyWeight, 1.0)
}
