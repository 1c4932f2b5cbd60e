package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/runger/cmdlens/internal/storage"
)

func TestRecencyFactor(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastSeen string
		want     float64
	}{
		{"same instant", storage.FormatTime(now), 1.0},
		{"under a day truncates to zero", storage.FormatTime(now.Add(-23 * time.Hour)), 1.0},
		{"thirty days halves", storage.FormatTime(now.Add(-30 * 24 * time.Hour)), 0.5},
		{"ninety days", storage.FormatTime(now.Add(-90 * 24 * time.Hour)), 0.25},
		{"ancient hits the floor", storage.FormatTime(now.Add(-2000 * 24 * time.Hour)), 0.1},
		{"future clamps to one", storage.FormatTime(now.Add(10 * 24 * time.Hour)), 1.0},
		{"foreign offset parses", "2026-06-01T14:00:00+02:00", 1.0},
		{"unparseable", "yesterday", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cfg.RecencyFactor(tt.lastSeen, now), 1e-12)
		})
	}
}

func TestConfidence(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fresh := storage.FormatTime(now)

	assert.InDelta(t, 0.7*(2.0/20)+0.3, cfg.Confidence(2, fresh, now), 1e-12)
	assert.InDelta(t, 1.0, cfg.Confidence(20, fresh, now), 1e-12)
	assert.InDelta(t, 1.0, cfg.Confidence(500, fresh, now), 1e-12, "frequency factor saturates")
	assert.InDelta(t, 0.7*(2.0/20)+0.3*0.5, cfg.Confidence(2, "bad", now), 1e-12)

	old := storage.FormatTime(now.Add(-5000 * 24 * time.Hour))
	assert.InDelta(t, 0.7+0.03, cfg.Confidence(20, old, now), 1e-12)
}

func TestFrequencyFactor(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.InDelta(t, 0.0, cfg.FrequencyFactor(0), 1e-12)
	assert.InDelta(t, 0.5, cfg.FrequencyFactor(10), 1e-12)
	assert.InDelta(t, 1.0, cfg.FrequencyFactor(40), 1e-12)
}
