package picker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/runger/cmdlens/internal/storage"
	"github.com/runger/cmdlens/internal/suggest"
)

// fetchTimeout bounds a single Fetch call.
const fetchTimeout = 2 * time.Second

// candidatePool is how many rows are pulled before fuzzy filtering.
const candidatePool = 500

// UsageSource is the subset of the usage API the picker reads.
type UsageSource interface {
	CommandHistory(ctx context.Context, limit int) ([]storage.CommandHistory, error)
	TopCommands(ctx context.Context, limit int) ([]storage.CommandStats, error)
	GetPatternSuggestions(ctx context.Context, lastCommands []string, limit int) ([]suggest.Suggestion, error)
}

// UsageProvider serves the default tabs from a usage source and applies the
// fuzzy filter client side.
type UsageProvider struct {
	source       UsageSource
	historyDepth int
}

var _ Provider = (*UsageProvider)(nil)

// NewUsageProvider creates a provider. historyDepth is how many recent
// commands feed the "Next" tab (default 3).
func NewUsageProvider(source UsageSource, historyDepth int) *UsageProvider {
	if historyDepth <= 0 {
		historyDepth = 3
	}
	return &UsageProvider{source: source, historyDepth: historyDepth}
}

// Fetch loads the tab's rows, filters them by req.Query and caps them at req.Limit.
func (p *UsageProvider) Fetch(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var (
		items []Item
		err   error
	)
	switch req.TabID {
	case TabTop:
		items, err = p.top(ctx)
	case TabSuggested:
		items, err = p.suggested(ctx)
	default:
		items, err = p.recent(ctx)
	}
	if err != nil {
		return Response{}, fmt.Errorf("usage provider: %w", err)
	}

	items = Filter(items, req.Query)
	if req.Limit > 0 && len(items) > req.Limit {
		items = items[:req.Limit]
	}
	return Response{RequestID: req.RequestID, Items: items}, nil
}

// recent lists distinct commands, most recently used first.
func (p *UsageProvider) recent(ctx context.Context) ([]Item, error) {
	history, err := p.source.CommandHistory(ctx, candidatePool)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(history))
	items := make([]Item, 0, len(history))
	for _, h := range history {
		if _, ok := seen[h.CommandID]; ok {
			continue
		}
		seen[h.CommandID] = struct{}{}
		items = append(items, Item{Value: Sanitize(h.CommandID), Detail: shortTime(h.Timestamp)})
	}
	return items, nil
}

func (p *UsageProvider) top(ctx context.Context) ([]Item, error) {
	stats, err := p.source.TopCommands(ctx, candidatePool)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(stats))
	for _, s := range stats {
		items = append(items, Item{Value: Sanitize(s.CommandID), Detail: strconv.FormatInt(s.HitCount, 10) + "x"})
	}
	return items, nil
}

// suggested predicts the next command from the newest history entries.
func (p *UsageProvider) suggested(ctx context.Context) ([]Item, error) {
	history, err := p.source.CommandHistory(ctx, p.historyDepth)
	if err != nil {
		return nil, err
	}
	recent := make([]string, len(history))
	for i, h := range history {
		recent[len(history)-1-i] = h.CommandID
	}

	suggestions, err := p.source.GetPatternSuggestions(ctx, recent, candidatePool)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(suggestions))
	for _, s := range suggestions {
		items = append(items, Item{
			Value:  Sanitize(s.NextCommand),
			Detail: fmt.Sprintf("%.0f%%", s.Confidence*100),
		})
	}
	return items, nil
}

// shortTime renders a stored timestamp as local "Jan 2 15:04".
func shortTime(ts string) string {
	t, err := storage.ParseTime(ts)
	if err != nil {
		return ""
	}
	return t.Local().Format("Jan 2 15:04")
}
