package picker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/cmdlens/internal/storage"
	"github.com/runger/cmdlens/internal/suggest"
)

type fakeSource struct {
	history     []storage.CommandHistory
	top         []storage.CommandStats
	suggestions []suggest.Suggestion
	err         error

	gotRecent []string
}

func (f *fakeSource) CommandHistory(_ context.Context, limit int) ([]storage.CommandHistory, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history[:min(limit, len(f.history))], nil
}

func (f *fakeSource) TopCommands(context.Context, int) ([]storage.CommandStats, error) {
	return f.top, f.err
}

func (f *fakeSource) GetPatternSuggestions(_ context.Context, recent []string, _ int) ([]suggest.Suggestion, error) {
	f.gotRecent = recent
	return f.suggestions, f.err
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		history: []storage.CommandHistory{
			{CommandID: "git commit", Timestamp: "2026-01-02T10:00:03.000000000Z", Success: true},
			{CommandID: "git add", Timestamp: "2026-01-02T10:00:02.000000000Z", Success: true},
			{CommandID: "git commit", Timestamp: "2026-01-02T10:00:01.000000000Z", Success: true},
			{CommandID: "git status", Timestamp: "2026-01-02T10:00:00.000000000Z", Success: true},
		},
		top: []storage.CommandStats{
			{CommandID: "git status", HitCount: 9},
			{CommandID: "make", HitCount: 4},
		},
		suggestions: []suggest.Suggestion{
			{NextCommand: "git push", Confidence: 0.42},
		},
	}
}

func TestUsageProvider_RecentDeduplicates(t *testing.T) {
	t.Parallel()

	p := NewUsageProvider(newFakeSource(), 0)
	resp, err := p.Fetch(context.Background(), Request{RequestID: 7, TabID: TabRecent})
	require.NoError(t, err)
	assert.EqualValues(t, 7, resp.RequestID)

	values := make([]string, len(resp.Items))
	for i, it := range resp.Items {
		values[i] = it.Value
	}
	assert.Equal(t, []string{"git commit", "git add", "git status"}, values)
	assert.NotEmpty(t, resp.Items[0].Detail)
}

func TestUsageProvider_TopFilterAndLimit(t *testing.T) {
	t.Parallel()

	p := NewUsageProvider(newFakeSource(), 3)
	resp, err := p.Fetch(context.Background(), Request{TabID: TabTop, Query: "mk"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, Item{Value: "make", Detail: "4x"}, resp.Items[0])

	resp, err = p.Fetch(context.Background(), Request{TabID: TabTop, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
}

func TestUsageProvider_SuggestedUsesChronologicalRecent(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	p := NewUsageProvider(src, 3)
	resp, err := p.Fetch(context.Background(), Request{TabID: TabSuggested})
	require.NoError(t, err)

	assert.Equal(t, []string{"git commit", "git add", "git commit"}, src.gotRecent)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, Item{Value: "git push", Detail: "42%"}, resp.Items[0])
}

func TestUsageProvider_Error(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.err = errors.New("unavailable")
	_, err := NewUsageProvider(src, 3).Fetch(context.Background(), Request{TabID: TabRecent})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}
