package picker

import "context"

// Provider supplies items to the picker.
type Provider interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// Request describes what the picker wants from a Provider.
type Request struct {
	RequestID uint64 // Monotonically increasing, for stale response detection
	Query     string // Fuzzy filter typed by the user
	TabID     string
	Limit     int
}

// Response carries items back from a Provider.
type Response struct {
	RequestID uint64 // Must match Request.RequestID to be accepted
	Items     []Item
}

// Item is one selectable row.
type Item struct {
	// Value is printed when the item is chosen.
	Value string
	// Detail is shown dimmed next to the value (hit count, confidence, ...).
	Detail string
}

// Tab is one item source the user can cycle through with Tab.
type Tab struct {
	ID    string
	Label string
}

// Tab identifiers understood by UsageProvider.
const (
	TabRecent    = "recent"
	TabTop       = "top"
	TabSuggested = "suggested"
)

// DefaultTabs returns the standard tab set.
func DefaultTabs() []Tab {
	return []Tab{
		{ID: TabRecent, Label: "Recent"},
		{ID: TabTop, Label: "Frequent"},
		{ID: TabSuggested, Label: "Next"},
	}
}
