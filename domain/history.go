package domain

// HistoryFilter narrows a history page to a message subset.
type HistoryFilter string

const (
	FilterNone   HistoryFilter = ""
	FilterPinned HistoryFilter = "pinned"
	FilterMedia  HistoryFilter = "media"
)

// PageRequest describes one paged history retrieval.
// SearchTerm, when set, restricts the page to full-text matches.
type PageRequest struct {
	Limit      int
	Offset     int
	SearchTerm string
	Filter     HistoryFilter
}
