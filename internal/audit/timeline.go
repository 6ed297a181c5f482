package audit

import "time"

// TimelineFilters holds the base filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow represents one audit timeline entry.
type TimelineRow struct {
	At       time.Time `json:"at"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Entity   string    `json:"entity"`
	EntityID string    `json:"entity_id"`
	Meta     string    `json:"meta,omitempty"`
}

// MovementRow represents one ledger movement in an export.
type MovementRow struct {
	At          time.Time `json:"at"`
	ArticleType string    `json:"article_type"`
	ArticleID   int64     `json:"article_id"`
	Movement    string    `json:"movement"`
	Delta       float64   `json:"delta"`
	Unit        string    `json:"unit"`
	Before      float64   `json:"before"`
	After       float64   `json:"after"`
	Reason      string    `json:"reason"`
	Reference   string    `json:"reference,omitempty"`
	Actor       string    `json:"actor"`
}

// PagingInfo stores simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
