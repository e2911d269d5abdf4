package monitor

import (
	"context"
	"time"
)

// Status values recorded on a target after each check
const (
	StatusPending    = "pending"
	StatusMatched    = "matched"
	StatusNotMatched = "not_matched"
	StatusError      = "error"
)

// Recipient is where alerts for a target's owner are delivered
type Recipient struct {
	Email       string `json:"email"`
	DeviceToken string `json:"device_token,omitempty"`
}

// Owner registers targets and receives their alerts
type Owner struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DeviceToken string    `json:"device_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Target is a monitored page with its match criteria and last-known state
type Target struct {
	ID             int64      `json:"id"`
	OwnerID        int64      `json:"owner_id"`
	URL            string     `json:"url"`
	Keywords       []string   `json:"keywords"`
	PriceMin       *float64   `json:"price_min,omitempty"`
	PriceMax       *float64   `json:"price_max,omitempty"`
	Render         bool       `json:"render"`
	Active         bool       `json:"active"`
	LastMatchState bool       `json:"last_match_state"`
	Status         string     `json:"status"`
	StatusMessage  string     `json:"status_message,omitempty"`
	LastCheckedAt  *time.Time `json:"last_checked_at,omitempty"`
	LastMatchedAt  *time.Time `json:"last_matched_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Recipient      Recipient  `json:"recipient"`
}

// HasPriceBounds reports whether either price bound is set
func (t *Target) HasPriceBounds() bool {
	return t.PriceMin != nil || t.PriceMax != nil
}

// MatchEvidence is the data backing one match decision
type MatchEvidence struct {
	MatchedKeywords []string `json:"matched_keywords"`
	MatchedPrice    *float64 `json:"matched_price,omitempty"`
}

// HistoryEntry is appended each time an alert fires for a target
type HistoryEntry struct {
	ID           int64     `json:"id"`
	TargetID     int64     `json:"target_id"`
	MatchedText  string    `json:"matched_text"`
	MatchedPrice *float64  `json:"matched_price,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CheckRecord is what a single check persists on its target. It only applies while
// the stored match state still equals PrevMatchState.
type CheckRecord struct {
	Status         string
	Message        string
	PrevMatchState bool
	LastMatchState bool
	CheckedAt      time.Time
	MatchedAt      *time.Time
	// History is appended in the same transaction when the check fires
	History *HistoryEntry
}

// CheckOutcome is the result of running one target through the pipeline
type CheckOutcome struct {
	TargetID int64
	Matched  bool
	Evidence MatchEvidence
	Fired    bool
	Notified bool
	Err      error
}

// Page is what a Fetcher returns for a URL
type Page struct {
	// Text is the rendered, human-visible text of the page
	Text string
	// HTML is the raw markup
	HTML string
}

// Fetcher retrieves a page. The deadline is carried by ctx.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Notifier delivers alerts to a recipient
type Notifier interface {
	SendEmail(ctx context.Context, recipient, subject, htmlBody string) error
	// SendPush is a no-op when deviceToken is empty
	SendPush(ctx context.Context, deviceToken, title, body string) error
}

// Publisher emits alert events to an external stream
type Publisher interface {
	Publish(key string, message []byte) error
}

// StateStore is the persistence the check pipeline depends on.
// Writes against a target that no longer exists are silent no-ops.
type StateStore interface {
	LoadActiveTargets(ctx context.Context) ([]Target, error)
	// RecordCheck writes the check result and rec.History atomically. It reports false,
	// without error, when the target is gone or another check changed its match state first.
	RecordCheck(ctx context.Context, targetID int64, rec CheckRecord) (bool, error)
}

// Fetchers routes a target to its fetch strategy. Rendered falls back to Static when unset.
type Fetchers struct {
	Static   Fetcher
	Rendered Fetcher
}

// For returns the fetcher serving the target
func (f Fetchers) For(target *Target) Fetcher {
	if target.Render && f.Rendered != nil {
		return f.Rendered
	}
	return f.Static
}
