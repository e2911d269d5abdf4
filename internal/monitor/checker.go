package monitor

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"sjsage522/webmonitor/helpers"
	"sjsage522/webmonitor/logger"
	"sjsage522/webmonitor/pkg/errors"
)

// AlertEvent is published to the alert stream when a target fires
type AlertEvent struct {
	TargetID int64     `json:"target_id"`
	URL      string    `json:"url"`
	Keywords []string  `json:"keywords"`
	Price    *float64  `json:"price,omitempty"`
	FiredAt  time.Time `json:"fired_at"`
}

// Checker runs one target through fetch, evaluation, gating, persistence and notification
type Checker struct {
	fetchers     Fetchers
	store        StateStore
	notifier     Notifier
	publisher    Publisher
	logger       helpers.LoggerInterface
	gate         *AlertGate
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewChecker creates a checker. publisher may be nil.
func NewChecker(
	fetchers Fetchers,
	store StateStore,
	notifier Notifier,
	pub Publisher,
	logger helpers.LoggerInterface,
	fetchTimeout time.Duration,
) *Checker {
	return &Checker{
		fetchers:     fetchers,
		store:        store,
		notifier:     notifier,
		publisher:    pub,
		logger:       logger,
		gate:         NewAlertGate(),
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

// Gate exposes the alert gate, mainly so deleted targets can be forgotten
func (c *Checker) Gate() *AlertGate {
	return c.gate
}

// CheckTarget runs the full pipeline for one target. Failures never escape as panics or
// returned errors; they are recorded on the target and reported in the outcome.
func (c *Checker) CheckTarget(ctx context.Context, target Target) CheckOutcome {
	outcome := CheckOutcome{TargetID: target.ID}
	source := "target:" + strconv.FormatInt(target.ID, 10)

	// Writes must land even when the scheduler is shutting down
	persistCtx := context.WithoutCancel(ctx)

	page, err := c.fetch(ctx, &target)
	if err != nil {
		outcome.Err = err
		if ctx.Err() != nil {
			// Shutting down; the target keeps its last real status
			return outcome
		}
		c.logger.LogError(source, err)
		rec := CheckRecord{
			Status:         StatusError,
			Message:        errors.Reason(err),
			PrevMatchState: target.LastMatchState,
			LastMatchState: target.LastMatchState,
			CheckedAt:      c.now(),
		}
		if _, storeErr := c.store.RecordCheck(persistCtx, target.ID, rec); storeErr != nil {
			c.logger.LogError(source, errors.NewStore(target.URL, "record failed check", storeErr))
		}
		return outcome
	}

	evidence, matched := Evaluate(&target, page.Text, page.HTML)
	outcome.Matched = matched
	outcome.Evidence = evidence

	c.gate.Sync(target.ID, target.LastMatchState)
	fire := c.gate.Transition(target.ID, matched)

	checkedAt := c.now()
	rec := CheckRecord{
		Status:         StatusNotMatched,
		Message:        statusMessage(matched, evidence),
		PrevMatchState: target.LastMatchState,
		LastMatchState: matched,
		CheckedAt:      checkedAt,
	}
	if matched {
		rec.Status = StatusMatched
		rec.MatchedAt = &checkedAt
	}
	if fire {
		rec.History = &HistoryEntry{
			TargetID:     target.ID,
			MatchedText:  strings.Join(evidence.MatchedKeywords, ", "),
			MatchedPrice: evidence.MatchedPrice,
			CreatedAt:    checkedAt,
		}
	}

	applied, err := c.store.RecordCheck(persistCtx, target.ID, rec)
	if err != nil {
		// Nothing was written; roll the gate back so the next check retries the edge
		c.gate.Sync(target.ID, target.LastMatchState)
		outcome.Err = errors.NewStore(target.URL, "record check", err)
		c.logger.LogError(source, outcome.Err)
		return outcome
	}
	if !applied {
		// Deleted meanwhile, or another check of this target committed first
		c.gate.Forget(target.ID)
		logger.ForTarget(target.ID).Debug().Msg("Stale check discarded")
		return outcome
	}

	logger.ForTarget(target.ID).Debug().
		Bool("matched", matched).
		Bool("fire", fire).
		Msg("Target checked")

	if !fire {
		return outcome
	}
	outcome.Fired = true

	outcome.Notified = c.notify(persistCtx, source, &target, evidence)
	c.publish(source, &target, evidence, checkedAt)

	c.logger.LogInfo("[%d] %s matched, alert sent", target.ID, target.URL)
	return outcome
}

func (c *Checker) fetch(ctx context.Context, target *Target) (*Page, error) {
	fetcher := c.fetchers.For(target)
	if fetcher == nil {
		return nil, errors.NewConfiguration("no fetcher configured", nil)
	}

	fetchCtx := ctx
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	page, err := fetcher.Fetch(fetchCtx, target.URL)
	if err != nil {
		if errors.TypeOf(err) != "" {
			return nil, err
		}
		return nil, errors.NewFetch(target.URL, "fetch failed", err)
	}
	return page, nil
}

// notify delivers email and push. Failures are logged only; history and status are already committed.
func (c *Checker) notify(ctx context.Context, source string, target *Target, evidence MatchEvidence) bool {
	if c.notifier == nil {
		return false
	}

	alert := BuildAlert(target, evidence)
	delivered := false

	if target.Recipient.Email != "" {
		if err := c.notifier.SendEmail(ctx, target.Recipient.Email, alert.Subject, alert.HTMLBody); err != nil {
			c.logger.LogError(source, errors.NewNotify(target.URL, "send email", err))
		} else {
			delivered = true
		}
	}

	if target.Recipient.DeviceToken != "" {
		if err := c.notifier.SendPush(ctx, target.Recipient.DeviceToken, alert.PushTitle, alert.PushBody); err != nil {
			c.logger.LogError(source, errors.NewNotify(target.URL, "send push", err))
		} else {
			delivered = true
		}
	}

	return delivered
}

func (c *Checker) publish(source string, target *Target, evidence MatchEvidence, firedAt time.Time) {
	if c.publisher == nil {
		return
	}

	data, err := json.Marshal(AlertEvent{
		TargetID: target.ID,
		URL:      target.URL,
		Keywords: evidence.MatchedKeywords,
		Price:    evidence.MatchedPrice,
		FiredAt:  firedAt,
	})
	if err != nil {
		c.logger.LogError(source, err)
		return
	}

	if err := c.publisher.Publish(source, data); err != nil {
		c.logger.LogError(source, err)
	}
}
