package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sjsage522/webmonitor/pkg/errors"

	"github.com/stretchr/testify/assert"
)

const testURL = "https://shop.example.sk/akcie"

func newTestTarget() Target {
	return Target{
		ID:       1,
		URL:      testURL,
		Keywords: []string{"letenky"},
		PriceMax: floatPtr(20),
		Active:   true,
		Status:   StatusPending,
		Recipient: Recipient{
			Email:       "owner@example.sk",
			DeviceToken: "12345",
		},
	}
}

func newTestChecker(fetcher *MockFetcher, store *MockStore, notifier *MockNotifier, pub *MockPublisher, log *MockLogger) *Checker {
	c := NewChecker(Fetchers{Static: fetcher}, store, notifier, pub, log, time.Second)
	c.now = fixedClock()
	return c
}

// TestCheckTargetFires tests a first match going through history, notification and publishing
func TestCheckTargetFires(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(testURL, "Letenky do Londýna", "<p>15 €</p>")
	store := NewMockStore(newTestTarget())
	notifier := &MockNotifier{}
	pub := NewMockPublisher()
	log := NewMockLogger()

	c := newTestChecker(fetcher, store, notifier, pub, log)
	outcome := c.CheckTarget(context.Background(), store.Get(1))

	assert.NoError(t, outcome.Err)
	assert.True(t, outcome.Matched)
	assert.True(t, outcome.Fired)
	assert.True(t, outcome.Notified)
	assert.Equal(t, 15.0, *outcome.Evidence.MatchedPrice)

	saved := store.Get(1)
	assert.Equal(t, StatusMatched, saved.Status)
	assert.Equal(t, "found for 15 €", saved.StatusMessage)
	assert.True(t, saved.LastMatchState)
	assert.NotNil(t, saved.LastMatchedAt)

	history := store.History()
	if assert.Len(t, history, 1) {
		assert.Equal(t, "letenky", history[0].MatchedText)
		assert.Equal(t, 15.0, *history[0].MatchedPrice)
	}

	if assert.Len(t, notifier.emails, 1) {
		assert.Equal(t, "owner@example.sk", notifier.emails[0].to)
		assert.Equal(t, "Found: letenky for 15 €", notifier.emails[0].title)
	}
	if assert.Len(t, notifier.pushes, 1) {
		assert.Equal(t, "12345", notifier.pushes[0].to)
		assert.Equal(t, "Found for 15 €", notifier.pushes[0].title)
	}

	var event AlertEvent
	if assert.Contains(t, pub.messages, "target:1") {
		assert.NoError(t, json.Unmarshal(pub.messages["target:1"], &event))
		assert.Equal(t, int64(1), event.TargetID)
		assert.Equal(t, testURL, event.URL)
	}
	assert.Empty(t, log.errors)
}

// TestCheckTargetArmedDoesNotRefire tests that a persisted match suppresses the next alert
func TestCheckTargetArmedDoesNotRefire(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(testURL, "letenky", "<p>15 €</p>")
	target := newTestTarget()
	target.LastMatchState = true
	store := NewMockStore(target)
	notifier := &MockNotifier{}

	c := newTestChecker(fetcher, store, notifier, nil, NewMockLogger())
	outcome := c.CheckTarget(context.Background(), store.Get(1))

	assert.True(t, outcome.Matched)
	assert.False(t, outcome.Fired)
	assert.Empty(t, store.History())
	assert.Empty(t, notifier.emails)
	assert.Equal(t, StatusMatched, store.Get(1).Status)
}

// TestCheckTargetEdgeSequence tests alerts over consecutive checks reloaded from the store
func TestCheckTargetEdgeSequence(t *testing.T) {
	fetcher := NewMockFetcher()
	store := NewMockStore(newTestTarget())
	notifier := &MockNotifier{}
	c := newTestChecker(fetcher, store, notifier, nil, NewMockLogger())

	decisions := []bool{false, true, true, false, true}
	var fired []int
	for i, matched := range decisions {
		if matched {
			fetcher.SetPage(testURL, "letenky", "<p>15 €</p>")
		} else {
			fetcher.SetPage(testURL, "letenky", "<p>35 €</p>")
		}

		outcome := c.CheckTarget(context.Background(), store.Get(1))
		assert.Equal(t, matched, outcome.Matched, "check %d", i+1)
		if outcome.Fired {
			fired = append(fired, i+1)
		}
	}

	assert.Equal(t, []int{2, 5}, fired)
	assert.Len(t, store.History(), 2)
	assert.Len(t, notifier.emails, 2)
}

// TestCheckTargetFetchError tests that a fetch failure is recorded without touching the match state
func TestCheckTargetFetchError(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.errs[testURL] = fmt.Errorf("unexpected status code: 503")
	target := newTestTarget()
	target.LastMatchState = true
	store := NewMockStore(target)
	notifier := &MockNotifier{}
	log := NewMockLogger()

	c := newTestChecker(fetcher, store, notifier, nil, log)
	outcome := c.CheckTarget(context.Background(), store.Get(1))

	assert.Error(t, outcome.Err)
	assert.True(t, errors.Is(outcome.Err, errors.ErrorTypeFetch))
	assert.False(t, outcome.Fired)

	saved := store.Get(1)
	assert.Equal(t, StatusError, saved.Status)
	assert.Equal(t, "fetch failed: unexpected status code: 503", saved.StatusMessage)
	assert.True(t, saved.LastMatchState, "match state survives a failed check")
	assert.NotNil(t, saved.LastCheckedAt)

	assert.Empty(t, notifier.emails)
	if assert.Len(t, log.errors, 1) {
		assert.Contains(t, log.errors[0], "target:1")
	}
}

// TestCheckTargetFetchTimeout tests that the fetch deadline is enforced
func TestCheckTargetFetchTimeout(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.block = true
	store := NewMockStore(newTestTarget())

	c := NewChecker(Fetchers{Static: fetcher}, store, &MockNotifier{}, nil, NewMockLogger(), 20*time.Millisecond)
	start := time.Now()
	outcome := c.CheckTarget(context.Background(), store.Get(1))

	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
	assert.Equal(t, StatusError, store.Get(1).Status)
}

// TestCheckTargetDeletedTarget tests that a check on a removed target writes nothing and sends nothing
func TestCheckTargetDeletedTarget(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(testURL, "letenky", "<p>15 €</p>")
	store := NewMockStore(newTestTarget())
	notifier := &MockNotifier{}

	target := store.Get(1)
	store.Delete(1)

	c := newTestChecker(fetcher, store, notifier, nil, NewMockLogger())
	outcome := c.CheckTarget(context.Background(), target)

	assert.NoError(t, outcome.Err)
	assert.True(t, outcome.Matched)
	assert.False(t, outcome.Fired)
	assert.Empty(t, store.History())
	assert.Empty(t, notifier.emails)
	assert.Empty(t, notifier.pushes)
}

// TestCheckTargetNotifyFailure tests that a notifier error leaves history and status committed
func TestCheckTargetNotifyFailure(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(testURL, "letenky", "<p>15 €</p>")
	target := newTestTarget()
	target.Recipient.DeviceToken = ""
	store := NewMockStore(target)
	notifier := &MockNotifier{emailErr: fmt.Errorf("smtp down")}
	log := NewMockLogger()

	c := newTestChecker(fetcher, store, notifier, nil, log)
	outcome := c.CheckTarget(context.Background(), store.Get(1))

	assert.NoError(t, outcome.Err)
	assert.True(t, outcome.Fired)
	assert.False(t, outcome.Notified)
	assert.Len(t, store.History(), 1)
	assert.Equal(t, StatusMatched, store.Get(1).Status)
	if assert.Len(t, log.errors, 1) {
		assert.Contains(t, log.errors[0], "smtp down")
	}
}

// TestCheckTargetStoreFailure tests that a failed status write does not fire
func TestCheckTargetStoreFailure(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(testURL, "letenky", "<p>15 €</p>")
	store := NewMockStore(newTestTarget())
	store.recordErr = fmt.Errorf("disk full")
	notifier := &MockNotifier{}

	c := newTestChecker(fetcher, store, notifier, nil, NewMockLogger())
	outcome := c.CheckTarget(context.Background(), store.Get(1))

	assert.True(t, errors.Is(outcome.Err, errors.ErrorTypeStore))
	assert.False(t, outcome.Fired)
	assert.Empty(t, notifier.emails)
	assert.Equal(t, Quiet, c.Gate().State(1))
}

// TestCheckTargetRoutesRendered tests that render targets go to the rendered fetcher
func TestCheckTargetRoutesRendered(t *testing.T) {
	static := NewMockFetcher()
	rendered := NewMockFetcher()
	rendered.SetPage(testURL, "letenky", "<p>15 €</p>")
	target := newTestTarget()
	target.Render = true
	store := NewMockStore(target)

	c := NewChecker(Fetchers{Static: static, Rendered: rendered}, store, &MockNotifier{}, nil, NewMockLogger(), time.Second)
	outcome := c.CheckTarget(context.Background(), store.Get(1))

	assert.NoError(t, outcome.Err)
	assert.Equal(t, 0, static.calls)
	assert.Equal(t, 1, rendered.calls)
}

// TestCheckTargetShutdownKeepsStatus tests that a check aborted by shutdown records nothing
func TestCheckTargetShutdownKeepsStatus(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.block = true
	store := NewMockStore(newTestTarget())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestChecker(fetcher, store, &MockNotifier{}, nil, NewMockLogger())
	outcome := c.CheckTarget(ctx, store.Get(1))

	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Equal(t, StatusPending, store.Get(1).Status)
	assert.Nil(t, store.Get(1).LastCheckedAt)
}

// TestCheckTargetHistoryFailureKeepsEdge tests that a failed history write leaves the target
// quiet so the next matching check alerts
func TestCheckTargetHistoryFailureKeepsEdge(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(testURL, "letenky", "<p>15 €</p>")
	store := NewMockStore(newTestTarget())
	store.historyErr = fmt.Errorf("disk I/O error")
	notifier := &MockNotifier{}

	c := newTestChecker(fetcher, store, notifier, nil, NewMockLogger())

	outcome := c.CheckTarget(context.Background(), store.Get(1))
	assert.True(t, errors.Is(outcome.Err, errors.ErrorTypeStore))
	assert.False(t, outcome.Fired)
	assert.False(t, store.Get(1).LastMatchState, "nothing committed")
	assert.Equal(t, StatusPending, store.Get(1).Status)
	assert.Empty(t, notifier.emails)

	var fired []bool
	for i := 0; i < 2; i++ {
		outcome = c.CheckTarget(context.Background(), store.Get(1))
		assert.NoError(t, outcome.Err)
		fired = append(fired, outcome.Fired)
	}

	assert.Equal(t, []bool{true, false}, fired)
	assert.Len(t, store.History(), 1)
	assert.Len(t, notifier.emails, 1)
}

// TestCheckTargetStaleSnapshotFiresOnce tests two checkers racing on the same target snapshot
func TestCheckTargetStaleSnapshotFiresOnce(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(testURL, "letenky", "<p>15 €</p>")
	store := NewMockStore(newTestTarget())
	notifier := &MockNotifier{}

	snapshot := store.Get(1)
	first := newTestChecker(fetcher, store, notifier, nil, NewMockLogger())
	second := newTestChecker(fetcher, store, notifier, nil, NewMockLogger())

	a := first.CheckTarget(context.Background(), snapshot)
	b := second.CheckTarget(context.Background(), snapshot)

	assert.True(t, a.Fired)
	assert.False(t, b.Fired)
	assert.NoError(t, b.Err)
	assert.True(t, b.Matched)
	assert.Len(t, store.History(), 1)
	assert.Len(t, notifier.emails, 1)
	assert.Len(t, notifier.pushes, 1)
	assert.Equal(t, Quiet, second.Gate().State(1), "losing checker forgets its view")
}

// TestCheckTargetConcurrentChecksFireOnce tests that parallel checks of one target alert once
func TestCheckTargetConcurrentChecksFireOnce(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(testURL, "letenky", "<p>15 €</p>")
	store := NewMockStore(newTestTarget())
	notifier := &MockNotifier{}
	snapshot := store.Get(1)

	var wg sync.WaitGroup
	var fired int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestChecker(fetcher, store, notifier, nil, NewMockLogger())
			if c.CheckTarget(context.Background(), snapshot).Fired {
				atomic.AddInt32(&fired, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired)
	assert.Len(t, store.History(), 1)
	assert.Len(t, notifier.emails, 1)
}
