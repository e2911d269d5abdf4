package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sjsage522/webmonitor/helpers"
)

// MockFetcher serves canned pages by URL
type MockFetcher struct {
	mu    sync.Mutex
	pages map[string]*Page
	errs  map[string]error
	calls int
	block bool
}

var _ Fetcher = (*MockFetcher)(nil)

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		pages: make(map[string]*Page),
		errs:  make(map[string]error),
	}
}

func (m *MockFetcher) SetPage(url, text, html string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[url] = &Page{Text: text, HTML: html}
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	m.mu.Lock()
	m.calls++
	block := m.block
	page, err := m.pages[url], m.errs[url]
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("no page for %s", url)
	}
	return page, nil
}

// MockStore keeps targets and history in memory
type MockStore struct {
	mu         sync.Mutex
	targets    map[int64]*Target
	history    []HistoryEntry
	recordErr  error
	historyErr error // fails the next write carrying history, then clears
}

var _ StateStore = (*MockStore)(nil)

func NewMockStore(targets ...Target) *MockStore {
	s := &MockStore{targets: make(map[int64]*Target)}
	for i := range targets {
		t := targets[i]
		s.targets[t.ID] = &t
	}
	return s
}

func (s *MockStore) LoadActiveTargets(ctx context.Context) ([]Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Target
	for _, t := range s.targets {
		if t.Active {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MockStore) RecordCheck(ctx context.Context, targetID int64, rec CheckRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recordErr != nil {
		return false, s.recordErr
	}
	t, ok := s.targets[targetID]
	if !ok || t.LastMatchState != rec.PrevMatchState {
		return false, nil
	}
	if rec.History != nil && s.historyErr != nil {
		err := s.historyErr
		s.historyErr = nil
		return false, err
	}

	t.Status = rec.Status
	t.StatusMessage = rec.Message
	t.LastMatchState = rec.LastMatchState
	checkedAt := rec.CheckedAt
	t.LastCheckedAt = &checkedAt
	if rec.MatchedAt != nil {
		t.LastMatchedAt = rec.MatchedAt
	}
	if rec.History != nil {
		entry := *rec.History
		entry.ID = int64(len(s.history) + 1)
		s.history = append(s.history, entry)
	}
	return true, nil
}

func (s *MockStore) Get(id int64) Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.targets[id]
}

func (s *MockStore) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targets, id)
}

func (s *MockStore) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryEntry(nil), s.history...)
}

type sentMessage struct {
	to    string
	title string
	body  string
}

// MockNotifier records delivered alerts
type MockNotifier struct {
	mu       sync.Mutex
	emails   []sentMessage
	pushes   []sentMessage
	emailErr error
}

var _ Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) SendEmail(ctx context.Context, recipient, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailErr != nil {
		return m.emailErr
	}
	m.emails = append(m.emails, sentMessage{to: recipient, title: subject, body: htmlBody})
	return nil
}

func (m *MockNotifier) SendPush(ctx context.Context, deviceToken, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, sentMessage{to: deviceToken, title: title, body: body})
	return nil
}

// MockPublisher records published events
type MockPublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
}

var _ Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][]byte)}
}

func (m *MockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[key] = append([]byte(nil), message...)
	return nil
}

// MockLogger implements the helpers.LoggerInterface for testing
type MockLogger struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

var _ helpers.LoggerInterface = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) LogError(source string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, source+": "+err.Error())
}

func (m *MockLogger) LogInfo(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, fmt.Sprintf(format, args...))
}

func fixedClock() func() time.Time {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}
