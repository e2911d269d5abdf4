package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/logger"
	"sjsage522/webmonitor/pkg/errors"
)

// ErrNotFound is returned when an owner or target does not exist
var ErrNotFound = stderrors.New("not found")

// historyLimit is the default and maximum page size of ListHistory
const historyLimit = 50

// SQLStore persists owners, targets and alert history in SQLite or PostgreSQL
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

var _ monitor.StateStore = (*SQLStore)(nil)

// Open connects to the database and creates the schema if needed
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d, ok := dialectFor(driver)
	if !ok {
		return nil, errors.NewConfiguration("unsupported database driver: "+driver, nil)
	}

	db, err := sql.Open(d.driver, d.prepareDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	if d.driver == DriverPostgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.ForStore().Info().Str("driver", d.driver).Msg("Database initialized")
	return s, nil
}

// Close closes the connection pool
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) q(query string) string {
	return s.dialect.rebind(query)
}

const targetColumns = `t.id, t.owner_id, t.url, t.keywords, t.price_min, t.price_max, t.render, t.active,
	t.last_match_state, t.status, t.status_message, t.last_checked_at, t.last_matched_at, t.created_at,
	o.email, o.device_token`

const targetFrom = ` FROM targets t JOIN owners o ON o.id = t.owner_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row rowScanner) (monitor.Target, error) {
	var (
		t                          monitor.Target
		keywords                   string
		priceMin, priceMax         sql.NullFloat64
		lastCheckedAt, lastMatched sql.NullTime
	)

	err := row.Scan(
		&t.ID, &t.OwnerID, &t.URL, &keywords, &priceMin, &priceMax, &t.Render, &t.Active,
		&t.LastMatchState, &t.Status, &t.StatusMessage, &lastCheckedAt, &lastMatched, &t.CreatedAt,
		&t.Recipient.Email, &t.Recipient.DeviceToken,
	)
	if err != nil {
		return t, err
	}

	t.Keywords = splitStored(keywords)
	if priceMin.Valid {
		v := priceMin.Float64
		t.PriceMin = &v
	}
	if priceMax.Valid {
		v := priceMax.Float64
		t.PriceMax = &v
	}
	if lastCheckedAt.Valid {
		v := lastCheckedAt.Time
		t.LastCheckedAt = &v
	}
	if lastMatched.Valid {
		v := lastMatched.Time
		t.LastMatchedAt = &v
	}
	return t, nil
}

func scanTargets(rows *sql.Rows) ([]monitor.Target, error) {
	defer rows.Close()

	targets := make([]monitor.Target, 0)
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// Keywords are stored comma-joined; they never contain commas themselves
func joinStored(keywords []string) string {
	return strings.Join(keywords, ",")
}

func splitStored(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// LoadActiveTargets implements monitor.StateStore
func (s *SQLStore) LoadActiveTargets(ctx context.Context) ([]monitor.Target, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+targetColumns+targetFrom+` WHERE t.active = ? ORDER BY t.id`), true)
	if err != nil {
		return nil, errors.NewStore("", "load active targets", err)
	}
	targets, err := scanTargets(rows)
	if err != nil {
		return nil, errors.NewStore("", "scan active targets", err)
	}
	return targets, nil
}

// RecordCheck implements monitor.StateStore. The update is a compare-and-set on
// last_match_state, so of two checks started from the same snapshot only one wins.
// rec.History is inserted in the same transaction; if it fails nothing is written.
func (s *SQLStore) RecordCheck(ctx context.Context, targetID int64, rec monitor.CheckRecord) (bool, error) {
	source := fmt.Sprint(targetID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.NewStore(source, "begin record check", err)
	}
	defer tx.Rollback()

	query := `UPDATE targets SET status = ?, status_message = ?, last_match_state = ?, last_checked_at = ?`
	args := []interface{}{rec.Status, rec.Message, rec.LastMatchState, rec.CheckedAt.UTC()}
	if rec.MatchedAt != nil {
		query += `, last_matched_at = ?`
		args = append(args, rec.MatchedAt.UTC())
	}
	query += ` WHERE id = ? AND last_match_state = ?`
	args = append(args, targetID, rec.PrevMatchState)

	res, err := tx.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return false, errors.NewStore(source, "record check", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewStore(source, "record check", err)
	}
	if n == 0 {
		return false, nil
	}

	if rec.History != nil {
		entry := *rec.History
		entry.TargetID = targetID
		if err := s.appendHistory(ctx, tx, entry); err != nil {
			return false, errors.NewStore(source, "append history", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, errors.NewStore(source, "commit check", err)
	}
	return true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLStore) appendHistory(ctx context.Context, db execer, entry monitor.HistoryEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := db.ExecContext(ctx,
		s.q(`INSERT INTO history (target_id, matched_text, matched_price, created_at) VALUES (?, ?, ?, ?)`),
		entry.TargetID, entry.MatchedText, entry.MatchedPrice, createdAt.UTC(),
	)
	return err
}
