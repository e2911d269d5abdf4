package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"math"
	"strings"

	"sjsage522/webmonitor/helpers"
	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/pkg/errors"
)

// NewTarget is the input for CreateTarget
type NewTarget struct {
	OwnerID  int64
	URL      string
	Keywords string
	PriceMin *float64
	PriceMax *float64
	Render   bool
}

// Validate normalises the input in place and rejects unusable targets
func (n *NewTarget) Validate() ([]string, error) {
	n.URL = helpers.NormalizeURL(n.URL)
	if n.URL == "" {
		return nil, errors.NewValidation("url", "url is required")
	}

	keywords := helpers.SplitKeywords(n.Keywords)
	if len(keywords) == 0 {
		return nil, errors.NewValidation("keywords", "at least one keyword is required")
	}

	if !finite(n.PriceMin) || !finite(n.PriceMax) {
		return nil, errors.NewValidation("price", "price bounds must be finite numbers")
	}
	if n.PriceMin != nil && *n.PriceMin < 0 {
		return nil, errors.NewValidation("price_min", "price bounds must not be negative")
	}
	if n.PriceMax != nil && *n.PriceMax < 0 {
		return nil, errors.NewValidation("price_max", "price bounds must not be negative")
	}
	if n.PriceMin != nil && n.PriceMax != nil && *n.PriceMin > *n.PriceMax {
		return nil, errors.NewValidation("price", "minimum price is above maximum price")
	}
	return keywords, nil
}

func finite(v *float64) bool {
	return v == nil || !(math.IsNaN(*v) || math.IsInf(*v, 0))
}

// RegisterOwner returns the owner with this email, creating it on first use
func (s *SQLStore) RegisterOwner(ctx context.Context, email string) (*monitor.Owner, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.NewValidation("email", "a valid email is required")
	}

	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO owners (email, device_token, created_at) VALUES (?, '', ?) ON CONFLICT (email) DO NOTHING`),
		email, s.now(),
	)
	if err != nil {
		return nil, errors.NewStore(email, "register owner", err)
	}

	return s.FindOwner(ctx, email)
}

// FindOwner looks an owner up by email without creating it
func (s *SQLStore) FindOwner(ctx context.Context, email string) (*monitor.Owner, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var o monitor.Owner
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, email, device_token, created_at FROM owners WHERE email = ?`), email,
	).Scan(&o.ID, &o.Email, &o.DeviceToken, &o.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewStore(email, "load owner", err)
	}
	return &o, nil
}

// SetDeviceToken stores the push destination of an owner
func (s *SQLStore) SetDeviceToken(ctx context.Context, ownerID int64, token string) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE owners SET device_token = ? WHERE id = ?`), strings.TrimSpace(token), ownerID,
	)
	if err != nil {
		return errors.NewStore(fmt.Sprint(ownerID), "set device token", err)
	}
	return requireAffected(res)
}

// CreateTarget validates and stores a new target in the pending state
func (s *SQLStore) CreateTarget(ctx context.Context, in NewTarget) (*monitor.Target, error) {
	keywords, err := in.Validate()
	if err != nil {
		return nil, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO targets (owner_id, url, keywords, price_min, price_max, render, active, last_match_state, status, status_message, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?) RETURNING id`),
		in.OwnerID, in.URL, joinStored(keywords), in.PriceMin, in.PriceMax, in.Render, true, false,
		monitor.StatusPending, s.now(),
	).Scan(&id)
	if isForeignKeyViolation(err) {
		return nil, errors.NewValidation("owner_id", "owner does not exist")
	}
	if err != nil {
		return nil, errors.NewStore(in.URL, "create target", err)
	}

	return s.GetTarget(ctx, id)
}

// GetTarget loads one target with its recipient
func (s *SQLStore) GetTarget(ctx context.Context, id int64) (*monitor.Target, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+targetColumns+targetFrom+` WHERE t.id = ?`), id)
	t, err := scanTarget(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewStore(fmt.Sprint(id), "load target", err)
	}
	return &t, nil
}

// ListTargets lists targets of one owner, or all targets when ownerID is 0, newest first
func (s *SQLStore) ListTargets(ctx context.Context, ownerID int64) ([]monitor.Target, error) {
	query := `SELECT ` + targetColumns + targetFrom
	var args []interface{}
	if ownerID != 0 {
		query += ` WHERE t.owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY t.id DESC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, errors.NewStore("", "list targets", err)
	}
	targets, err := scanTargets(rows)
	if err != nil {
		return nil, errors.NewStore("", "scan targets", err)
	}
	return targets, nil
}

// ListHistory returns the newest alert entries of a target; limit is capped at 50
func (s *SQLStore) ListHistory(ctx context.Context, targetID int64, limit int) ([]monitor.HistoryEntry, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, target_id, matched_text, matched_price, created_at FROM history
			WHERE target_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`),
		targetID, limit,
	)
	if err != nil {
		return nil, errors.NewStore(fmt.Sprint(targetID), "list history", err)
	}
	defer rows.Close()

	entries := make([]monitor.HistoryEntry, 0)
	for rows.Next() {
		var (
			e     monitor.HistoryEntry
			price sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &e.TargetID, &e.MatchedText, &price, &e.CreatedAt); err != nil {
			return nil, errors.NewStore(fmt.Sprint(targetID), "scan history", err)
		}
		if price.Valid {
			v := price.Float64
			e.MatchedPrice = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStore(fmt.Sprint(targetID), "scan history", err)
	}
	return entries, nil
}

// ToggleTarget flips the active flag and returns the updated target
func (s *SQLStore) ToggleTarget(ctx context.Context, id int64) (*monitor.Target, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE targets SET active = NOT active WHERE id = ?`), id)
	if err != nil {
		return nil, errors.NewStore(fmt.Sprint(id), "toggle target", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetTarget(ctx, id)
}

// DeleteTarget removes a target together with its history
func (s *SQLStore) DeleteTarget(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStore(fmt.Sprint(id), "begin delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM history WHERE target_id = ?`), id); err != nil {
		return errors.NewStore(fmt.Sprint(id), "delete history", err)
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM targets WHERE id = ?`), id)
	if err != nil {
		return errors.NewStore(fmt.Sprint(id), "delete target", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStore(fmt.Sprint(id), "commit delete", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
