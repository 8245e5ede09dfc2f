package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/lukadfagundes/bwaincell-sub004/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const selectColumns = `
	id, user_id, tenant_id, channel_id, message, kind,
	time_of_day_m, day_of_week, active, next_trigger_at, last_sent_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(s scanner) (domain.Notification, error) {
	var (
		n         domain.Notification
		kind      string
		todM      int
		dow       sql.NullInt64
		activeInt int
		nextAt    int64
		lastNS    sql.NullInt64
		createdAt int64
	)
	if err := s.Scan(
		&n.ID, &n.UserID, &n.TenantID, &n.ChannelID, &n.Message, &kind,
		&todM, &dow, &activeInt, &nextAt, &lastNS, &createdAt,
	); err != nil {
		return domain.Notification{}, err
	}
	n.Kind = domain.RecurrenceKind(kind)
	n.TimeOfDay = domain.TimeOfDayFromMinutes(todM)
	n.DayOfWeek = fromNullDay(dow)
	n.Active = activeInt != 0
	n.NextTriggerAt = time.Unix(nextAt, 0).UTC()
	n.LastSentAt = fromNullInt64(lastNS)
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	return n, nil
}

// Create inserts a new notification definition.
func (r *SQLiteRepo) Create(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return errors.New("nil notification")
	}
	created := n.CreatedAt.UTC().Unix()
	if n.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, tenant_id, channel_id, message, kind,
			time_of_day_m, day_of_week, active, next_trigger_at, last_sent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.TenantID, n.ChannelID, n.Message, string(n.Kind),
		n.TimeOfDay.Minutes(), toNullDay(n.DayOfWeek), boolToInt(n.Active),
		n.NextTriggerAt.UTC().Unix(), toNullInt64(n.LastSentAt), created,
	)
	return err
}

// Get returns a notification by id, or ErrNotFound.
func (r *SQLiteRepo) Get(ctx context.Context, id string) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByOwner returns all notifications a user created in a tenant, active first,
// ordered by next trigger.
func (r *SQLiteRepo) ListByOwner(ctx context.Context, userID, tenantID int64) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM notifications
		WHERE user_id = ? AND tenant_id = ?
		ORDER BY active DESC, next_trigger_at ASC`,
		userID, tenantID,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListDue returns up to `limit` active notifications whose next_trigger_at is <= now.
// Results are ordered by next_trigger_at ascending.
func (r *SQLiteRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM notifications
		WHERE active = 1
		  AND next_trigger_at <= ?
		ORDER BY next_trigger_at ASC
		LIMIT ?`,
		now.UTC().Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]domain.Notification, error) {
	defer rows.Close()

	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Save rewrites the schedule state of a notification: active flag,
// next_trigger_at and last_sent_at.
func (r *SQLiteRepo) Save(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return errors.New("nil notification")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET active = ?, next_trigger_at = ?, last_sent_at = ?
		WHERE id = ?`,
		boolToInt(n.Active), n.NextTriggerAt.UTC().Unix(), toNullInt64(n.LastSentAt), n.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Deactivate retires a notification without deleting it, keeping its
// last_sent_at.
func (r *SQLiteRepo) Deactivate(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return errors.New("nil notification")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET active = 0, last_sent_at = ?
		WHERE id = ?`,
		toNullInt64(n.LastSentAt), n.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes a notification owned by the given user in the given tenant.
func (r *SQLiteRepo) Delete(ctx context.Context, id string, userID, tenantID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE id = ? AND user_id = ? AND tenant_id = ?`,
		id, userID, tenantID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
