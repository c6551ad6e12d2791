// Package queuestore provides SQLite-backed durable storage for review
// queue items, implementing the review.Storage interface.
package queuestore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fyrsmithlabs/insightd/internal/review"
)

const schema = `
CREATE TABLE IF NOT EXISTS review_items (
	id          TEXT PRIMARY KEY,
	claim_id    TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	summary     TEXT NOT NULL,
	importance  TEXT DEFAULT '',
	confidence  REAL DEFAULT 0,
	quote       TEXT DEFAULT '',
	delivery    TEXT DEFAULT '{}',
	reminder    TEXT DEFAULT '{}',
	decision    TEXT,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_items_tenant_status ON review_items(tenant_id, status);
`

// SQLiteStorage persists review items in a local SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// Open opens (creating if needed) the review item database at path.
func Open(path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Put persists a new item.
func (s *SQLiteStorage) Put(ctx context.Context, item *review.Item) error {
	delivery, reminder, decision, err := marshalBlobs(item)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_items
		(id, claim_id, tenant_id, status, summary, importance, confidence, quote, delivery, reminder, decision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ClaimID, item.TenantID, string(item.Status), item.Summary,
		item.Importance, item.Confidence, item.Quote,
		delivery, reminder, decision, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting review item: %w", err)
	}
	return nil
}

// Get fetches an item by ID, returning review.ErrNotFound when absent.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*review.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, claim_id, tenant_id, status, summary, importance, confidence, quote, delivery, reminder, decision, created_at, updated_at
		FROM review_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", review.ErrNotFound, id)
	}
	return item, err
}

// Update replaces a stored item.
func (s *SQLiteStorage) Update(ctx context.Context, item *review.Item) error {
	delivery, reminder, decision, err := marshalBlobs(item)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE review_items
		SET status = ?, summary = ?, importance = ?, confidence = ?, quote = ?,
		    delivery = ?, reminder = ?, decision = ?, updated_at = ?
		WHERE id = ?`,
		string(item.Status), item.Summary, item.Importance, item.Confidence, item.Quote,
		delivery, reminder, decision, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("updating review item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", review.ErrNotFound, item.ID)
	}
	return nil
}

// Delete removes an item by ID.
func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM review_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting review item: %w", err)
	}
	return nil
}

// ListPending returns all pending items for a tenant, oldest first.
func (s *SQLiteStorage) ListPending(ctx context.Context, tenantID string) ([]*review.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim_id, tenant_id, status, summary, importance, confidence, quote, delivery, reminder, decision, created_at, updated_at
		FROM review_items WHERE tenant_id = ? AND status = ? ORDER BY created_at`,
		tenantID, string(review.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("listing pending items: %w", err)
	}
	defer rows.Close()

	var items []*review.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count returns the number of pending items for a tenant.
func (s *SQLiteStorage) Count(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_items WHERE tenant_id = ? AND status = ?`,
		tenantID, string(review.StatusPending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending items: %w", err)
	}
	return count, nil
}

func marshalBlobs(item *review.Item) (delivery, reminder string, decision driver.Value, err error) {
	d, err := json.Marshal(item.Delivery)
	if err != nil {
		return "", "", nil, fmt.Errorf("marshaling delivery: %w", err)
	}
	r, err := json.Marshal(item.Reminder)
	if err != nil {
		return "", "", nil, fmt.Errorf("marshaling reminder: %w", err)
	}
	if item.Decision != nil {
		dec, err := json.Marshal(item.Decision)
		if err != nil {
			return "", "", nil, fmt.Errorf("marshaling decision: %w", err)
		}
		decision = string(dec)
	}
	return string(d), string(r), decision, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*review.Item, error) {
	var (
		item               review.Item
		status             string
		delivery, reminder string
		decision           sql.NullString
		createdAt          time.Time
		updatedAt          time.Time
	)
	err := row.Scan(&item.ID, &item.ClaimID, &item.TenantID, &status, &item.Summary,
		&item.Importance, &item.Confidence, &item.Quote,
		&delivery, &reminder, &decision, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	item.Status = review.Status(status)
	item.CreatedAt = createdAt
	item.UpdatedAt = updatedAt
	if err := json.Unmarshal([]byte(delivery), &item.Delivery); err != nil {
		return nil, fmt.Errorf("unmarshaling delivery: %w", err)
	}
	if err := json.Unmarshal([]byte(reminder), &item.Reminder); err != nil {
		return nil, fmt.Errorf("unmarshaling reminder: %w", err)
	}
	if decision.Valid {
		var rec review.DecisionRecord
		if err := json.Unmarshal([]byte(decision.String), &rec); err != nil {
			return nil, fmt.Errorf("unmarshaling decision: %w", err)
		}
		item.Decision = &rec
	}
	return &item, nil
}
