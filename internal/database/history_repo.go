package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mealscan/mealscan/internal/resolve"
)

// HistoryRepo persists the user's scan history: the scan log itself,
// the recent-items list the ranker boosts, and the brand-avoid map
// built from corrections.
type HistoryRepo struct {
	db *DB
}

func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) LogScan(ctx context.Context, record resolve.ScanRecord) error {
	query := `
		INSERT OR REPLACE INTO scans (
			scan_log_id, user_id, name, brand, item_id, source, decision, combined, scanned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn.ExecContext(ctx, query,
		record.ScanLogID,
		record.UserID,
		record.Name,
		record.Brand,
		record.ItemID,
		record.Source,
		string(record.Decision),
		record.Combined,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

func (r *HistoryRepo) RecordItem(ctx context.Context, userID, name string) error {
	query := `INSERT INTO recent_items (user_id, name, logged_at) VALUES (?, ?, ?)`
	if _, err := r.db.conn.ExecContext(ctx, query, userID, name, time.Now()); err != nil {
		return fmt.Errorf("failed to insert recent item: %w", err)
	}
	return nil
}

func (r *HistoryRepo) RecentNames(ctx context.Context, userID string, limit int) ([]string, error) {
	query := `
		SELECT name FROM recent_items
		WHERE user_id = ?
		ORDER BY logged_at DESC
		LIMIT ?`

	rows, err := r.db.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent items: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan recent item: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *HistoryRepo) RecordAvoid(ctx context.Context, userID, canonicalBrand, itemID string) error {
	query := `
		INSERT OR REPLACE INTO brand_avoid (user_id, canonical_brand, item_id, recorded_at)
		VALUES (?, ?, ?, ?)`
	if _, err := r.db.conn.ExecContext(ctx, query, userID, canonicalBrand, itemID, time.Now()); err != nil {
		return fmt.Errorf("failed to insert brand-avoid entry: %w", err)
	}
	return nil
}

func (r *HistoryRepo) AvoidMap(ctx context.Context, userID string) (map[string][]string, error) {
	query := `SELECT canonical_brand, item_id FROM brand_avoid WHERE user_id = ?`

	rows, err := r.db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query brand-avoid map: %w", err)
	}
	defer rows.Close()

	avoid := make(map[string][]string)
	for rows.Next() {
		var brand, itemID string
		if err := rows.Scan(&brand, &itemID); err != nil {
			return nil, fmt.Errorf("failed to scan brand-avoid entry: %w", err)
		}
		avoid[brand] = append(avoid[brand], itemID)
	}
	return avoid, rows.Err()
}
