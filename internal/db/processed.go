package db

import (
	"context"
	"fmt"
)

// IsProcessed reports whether url has already been handled.
func (db *DB) IsProcessed(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_posts WHERE url = $1)`,
		url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check processed post: %w", err)
	}
	return exists, nil
}

// MarkProcessed records url as handled, refreshing the timestamp if it was already present.
func (db *DB) MarkProcessed(ctx context.Context, url string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO processed_posts (url) VALUES ($1)
		 ON CONFLICT (url) DO UPDATE SET processed_at = NOW()`,
		url,
	)
	if err != nil {
		return fmt.Errorf("failed to mark post processed: %w", err)
	}
	return nil
}

// CountProcessed returns the number of handled posts.
func (db *DB) CountProcessed(ctx context.Context) (int64, error) {
	var n int64
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM processed_posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count processed posts: %w", err)
	}
	return n, nil
}

// ListProcessed returns the most recently handled posts, newest first.
func (db *DB) ListProcessed(ctx context.Context, limit int) ([]ProcessedPost, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT url, processed_at FROM processed_posts ORDER BY processed_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed posts: %w", err)
	}
	defer rows.Close()

	var posts []ProcessedPost
	for rows.Next() {
		var p ProcessedPost
		if err := rows.Scan(&p.URL, &p.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processed post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
