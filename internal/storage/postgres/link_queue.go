package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
)

// LinkQueue is the Postgres-backed durable URL queue, a set keyed by URL.
type LinkQueue struct {
	pool Pool
}

// NewLinkQueue builds a LinkQueue over an existing pool.
func NewLinkQueue(pool Pool) (*LinkQueue, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &LinkQueue{pool: pool}, nil
}

// Enqueue inserts the URL if absent. Returns false when the URL was
// already queued; rediscovery is a silent no-op, not an error.
func (q *LinkQueue) Enqueue(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, fmt.Errorf("url is required")
	}
	query := `
INSERT INTO queue_links (id, url, enqueued_at)
VALUES ($1, $2, NOW())
ON CONFLICT (url) DO NOTHING`

	tag, err := q.pool.Exec(ctx, query, uuid.NewString(), url)
	if err != nil {
		return false, fmt.Errorf("enqueue link: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DequeueBatch returns up to n oldest entries without removing them.
func (q *LinkQueue) DequeueBatch(ctx context.Context, n int) ([]advert.QueueLink, error) {
	if n <= 0 {
		n = 1
	}
	query := `
SELECT id, url, enqueued_at
FROM queue_links
ORDER BY enqueued_at ASC
LIMIT $1`

	rows, err := q.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}
	defer rows.Close()

	var links []advert.QueueLink
	for rows.Next() {
		var link advert.QueueLink
		if err := rows.Scan(&link.ID, &link.URL, &link.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan queue link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue links: %w", err)
	}
	return links, nil
}

// Remove deletes an entry after a processing attempt. Removing a link
// that is already gone is not an error.
func (q *LinkQueue) Remove(ctx context.Context, id string) error {
	if _, err := q.pool.Exec(ctx, `DELETE FROM queue_links WHERE id = $1`, id); err != nil {
		return fmt.Errorf("remove queue link: %w", err)
	}
	return nil
}

var _ advert.LinkQueue = (*LinkQueue)(nil)
