package advert

import (
	"context"
	"time"
)

// Fetcher retrieves a URL's HTML body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// LinkQueue is a durable FIFO of discovered URLs, deduplicated by URL.
type LinkQueue interface {
	// Enqueue inserts the URL if absent. An already-queued URL is a no-op
	// reported via the bool return, not an error.
	Enqueue(ctx context.Context, url string) (bool, error)
	// DequeueBatch returns up to n oldest entries without removing them.
	DequeueBatch(ctx context.Context, n int) ([]QueueLink, error)
	// Remove deletes an entry after a processing attempt, whatever its outcome.
	Remove(ctx context.Context, id string) error
}

// ProductStore persists finalized listings.
type ProductStore interface {
	FindBySourceURL(ctx context.Context, url string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	IncrementViews(ctx context.Context, id string) (*Product, error)
	FindMany(ctx context.Context, f ProductFilter, pg Pagination, s Sort) ([]Product, error)
	Count(ctx context.Context, f ProductFilter) (int, error)
}

// Normalizer cleans a raw advert via the language-model gateway.
type Normalizer interface {
	Normalize(ctx context.Context, raw RawAdvert) (*NormalizedAdvert, error)
}

// MediaStore downloads remote images and returns their local public paths.
type MediaStore interface {
	UploadAll(ctx context.Context, urls []string, advertID string) []string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
