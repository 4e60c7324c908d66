// Package memory provides in-memory store implementations used by tests
// and by local runs without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
)

// LinkQueue is an in-memory advert.LinkQueue, a set keyed by URL.
type LinkQueue struct {
	mu    sync.Mutex
	links []advert.QueueLink
	byURL map[string]struct{}
}

// NewLinkQueue builds an empty queue.
func NewLinkQueue() *LinkQueue {
	return &LinkQueue{byURL: make(map[string]struct{})}
}

// Enqueue inserts the URL if absent.
func (q *LinkQueue) Enqueue(_ context.Context, url string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byURL[url]; ok {
		return false, nil
	}
	q.byURL[url] = struct{}{}
	q.links = append(q.links, advert.QueueLink{
		ID:         uuid.NewString(),
		URL:        url,
		EnqueuedAt: time.Now(),
	})
	return true, nil
}

// DequeueBatch returns up to n oldest entries without removing them.
func (q *LinkQueue) DequeueBatch(_ context.Context, n int) ([]advert.QueueLink, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.links) {
		n = len(q.links)
	}
	batch := make([]advert.QueueLink, n)
	copy(batch, q.links[:n])
	return batch, nil
}

// Remove deletes an entry by id.
func (q *LinkQueue) Remove(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, link := range q.links {
		if link.ID == id {
			delete(q.byURL, link.URL)
			q.links = append(q.links[:i], q.links[i+1:]...)
			return nil
		}
	}
	return nil
}

// Len reports the number of queued links.
func (q *LinkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.links)
}

// ProductStore is an in-memory advert.ProductStore mirroring the Postgres
// semantics: unique source URL, explicit view increments.
type ProductStore struct {
	mu       sync.Mutex
	products []advert.Product
}

// NewProductStore builds an empty store.
func NewProductStore() *ProductStore {
	return &ProductStore{}
}

// FindBySourceURL returns the product for a URL or advert.ErrNotFound.
func (s *ProductStore) FindBySourceURL(_ context.Context, url string) (*advert.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].SourceURL == url {
			p := s.products[i]
			return &p, nil
		}
	}
	return nil, advert.ErrNotFound
}

// Create inserts a product, enforcing source URL uniqueness.
func (s *ProductStore) Create(_ context.Context, p *advert.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].SourceURL == p.SourceURL {
			return advert.ErrDuplicateURL
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.IngestedAt.IsZero() {
		p.IngestedAt = time.Now()
	}
	s.products = append(s.products, *p)
	return nil
}

// IncrementViews bumps the view counter and returns the updated record.
func (s *ProductStore) IncrementViews(_ context.Context, id string) (*advert.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i].Views++
			p := s.products[i]
			return &p, nil
		}
	}
	return nil, advert.ErrNotFound
}

// FindMany returns a filtered, sorted page of products.
func (s *ProductStore) FindMany(
	_ context.Context,
	f advert.ProductFilter,
	pg advert.Pagination,
	srt advert.Sort,
) ([]advert.Product, error) {
	s.mu.Lock()
	matched := filterProducts(s.products, f)
	s.mu.Unlock()

	sortProducts(matched, srt)

	start := pg.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pg.Take
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

// Count returns the number of products matching the filter.
func (s *ProductStore) Count(_ context.Context, f advert.ProductFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(filterProducts(s.products, f)), nil
}

func filterProducts(products []advert.Product, f advert.ProductFilter) []advert.Product {
	out := []advert.Product{}
	for _, p := range products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.City != "" && p.City != f.City {
			continue
		}
		if f.PriceFrom != nil && p.Price < *f.PriceFrom {
			continue
		}
		if f.PriceTo != nil && p.Price > *f.PriceTo {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func sortProducts(products []advert.Product, s advert.Sort) {
	desc := strings.EqualFold(s.Order, "desc")
	less := func(a, b advert.Product) bool {
		switch s.By {
		case "price":
			return a.Price < b.Price
		case "views":
			return a.Views < b.Views
		default:
			return a.IngestedAt.Before(b.IngestedAt)
		}
	}
	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return less(products[j], products[i])
		}
		return less(products[i], products[j])
	})
}

var (
	_ advert.LinkQueue    = (*LinkQueue)(nil)
	_ advert.ProductStore = (*ProductStore)(nil)
)
