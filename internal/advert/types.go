// Package advert defines core types shared across the ingestion pipeline.
package advert

import (
	"time"
)

// Property is one row of the attribute table on a detail page.
type Property struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// RawAdvert holds the fields extracted structurally from one detail page.
// It is transient: never persisted as-is, only fed to the normalizer.
type RawAdvert struct {
	Title       string
	Description string
	Images      []string
	Phone       string
	Price       int
	HasPrice    bool
	Views       int
	City        string
	Category    string
	CreatedAt   string
	Properties  []Property
}

// NormalizedAdvert is the AI-cleaned form of a RawAdvert.
type NormalizedAdvert struct {
	Title       string
	Description string
	Price       int
	Phone       string
	Rejected    bool
}

// Product is the persisted listing record, unique on SourceURL.
type Product struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       int        `json:"price"`
	Images      []string   `json:"images"`
	Category    string     `json:"category"`
	City        string     `json:"city"`
	Phone       string     `json:"phone"`
	Views       int        `json:"views"`
	Properties  []Property `json:"properties"`
	SourceURL   string     `json:"source_url"`
	CreatedAt   string     `json:"created_at"`
	IngestedAt  time.Time  `json:"ingested_at"`
}

// QueueLink is a discovered detail-page URL waiting for ingestion.
type QueueLink struct {
	ID         string
	URL        string
	EnqueuedAt time.Time
}

// Outcome is the terminal state of one queue item's pipeline run.
type Outcome string

// Terminal outcomes recorded per processed queue item.
const (
	OutcomePersisted Outcome = "persisted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category  string
	City      string
	PriceFrom *int
	PriceTo   *int
	Search    string
}

// Pagination holds a validated page window.
type Pagination struct {
	Page int
	Take int
}

// Offset returns the row offset for the window.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Take
}

// NewPagination clamps page/take to sane values.
func NewPagination(page, take int) Pagination {
	if page < 1 {
		page = 1
	}
	if take < 1 {
		take = 10
	}
	return Pagination{Page: page, Take: take}
}

// Sort describes result ordering for product listings.
type Sort struct {
	By    string // price, created_at, views
	Order string // asc, desc
}
