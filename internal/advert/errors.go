package advert

import "errors"

// Named pipeline errors. They mark item-level terminal conditions the
// scheduler distinguishes when deciding the outcome of a queue entry.
var (
	// ErrMissingCity means the detail page carries no city block; the item
	// cannot be filed without a location dimension.
	ErrMissingCity = errors.New("advert: city is missing")

	// ErrMissingCategory means the breadcrumb carries no category.
	ErrMissingCategory = errors.New("advert: category is missing")

	// ErrDuplicateURL means a product with the same source URL already
	// exists. Expected during re-ingestion, never fatal.
	ErrDuplicateURL = errors.New("advert: source url already exists")

	// ErrRejected means the normalizer flagged the listing as a service or
	// promotional post, or returned a response that could not be parsed.
	ErrRejected = errors.New("advert: listing rejected by normalizer")

	// ErrNotFound is returned by stores for missing records.
	ErrNotFound = errors.New("advert: not found")
)
