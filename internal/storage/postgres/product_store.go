package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
)

const productColumns = `id, title, description, price, images, category, city, phone, views, properties, source_url, created_at, ingested_at`

// ProductStore persists finalized listings, unique on source_url.
type ProductStore struct {
	pool Pool
}

// NewProductStore builds a ProductStore over an existing pool.
func NewProductStore(pool Pool) (*ProductStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ProductStore{pool: pool}, nil
}

// FindBySourceURL returns the product ingested from the given URL, or
// advert.ErrNotFound.
func (s *ProductStore) FindBySourceURL(ctx context.Context, url string) (*advert.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE source_url = $1`, productColumns)
	return s.scanOne(s.pool.QueryRow(ctx, query, url))
}

// Create inserts a new product. A duplicate source URL is reported as
// advert.ErrDuplicateURL so callers can treat it as a benign skip.
func (s *ProductStore) Create(ctx context.Context, p *advert.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	propsJSON, err := json.Marshal(p.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	query := `
INSERT INTO products (id, title, description, price, images, category, city, phone, views, properties, source_url, created_at, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`

	_, err = s.pool.Exec(ctx, query,
		p.ID,
		p.Title,
		p.Description,
		p.Price,
		p.Images,
		p.Category,
		p.City,
		p.Phone,
		p.Views,
		propsJSON,
		p.SourceURL,
		p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return advert.ErrDuplicateURL
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// IncrementViews atomically bumps the view counter and returns the
// updated record.
func (s *ProductStore) IncrementViews(ctx context.Context, id string) (*advert.Product, error) {
	query := fmt.Sprintf(`
UPDATE products SET views = views + 1
WHERE id = $1
RETURNING %s`, productColumns)
	return s.scanOne(s.pool.QueryRow(ctx, query, id))
}

// FindMany returns a filtered, sorted page of products.
func (s *ProductStore) FindMany(
	ctx context.Context,
	f advert.ProductFilter,
	pg advert.Pagination,
	sort advert.Sort,
) ([]advert.Product, error) {
	where, args := buildFilter(f)
	orderBy := buildSort(sort)
	args = append(args, pg.Take, pg.Offset())

	query := fmt.Sprintf(`
SELECT %s FROM products
%s
ORDER BY %s
LIMIT $%d OFFSET $%d`, productColumns, where, orderBy, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []advert.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Count returns the number of products matching the filter.
func (s *ProductStore) Count(ctx context.Context, f advert.ProductFilter) (int, error) {
	where, args := buildFilter(f)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM products %s`, where)

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

func buildFilter(f advert.ProductFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" {
		clauses = append(clauses, "category = "+arg(f.Category))
	}
	if f.City != "" {
		clauses = append(clauses, "city = "+arg(f.City))
	}
	if f.PriceFrom != nil {
		clauses = append(clauses, "price >= "+arg(*f.PriceFrom))
	}
	if f.PriceTo != nil {
		clauses = append(clauses, "price <= "+arg(*f.PriceTo))
	}
	if f.Search != "" {
		clauses = append(clauses, "title ILIKE "+arg("%"+f.Search+"%"))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func buildSort(s advert.Sort) string {
	var by string
	switch s.By {
	case "price", "views":
		by = s.By
	default:
		// created_at is the site's display string, not sortable text;
		// chronological ordering always uses the ingestion timestamp.
		by = "ingested_at"
	}
	order := strings.ToUpper(s.Order)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	return by + " " + order
}

func (s *ProductStore) scanOne(row pgx.Row) (*advert.Product, error) {
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, advert.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*advert.Product, error) {
	var (
		p         advert.Product
		propsJSON []byte
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.Images,
		&p.Category,
		&p.City,
		&p.Phone,
		&p.Views,
		&propsJSON,
		&p.SourceURL,
		&p.CreatedAt,
		&p.IngestedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	if len(propsJSON) > 0 {
		if err := json.Unmarshal(propsJSON, &p.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal properties: %w", err)
		}
	}
	return &p, nil
}

var _ advert.ProductStore = (*ProductStore)(nil)
