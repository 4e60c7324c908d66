// Package api exposes the read-side HTTP interface for ingested listings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
	"github.com/ovbagirov/berkat-crawler/internal/config"
)

// Server wires HTTP handlers to the product store.
type Server struct {
	router chi.Router
	store  advert.ProductStore
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store advert.ProductStore, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.listProducts)
			r.Get("/{product_id}", s.getProduct)
		})
	})

	if cfg.Media.Dir != "" && cfg.Media.PublicPrefix != "" {
		prefix := cfg.Media.PublicPrefix
		fs := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.Media.Dir)))
		r.Get(prefix+"/*", fs.ServeHTTP)
	}

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Count(r.Context(), advert.ProductFilter{}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// listMeta describes the page window returned alongside items.
type listMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Take       int `json:"take"`
	TotalPages int `json:"total_pages"`
}

type listResponse struct {
	Items []advert.Product `json:"items"`
	Meta  listMeta         `json:"meta"`
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	filter, pg, srt, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := s.store.Count(r.Context(), filter)
	if err != nil {
		s.logger.Error("count products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	items, err := s.store.FindMany(r.Context(), filter, pg, srt)
	if err != nil {
		s.logger.Error("list products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + pg.Take - 1) / pg.Take
	}
	writeJSON(w, http.StatusOK, listResponse{
		Items: items,
		Meta: listMeta{
			Total:      total,
			Page:       pg.Page,
			Take:       pg.Take,
			TotalPages: totalPages,
		},
	})
}

// getProduct returns one listing. Reading a listing counts as a view, so
// the counter is bumped as part of the lookup.
func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "product_id")
	// Product ids are UUIDs; anything else can't exist and would only
	// trip a Postgres cast error.
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	product, err := s.store.IncrementViews(r.Context(), id)
	if err != nil {
		if errors.Is(err, advert.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		s.logger.Error("get product failed", zap.String("product_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch product")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func parseListQuery(r *http.Request) (advert.ProductFilter, advert.Pagination, advert.Sort, error) {
	q := r.URL.Query()

	filter := advert.ProductFilter{
		Category: q.Get("category"),
		City:     q.Get("city"),
		Search:   q.Get("search"),
	}
	priceFrom, err := optionalInt(q.Get("priceFrom"))
	if err != nil {
		return filter, advert.Pagination{}, advert.Sort{}, errors.New("priceFrom must be an integer")
	}
	priceTo, err := optionalInt(q.Get("priceTo"))
	if err != nil {
		return filter, advert.Pagination{}, advert.Sort{}, errors.New("priceTo must be an integer")
	}
	filter.PriceFrom = priceFrom
	filter.PriceTo = priceTo

	page := intOrDefault(q.Get("page"), 1)
	take := intOrDefault(q.Get("take"), 10)
	pg := advert.NewPagination(page, take)

	srt := advert.Sort{
		By:    q.Get("sortBy"),
		Order: q.Get("sortOrder"),
	}
	return filter, pg, srt, nil
}

func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func intOrDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
