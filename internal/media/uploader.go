// Package media downloads remote listing images into local storage.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultExt = ".jpg"

// Config controls where images land and how they are addressed publicly.
type Config struct {
	// Dir is the local directory downloads are written to.
	Dir string
	// PublicPrefix is the URL path prefix the directory is served under.
	PublicPrefix string
	// Timeout bounds a single image download.
	Timeout time.Duration
}

// Uploader implements advert.MediaStore against the local filesystem.
type Uploader struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds an Uploader and ensures the destination directory exists.
func New(cfg Config, logger *zap.Logger) (*Uploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Uploader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// UploadAll downloads each image independently and returns the public
// paths of the successes, preserving their relative order. Failures are
// logged and omitted.
func (u *Uploader) UploadAll(ctx context.Context, urls []string, advertID string) []string {
	paths := make([]string, 0, len(urls))
	for i, imageURL := range urls {
		p, err := u.upload(ctx, imageURL, advertID, i)
		if err != nil {
			u.logger.Warn("image download failed, skipping",
				zap.String("url", imageURL),
				zap.String("advert_id", advertID),
				zap.Error(err),
			)
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

func (u *Uploader) upload(ctx context.Context, imageURL, advertID string, index int) (string, error) {
	name := fmt.Sprintf("%s-%d%s", advertID, index, extFromURL(imageURL))
	dest := filepath.Join(u.cfg.Dir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}

	return strings.TrimSuffix(u.cfg.PublicPrefix, "/") + "/" + name, nil
}

// extFromURL derives the file extension from the URL's basename, ignoring
// any query string and defaulting when absent.
func extFromURL(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return defaultExt
	}
	ext := path.Ext(path.Base(parsed.Path))
	if ext == "" {
		return defaultExt
	}
	return ext
}
