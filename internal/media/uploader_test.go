package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUploadAllSkipsFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.jpg":
			_, _ = w.Write([]byte("image-a"))
		case "/b.png":
			_, _ = w.Write([]byte("image-b"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	u, err := New(Config{Dir: dir, PublicPrefix: "/uploads"}, nil)
	require.NoError(t, err)

	paths := u.UploadAll(context.Background(), []string{
		srv.URL + "/a.jpg",
		srv.URL + "/missing.jpg",
		srv.URL + "/b.png",
	}, "123456")

	require.Equal(t, []string{
		"/uploads/123456-0.jpg",
		"/uploads/123456-2.png",
	}, paths)

	data, err := os.ReadFile(filepath.Join(dir, "123456-0.jpg"))
	require.NoError(t, err)
	require.Equal(t, "image-a", string(data))

	_, err = os.Stat(filepath.Join(dir, "123456-1.jpg"))
	require.True(t, os.IsNotExist(err))
}

func TestExtFromURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, ".png", extFromURL("https://cdn.example.com/img/photo.png?x=1"))
	require.Equal(t, ".jpg", extFromURL("https://cdn.example.com/img/photo"))
	require.Equal(t, ".jpg", extFromURL("://not a url"))
}

func TestNewCreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := New(Config{Dir: dir, PublicPrefix: "/uploads"}, nil)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
