package files_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/finlens/pkg/files"
)

func TestLocalResolver(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "report.pdf"), []byte("%PDF-1.7"), 0644)
	require.NoError(t, err)

	r := files.NewLocalResolver(tmpDir)

	// storage paths keep their bucket-style prefix; only the base name is on disk
	data, err := r.Resolve(context.Background(), "pdfs/abc/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	_, err = r.Resolve(context.Background(), "pdfs/abc/missing.pdf")
	assert.Error(t, err)
}

type fakeSigner struct {
	url string
	err error
}

func (f *fakeSigner) SignedURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return f.url, f.err
}

func TestSignedURLResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.7"))
	}))
	defer server.Close()

	r, err := files.NewSignedURLResolver(&fakeSigner{url: server.URL})
	require.NoError(t, err)

	data, err := r.Resolve(context.Background(), "pdfs/abc/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}

func TestSignedURLResolver_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer server.Close()

	r, err := files.NewSignedURLResolver(&fakeSigner{url: server.URL})
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "pdfs/abc/report.pdf")
	assert.Error(t, err)
}
