package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// SignedURLProvider issues a short-lived URL granting read access to a
// storage path. The signing mechanism itself lives outside this module.
type SignedURLProvider interface {
	SignedURL(ctx context.Context, storagePath string, ttl time.Duration) (string, error)
}

// SignedURLResolver downloads document bytes through a time-boxed signed URL.
type SignedURLResolver struct {
	signer     SignedURLProvider
	httpClient *http.Client
	ttl        time.Duration
}

func NewSignedURLResolver(signer SignedURLProvider) (*SignedURLResolver, error) {
	if signer == nil {
		return nil, fmt.Errorf("signed URL provider is required")
	}
	return &SignedURLResolver{
		signer:     signer,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ttl:        60 * time.Second,
	}, nil
}

func (r *SignedURLResolver) Resolve(ctx context.Context, storagePath string) ([]byte, error) {
	url, err := r.signer.SignedURL(ctx, storagePath, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to sign URL for %s: %w", storagePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", storagePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download of %s returned %d", storagePath, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", storagePath, err)
	}
	return data, nil
}

// LocalResolver reads documents from a directory on disk. Used by the CLI,
// where the storage path is relative to the ingest directory.
type LocalResolver struct {
	baseDir string
}

func NewLocalResolver(baseDir string) *LocalResolver {
	return &LocalResolver{baseDir: baseDir}
}

func (r *LocalResolver) Resolve(_ context.Context, storagePath string) ([]byte, error) {
	path := storagePath
	if r.baseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, filepath.Base(storagePath))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", storagePath, err)
	}
	return data, nil
}
