// Package modelsource resolves a VAD engine's configured model source,
// a local path or a URL, to the raw ONNX bytes the adapter package
// loads into an inference session.
//
// Concurrent engines constructed against the same URL share one
// in-flight fetch via singleflight, since the underlying model weights
// are read-only and may be shared across engine instances.
package modelsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/singleflight"
)

// Source names where to find the ONNX model bytes. Exactly one of Path,
// URL, or Bytes should be set; Resolve prefers Bytes, then Path, then URL.
type Source struct {
	// Path is a local filesystem path to the .onnx file.
	Path string
	// URL is fetched over HTTP(S); concurrent Resolve calls against the
	// same URL are deduplicated.
	URL string
	// Bytes, when non-nil, is returned as-is. Set this when the caller
	// already has the model payload (e.g. embedded via go:embed).
	Bytes []byte

	// HTTPClient overrides the client used to fetch URL. Defaults to a
	// client with a 30s timeout.
	HTTPClient *http.Client
}

var fetchGroup singleflight.Group

// Resolve returns the model's ONNX bytes, fetching or reading them as
// necessary. An empty Source is an error; the caller must set one of
// Bytes, Path, or URL.
func (s Source) Resolve(ctx context.Context) ([]byte, error) {
	if len(s.Bytes) > 0 {
		return s.Bytes, nil
	}
	if s.Path != "" {
		b, err := os.ReadFile(s.Path)
		if err != nil {
			return nil, fmt.Errorf("modelsource: read %s: %w", s.Path, err)
		}
		return b, nil
	}
	if s.URL != "" {
		return s.fetch(ctx)
	}
	return nil, fmt.Errorf("modelsource: empty Source; set Bytes, Path, or URL")
}

func (s Source) fetch(ctx context.Context) ([]byte, error) {
	v, err, _ := fetchGroup.Do(s.URL, func() (interface{}, error) {
		client := s.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 30 * time.Second}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("modelsource: build request for %s: %w", s.URL, err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("modelsource: fetch %s: %w", s.URL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("modelsource: fetch %s: unexpected status %s", s.URL, resp.Status)
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("modelsource: read body of %s: %w", s.URL, err)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
