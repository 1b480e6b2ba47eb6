package modelsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceResolveBytes(t *testing.T) {
	s := Source{Bytes: []byte{1, 2, 3}}
	b, err := s.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)
}

func TestSourceResolvePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx-payload"), 0o644))

	s := Source{Path: path}
	b, err := s.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("onnx-payload"), b)
}

func TestSourceResolvePathMissing(t *testing.T) {
	s := Source{Path: "/nonexistent/model.onnx"}
	_, err := s.Resolve(context.Background())
	assert.Error(t, err)
}

func TestSourceResolveEmpty(t *testing.T) {
	_, err := Source{}.Resolve(context.Background())
	assert.Error(t, err)
}

func TestSourceResolveURL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("remote-onnx"))
	}))
	defer srv.Close()

	s := Source{URL: srv.URL}
	b, err := s.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-onnx"), b)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestSourceResolveURLDedupesConcurrentFetches(t *testing.T) {
	var hits int32
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-block
		w.Write([]byte("shared-weights"))
	}))
	defer srv.Close()

	s := Source{URL: srv.URL}

	const n = 5
	var wg sync.WaitGroup
	results := make([][]byte, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := s.Resolve(context.Background())
			assert.NoError(t, err)
			results[i] = b
		}(i)
	}

	close(block)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	for _, b := range results {
		assert.Equal(t, []byte("shared-weights"), b)
	}
}

func TestSourceResolveURLNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Source{URL: srv.URL + "/missing"}.Resolve(context.Background())
	assert.Error(t, err)
}
