//go:build vad

package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortInitOnce ensures the ONNX Runtime environment is initialized exactly
// once per process, regardless of how many adapters are constructed.
// ortInitErr is cached at package scope so every subsequent New call
// surfaces the same failure instead of retrying a broken environment.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func ensureRuntime() error {
	ortInitOnce.Do(func() {
		if path := os.Getenv("ONNXRUNTIME_LIB"); path != "" {
			ort.SetSharedLibraryPath(path)
		} else if path := findSharedLibrary(); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return fmt.Errorf("adapter: initialize onnx runtime: %w", ortInitErr)
	}
	return nil
}

// findSharedLibrary searches a handful of conventional install locations
// for libonnxruntime before falling back to the library's own default
// resolution.
func findSharedLibrary() string {
	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/onnxruntime/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}

	for _, envVar := range []string{"LD_LIBRARY_PATH", "DYLD_LIBRARY_PATH"} {
		for _, dir := range filepath.SplitList(os.Getenv(envVar)) {
			candidates = append(candidates, filepath.Join(dir, "libonnxruntime.so"), filepath.Join(dir, "libonnxruntime.dylib"))
		}
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func zero32(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
