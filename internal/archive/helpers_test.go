package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type fakeSource struct {
	resource  *Resource
	builds    []Build
	hits      []Resource
	resErr    error
	buildsErr error
}

func (f *fakeSource) Resource(ctx context.Context, identifier string) (*Resource, error) {
	if f.resErr != nil {
		return nil, f.resErr
	}
	return f.resource, nil
}

func (f *fakeSource) Builds(ctx context.Context, identifier string) ([]Build, error) {
	if f.buildsErr != nil {
		return nil, f.buildsErr
	}
	return f.builds, nil
}

func (f *fakeSource) Search(ctx context.Context, query string, page int) ([]Resource, error) {
	return f.hits, nil
}

// seqPaths allocates predictable paths inside dir.
type seqPaths struct {
	mu  sync.Mutex
	dir string
	n   int
}

func (s *seqPaths) NewPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return filepath.Join(s.dir, fmt.Sprintf("archive-%d.jar", s.n))
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mod.jar")
	if err := os.WriteFile(path, buildZip(t, files), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
