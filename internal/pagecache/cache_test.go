package pagecache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestGetOrRenderMemoizesResults(t *testing.T) {
	cache := New(t.TempDir(), zap.NewNop())
	key := Key{DocumentHash: "abc123", ViewerToken: "tok", Page: 1}

	renders := 0
	render := func() ([]byte, error) {
		renders++
		return []byte("png-bytes"), nil
	}

	data, hit, err := cache.GetOrRender(key, render)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Fatalf("expected a miss on first access")
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected payload %q", data)
	}

	data, hit, err = cache.GetOrRender(key, render)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hit {
		t.Fatalf("expected a hit on second access")
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected cached payload %q", data)
	}
	if renders != 1 {
		t.Fatalf("expected a single render, got %d", renders)
	}
}

func TestGetOrRenderConcurrentCallersAgree(t *testing.T) {
	root := t.TempDir()
	cache := New(root, zap.NewNop())
	key := Key{DocumentHash: "abc123", ViewerToken: "tok", Page: 1}

	// Concurrent misses may race to render and write; last writer wins and
	// every caller still gets valid, identical bytes.
	want := bytes.Repeat([]byte("raster"), 1024)
	render := func() ([]byte, error) {
		return append([]byte(nil), want...), nil
	}

	const callers = 16
	results := make([][]byte, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, _, err := cache.GetOrRender(key, render)
			results[i] = data
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], want) {
			t.Fatalf("caller %d got divergent bytes", i)
		}
	}

	stored, err := os.ReadFile(filepath.Join(root, "abc123", "watermarked_tok_page_1.png"))
	if err != nil {
		t.Fatalf("failed to read stored entry: %v", err)
	}
	if !bytes.Equal(stored, want) {
		t.Fatalf("stored entry does not match the rendered bytes")
	}
}

func TestGetOrRenderPropagatesRenderErrors(t *testing.T) {
	cache := New(t.TempDir(), zap.NewNop())
	key := Key{DocumentHash: "abc123", ViewerToken: "tok", Page: 1}

	boom := errors.New("render failed")
	_, _, err := cache.GetOrRender(key, func() ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected render error, got %v", err)
	}
}

func TestGetOrRenderToleratesWriteFailure(t *testing.T) {
	root := t.TempDir()
	cache := New(root, zap.NewNop())
	key := Key{DocumentHash: "abc123", ViewerToken: "tok", Page: 1}

	// A file where the document directory should be makes the write fail.
	if err := os.WriteFile(filepath.Join(root, "abc123"), []byte("blocker"), 0o644); err != nil {
		t.Fatalf("failed to create blocker: %v", err)
	}

	data, hit, err := cache.GetOrRender(key, func() ([]byte, error) { return []byte("fresh"), nil })
	if err != nil {
		t.Fatalf("expected the render result despite the write failure: %v", err)
	}
	if hit {
		t.Fatalf("expected a miss")
	}
	if string(data) != "fresh" {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestInvalidateDocumentKeepsBasePages(t *testing.T) {
	root := t.TempDir()
	cache := New(root, zap.NewNop())

	docDir := filepath.Join(root, "abc123")
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		t.Fatalf("failed to create document dir: %v", err)
	}
	basePage := filepath.Join(docDir, "page_1.png")
	if err := os.WriteFile(basePage, []byte("base"), 0o644); err != nil {
		t.Fatalf("failed to write base page: %v", err)
	}

	key := Key{DocumentHash: "abc123", ViewerToken: "tok", Page: 1}
	if _, _, err := cache.GetOrRender(key, func() ([]byte, error) { return []byte("wm"), nil }); err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	if err := cache.InvalidateDocument("abc123"); err != nil {
		t.Fatalf("unexpected invalidation error: %v", err)
	}

	if _, err := os.Stat(basePage); err != nil {
		t.Fatalf("expected the base page to survive invalidation: %v", err)
	}
	_, hit, err := cache.GetOrRender(key, func() ([]byte, error) { return []byte("wm2"), nil })
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if hit {
		t.Fatalf("expected the watermarked entry to be gone")
	}
}

func TestInvalidateAllDropsEveryDocument(t *testing.T) {
	root := t.TempDir()
	cache := New(root, zap.NewNop())

	keys := []Key{
		{DocumentHash: "doc-a", ViewerToken: "t1", Page: 1},
		{DocumentHash: "doc-b", ViewerToken: "t2", Page: 3},
	}
	for _, key := range keys {
		if _, _, err := cache.GetOrRender(key, func() ([]byte, error) { return []byte("wm"), nil }); err != nil {
			t.Fatalf("unexpected render error: %v", err)
		}
	}

	if err := cache.InvalidateAll(); err != nil {
		t.Fatalf("unexpected invalidation error: %v", err)
	}

	for _, key := range keys {
		_, hit, err := cache.GetOrRender(key, func() ([]byte, error) { return []byte("wm"), nil })
		if err != nil {
			t.Fatalf("unexpected render error: %v", err)
		}
		if hit {
			t.Fatalf("expected entry %v to be gone", key)
		}
	}
}
