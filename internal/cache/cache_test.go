package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(filepath.Join(tmpDir, "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !c.enabled {
		t.Error("cache should be enabled")
	}

	c, err = New("", 0, false)
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.enabled {
		t.Error("cache should be disabled")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache", "dir")

	if _, err := New(cacheDir, 24, true); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("New() should create cache directory")
	}
}

func TestKey(t *testing.T) {
	if Key("main.js", "es") == Key("main.js", "cjs") {
		t.Error("keys for different formats should differ")
	}
	if Key("a.js", "es") == Key("b.js", "es") {
		t.Error("keys for different entries should differ")
	}
}

func TestSetAndGet(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	key := Key("main.js", "es")
	hash := HashBytes([]byte("module sources"))
	code := []byte("var a = 1;\n")

	if err := c.Set(key, hash, []string{"main.js"}, code); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, ok := c.Get(key, hash)
	if !ok {
		t.Fatal("Get() returned false for existing key")
	}
	if string(got) != string(code) {
		t.Errorf("Get() = %q, want %q", string(got), string(code))
	}
}

func TestGetHashMismatch(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	key := Key("main.js", "es")
	if err := c.Set(key, HashBytes([]byte("v1")), nil, []byte("code")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if _, ok := c.Get(key, HashBytes([]byte("v2"))); ok {
		t.Error("Get() should miss when the content hash changed")
	}
}

func TestGetExpired(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"), 0, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	key := Key("main.js", "es")
	hash := HashBytes([]byte("x"))
	if err := c.Set(key, hash, nil, []byte("code")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if _, ok := c.Get(key, hash); ok {
		t.Error("Get() should miss with a zero TTL")
	}
}

func TestDisabledCache(t *testing.T) {
	c, err := New("", 0, false)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := c.Set("key", "hash", nil, []byte("code")); err != nil {
		t.Errorf("Set() on disabled cache should be a no-op, got %v", err)
	}
	if _, ok := c.Get("key", "hash"); ok {
		t.Error("Get() on disabled cache should miss")
	}
	if err := c.Invalidate("key"); err != nil {
		t.Errorf("Invalidate() on disabled cache should be a no-op, got %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear() on disabled cache should be a no-op, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	key := Key("main.js", "es")
	hash := HashBytes([]byte("x"))
	if err := c.Set(key, hash, nil, []byte("code")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Invalidate(key); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, ok := c.Get(key, hash); ok {
		t.Error("Get() should miss after Invalidate()")
	}
}

func TestHashFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "b.js")
	if err := os.WriteFile(a, []byte("var a = 1;"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("var b = 2;"), 0644); err != nil {
		t.Fatal(err)
	}

	h1, err := HashFiles([]string{a, b})
	if err != nil {
		t.Fatalf("HashFiles() error: %v", err)
	}
	h2, err := HashFiles([]string{b, a})
	if err != nil {
		t.Fatalf("HashFiles() error: %v", err)
	}
	if h1 != h2 {
		t.Error("HashFiles() should be independent of path order")
	}

	if err := os.WriteFile(a, []byte("var a = 2;"), 0644); err != nil {
		t.Fatal(err)
	}
	h3, err := HashFiles([]string{a, b})
	if err != nil {
		t.Fatalf("HashFiles() error: %v", err)
	}
	if h1 == h3 {
		t.Error("HashFiles() should change when a file changes")
	}
}

func TestHashFilesMissing(t *testing.T) {
	if _, err := HashFiles([]string{filepath.Join(t.TempDir(), "missing.js")}); err == nil {
		t.Error("HashFiles() should fail on a missing file")
	}
}

func TestGetStats(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := c.Set("one", "h", nil, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("two", "h", nil, []byte("b")); err != nil {
		t.Fatal(err)
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("stats.Entries = %d, want 2", stats.Entries)
	}
	if stats.TotalSize == 0 {
		t.Error("stats.TotalSize should be non-zero")
	}
}
