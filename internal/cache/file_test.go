package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/config"
)

func testCacheConfig(t *testing.T) config.CacheConfig {
	t.Helper()
	return config.CacheConfig{Dir: t.TempDir(), TTL: DefaultTTL}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()
	key := Hash([]byte("image"))

	if _, err := store.Load(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() missing error = %v, want ErrNotFound", err)
	}

	want := &Entry{Analysis: "analysis", Timestamp: 1700000000000}
	if err := store.Save(ctx, key, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), key+".json")); err != nil {
		t.Errorf("entry file not written: %v", err)
	}

	got, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *got != *want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("Delete() of missing entry error = %v", err)
	}
}

func TestFileStore_RejectsBadKeys(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "../etc/passwd", "abc", Hash(nil)[:63] + "z"} {
		if err := store.Save(ctx, key, &Entry{}); err == nil {
			t.Errorf("Save(%q) should fail", key)
		}
	}
}

func TestFileStore_CorruptEntryIsError(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	key := Hash([]byte("image"))
	if err := os.WriteFile(filepath.Join(store.Dir(), key+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load(context.Background(), key)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Load() corrupt error = %v, want decode error", err)
	}
}

func TestFileStore_Sweep(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	old := Hash([]byte("old"))
	fresh := Hash([]byte("fresh"))
	store.Save(ctx, old, &Entry{Analysis: "old", Timestamp: now.Add(-8 * 24 * time.Hour).UnixMilli()})
	store.Save(ctx, fresh, &Entry{Analysis: "fresh", Timestamp: now.UnixMilli()})

	n, err := store.Sweep(ctx, now.Add(-DefaultTTL))
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if _, err := store.Load(ctx, old); !errors.Is(err, ErrNotFound) {
		t.Error("old entry should be swept")
	}
	if _, err := store.Load(ctx, fresh); err != nil {
		t.Errorf("fresh entry should remain: %v", err)
	}
}
