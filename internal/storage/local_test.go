package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestLocalStorage_PutGet(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	key := "run/metrics.csv"
	content := []byte("timestamp,operation\n")

	etag, err := storage.Put(ctx, key, content)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if etag == "" {
		t.Error("expected non-empty ETag")
	}
	if got, ok := storage.GetETag(key); !ok || got != etag {
		t.Errorf("GetETag = %q, %v; want %q", got, ok, etag)
	}

	exists, err := storage.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	got, err := storage.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}

	if err := storage.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, _ = storage.Exists(ctx, key)
	if exists {
		t.Error("expected object to be deleted")
	}
	if _, ok := storage.GetETag(key); ok {
		t.Error("expected ETag to be forgotten after delete")
	}
}

func TestLocalStorage_GetMissing(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())

	_, err := storage.Get(context.Background(), "nope")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_DeleteIdempotent(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())

	if err := storage.Delete(context.Background(), "never/written"); err != nil {
		t.Errorf("expected nil for missing object, got %v", err)
	}
}

func TestLocalStorage_PutOverwrites(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	first, _ := storage.Put(ctx, "k", []byte("one"))
	second, _ := storage.Put(ctx, "k", []byte("two"))
	if first == second {
		t.Error("expected ETag to change with content")
	}

	got, _ := storage.Get(ctx, "k")
	if string(got) != "two" {
		t.Errorf("expected overwritten content, got %q", got)
	}
}

func TestLocalStorage_List(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"a/2/x", "a/1/y", "b/z"} {
		if _, err := storage.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	keys, err := storage.List(ctx, "a")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"a/1/y", "a/2/x"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List = %v, want %v", keys, want)
	}

	keys, err = storage.List(ctx, "missing")
	if err != nil {
		t.Fatalf("List on missing prefix failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys, got %v", keys)
	}
}

func TestLocalStorage_Clear(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()
	storage.Put(ctx, "x/y", []byte("z"))

	if err := storage.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	keys, _ := storage.List(ctx, "")
	if len(keys) != 0 {
		t.Errorf("expected empty storage after Clear, got %v", keys)
	}
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := storage.Put(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
