package objstore

import (
	"context"
	"errors"
	"testing"
)

func TestFSPutGet(t *testing.T) {
	ctx := context.Background()
	st := NewFS(t.TempDir())

	if err := st.Put(ctx, "tiles/x001_y002/data.bin", []byte("payload")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := st.Get(ctx, "tiles/x001_y002/data.bin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q, want %q", got, "payload")
	}
}

func TestFSGetMissing(t *testing.T) {
	st := NewFS(t.TempDir())
	_, err := st.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestFSExists(t *testing.T) {
	ctx := context.Background()
	st := NewFS(t.TempDir())

	ok, err := st.Exists(ctx, "a/b")
	if err != nil || ok {
		t.Fatalf("exists before put: %v %v", ok, err)
	}
	if err := st.Put(ctx, "a/b", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err = st.Exists(ctx, "a/b")
	if err != nil || !ok {
		t.Fatalf("exists after put: %v %v", ok, err)
	}
}

func TestFSListSortedByPrefix(t *testing.T) {
	ctx := context.Background()
	st := NewFS(t.TempDir())

	for _, k := range []string{"tiles/x002_y001.geojson", "tiles/x001_y001.geojson", "manifest.json"} {
		if err := st.Put(ctx, k, []byte("x")); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	keys, err := st.List(ctx, "tiles/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"tiles/x001_y001.geojson", "tiles/x002_y001.geojson"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys %v, want %v", len(keys), keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestFSOverwrite(t *testing.T) {
	ctx := context.Background()
	st := NewFS(t.TempDir())

	if err := st.Put(ctx, "k", []byte("old")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Put(ctx, "k", []byte("new")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := st.Get(ctx, "k")
	if err != nil || string(got) != "new" {
		t.Fatalf("got %q %v, want new", got, err)
	}
}

func TestSplitS3(t *testing.T) {
	bucket, prefix, err := splitS3("s3://my-bucket/some/prefix/")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if bucket != "my-bucket" || prefix != "some/prefix" {
		t.Fatalf("got %q %q", bucket, prefix)
	}
	if _, _, err := splitS3("s3://"); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}
