package io

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/recgraph/pkg/loader"
)

func TestGetFileBytesCaches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte("first"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := NewIOEventFileLoader()
	file := loader.EventFile{FilePath: path}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := l.GetFileBytes(context.Background(), file)
			if err != nil {
				t.Errorf("GetFileBytes error: %v", err)
				return
			}
			if string(got) != "first" {
				t.Errorf("got %q, want %q", got, "first")
			}
		}()
	}
	wg.Wait()

	if err := os.WriteFile(path, []byte("second"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := l.GetFileBytes(context.Background(), file)
	if err != nil {
		t.Fatalf("GetFileBytes error: %v", err)
	}
	if string(got) != "first" {
		t.Fatalf("expected cached content, got %q", got)
	}
}

func TestGetFileBytesMissing(t *testing.T) {
	l := NewIOEventFileLoader()
	_, err := l.GetFileBytes(context.Background(), loader.EventFile{FilePath: filepath.Join(t.TempDir(), "nope.json")})
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
