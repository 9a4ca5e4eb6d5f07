package io

import (
	"context"
	"os"
	"sync"

	"github.com/OFFIS-RIT/recgraph/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// IOEventFileLoader loads event files directly from the local filesystem
// with caching.
type IOEventFileLoader struct {
	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewIOEventFileLoader creates a new filesystem-based event file loader.
func NewIOEventFileLoader() *IOEventFileLoader {
	return &IOEventFileLoader{
		cache: make(map[string][]byte),
	}
}

// GetFileBytes reads the file content from the filesystem. Results are
// cached and concurrent reads of the same file share one disk read.
func (l *IOEventFileLoader) GetFileBytes(ctx context.Context, file loader.EventFile) ([]byte, error) {
	key := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := os.ReadFile(file.FilePath)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = result
		l.cacheMu.Unlock()

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
