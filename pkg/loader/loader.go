package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
	"github.com/OFFIS-RIT/recgraph/pkg/graph"
)

type EventFormat string

const (
	EventFormatJSON  EventFormat = "json"
	EventFormatJSONL EventFormat = "jsonl"
	EventFormatCSV   EventFormat = "csv"
)

// EventFile represents a file of recommendation events. It carries the
// location and encoding of the file; the raw bytes are retrieved via the
// associated EventFileLoader.
type EventFile struct {
	ID       string
	FilePath string
	Format   EventFormat
	Loader   EventFileLoader
}

// NewEventFileParams defines the input parameters for creating a new
// EventFile. When Format is empty it is derived from the file extension.
type NewEventFileParams struct {
	ID       string
	FilePath string
	Format   EventFormat
	Loader   EventFileLoader
}

// NewEventFile creates a new EventFile using the provided parameters.
func NewEventFile(params NewEventFileParams) (EventFile, error) {
	format := params.Format
	if format == "" {
		var err error
		format, err = FormatFromPath(params.FilePath)
		if err != nil {
			return EventFile{}, err
		}
	}

	switch format {
	case EventFormatJSON, EventFormatJSONL, EventFormatCSV:
	default:
		return EventFile{}, fmt.Errorf("unsupported event format %q", format)
	}

	return EventFile{
		ID:       params.ID,
		FilePath: params.FilePath,
		Format:   format,
		Loader:   params.Loader,
	}, nil
}

// FormatFromPath maps a file extension to its event format.
func FormatFromPath(path string) (EventFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return EventFormatJSON, nil
	case ".jsonl", ".ndjson":
		return EventFormatJSONL, nil
	case ".csv":
		return EventFormatCSV, nil
	default:
		return "", fmt.Errorf("cannot infer event format from %q", path)
	}
}

// GetBytes retrieves the raw file content using the file's Loader.
func (f *EventFile) GetBytes(ctx context.Context) ([]byte, error) {
	if f.Loader == nil {
		return nil, fmt.Errorf("event file %q has no loader", f.FilePath)
	}
	return f.Loader.GetFileBytes(ctx, *f)
}

// GetEvents loads and decodes the file into events, in file order.
//
// Example:
//
//	file, err := loader.NewEventFile(loader.NewEventFileParams{
//		FilePath: "recs.jsonl",
//		Loader:   io.NewIOEventFileLoader(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	events, err := file.GetEvents(ctx)
func (f *EventFile) GetEvents(ctx context.Context) ([]common.Event, error) {
	data, err := f.GetBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.FilePath, err)
	}
	events, err := DecodeEvents(data, f.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.FilePath, err)
	}
	return events, nil
}

// DecodeEvents decodes data in the given format. Malformed records are
// reported as graph.ErrInputShape.
func DecodeEvents(data []byte, format EventFormat) ([]common.Event, error) {
	switch format {
	case EventFormatJSON:
		return decodeJSON(data)
	case EventFormatJSONL:
		return decodeJSONLines(data)
	case EventFormatCSV:
		return decodeCSV(data)
	default:
		return nil, fmt.Errorf("%w: unsupported event format %q", graph.ErrInputShape, format)
	}
}

// EventFileLoader defines the interface for loading the raw contents of an
// EventFile. Implementations may read from disk, cloud storage or elsewhere.
type EventFileLoader interface {
	GetFileBytes(ctx context.Context, file EventFile) ([]byte, error)
}

// CacheKey returns the key loaders use to cache the content of file.
func CacheKey(file EventFile) string {
	if file.ID != "" {
		return file.ID + ":" + file.FilePath
	}
	return file.FilePath
}
