package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

type Format string

const (
	FormatGEXF    Format = "gexf"
	FormatGraphML Format = "graphml"
	FormatJSON    Format = "json"
)

// ParseFormat parses a format name. "xml" is accepted as an alias for
// GraphML.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatGEXF:
		return FormatGEXF, nil
	case FormatGraphML, "xml":
		return FormatGraphML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// FormatFromPath selects the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("output %q has no extension", path)
	}
	return ParseFormat(ext)
}

// Extension returns the file extension written for f, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatGEXF, FormatGraphML:
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

// Write encodes g in the given format.
func Write(w io.Writer, g common.Graph, format Format) error {
	switch format {
	case FormatGEXF:
		return WriteGEXF(w, g)
	case FormatGraphML:
		return WriteGraphML(w, g)
	case FormatJSON:
		return WriteJSON(w, g)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile writes g to path in the format implied by its extension.
func WriteFile(path string, g common.Graph) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := Write(w, g, format); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
