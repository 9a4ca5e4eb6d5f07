package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
	"github.com/OFFIS-RIT/recgraph/pkg/graph"
)

var csvColumns = []string{"user_id", "item_id", "timestamp", "candidate_id", "score"}

// decodeCSV reads the long format: one row per candidate, with consecutive
// rows sharing (user_id, item_id, timestamp) forming one event. A row with
// an empty candidate_id records a click without recommendations.
func decodeCSV(data []byte) ([]common.Event, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", graph.ErrInputShape, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idx := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		pos, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", graph.ErrInputShape, name)
		}
		idx[i] = pos
	}

	var events []common.Event
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", graph.ErrInputShape, row, err)
		}

		field := func(col int) string {
			if idx[col] >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx[col]])
		}

		userID, itemID := field(0), field(1)
		ts, err := parseTimestamp(field(2))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", graph.ErrInputShape, row, err)
		}

		last := len(events) - 1
		if last < 0 || events[last].UserID != userID || events[last].ItemID != itemID || events[last].Timestamp != ts {
			events = append(events, common.Event{UserID: userID, ItemID: itemID, Timestamp: ts})
			last++
		}

		candidate := field(3)
		if candidate == "" {
			continue
		}
		rec := common.Recommendation{ItemID: candidate}
		if s := field(4); s != "" {
			v := parseScore(s)
			rec.Score = &v
		}
		events[last].Recommendations = append(events[last].Recommendations, rec)
	}

	return events, nil
}

func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return int64(f), nil
}
