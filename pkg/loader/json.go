package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
	"github.com/OFFIS-RIT/recgraph/pkg/graph"
)

const maxLineSize = 16 * 1024 * 1024

type rawEvent struct {
	UserID          flexID              `json:"user_id"`
	ItemID          flexID              `json:"item_id"`
	Timestamp       flexTimestamp       `json:"timestamp"`
	Recommendations []rawRecommendation `json:"recommendations"`
}

func (r rawEvent) event() common.Event {
	recs := make([]common.Recommendation, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		recs = append(recs, common.Recommendation{ItemID: string(rec.ItemID), Score: rec.Score.value})
	}
	return common.Event{
		UserID:          string(r.UserID),
		ItemID:          string(r.ItemID),
		Timestamp:       int64(r.Timestamp),
		Recommendations: recs,
	}
}

// rawRecommendation accepts {"item_id": .., "score": ..} as well as the
// pair form [item_id, score].
type rawRecommendation struct {
	ItemID flexID    `json:"item_id"`
	Score  flexScore `json:"score"`
}

func (r *rawRecommendation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("recommendation pair must have 2 elements, got %d", len(pair))
		}
		if err := r.ItemID.UnmarshalJSON(pair[0]); err != nil {
			return err
		}
		return r.Score.UnmarshalJSON(pair[1])
	}

	type plain rawRecommendation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = rawRecommendation(p)
	return nil
}

// flexID is an identifier given either as a JSON string or a JSON number.
// Numbers keep their literal text.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("invalid id %s", data)
		}
		*id = flexID(data)
	}
	return nil
}

// flexScore is a prediction given as a number or numeric string. null keeps
// the score missing; a string that is not a number decodes to NaN so that
// weighted builds reject it.
type flexScore struct {
	value *float64
}

func (s *flexScore) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		s.value = nil
		return nil
	}

	var v float64
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v = parseScore(str)
	} else if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.value = &v
	return nil
}

func parseScore(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

type flexTimestamp int64

func (ts *flexTimestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*ts = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
		if len(data) == 0 {
			*ts = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s", data)
	}
	*ts = flexTimestamp(v)
	return nil
}

func decodeJSON(data []byte) ([]common.Event, error) {
	var raw []rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrInputShape, err)
	}

	events := make([]common.Event, 0, len(raw))
	for _, r := range raw {
		events = append(events, r.event())
	}
	return events, nil
}

func decodeJSONLines(data []byte) ([]common.Event, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var events []common.Event
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var r rawEvent
		if err := json.Unmarshal(text, &r); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", graph.ErrInputShape, line, err)
		}
		events = append(events, r.event())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", graph.ErrInputShape, line+1, err)
	}
	return events, nil
}
