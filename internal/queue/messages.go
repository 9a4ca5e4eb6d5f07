package queue

import (
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
	"github.com/OFFIS-RIT/recgraph/pkg/store"

	"github.com/go-playground/validator"
	"github.com/goccy/go-json"
)

var ErrInvalidMessage = errors.New("invalid queue message")

var validate = validator.New()

// QueueBuildGraphMsg asks a worker to build the graph GraphID from the
// events stored at Source.
type QueueBuildGraphMsg struct {
	GraphID        string `json:"graph_id" validate:"required"`
	Source         string `json:"source" validate:"required"`
	Format         string `json:"format,omitempty" validate:"omitempty,oneof=json jsonl csv"`
	Mode           string `json:"mode,omitempty" validate:"omitempty,oneof=item user-item"`
	TopN           int    `json:"top_n" validate:"gte=0"`
	Unweighted     bool   `json:"unweighted,omitempty"`
	ParallelShards int    `json:"parallel_shards" validate:"gte=0,lte=64"`
	ExportFormat   string `json:"export_format,omitempty" validate:"omitempty,oneof=gexf graphml json"`
}

// NewBuildGraphMsg describes the build job of record.
func NewBuildGraphMsg(record store.GraphRecord) QueueBuildGraphMsg {
	return QueueBuildGraphMsg{
		GraphID:        record.ID,
		Source:         record.Source,
		Mode:           record.Mode,
		TopN:           record.TopN,
		Unweighted:     !record.Weighted,
		ParallelShards: record.ParallelShards,
		ExportFormat:   record.ExportFormat,
	}
}

type QueueDeleteGraphMsg struct {
	GraphID string `json:"graph_id" validate:"required"`
}

// GraphBuiltEvent is published on TopicGraphBuilt and TopicGraphFailed.
type GraphBuiltEvent struct {
	GraphID   string             `json:"graph_id"`
	Status    store.GraphStatus  `json:"status"`
	ExportKey string             `json:"export_key,omitempty"`
	Vertices  int                `json:"vertices"`
	Edges     int                `json:"edges"`
	Stats     common.WeightStats `json:"stats"`
	Error     string             `json:"error,omitempty"`
}

// DecodeMessage unmarshals and validates a queue message body.
func DecodeMessage[T any](body []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := validate.Struct(msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return msg, nil
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
