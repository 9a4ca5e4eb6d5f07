package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/recgraph/internal/util"
	"github.com/OFFIS-RIT/recgraph/pkg/export"
	"github.com/OFFIS-RIT/recgraph/pkg/graph"
	"github.com/OFFIS-RIT/recgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/recgraph/pkg/loader"
	"github.com/OFFIS-RIT/recgraph/pkg/logger"
	"github.com/OFFIS-RIT/recgraph/pkg/store"
)

const uploadTries = 3

// Locker serializes work on one key across workers.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// ObjectStore holds graph exports.
type ObjectStore interface {
	PutFile(ctx context.Context, key string, contentType string, body []byte) error
	DeleteFolder(ctx context.Context, prefix string) error
	ExportKey(graphID string, ext string) string
	GraphPrefix(graphID string) string
}

// BuildProcessor runs build and delete jobs.
type BuildProcessor struct {
	store     store.GraphStorage
	locker    Locker
	newLoader func() loader.EventFileLoader
	objects   ObjectStore
	publisher Publisher

	defaultTopN   int
	defaultShards int
	leaseTTL      time.Duration
}

// NewBuildProcessorParams defines the collaborators of a BuildProcessor.
//
// NewLoader is called once per build job, so loader caches live only as
// long as the job. DefaultTopN and DefaultShards apply to jobs that leave
// TopN or ParallelShards at zero.
type NewBuildProcessorParams struct {
	Store     store.GraphStorage
	Locker    Locker
	NewLoader func() loader.EventFileLoader
	Objects   ObjectStore
	Publisher Publisher

	DefaultTopN   int
	DefaultShards int
	LeaseTTL      time.Duration
}

func NewBuildProcessor(params NewBuildProcessorParams) *BuildProcessor {
	ttl := params.LeaseTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &BuildProcessor{
		store:         params.Store,
		locker:        params.Locker,
		newLoader:     params.NewLoader,
		objects:       params.Objects,
		publisher:     params.Publisher,
		defaultTopN:   params.DefaultTopN,
		defaultShards: params.DefaultShards,
		leaseTTL:      ttl,
	}
}

// IsPermanent reports whether err is deterministic for the message that
// caused it, so that redelivering the message cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidMessage) ||
		errors.Is(err, graph.ErrInputShape) ||
		errors.Is(err, graph.ErrPrecondition) ||
		errors.Is(err, graph.ErrDegenerateGraph)
}

// ProcessBuildMessage builds, exports and stores the graph named by the
// message. Redelivered messages for graphs that are already ready are
// acknowledged without rebuilding.
func (p *BuildProcessor) ProcessBuildMessage(ctx context.Context, body []byte) error {
	msg, err := DecodeMessage[QueueBuildGraphMsg](body)
	if err != nil {
		return err
	}

	record, err := p.store.GetGraphRecord(ctx, msg.GraphID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("[Queue] Graph no longer exists, dropping build", "graph_id", msg.GraphID)
		return nil
	}
	if err != nil {
		return err
	}
	if record.Status == store.GraphStatusReady {
		logger.Info("[Queue] Graph already built", "graph_id", msg.GraphID)
		return nil
	}

	err = p.locker.WithLease(ctx, leaselock.BuildKey(msg.GraphID), leaselock.Options{
		TTL:         p.leaseTTL,
		RenewEvery:  p.leaseTTL * 2 / 5,
		TokenPrefix: fmt.Sprintf("build/%s/", msg.GraphID),
	}, func(ctx context.Context) error {
		return p.build(ctx, msg, record.Name)
	})
	if err != nil && IsPermanent(err) {
		p.fail(msg.GraphID, err)
	}
	return err
}

func (p *BuildProcessor) build(ctx context.Context, msg QueueBuildGraphMsg, name string) error {
	start := time.Now()

	if err := p.store.MarkBuilding(ctx, msg.GraphID); err != nil {
		return err
	}

	file, err := loader.NewEventFile(loader.NewEventFileParams{
		ID:       msg.GraphID,
		FilePath: msg.Source,
		Format:   loader.EventFormat(msg.Format),
		Loader:   p.newLoader(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	events, err := file.GetEvents(ctx)
	if err != nil {
		return err
	}
	logger.Info("[Queue] Loaded events", "graph_id", msg.GraphID, "events", len(events))

	topN := msg.TopN
	if topN <= 0 {
		topN = p.defaultTopN
	}
	shards := msg.ParallelShards
	if shards <= 0 {
		shards = p.defaultShards
	}
	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
		TopN:           topN,
		Mode:           graph.Mode(msg.Mode),
		Unweighted:     msg.Unweighted,
		ParallelShards: shards,
	})
	if err != nil {
		return err
	}

	g, err := client.ProcessGraph(ctx, events)
	if err != nil {
		return err
	}
	snapshot := client.Snapshot(g, msg.GraphID, name)

	format := export.FormatGEXF
	if msg.ExportFormat != "" {
		format, err = export.ParseFormat(msg.ExportFormat)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, snapshot, format); err != nil {
		return err
	}
	exportKey := p.objects.ExportKey(msg.GraphID, format.Extension())
	err = util.RetryErrWithContext(ctx, uploadTries, time.Second, func(ctx context.Context) error {
		return p.objects.PutFile(ctx, exportKey, format.ContentType(), buf.Bytes())
	})
	if err != nil {
		return err
	}

	if err := p.store.SaveGraph(ctx, snapshot, exportKey); err != nil {
		return err
	}

	p.notify(TopicGraphBuilt, GraphBuiltEvent{
		GraphID:   msg.GraphID,
		Status:    store.GraphStatusReady,
		ExportKey: exportKey,
		Vertices:  len(snapshot.Vertices),
		Edges:     len(snapshot.Edges),
		Stats:     snapshot.Stats,
	})

	logger.Info(
		"[Queue] Graph built",
		"graph_id", msg.GraphID,
		"vertices", len(snapshot.Vertices),
		"edges", len(snapshot.Edges),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (p *BuildProcessor) fail(graphID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.store.MarkFailed(ctx, graphID, cause.Error()); err != nil {
		logger.Warn("[Queue] Failed to mark graph as failed", "graph_id", graphID, "err", err)
	}
	p.notify(TopicGraphFailed, GraphBuiltEvent{
		GraphID: graphID,
		Status:  store.GraphStatusFailed,
		Error:   cause.Error(),
	})
}

func (p *BuildProcessor) notify(topic string, event GraphBuiltEvent) {
	if p.publisher == nil {
		return
	}
	data, err := encode(event)
	if err != nil {
		logger.Warn("[Queue] Failed to encode notification", "topic", topic, "err", err)
		return
	}
	if err := p.publisher.PublishTopic(topic, data); err != nil {
		logger.Warn("[Queue] Failed to publish notification", "topic", topic, "graph_id", event.GraphID, "err", err)
	}
}

// ProcessDeleteMessage removes the stored exports of a deleted graph.
func (p *BuildProcessor) ProcessDeleteMessage(ctx context.Context, body []byte) error {
	msg, err := DecodeMessage[QueueDeleteGraphMsg](body)
	if err != nil {
		return err
	}

	return p.locker.WithLease(ctx, leaselock.BuildKey(msg.GraphID), leaselock.Options{
		TTL:         p.leaseTTL,
		Wait:        true,
		TokenPrefix: fmt.Sprintf("delete/%s/", msg.GraphID),
	}, func(ctx context.Context) error {
		if err := p.objects.DeleteFolder(ctx, p.objects.GraphPrefix(msg.GraphID)); err != nil {
			return err
		}
		logger.Info("[Queue] Deleted graph exports", "graph_id", msg.GraphID)
		return nil
	})
}

// Process dispatches a message body by the queue it was consumed from.
func (p *BuildProcessor) Process(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case BuildQueue:
		return p.ProcessBuildMessage(ctx, body)
	case DeleteQueue:
		return p.ProcessDeleteMessage(ctx, body)
	default:
		return fmt.Errorf("%w: unknown queue %q", ErrInvalidMessage, queueName)
	}
}
