package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
	"github.com/OFFIS-RIT/recgraph/pkg/graph"
	"github.com/OFFIS-RIT/recgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/recgraph/pkg/loader"
	"github.com/OFFIS-RIT/recgraph/pkg/store"

	"github.com/goccy/go-json"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]store.GraphRecord
	saved   map[string]common.Graph
	stale   []store.GraphRecord
}

func newFakeStore(records ...store.GraphRecord) *fakeStore {
	s := &fakeStore{
		records: make(map[string]store.GraphRecord),
		saved:   make(map[string]common.Graph),
	}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) CreateGraph(_ context.Context, r store.GraphRecord) (store.GraphRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
	return r, nil
}

func (s *fakeStore) GetGraphRecord(_ context.Context, id string) (store.GraphRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return store.GraphRecord{}, store.ErrNotFound
	}
	return r, nil
}

func (s *fakeStore) ListGraphs(context.Context, int32, int, int) ([]store.GraphRecord, error) {
	return nil, nil
}

func (s *fakeStore) ListStaleBuilds(context.Context, time.Duration) ([]store.GraphRecord, error) {
	return s.stale, nil
}

func (s *fakeStore) setStatus(id string, status store.GraphStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = status
	r.Error = reason
	s.records[id] = r
	return nil
}

func (s *fakeStore) MarkBuilding(_ context.Context, id string) error {
	return s.setStatus(id, store.GraphStatusBuilding, "")
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, reason string) error {
	return s.setStatus(id, store.GraphStatusFailed, reason)
}

func (s *fakeStore) SaveGraph(_ context.Context, g common.Graph, exportKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[g.ID]
	r.Status = store.GraphStatusReady
	r.ExportKey = exportKey
	r.NumVertices = len(g.Vertices)
	r.NumEdges = len(g.Edges)
	r.Stats = g.Stats
	s.records[g.ID] = r
	s.saved[g.ID] = g
	return nil
}

func (s *fakeStore) LoadGraph(_ context.Context, id string) (common.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.saved[id]
	if !ok {
		return common.Graph{}, store.ErrNotFound
	}
	return g, nil
}

func (s *fakeStore) DeleteGraph(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	delete(s.saved, id)
	return nil
}

type fakeLocker struct {
	busy bool
	keys []string
}

func (l *fakeLocker) WithLease(ctx context.Context, key string, _ leaselock.Options, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.busy {
		return leaselock.ErrBusy
	}
	return fn(ctx)
}

type memoryLoader map[string][]byte

func (m memoryLoader) GetFileBytes(_ context.Context, file loader.EventFile) ([]byte, error) {
	data, ok := m[file.FilePath]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

// cachingLoader keeps every file it reads, like the S3 and filesystem
// loaders do.
type cachingLoader struct {
	source memoryLoader
	cache  map[string][]byte
	reads  *int
}

func (l *cachingLoader) GetFileBytes(ctx context.Context, file loader.EventFile) ([]byte, error) {
	key := loader.CacheKey(file)
	if data, ok := l.cache[key]; ok {
		return data, nil
	}
	*l.reads++
	data, err := l.source.GetFileBytes(ctx, file)
	if err != nil {
		return nil, err
	}
	l.cache[key] = data
	return data, nil
}

type fakeObjects struct {
	files   map[string][]byte
	types   map[string]string
	deleted []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{files: make(map[string][]byte), types: make(map[string]string)}
}

func (o *fakeObjects) PutFile(_ context.Context, key string, contentType string, body []byte) error {
	o.files[key] = body
	o.types[key] = contentType
	return nil
}

func (o *fakeObjects) DeleteFolder(_ context.Context, prefix string) error {
	o.deleted = append(o.deleted, prefix)
	return nil
}

func (o *fakeObjects) ExportKey(graphID string, ext string) string {
	return "graphs/" + graphID + "/graph." + ext
}

func (o *fakeObjects) GraphPrefix(graphID string) string {
	return "graphs/" + graphID + "/"
}

type published struct {
	target string
	data   []byte
}

type fakePublisher struct {
	fifo   []published
	topics []published
}

func (p *fakePublisher) PublishFIFO(queueName string, data []byte) error {
	p.fifo = append(p.fifo, published{target: queueName, data: data})
	return nil
}

func (p *fakePublisher) PublishTopic(topic string, data []byte) error {
	p.topics = append(p.topics, published{target: topic, data: data})
	return nil
}

const exampleEventsJSON = `[
	{"user_id": "u1", "item_id": "A", "timestamp": 100, "recommendations": [["X", 4], ["Y", 2]]},
	{"user_id": "u2", "item_id": "A", "timestamp": 200, "recommendations": [{"item_id": "X", "score": 6}]}
]`

type processorFixture struct {
	store     *fakeStore
	locker    *fakeLocker
	objects   *fakeObjects
	publisher *fakePublisher
	processor *BuildProcessor
}

func newFixture(files memoryLoader, records ...store.GraphRecord) processorFixture {
	f := processorFixture{
		store:     newFakeStore(records...),
		locker:    &fakeLocker{},
		objects:   newFakeObjects(),
		publisher: &fakePublisher{},
	}
	f.processor = NewBuildProcessor(NewBuildProcessorParams{
		Store:       f.store,
		Locker:      f.locker,
		NewLoader:   func() loader.EventFileLoader { return files },
		Objects:     f.objects,
		Publisher:   f.publisher,
		DefaultTopN: 5,
	})
	return f
}

func pendingRecord(id, source string) store.GraphRecord {
	return store.GraphRecord{
		ID:       id,
		Name:     "example",
		Source:   source,
		Mode:     string(graph.ModeItem),
		Weighted: true,
		Status:   store.GraphStatusPending,
	}
}

func buildBody(t *testing.T, msg QueueBuildGraphMsg) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestProcessBuildMessage(t *testing.T) {
	record := pendingRecord("g1", "events.json")
	f := newFixture(memoryLoader{"events.json": []byte(exampleEventsJSON)}, record)

	body := buildBody(t, NewBuildGraphMsg(record))
	if err := f.processor.ProcessBuildMessage(context.Background(), body); err != nil {
		t.Fatalf("ProcessBuildMessage() error = %v", err)
	}

	got := f.store.records["g1"]
	if got.Status != store.GraphStatusReady {
		t.Fatalf("status = %q, want ready", got.Status)
	}
	if got.ExportKey != "graphs/g1/graph.gexf" {
		t.Fatalf("export key = %q", got.ExportKey)
	}
	if got.NumVertices != 3 || got.NumEdges != 2 {
		t.Fatalf("counts = %d vertices, %d edges, want 3 and 2", got.NumVertices, got.NumEdges)
	}

	saved := f.store.saved["g1"]
	if saved.ID != "g1" || saved.Name != "example" || saved.TopN != 5 {
		t.Fatalf("saved graph header = %+v", saved)
	}
	weights := map[string]float64{}
	for _, e := range saved.Edges {
		weights[e.Source+"->"+e.Target] = e.Weight
	}
	if weights["A->X"] != 250 || weights["A->Y"] != 50 {
		t.Fatalf("weights = %v, want A->X 250 and A->Y 50", weights)
	}

	export, ok := f.objects.files["graphs/g1/graph.gexf"]
	if !ok {
		t.Fatalf("export not uploaded, have %v", f.objects.files)
	}
	if !strings.Contains(string(export), "<gexf") {
		t.Fatalf("export is not GEXF: %.80s", export)
	}
	if len(f.locker.keys) != 1 || f.locker.keys[0] != leaselock.BuildKey("g1") {
		t.Fatalf("lease keys = %v", f.locker.keys)
	}

	if len(f.publisher.topics) != 1 || f.publisher.topics[0].target != TopicGraphBuilt {
		t.Fatalf("topics = %+v, want one %s", f.publisher.topics, TopicGraphBuilt)
	}
	var event GraphBuiltEvent
	if err := json.Unmarshal(f.publisher.topics[0].data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.GraphID != "g1" || event.Status != store.GraphStatusReady || event.Edges != 2 {
		t.Fatalf("event = %+v", event)
	}
}

func TestProcessBuildMessageExportFormat(t *testing.T) {
	record := pendingRecord("g1", "events.json")
	record.ExportFormat = "graphml"
	f := newFixture(memoryLoader{"events.json": []byte(exampleEventsJSON)}, record)

	if err := f.processor.ProcessBuildMessage(context.Background(), buildBody(t, NewBuildGraphMsg(record))); err != nil {
		t.Fatalf("ProcessBuildMessage() error = %v", err)
	}
	if _, ok := f.objects.files["graphs/g1/graph.graphml"]; !ok {
		t.Fatalf("graphml export missing, have %v", f.objects.files)
	}
}

func TestProcessBuildMessageSkips(t *testing.T) {
	ready := pendingRecord("g1", "events.json")
	ready.Status = store.GraphStatusReady

	tests := []struct {
		name    string
		records []store.GraphRecord
	}{
		{name: "missing record"},
		{name: "already ready", records: []store.GraphRecord{ready}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(memoryLoader{}, tt.records...)
			body := buildBody(t, QueueBuildGraphMsg{GraphID: "g1", Source: "events.json"})
			if err := f.processor.ProcessBuildMessage(context.Background(), body); err != nil {
				t.Fatalf("ProcessBuildMessage() error = %v", err)
			}
			if len(f.locker.keys) != 0 {
				t.Fatalf("lease taken for skipped build: %v", f.locker.keys)
			}
			if len(f.publisher.topics) != 0 {
				t.Fatalf("unexpected notifications: %+v", f.publisher.topics)
			}
		})
	}
}

func TestProcessBuildMessageErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		files      memoryLoader
		busy       bool
		wantErr    error
		wantFailed bool
	}{
		{
			name:    "malformed body",
			body:    `{"graph_id":`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "missing source",
			body:    `{"graph_id": "g1"}`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "unknown mode",
			body:    `{"graph_id": "g1", "source": "events.json", "mode": "session"}`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:       "bad events",
			body:       `{"graph_id": "g1", "source": "events.json"}`,
			files:      memoryLoader{"events.json": []byte(`{"not": "a list"}`)},
			wantErr:    graph.ErrInputShape,
			wantFailed: true,
		},
		{
			name:       "no events",
			body:       `{"graph_id": "g1", "source": "events.json"}`,
			files:      memoryLoader{"events.json": []byte(`[]`)},
			wantErr:    graph.ErrDegenerateGraph,
			wantFailed: true,
		},
		{
			name:    "lease busy",
			body:    `{"graph_id": "g1", "source": "events.json"}`,
			files:   memoryLoader{"events.json": []byte(exampleEventsJSON)},
			busy:    true,
			wantErr: leaselock.ErrBusy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.files, pendingRecord("g1", "events.json"))
			f.locker.busy = tt.busy

			err := f.processor.ProcessBuildMessage(context.Background(), []byte(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ProcessBuildMessage() error = %v, want %v", err, tt.wantErr)
			}

			status := f.store.records["g1"].Status
			if tt.wantFailed {
				if status != store.GraphStatusFailed {
					t.Fatalf("status = %q, want failed", status)
				}
				if len(f.publisher.topics) != 1 || f.publisher.topics[0].target != TopicGraphFailed {
					t.Fatalf("topics = %+v, want one %s", f.publisher.topics, TopicGraphFailed)
				}
				return
			}
			if status == store.GraphStatusFailed {
				t.Fatalf("transient error marked graph failed")
			}
		})
	}
}

func TestProcessDeleteMessage(t *testing.T) {
	f := newFixture(memoryLoader{})

	if err := f.processor.Process(context.Background(), DeleteQueue, []byte(`{"graph_id": "g1"}`)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(f.objects.deleted) != 1 || f.objects.deleted[0] != "graphs/g1/" {
		t.Fatalf("deleted = %v, want [graphs/g1/]", f.objects.deleted)
	}
}

func TestProcessUnknownQueue(t *testing.T) {
	f := newFixture(memoryLoader{})
	err := f.processor.Process(context.Background(), "index_queue", []byte(`{}`))
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("Process() error = %v, want ErrInvalidMessage", err)
	}
}

func TestProcessBuildMessageRereadsSourceOnRetry(t *testing.T) {
	record := pendingRecord("g1", "events.json")
	files := memoryLoader{"events.json": []byte(`{"broken": true}`)}
	f := newFixture(files, record)

	reads := 0
	f.processor.newLoader = func() loader.EventFileLoader {
		return &cachingLoader{source: files, cache: make(map[string][]byte), reads: &reads}
	}

	body := buildBody(t, NewBuildGraphMsg(record))
	if err := f.processor.ProcessBuildMessage(context.Background(), body); !errors.Is(err, graph.ErrInputShape) {
		t.Fatalf("first build error = %v, want ErrInputShape", err)
	}

	files["events.json"] = []byte(exampleEventsJSON)
	if err := f.processor.ProcessBuildMessage(context.Background(), body); err != nil {
		t.Fatalf("second build error = %v", err)
	}

	if reads != 2 {
		t.Fatalf("source read %d times, want 2", reads)
	}
	if status := f.store.records["g1"].Status; status != store.GraphStatusReady {
		t.Fatalf("status = %q, want ready", status)
	}
}
