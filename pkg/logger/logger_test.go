package logger

import (
	"reflect"
	"testing"
)

type recordingInstance struct {
	calls []string
	kvs   [][]any
}

func (r *recordingInstance) record(level, message string, keyvals []any) {
	r.calls = append(r.calls, level+":"+message)
	r.kvs = append(r.kvs, keyvals)
}

func (r *recordingInstance) Log(m string, kv ...any)   { r.record("log", m, kv) }
func (r *recordingInstance) Debug(m string, kv ...any) { r.record("debug", m, kv) }
func (r *recordingInstance) Info(m string, kv ...any)  { r.record("info", m, kv) }
func (r *recordingInstance) Warn(m string, kv ...any)  { r.record("warn", m, kv) }
func (r *recordingInstance) Error(m string, kv ...any) { r.record("error", m, kv) }
func (r *recordingInstance) Fatal(m string, kv ...any) { r.record("fatal", m, kv) }

func TestDispatchToAllInstances(t *testing.T) {
	a, b := &recordingInstance{}, &recordingInstance{}
	Init(a, b)
	t.Cleanup(func() { Init() })

	Log("plain", "k", 1)
	Debug("d")
	Info("i", "edges", 2)
	Warn("w")
	Error("e", "err", "boom")

	want := []string{"log:plain", "debug:d", "info:i", "warn:w", "error:e"}
	for _, inst := range []*recordingInstance{a, b} {
		if !reflect.DeepEqual(inst.calls, want) {
			t.Fatalf("calls = %v, want %v", inst.calls, want)
		}
		if !reflect.DeepEqual(inst.kvs[0], []any{"k", 1}) {
			t.Fatalf("Log keyvals = %v, want [k 1]", inst.kvs[0])
		}
		if !reflect.DeepEqual(inst.kvs[2], []any{"edges", 2}) {
			t.Fatalf("Info keyvals = %v, want [edges 2]", inst.kvs[2])
		}
	}
}

func TestNoopWithoutInit(t *testing.T) {
	singletonMu.Lock()
	singleton = nil
	singletonMu.Unlock()

	// must not panic
	Info("nobody listens")
}
