package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/model"
)

// memSink is a minimal in-memory Sink for exercising Engine without a real
// database file, grounded on the BoltSink contract it stands in for.
type memSink struct {
	data map[string][]byte
}

func newMemSink() *memSink {
	return &memSink{data: make(map[string][]byte)}
}

func (s *memSink) Put(key string, value []byte) error {
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memSink) Get(key string) ([]byte, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memSink) Scan(prefix string) ([]KV, error) {
	var out []KV
	for k, v := range s.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, KV{Key: k, Value: v})
		}
	}
	return out, nil
}

func (s *memSink) Close() error { return nil }

func mts(wall int64, peer string) clock.Timestamp {
	return clock.Timestamp{WallMs: wall, Counter: 0, PeerID: peer}
}

func TestEngineLoadColdStart(t *testing.T) {
	sink := newMemSink()
	m := model.New()
	e := NewEngine(sink, m, "p1", 0, 0)

	hwm, err := e.Load()
	require.NoError(t, err)
	require.Equal(t, clock.Zero, hwm)
}

func TestEngineSnapshotThenLoadRoundTrips(t *testing.T) {
	sink := newMemSink()
	m := model.New()
	require.NoError(t, m.UpsertResource("r1", model.ResourceKindCompute, model.CapacityVector{"cpu": 4, "memory": 16}, map[string]string{"zone": "a"}, mts(1, "p1")))

	e := NewEngine(sink, m, "p1", 0, 0)
	require.NoError(t, e.Snapshot())

	m2 := model.New()
	e2 := NewEngine(sink, m2, "p1", 0, 0)
	_, err := e2.Load()
	require.NoError(t, err)

	r, ok := m2.GetResource("r1")
	require.True(t, ok)
	require.Equal(t, model.CapacityVector{"cpu": 4, "memory": 16}, r.Capacity)
	require.Equal(t, "a", r.Attributes["zone"])
}

func TestEngineRecordDeltaThenLoadReplaysTail(t *testing.T) {
	sink := newMemSink()
	m := model.New()
	e := NewEngine(sink, m, "p1", 0, 0)
	require.NoError(t, e.Snapshot())

	require.NoError(t, m.UpsertResource("r2", model.ResourceKindNetwork, model.CapacityVector{"bandwidth": 10}, nil, mts(2, "p1")))
	require.NoError(t, e.RecordDelta("p1", mts(2, "p1"), m.Delta(mts(1, "p1"))))

	m2 := model.New()
	e2 := NewEngine(sink, m2, "p1", 0, 0)
	hwm, err := e2.Load()
	require.NoError(t, err)
	require.True(t, clock.Zero.Less(hwm))

	r, ok := m2.GetResource("r2")
	require.True(t, ok)
	require.Equal(t, model.CapacityVector{"bandwidth": 10}, r.Capacity)
}

func TestEngineRecordDeltaTriggersSnapshotOnOpCount(t *testing.T) {
	sink := newMemSink()
	m := model.New()
	e := NewEngine(sink, m, "p1", 2, 0)

	require.NoError(t, m.UpsertResource("r1", model.ResourceKindCompute, model.CapacityVector{"cpu": 1, "memory": 1}, nil, mts(1, "p1")))
	require.NoError(t, e.RecordDelta("p1", mts(1, "p1"), m.Delta(clock.Zero)))
	require.NoError(t, m.UpsertResource("r2", model.ResourceKindCompute, model.CapacityVector{"cpu": 1, "memory": 1}, nil, mts(2, "p1")))
	require.NoError(t, e.RecordDelta("p1", mts(2, "p1"), m.Delta(mts(1, "p1"))))

	entries, err := sink.Scan(snapshotPrefix)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestEngineSchemaVersionMismatch(t *testing.T) {
	sink := newMemSink()
	require.NoError(t, sink.Put(metaSelfKey, []byte(`{"peer_id":"p1","schema_ver":99,"last_snapshot_ts":{"wall_ms":1,"logical_counter":0,"peer_id":"p1"}}`)))

	m := model.New()
	e := NewEngine(sink, m, "p1", 0, 0)
	_, err := e.Load()
	var want *SchemaVersionError
	require.ErrorAs(t, err, &want)
}

func TestEngineStartStopDoesNotPanic(t *testing.T) {
	sink := newMemSink()
	m := model.New()
	e := NewEngine(sink, m, "p1", 0, 10*time.Millisecond)
	e.Start()
	time.Sleep(15 * time.Millisecond)
	e.Stop()

	entries, err := sink.Scan(snapshotPrefix)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}
