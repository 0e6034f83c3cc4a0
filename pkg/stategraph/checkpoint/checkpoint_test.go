package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineState struct {
	Results []string `json:"results"`
	Count   int      `json:"count"`
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return NewManager(store)
}

// TestManager_CreateLoadRoundtrip tests that a created checkpoint loads
// back with an equal decoded state.
func TestManager_CreateLoadRoundtrip(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	state := pipelineState{Results: []string{"ingest_completed"}, Count: 3}
	cp, err := mgr.Create(ctx, "wf-1", "transform", state, map[string]any{"attempt": "first"})
	require.NoError(t, err)

	assert.NotEmpty(t, cp.ID)
	assert.Equal(t, "wf-1", cp.WorkflowID)
	assert.Equal(t, "transform", cp.NodeID)
	assert.False(t, cp.Timestamp.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), cp.Timestamp, 5*time.Second)

	loaded, err := mgr.Load(ctx, cp.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, cp.ID, loaded.ID)
	assert.Equal(t, map[string]any{"attempt": "first"}, loaded.Metadata)

	decoded, err := State[pipelineState](loaded)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}

// TestManager_LoadMissing tests that a missing ID yields nil, nil.
func TestManager_LoadMissing(t *testing.T) {
	mgr := newTestManager(t)

	cp, err := mgr.Load(context.Background(), "no-such-id")
	assert.NoError(t, err)
	assert.Nil(t, cp)
}

// TestManager_Latest tests newest-first selection and the empty case.
func TestManager_Latest(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	cp, err := mgr.Latest(ctx, "wf-1")
	require.NoError(t, err)
	assert.Nil(t, cp)

	_, err = mgr.Create(ctx, "wf-1", "ingest", pipelineState{Count: 1}, nil)
	require.NoError(t, err)
	second, err := mgr.Create(ctx, "wf-1", "transform", pipelineState{Count: 2}, nil)
	require.NoError(t, err)

	latest, err := mgr.Latest(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "transform", latest.NodeID)
}

// TestManager_List tests per-workflow listing order.
func TestManager_List(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	for i, node := range []string{"a", "b", "c"} {
		_, err := mgr.Create(ctx, "wf-1", node, pipelineState{Count: i}, nil)
		require.NoError(t, err)
	}
	_, err := mgr.Create(ctx, "wf-2", "other", pipelineState{}, nil)
	require.NoError(t, err)

	cps, err := mgr.List(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, cps, 3)
	assert.Equal(t, "c", cps[0].NodeID)
	assert.Equal(t, "b", cps[1].NodeID)
	assert.Equal(t, "a", cps[2].NodeID)
}

// TestManager_Delete tests single-checkpoint removal, including the
// absent case.
func TestManager_Delete(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	cp, err := mgr.Create(ctx, "wf-1", "a", pipelineState{}, nil)
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(ctx, cp.ID))
	loaded, err := mgr.Load(ctx, cp.ID)
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	// Deleting again is not an error.
	assert.NoError(t, mgr.Delete(ctx, cp.ID))
}

// TestManager_Cleanup tests that cleanup is scoped to one workflow.
func TestManager_Cleanup(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "wf-1", "a", pipelineState{}, nil)
	require.NoError(t, err)
	_, err = mgr.Create(ctx, "wf-1", "b", pipelineState{}, nil)
	require.NoError(t, err)
	kept, err := mgr.Create(ctx, "wf-2", "a", pipelineState{}, nil)
	require.NoError(t, err)

	require.NoError(t, mgr.Cleanup(ctx, "wf-1"))

	gone, err := mgr.List(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, gone)

	remaining, err := mgr.List(ctx, "wf-2")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)
}

// TestManager_CreateUnserializableState tests the serialization error
// path.
func TestManager_CreateUnserializableState(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.Create(context.Background(), "wf-1", "a", make(chan int), nil)
	assert.ErrorContains(t, err, "serialize checkpoint state")
}

// recordingMetrics captures checkpoint metric calls.
type recordingMetrics struct {
	nodes []string
	sizes []int64
}

func (r *recordingMetrics) RecordNodeExecution(context.Context, string, time.Duration, error) {}
func (r *recordingMetrics) RecordRun(context.Context, string, time.Duration)                  {}

func (r *recordingMetrics) RecordCheckpoint(_ context.Context, node string, sizeBytes int64) {
	r.nodes = append(r.nodes, node)
	r.sizes = append(r.sizes, sizeBytes)
}

// TestManager_CreateObservability tests that a save logs the checkpoint
// and records its serialized size.
func TestManager_CreateObservability(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	metrics := &recordingMetrics{}
	mgr := NewManager(store, WithLogger(logger), WithMetrics(metrics))

	cp, err := mgr.Create(context.Background(), "wf-1", "transform", pipelineState{Count: 3}, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"transform"}, metrics.nodes)
	require.Equal(t, []int64{int64(len(cp.State))}, metrics.sizes)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "checkpoint saved", line["msg"])
	assert.Equal(t, "transform", line["node"])
	assert.Equal(t, float64(len(cp.State)), line["size_bytes"])
}

// TestManager_CreateObservability_SaveFailure tests the warning path
// when the store rejects the save.
func TestManager_CreateObservability_SaveFailure(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := &recordingMetrics{}
	mgr := NewManager(store, WithLogger(logger), WithMetrics(metrics))

	_, err := mgr.Create(context.Background(), "wf-1", "transform", pipelineState{}, nil)
	require.ErrorIs(t, err, ErrStoreClosed)
	assert.Empty(t, metrics.sizes)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "checkpoint failed", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "save", line["operation"])
}

// TestNewManager_NilStore tests the constructor guard.
func TestNewManager_NilStore(t *testing.T) {
	assert.Panics(t, func() { NewManager(nil) })
}

// TestCheckpoint_MarshalUnmarshal tests the wire form roundtrip.
func TestCheckpoint_MarshalUnmarshal(t *testing.T) {
	cp := &Checkpoint{
		ID:         "cp-1",
		WorkflowID: "wf-1",
		NodeID:     "transform",
		State:      []byte(`{"count":3}`),
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Metadata:   map[string]any{"region": "us-east"},
	}

	data, err := cp.Marshal()
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, back.ID)
	assert.Equal(t, cp.NodeID, back.NodeID)
	assert.JSONEq(t, `{"count":3}`, string(back.State))
	assert.True(t, cp.Timestamp.Equal(back.Timestamp))
	assert.Equal(t, cp.Metadata, back.Metadata)

	_, err = Unmarshal([]byte("{not json"))
	assert.Error(t, err)
}

// TestState_DecodeError tests the typed decode error path.
func TestState_DecodeError(t *testing.T) {
	cp := &Checkpoint{State: []byte(`"not an object"`)}
	_, err := State[pipelineState](cp)
	assert.ErrorContains(t, err, "decode checkpoint state")
}
