package control

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	taskID   int64
	payloads [][]byte
}

func (f *fakeChannel) Publish(_ context.Context, taskID int64, envelope []byte) error {
	f.taskID = taskID
	f.payloads = append(f.payloads, envelope)
	return nil
}

func TestPublisherStarted(t *testing.T) {
	fc := &fakeChannel{}
	p := New(fc, 42)
	require.NoError(t, p.Started(context.Background()))

	require.Len(t, fc.payloads, 1)
	var env envelope
	require.NoError(t, json.Unmarshal(fc.payloads[0], &env))
	assert.Equal(t, "EVENT", env.Kind)
	assert.Equal(t, EventStarted, env.Event)
	assert.Equal(t, int64(42), fc.taskID)
}

func TestPublisherProgressCarriesFields(t *testing.T) {
	fc := &fakeChannel{}
	p := New(fc, 1)
	require.NoError(t, p.Progress(context.Background(), 0.5, "2026-01-01T00:00:00Z", "2026-01-01T12:00:00Z", "result-1"))

	var env envelope
	require.NoError(t, json.Unmarshal(fc.payloads[0], &env))
	assert.Equal(t, EventProgress, env.Event)
	assert.Equal(t, 0.5, env.Progress)
	assert.Equal(t, "result-1", env.ResultID)
}

func TestPublisherErroredCarriesMessage(t *testing.T) {
	fc := &fakeChannel{}
	p := New(fc, 1)
	require.NoError(t, p.Errored(context.Background(), "boom"))

	var env envelope
	require.NoError(t, json.Unmarshal(fc.payloads[0], &env))
	assert.Equal(t, EventError, env.Event)
	assert.Equal(t, "boom", env.Message)
}

func TestRedisChannelKeySharesTaskStorePrefix(t *testing.T) {
	c := NewRedisChannel(nil, "tasks")
	assert.Equal(t, "tasks:messages:7", c.channelKey(7))
}
