package taskstore

import (
	"context"
	"sort"
	"testing"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory stand-in for the subset of *bus.Bus the store
// depends on.
type fakeRedis struct {
	strings map[string]string
	counter map[string]int64
	pubs    []struct {
		channel string
		payload []byte
	}
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{strings: map[string]string{}, counter: map[string]int64{}}
}

func (f *fakeRedis) Incr(_ context.Context, key string) (int64, error) {
	f.counter[key]++
	return f.counter[key], nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.strings[key]
	return v, ok, nil
}

func (f *fakeRedis) Set(_ context.Context, key, value string) error {
	f.strings[key] = value
	return nil
}

func (f *fakeRedis) SetNX(_ context.Context, key, value string) (bool, error) {
	if _, ok := f.strings[key]; ok {
		return false, nil
	}
	f.strings[key] = value
	return true, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.strings, k)
	}
	return nil
}

func (f *fakeRedis) Keys(_ context.Context, pattern string) ([]string, error) {
	prefix := pattern[:len(pattern)-1] // trim trailing '*'
	var out []string
	for k := range f.strings {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeRedis) Publish(_ context.Context, channel string, payload []byte) error {
	f.pubs = append(f.pubs, struct {
		channel string
		payload []byte
	}{channel, payload})
	return nil
}

func TestNewAllocatesMonotonicIDs(t *testing.T) {
	s := New(newFakeRedis(), "tasks")
	ctx := context.Background()

	a, err := s.New(ctx)
	require.NoError(t, err)
	b, err := s.New(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := New(newFakeRedis(), "tasks")
	ctx := context.Background()

	task, err := s.New(ctx)
	require.NoError(t, err)
	task.FileName = "smacross"
	task.Symbol = "BTCUSDT"

	require.NoError(t, s.Save(ctx, task))

	loaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "smacross", loaded.FileName)
	assert.Equal(t, "BTCUSDT", loaded.Symbol)
}

func TestLoadUnknownIDFails(t *testing.T) {
	s := New(newFakeRedis(), "tasks")
	_, err := s.Load(context.Background(), 99)
	assert.Error(t, err)
}

func TestLoadByKeyResolvesSecondaryIndex(t *testing.T) {
	s := New(newFakeRedis(), "tasks")
	ctx := context.Background()

	task, err := s.New(ctx)
	require.NoError(t, err)
	task.FileName = "smacross"
	require.NoError(t, s.Save(ctx, task))

	got, err := s.LoadByKey(ctx, "smacross")
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestSaveRejectsDuplicateFileNameUnderDifferentID(t *testing.T) {
	s := New(newFakeRedis(), "tasks")
	ctx := context.Background()

	a, err := s.New(ctx)
	require.NoError(t, err)
	a.FileName = "smacross"
	require.NoError(t, s.Save(ctx, a))

	b, err := s.New(ctx)
	require.NoError(t, err)
	b.FileName = "smacross"
	err = s.Save(ctx, b)
	assert.Error(t, err)
}

func TestSaveMovesIndexWhenFileNameChanges(t *testing.T) {
	s := New(newFakeRedis(), "tasks")
	ctx := context.Background()

	task, err := s.New(ctx)
	require.NoError(t, err)
	task.FileName = "old_name"
	require.NoError(t, s.Save(ctx, task))

	task.FileName = "new_name"
	require.NoError(t, s.Save(ctx, task))

	_, err = s.LoadByKey(ctx, "old_name")
	assert.Error(t, err)

	got, err := s.LoadByKey(ctx, "new_name")
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestListEnumeratesSavedTasks(t *testing.T) {
	s := New(newFakeRedis(), "tasks")
	ctx := context.Background()

	a, _ := s.New(ctx)
	a.FileName = "a"
	require.NoError(t, s.Save(ctx, a))
	b, _ := s.New(ctx)
	b.FileName = "b"
	require.NoError(t, s.Save(ctx, b))

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteRemovesObjectAndIndex(t *testing.T) {
	s := New(newFakeRedis(), "tasks")
	ctx := context.Background()

	task, err := s.New(ctx)
	require.NoError(t, err)
	task.FileName = "gone"
	require.NoError(t, s.Save(ctx, task))

	require.NoError(t, s.Delete(ctx, task.ID))

	_, err = s.Load(ctx, task.ID)
	assert.Error(t, err)
	_, err = s.LoadByKey(ctx, "gone")
	assert.Error(t, err)
}

func TestDeleteUnknownIDFails(t *testing.T) {
	s := New(newFakeRedis(), "tasks")
	err := s.Delete(context.Background(), 123)
	assert.Error(t, err)
}

func TestSendMessagePublishesOnMessagesChannel(t *testing.T) {
	r := newFakeRedis()
	s := New(r, "tasks")

	require.NoError(t, s.SendMessage(context.Background(), 7, domain.LevelError, "boom"))

	require.Len(t, r.pubs, 1)
	assert.Equal(t, "tasks:messages:7", r.pubs[0].channel)
}
