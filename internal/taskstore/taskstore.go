// Package taskstore implements the Task Store: a keyed object store with
// a unique secondary-key index and a monotonic id counter, used for both
// active strategies and backtesting tasks.
package taskstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// redisOps is the subset of *bus.Bus the Task Store needs; declared
// locally so the store can be tested against a fake.
type redisOps interface {
	Incr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetNX(ctx context.Context, key, value string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Store is a ports.TaskStore backed by Redis.
type Store struct {
	r      redisOps
	prefix string
}

// New builds a Store keyed under prefix (e.g. "tasks").
func New(r redisOps, prefix string) *Store {
	return &Store{r: r, prefix: prefix}
}

func (s *Store) objectKey(id int64) string {
	return fmt.Sprintf("%s:obj:%d", s.prefix, id)
}

func (s *Store) indexKey(fileName string) string {
	return fmt.Sprintf("%s:index:%s", s.prefix, fileName)
}

func (s *Store) nextIDKey() string {
	return s.prefix + ":next_id"
}

func (s *Store) messagesChannel(id int64) string {
	return fmt.Sprintf("%s:messages:%d", s.prefix, id)
}

// New allocates a fresh id from the monotonic counter; the returned task
// is not yet indexed until Save.
func (s *Store) New(ctx context.Context) (domain.Task, error) {
	id, err := s.r.Incr(ctx, s.nextIDKey())
	if err != nil {
		return domain.Task{}, fmt.Errorf("taskstore.New: %w", err)
	}
	return domain.Task{ID: id}, nil
}

// Save persists t under its id and maintains the file_name -> id index.
// Saving under a file_name already indexed to a different id fails.
func (s *Store) Save(ctx context.Context, t domain.Task) error {
	old, found, err := s.load(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("taskstore.Save: load existing: %w", err)
	}

	if t.FileName != "" && (!found || old.FileName != t.FileName) {
		idxKey := s.indexKey(t.FileName)
		existing, ok, err := s.r.Get(ctx, idxKey)
		if err != nil {
			return fmt.Errorf("taskstore.Save: check index: %w", err)
		}
		if ok && existing != fmt.Sprint(t.ID) {
			return fmt.Errorf("taskstore.Save: file_name %q already indexes task %s", t.FileName, existing)
		}
	}

	if found && old.FileName != "" && old.FileName != t.FileName {
		if err := s.r.Del(ctx, s.indexKey(old.FileName)); err != nil {
			return fmt.Errorf("taskstore.Save: delete old index: %w", err)
		}
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("taskstore.Save: marshal: %w", err)
	}
	if err := s.r.Set(ctx, s.objectKey(t.ID), string(payload)); err != nil {
		return fmt.Errorf("taskstore.Save: set object: %w", err)
	}

	if t.FileName != "" {
		if err := s.r.Set(ctx, s.indexKey(t.FileName), fmt.Sprint(t.ID)); err != nil {
			return fmt.Errorf("taskstore.Save: set index: %w", err)
		}
	}
	return nil
}

func (s *Store) load(ctx context.Context, id int64) (domain.Task, bool, error) {
	raw, ok, err := s.r.Get(ctx, s.objectKey(id))
	if err != nil {
		return domain.Task{}, false, err
	}
	if !ok {
		return domain.Task{}, false, nil
	}
	var t domain.Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return domain.Task{}, false, fmt.Errorf("unmarshal task %d: %w", id, err)
	}
	return t, true, nil
}

// Load returns the task with the given id.
func (s *Store) Load(ctx context.Context, id int64) (domain.Task, error) {
	t, ok, err := s.load(ctx, id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("taskstore.Load: %w", err)
	}
	if !ok {
		return domain.Task{}, fmt.Errorf("taskstore.Load: task %d not found", id)
	}
	return t, nil
}

// LoadByKey resolves fileName via the secondary index and loads the task.
func (s *Store) LoadByKey(ctx context.Context, fileName string) (domain.Task, error) {
	idStr, ok, err := s.r.Get(ctx, s.indexKey(fileName))
	if err != nil {
		return domain.Task{}, fmt.Errorf("taskstore.LoadByKey: %w", err)
	}
	if !ok {
		return domain.Task{}, fmt.Errorf("taskstore.LoadByKey: no task indexed under %q", fileName)
	}
	var id int64
	if _, err := fmt.Sscan(idStr, &id); err != nil {
		return domain.Task{}, fmt.Errorf("taskstore.LoadByKey: bad index value %q: %w", idStr, err)
	}
	return s.Load(ctx, id)
}

// List enumerates all tasks under the prefix.
func (s *Store) List(ctx context.Context) ([]domain.Task, error) {
	keys, err := s.r.Keys(ctx, s.prefix+":obj:*")
	if err != nil {
		return nil, fmt.Errorf("taskstore.List: %w", err)
	}
	tasks := make([]domain.Task, 0, len(keys))
	for _, k := range keys {
		raw, ok, err := s.r.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		var t domain.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Delete removes a task and its index entry.
func (s *Store) Delete(ctx context.Context, id int64) error {
	t, ok, err := s.load(ctx, id)
	if err != nil {
		return fmt.Errorf("taskstore.Delete: %w", err)
	}
	if !ok {
		return fmt.Errorf("taskstore.Delete: task %d not found", id)
	}
	keys := []string{s.objectKey(id)}
	if t.FileName != "" {
		keys = append(keys, s.indexKey(t.FileName))
	}
	if err := s.r.Del(ctx, keys...); err != nil {
		return fmt.Errorf("taskstore.Delete: %w", err)
	}
	return nil
}

type messageEnvelope struct {
	Timestamp time.Time           `json:"timestamp"`
	Level     domain.MessageLevel `json:"level"`
	Message   string              `json:"message"`
}

// SendMessage publishes a MESSAGE envelope on the task's progress channel.
func (s *Store) SendMessage(ctx context.Context, id int64, level domain.MessageLevel, text string) error {
	payload, err := json.Marshal(messageEnvelope{Timestamp: time.Now().UTC(), Level: level, Message: text})
	if err != nil {
		return fmt.Errorf("taskstore.SendMessage: marshal: %w", err)
	}
	if err := s.r.Publish(ctx, s.messagesChannel(id), payload); err != nil {
		return fmt.Errorf("taskstore.SendMessage: %w", err)
	}
	return nil
}
