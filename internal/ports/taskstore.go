package ports

import (
	"context"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// TaskStore is the keyed object store backing both active strategies and
// backtesting tasks: a monotonic id counter, a unique secondary-key index,
// and a per-task pub/sub message channel.
type TaskStore interface {
	// New allocates a fresh id from the monotonic counter and returns an
	// in-memory Task with that id; the task is not indexed until Save.
	New(ctx context.Context) (domain.Task, error)

	// Save persists the task under its id and maintains the file_name ->
	// id secondary index. Saving a task whose file_name already indexes a
	// different id is an error. Changing a task's file_name deletes the old
	// index entry and then writes the task and the new entry; these are
	// separate writes, not one atomic step.
	Save(ctx context.Context, t domain.Task) error

	Load(ctx context.Context, id int64) (domain.Task, error)
	LoadByKey(ctx context.Context, fileName string) (domain.Task, error)
	List(ctx context.Context) ([]domain.Task, error)
	Delete(ctx context.Context, id int64) error

	// SendMessage publishes a MESSAGE envelope on the task's progress
	// channel.
	SendMessage(ctx context.Context, id int64, level domain.MessageLevel, text string) error
}
