// Package task provides task queue domain types for async work processing.
package task

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Priority represents task queue priority levels. Higher values are
// dequeued first. Values are spaced far apart so that workflow step
// offsets (tens) never cause a lower priority level to exceed a higher one.
type Priority int

// Priority values.
const (
	PriorityBulk        Priority = 1000
	PriorityBackground  Priority = 2000
	PriorityInteractive Priority = 5000
	PriorityCritical    Priority = 10000
)

// PayloadRepositoryID is the payload key carrying the repository id.
// Tasks scoped to a repository always set it, and the dedup key is
// derived from it so retriggering an in-flight operation is a no-op.
const PayloadRepositoryID = "repository_id"

// Task represents an item in the queue waiting to be processed.
// If the item exists, it is in the queue and waiting to be processed.
// There is no status associated - existence implies pending.
type Task struct {
	id        int64
	dedupKey  string
	operation Operation
	priority  int
	payload   map[string]any
	createdAt time.Time
	updatedAt time.Time
}

// NewTask creates a new Task with the given operation, priority, and payload.
// The dedup key is generated automatically from the operation and payload.
func NewTask(operation Operation, priority int, payload map[string]any) Task {
	p := copyPayload(payload)
	return Task{
		dedupKey:  createDedupKey(operation, p),
		operation: operation,
		priority:  priority,
		payload:   p,
	}
}

// NewTaskWithID creates a Task with all fields (used by the store).
func NewTaskWithID(
	id int64,
	dedupKey string,
	operation Operation,
	priority int,
	payload map[string]any,
	createdAt, updatedAt time.Time,
) Task {
	return Task{
		id:        id,
		dedupKey:  dedupKey,
		operation: operation,
		priority:  priority,
		payload:   copyPayload(payload),
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the task ID.
func (t Task) ID() int64 { return t.id }

// DedupKey returns the deduplication key.
func (t Task) DedupKey() string { return t.dedupKey }

// Operation returns the task operation.
func (t Task) Operation() Operation { return t.operation }

// Priority returns the task priority.
func (t Task) Priority() int { return t.priority }

// Payload returns a copy of the task payload.
func (t Task) Payload() map[string]any {
	return copyPayload(t.payload)
}

// RepositoryID returns the repository id carried in the payload, or empty.
func (t Task) RepositoryID() string {
	if v, ok := t.payload[PayloadRepositoryID].(string); ok {
		return v
	}
	return ""
}

// CreatedAt returns when the task was created.
func (t Task) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns when the task was last updated.
func (t Task) UpdatedAt() time.Time { return t.updatedAt }

// WithID returns a copy of the task with the given ID.
func (t Task) WithID(id int64) Task {
	t.id = id
	return t
}

// WithTimestamps returns a copy of the task with the given timestamps.
func (t Task) WithTimestamps(createdAt, updatedAt time.Time) Task {
	t.createdAt = createdAt
	t.updatedAt = updatedAt
	return t
}

// PayloadJSON returns the payload as JSON bytes.
func (t Task) PayloadJSON() ([]byte, error) {
	return json.Marshal(t.payload)
}

// createDedupKey creates a unique key for deduplication.
// Format: "{operation}:{repository_id}". Tasks without a repository id
// fall back to the value under the lexically first payload key so the
// key is stable across map iteration order.
func createDedupKey(operation Operation, payload map[string]any) string {
	if v, ok := payload[PayloadRepositoryID]; ok {
		return fmt.Sprintf("%s:%v", operation, v)
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return fmt.Sprintf("%s:<nil>", operation)
	}
	slices.Sort(keys)
	return fmt.Sprintf("%s:%v", operation, payload[keys[0]])
}

// copyPayload creates a shallow copy of the payload map.
func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return make(map[string]any)
	}
	result := make(map[string]any, len(payload))
	maps.Copy(result, payload)
	return result
}
