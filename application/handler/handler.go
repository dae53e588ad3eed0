// Package handler provides task handlers for processing queued operations.
package handler

import (
	"context"
	"fmt"

	"github.com/archielabs/archie/domain/task"
	"github.com/google/uuid"
)

// Tracker provides progress tracking for task execution.
type Tracker interface {
	SetTotal(ctx context.Context, total int)
	SetCurrent(ctx context.Context, current int, message string)
	Skip(ctx context.Context, message string)
	Fail(ctx context.Context, message string)
	Complete(ctx context.Context)
}

// TrackerFactory creates trackers for progress reporting.
type TrackerFactory interface {
	ForOperation(operation task.Operation, trackableType task.TrackableType, trackableID string) Tracker
}

// ExtractString extracts a string value from the payload.
func ExtractString(payload map[string]any, key string) (string, error) {
	val, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("missing required field: %s", key)
	}

	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for %s: expected string, got %T", key, val)
	}

	return s, nil
}

// ExtractUUID extracts a uuid value stored as a string in the payload.
func ExtractUUID(payload map[string]any, key string) (uuid.UUID, error) {
	s, err := ExtractString(payload, key)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return id, nil
}

// ExtractBool extracts a bool value from the payload. Task payloads pass
// through JSON on persistence, so absent keys default to false rather
// than erroring.
func ExtractBool(payload map[string]any, key string) bool {
	val, ok := payload[key]
	if !ok {
		return false
	}
	b, ok := val.(bool)
	return ok && b
}

// ExtractRepositoryID extracts the repository id every pipeline payload carries.
func ExtractRepositoryID(payload map[string]any) (uuid.UUID, error) {
	return ExtractUUID(payload, task.PayloadRepositoryID)
}
