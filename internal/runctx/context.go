// Package runctx carries per-run identifiers (run id, sync setting) through a context.
package runctx

import (
	"context"
	"errors"
)

type contextKey string

const (
	runIDKey   contextKey = "runID"
	settingKey contextKey = "syncSetting"
)

// ErrNoRunID is returned when no run ID is found in context
var ErrNoRunID = errors.New("no run ID found in context")

// ErrNoSetting is returned when no sync setting name is found in context
var ErrNoSetting = errors.New("no sync setting found in context")

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID extracts the run ID from the context
func RunID(ctx context.Context) (string, error) {
	runID, ok := ctx.Value(runIDKey).(string)
	if !ok || runID == "" {
		return "", ErrNoRunID
	}
	return runID, nil
}

// WithSetting adds the name of the sync setting being processed to the context
func WithSetting(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, settingKey, name)
}

// Setting extracts the sync setting name from the context
func Setting(ctx context.Context) (string, error) {
	name, ok := ctx.Value(settingKey).(string)
	if !ok || name == "" {
		return "", ErrNoSetting
	}
	return name, nil
}

// SettingOr returns the sync setting name or fallback when none is set.
func SettingOr(ctx context.Context, fallback string) string {
	if name, err := Setting(ctx); err == nil {
		return name
	}
	return fallback
}
