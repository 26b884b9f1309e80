package storage

import (
	"context"

	"neuralca/internal/model"
)

// Store persists automaton run records.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns records newest first. A non-positive limit lists all.
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}
