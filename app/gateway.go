package app

import (
	"context"

	"todoflow/model"
)

// Gateway loads and saves the full record collection.
// Save receives a snapshot the gateway may keep; Load returns a fresh slice.
type Gateway interface {
	Load(ctx context.Context) ([]model.Todo, error)
	Save(ctx context.Context, todos []model.Todo) error
}

type nopGateway struct{}

func (nopGateway) Load(context.Context) ([]model.Todo, error) { return []model.Todo{}, nil }

func (nopGateway) Save(context.Context, []model.Todo) error { return nil }
