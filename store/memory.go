package store

import (
	"context"
	"sync"

	"todoflow/model"
)

// MemoryGateway keeps todos in process memory. Useful for tests and for
// running the CLI against a throwaway list.
type MemoryGateway struct {
	mu      sync.Mutex
	todos   []model.Todo
	saves   int
	loadErr error
	saveErr error
}

func NewMemoryGateway(todos ...model.Todo) *MemoryGateway {
	return &MemoryGateway{todos: model.CopyTodos(todos)}
}

// FailLoad makes subsequent loads return err. Pass nil to clear.
func (g *MemoryGateway) FailLoad(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loadErr = err
}

// FailSave makes subsequent saves return err. Pass nil to clear.
func (g *MemoryGateway) FailSave(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saveErr = err
}

func (g *MemoryGateway) Load(ctx context.Context) ([]model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	return model.CopyTodos(g.todos), nil
}

func (g *MemoryGateway) Save(ctx context.Context, todos []model.Todo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return g.saveErr
	}
	g.todos = model.CopyTodos(todos)
	g.saves++
	return nil
}

// Snapshot returns a copy of the stored list.
func (g *MemoryGateway) Snapshot() []model.Todo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return model.CopyTodos(g.todos)
}

// Saves reports how many successful saves happened.
func (g *MemoryGateway) Saves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}
