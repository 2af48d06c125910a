package app

import (
	"context"
	"fmt"
)

// Effect is a follow-up produced by the reducer: either an action to feed
// straight back into the reducer, or asynchronous work whose result action
// (if any) is dispatched when it completes.
type Effect struct {
	send    Action
	run     func(ctx context.Context) Action
	ordered bool
}

// Send schedules action right after the current one.
func Send(action Action) Effect {
	return Effect{send: action}
}

// Run schedules fn on its own goroutine. A nil result dispatches nothing.
func Run(fn func(ctx context.Context) Action) Effect {
	return Effect{run: fn}
}

// RunInOrder is Run for work that must complete in the order it was issued,
// such as saving successive snapshots. Ordered effects share one queue and
// never overlap; they do not hold up other actions.
func RunInOrder(fn func(ctx context.Context) Action) Effect {
	return Effect{run: fn, ordered: true}
}

// Action returns the synchronous follow-up, or nil for async effects.
func (e Effect) Action() Action {
	return e.send
}

func (e Effect) IsAsync() bool {
	return e.run != nil
}

func (e Effect) IsOrdered() bool {
	return e.run != nil && e.ordered
}

// Execute runs an async effect in the caller's goroutine. It is a no-op
// returning nil for synchronous effects.
func (e Effect) Execute(ctx context.Context) Action {
	if e.run == nil {
		return nil
	}
	return e.run(ctx)
}

func (e Effect) String() string {
	if e.ordered {
		return "run(ordered)"
	}
	if e.run != nil {
		return "run"
	}
	return fmt.Sprintf("send(%s)", actionName(e.send))
}

func actionName(a Action) string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", a)
}
