package app

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"todoflow/model"
)

// Dispatcher owns the state and is the only place it changes.
//
// Send processes one action and every synchronous follow-up, depth-first in
// declared order, before returning. Async effects run on their own goroutine
// and send their result action back through Send when they finish, so a
// pending load or save never blocks other actions. Ordered effects (saves)
// go through a single worker and complete in the order they were issued.
type Dispatcher struct {
	reducer *Reducer
	logger  *slog.Logger

	mu          sync.Mutex
	state       model.State
	observers   []func(Action)
	subscribers []subscriber
	nextSubID   int

	queue    []Effect
	draining bool
	drained  *sync.Cond

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type subscriber struct {
	id int
	fn func(model.State)
}

type DispatcherOption func(*Dispatcher)

// WithActionObserver registers fn to see every reduced action, follow-ups
// included, in processing order. fn runs with the dispatcher locked and
// must not call back into it.
func WithActionObserver(fn func(Action)) DispatcherOption {
	return func(d *Dispatcher) {
		if fn != nil {
			d.observers = append(d.observers, fn)
		}
	}
}

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDispatcher(reducer *Reducer, initial model.State, opts ...DispatcherOption) *Dispatcher {
	if reducer == nil {
		reducer = NewReducer(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		reducer: reducer,
		logger:  slog.New(slog.DiscardHandler),
		state:   initial.Copy(),
		ctx:     ctx,
		cancel:  cancel,
	}
	d.drained = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns a copy of the current state.
func (d *Dispatcher) State() model.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Copy()
}

// Send reduces action and drains its synchronous follow-ups.
func (d *Dispatcher) Send(action Action) {
	if action == nil {
		return
	}
	d.mu.Lock()
	pending := []Action{action}
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]

		next, effects := d.reducer.Reduce(d.state, current)
		d.state = next
		for _, observe := range d.observers {
			observe(current)
		}

		follow := make([]Action, 0, len(effects))
		for _, e := range effects {
			if e.IsAsync() {
				d.spawn(e)
				continue
			}
			if a := e.Action(); a != nil {
				follow = append(follow, a)
			}
		}
		pending = append(follow, pending...)
	}
	snapshot := d.state.Copy()
	subs := slices.Clone(d.subscribers)
	d.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snapshot)
	}
}

// Subscribe registers fn to be called after every Send has drained, in
// registration order. It is a change signal, not an ordered stream: when
// Sends run concurrently (an async result racing a host action) their
// snapshots may arrive out of order, so hosts that need the latest state
// should read State() when signalled. The returned func removes the
// subscription.
func (d *Dispatcher) Subscribe(fn func(model.State)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSubID
	d.nextSubID++
	d.subscribers = append(d.subscribers, subscriber{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.subscribers = slices.DeleteFunc(d.subscribers, func(s subscriber) bool { return s.id == id })
	}
}

// Wait blocks until every in-flight effect, and any effect it triggered,
// has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close lets queued ordered effects finish with a live context, then cancels
// the remaining in-flight effects and waits for them to return.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	for d.draining {
		d.drained.Wait()
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

// spawn starts e. The caller holds d.mu.
func (d *Dispatcher) spawn(e Effect) {
	if e.IsOrdered() {
		d.queue = append(d.queue, e)
		if !d.draining {
			d.draining = true
			d.wg.Add(1)
			go d.drainQueue()
		}
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		next := e.Execute(d.ctx)
		if next == nil {
			return
		}
		d.logger.Debug("effect completed", "action", actionName(next))
		d.Send(next)
	}()
}

// drainQueue runs ordered effects one at a time until the queue is empty.
func (d *Dispatcher) drainQueue() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.drained.Broadcast()
			d.mu.Unlock()
			return
		}
		e := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if next := e.Execute(d.ctx); next != nil {
			d.logger.Debug("ordered effect completed", "action", actionName(next))
			d.Send(next)
		}
	}
}
