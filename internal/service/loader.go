package service

import (
	"context"
	"sync"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

// LoadState is the phase of a SourceLoader.
type LoadState string

const (
	LoadStateIdle    LoadState = "idle"
	LoadStateLoading LoadState = "loading"
	LoadStateReady   LoadState = "ready"
	LoadStateFailed  LoadState = "failed"
)

// FetchFunc loads the value for id. The returned release func, if non-nil,
// frees whatever the value holds and is called once the value is discarded.
type FetchFunc[T any] func(ctx context.Context, id string) (T, func(), error)

// LoaderSnapshot is a consistent view of a loader's committed state.
type LoaderSnapshot[T any] struct {
	State  LoadState
	ID     string
	Value  T
	Err    error
	Ticket uint64
}

type flight[T any] struct {
	id     string
	ticket uint64
	done   chan struct{}
	value  T
	err    error
}

// SourceLoader loads one source at a time with latest-request-wins
// semantics. A request for a different id supersedes any request in flight;
// the superseded fetch runs to completion but its result is released and
// never committed. Requests for the id already in flight join it.
type SourceLoader[T any] struct {
	fetch FetchFunc[T]

	mu      sync.Mutex
	ticket  uint64
	current *flight[T]
	state   LoaderSnapshot[T]
	release func()
}

func NewSourceLoader[T any](fetch FetchFunc[T]) *SourceLoader[T] {
	return &SourceLoader[T]{
		fetch: fetch,
		state: LoaderSnapshot[T]{State: LoadStateIdle},
	}
}

// Load requests id and waits for its result. When the request is superseded
// before it completes, Load returns domain.ErrStaleResult.
func (l *SourceLoader[T]) Load(ctx context.Context, id string) (T, error) {
	l.mu.Lock()
	if f := l.current; f != nil && f.id == id && l.state.State == LoadStateLoading {
		l.mu.Unlock()
		return l.wait(ctx, f)
	}

	l.ticket++
	f := &flight[T]{id: id, ticket: l.ticket, done: make(chan struct{})}
	l.current = f
	l.state = LoaderSnapshot[T]{State: LoadStateLoading, ID: id, Ticket: f.ticket}
	l.mu.Unlock()

	go l.run(ctx, f)
	return l.wait(ctx, f)
}

func (l *SourceLoader[T]) run(ctx context.Context, f *flight[T]) {
	value, release, err := l.fetch(context.WithoutCancel(ctx), f.id)

	l.mu.Lock()
	defer l.mu.Unlock()
	defer close(f.done)

	if l.current != f {
		if release != nil {
			release()
		}
		f.err = domain.ErrStaleResult
		return
	}

	if err != nil {
		if release != nil {
			release()
		}
		f.err = err
		l.state = LoaderSnapshot[T]{State: LoadStateFailed, ID: f.id, Err: err, Ticket: f.ticket}
		return
	}

	if l.release != nil {
		l.release()
	}
	l.release = release
	f.value = value
	l.state = LoaderSnapshot[T]{State: LoadStateReady, ID: f.id, Value: value, Ticket: f.ticket}
}

func (l *SourceLoader[T]) wait(ctx context.Context, f *flight[T]) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Snapshot returns the committed state.
func (l *SourceLoader[T]) Snapshot() LoaderSnapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Current returns the committed value if the loader is ready for id.
func (l *SourceLoader[T]) Current(id string) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.State != LoadStateReady || l.state.ID != id {
		var zero T
		return zero, false
	}
	return l.state.Value, true
}

// Reset releases the committed value and returns the loader to idle. Any
// request in flight becomes stale.
func (l *SourceLoader[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.release != nil {
		l.release()
		l.release = nil
	}
	l.ticket++
	l.current = nil
	l.state = LoaderSnapshot[T]{State: LoadStateIdle, Ticket: l.ticket}
}
