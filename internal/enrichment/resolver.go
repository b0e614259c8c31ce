package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/rs/zerolog/log"
)

// LookupFunc performs the network call for one key.
type LookupFunc[T any] func(ctx context.Context, key string) (T, error)

// Result carries one lookup outcome back to the owner of the record.
type Result[T any] struct {
	Field string
	Key   string
	Value T
	Err   error

	current func() bool
}

// Current reports whether no newer trigger happened since this lookup
// started. The owner must check it under the same lock it holds while
// calling Trigger, otherwise a stale result may slip in.
func (r Result[T]) Current() bool {
	return r.current != nil && r.current()
}

// Resolver debounces a single field and runs its lookup once the unmasked
// value reaches the expected length.
type Resolver[T any] struct {
	field   string
	length  int
	lookup  LookupFunc[T]
	deliver func(Result[T])
	timer   *Timer
	base    context.Context
	stop    context.CancelFunc

	mu       sync.Mutex
	lastKey  string
	inflight context.CancelFunc
}

func NewResolver[T any](field string, length int, delay time.Duration, lookup LookupFunc[T], deliver func(Result[T])) *Resolver[T] {
	base, stop := context.WithCancel(context.Background())
	return &Resolver[T]{
		field:   field,
		length:  length,
		lookup:  lookup,
		deliver: deliver,
		timer:   NewTimer(delay),
		base:    base,
		stop:    stop,
	}
}

// Trigger is called on every change of the field. It returns true when a
// lookup was scheduled. Unchanged values never reschedule, so there is no
// automatic retry.
func (r *Resolver[T]) Trigger(value string) bool {
	key := fiscal.OnlyDigits(value)

	r.mu.Lock()
	defer r.mu.Unlock()

	if key == r.lastKey {
		return false
	}
	r.lastKey = key
	r.cancelLocked()

	if len(key) != r.length {
		return false
	}
	r.timer.Start(func(seq uint64) { r.run(key, seq) })
	return true
}

// Reset drops the pending and in-flight lookups and forgets the last key.
func (r *Resolver[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastKey = ""
	r.cancelLocked()
}

// Close stops the resolver for good.
func (r *Resolver[T]) Close() {
	r.Reset()
	r.stop()
}

func (r *Resolver[T]) cancelLocked() {
	r.timer.Cancel()
	if r.inflight != nil {
		r.inflight()
		r.inflight = nil
	}
}

func (r *Resolver[T]) run(key string, seq uint64) {
	ctx, cancel := context.WithCancel(r.base)
	r.mu.Lock()
	if !r.timer.IsCurrent(seq) {
		r.mu.Unlock()
		cancel()
		return
	}
	r.inflight = cancel
	r.mu.Unlock()
	defer cancel()

	value, err := r.lookup(ctx, key)
	if err != nil {
		log.Debug().Err(err).Str("campo", r.field).Str("chave", key).Msg("enrichment: consulta falhou")
	}
	r.deliver(Result[T]{
		Field:   r.field,
		Key:     key,
		Value:   value,
		Err:     err,
		current: func() bool { return r.timer.IsCurrent(seq) },
	})
}
