package virt

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// opKind names a lifecycle operation for diagnostics.
type opKind string

const (
	opStart  opKind = "start"
	opPause  opKind = "pause"
	opResume opKind = "resume"
	opStop   opKind = "stop"
)

// Operation is a pending lifecycle operation. Its result arrives exactly
// once, after the native completion fires and the machine state reflects
// it. The zero value is not usable; Operations come from Machine calls.
type Operation struct {
	id   uuid.UUID
	kind opKind
	err  error
	done chan struct{}
}

// Kind returns the operation name: "start", "pause", "resume" or "stop".
func (o *Operation) Kind() string { return string(o.kind) }

// Wait blocks until the native completion is delivered or ctx is done.
// A ctx timeout does not cancel the operation, since the native
// framework supports no mid-operation cancellation; Wait may be called
// again.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver publishes the result. Called exactly once per operation; the
// bridge's claim discipline enforces that.
func (o *Operation) deliver(err error) {
	o.err = err
	close(o.done)
}

// bridge converts one-shot native completion callbacks, which arrive on
// framework-owned threads, into Operations the caller can wait on.
type bridge struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*Operation
}

func newBridge() *bridge {
	return &bridge{pending: make(map[uuid.UUID]*Operation)}
}

// register creates a pending Operation for a native call about to be
// issued.
func (b *bridge) register(kind opKind) *Operation {
	op := &Operation{id: uuid.New(), kind: kind, done: make(chan struct{})}
	b.mu.Lock()
	b.pending[op.id] = op
	b.mu.Unlock()
	return op
}

// claim removes the operation from the pending set. Exactly one claim
// succeeds per registered operation; any other is a protocol violation
// from a duplicate or unknown native callback.
func (b *bridge) claim(id uuid.UUID) (*Operation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	op, ok := b.pending[id]
	if !ok {
		return nil, fmt.Errorf("%w: completion for unknown or already completed operation %s", ErrProtocolViolation, id)
	}
	delete(b.pending, id)
	return op, nil
}
