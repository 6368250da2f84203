package boundary

import (
	"runtime/debug"
)

const panicGuidance = "end all transactions and destroy filters before closing the database"

// call runs fn as one host-callable operation. A returned error is
// classified and raised through env; a panic is raised as NativePanic.
// Either way the caller gets absent.
func call[T any](b *Bridge, env Env, op string, absent T, fn func() (T, error)) (out T) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		b.logger.Error("panic contained", "op", op, "panic", r, "stack", string(debug.Stack()))
		b.raise(env, op, newError(NativePanic, "%s: internal fault: %v (%s)", op, r, panicGuidance))
		out = absent
	}()

	v, err := fn()
	if err != nil {
		b.raise(env, op, classify(err))
		return absent
	}
	return v
}

// quiet runs a cleanup operation that has no channel to raise errors.
// Failures and panics are logged only.
func (b *Bridge) quiet(op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic contained", "op", op, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		b.logger.Warn("cleanup failed", "op", op, "kind", classify(err).Kind, "error", err)
	}
}

func (b *Bridge) raise(env Env, op string, e *Error) {
	if e.Kind == NativePanic || e.Kind == BoundaryFailure {
		b.logger.Warn("raising", "op", op, "kind", e.Kind, "error", e)
	} else {
		b.logger.Debug("raising", "op", op, "kind", e.Kind, "error", e)
	}
	if env == nil {
		return
	}
	if err := env.Throw(e); err != nil {
		b.logger.Error("host rejected error", "op", op, "kind", e.Kind, "error", err)
	}
}
