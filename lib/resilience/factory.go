package resilience

import (
	"context"

	"github.com/go-i2p/connpool/lib/pool"
)

// Factory is a pool.Factory whose Create goes through a Breaker.
type Factory struct {
	next    pool.Factory
	breaker *Breaker
}

// Guard wraps next so that creations fail fast with ErrCircuitOpen while
// b is open.
func Guard(next pool.Factory, b *Breaker) *Factory {
	return &Factory{next: next, breaker: b}
}

// Breaker returns the breaker guarding creation.
func (f *Factory) Breaker() *Breaker {
	return f.breaker
}

// Create creates a resource through the wrapped factory. Failures caused by
// the caller's context do not count against the database.
func (f *Factory) Create(ctx context.Context, cred pool.Credential) (pool.Resource, error) {
	if !f.breaker.Allow() {
		BreakerRejections.Inc()
		log.WithField("breaker", f.breaker.Name()).Debug("creation rejected by open breaker")
		return nil, ErrCircuitOpen
	}

	r, err := f.next.Create(ctx, cred)
	switch {
	case err == nil:
		f.breaker.Success()
	case ctx.Err() != nil:
		f.breaker.Abandon()
	default:
		f.breaker.Failure()
	}
	return r, err
}

// Destroy passes through to the wrapped factory.
func (f *Factory) Destroy(r pool.Resource) error {
	return f.next.Destroy(r)
}
