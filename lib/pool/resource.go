package pool

import (
	"context"
	"fmt"
)

// Credential identifies the principal resources are created for.
type Credential struct {
	User   string `toml:"user" json:"user"`
	Secret string `toml:"secret" json:"-"`
}

// String returns the user name only; the secret is never printed.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{User: %q}", c.User)
}

// Resource is a poolable, stateful handle such as a database connection.
// Implementations must be comparable (typically pointer types) so a
// returned resource can be traced back to the pool that handed it out.
type Resource interface {
	// Valid reports whether the resource is still usable.
	Valid() bool
	// HasOpenTransaction reports whether the holder left a transaction open.
	HasOpenTransaction() bool
	// Close releases the underlying resource.
	Close() error
}

// Factory creates and destroys resources for a pool.
type Factory interface {
	// Create opens a new resource for cred.
	Create(ctx context.Context, cred Credential) (Resource, error)
	// Destroy releases r. The pool never uses r afterwards.
	Destroy(r Resource) error
}

// FactoryFunc adapts a create function to a Factory whose Destroy closes
// the resource.
type FactoryFunc func(ctx context.Context, cred Credential) (Resource, error)

// Create calls f.
func (f FactoryFunc) Create(ctx context.Context, cred Credential) (Resource, error) {
	return f(ctx, cred)
}

// Destroy closes r.
func (f FactoryFunc) Destroy(r Resource) error {
	return r.Close()
}
