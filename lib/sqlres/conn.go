// Package sqlres adapts database/sql connections to pool resources.
//
// Each resource owns a dedicated *sql.DB limited to a single physical
// connection, so validity, transactions and close apply to exactly one
// session, the way a classic JDBC-style connection behaves.
package sqlres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// ErrTransactionActive is returned by BeginTx when a transaction is already open.
var ErrTransactionActive = errors.New("sqlres: transaction already open")

// Conn is a single database session usable as a pool.Resource.
type Conn struct {
	db          *sql.DB
	conn        *sql.Conn
	pingTimeout time.Duration

	mu     sync.Mutex
	tx     *Tx
	closed bool
}

// Valid pings the session. A closed connection is never valid.
func (c *Conn) Valid() bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.pingTimeout)
	defer cancel()
	if err := c.conn.PingContext(ctx); err != nil {
		log.WithError(err).Debug("connection failed validity check")
		return false
	}
	return true
}

// HasOpenTransaction reports whether a transaction started with BeginTx has
// not been committed or rolled back yet.
func (c *Conn) HasOpenTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx != nil
}

// BeginTx starts a transaction on the session.
func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, sql.ErrConnDone
	}
	if c.tx != nil {
		return nil, ErrTransactionActive
	}
	tx, err := c.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.tx = &Tx{Tx: tx, owner: c}
	return c.tx, nil
}

// ExecContext executes a statement outside of any transaction.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query outside of any transaction.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a query expected to return at most one row.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// Close ends the session, rolling back an open transaction first since
// sql.Conn.Close waits for it.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	tx := c.tx
	c.tx = nil
	c.mu.Unlock()

	var rollbackErr error
	if tx != nil {
		if err := tx.Tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			rollbackErr = err
		}
	}
	return errors.Join(rollbackErr, c.conn.Close(), c.db.Close())
}

func (c *Conn) endTx(tx *Tx) {
	c.mu.Lock()
	if c.tx == tx {
		c.tx = nil
	}
	c.mu.Unlock()
}

// Tx is a transaction that clears its connection's open-transaction state
// when it ends.
type Tx struct {
	*sql.Tx
	owner *Conn
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	defer t.owner.endTx(t)
	return t.Tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	defer t.owner.endTx(t)
	return t.Tx.Rollback()
}
