package sqlres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/go-i2p/connpool/lib/pool"
)

// DefaultPingTimeout bounds Conn.Valid when the factory sets none.
const DefaultPingTimeout = 5 * time.Second

// DSNFunc builds a data source name for a credential.
type DSNFunc func(cred pool.Credential) (string, error)

// Factory opens Conn resources with a database/sql driver.
type Factory struct {
	// Driver is the registered database/sql driver name.
	Driver string
	// DSN builds the data source name for each new connection.
	DSN DSNFunc
	// PingTimeout bounds validity checks of created connections.
	PingTimeout time.Duration
}

// Create opens a single-connection session and verifies it with a ping.
func (f *Factory) Create(ctx context.Context, cred pool.Credential) (pool.Resource, error) {
	if f.DSN == nil {
		return nil, errors.New("sqlres: no DSN builder configured")
	}
	dsn, err := f.DSN(cred)
	if err != nil {
		return nil, fmt.Errorf("building DSN: %w", err)
	}

	db, err := sql.Open(f.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", f.Driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", f.Driver, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", f.Driver, err)
	}

	timeout := f.PingTimeout
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}

	log.WithField("driver", f.Driver).WithField("user", cred.User).Debug("opened database connection")
	return &Conn{db: db, conn: conn, pingTimeout: timeout}, nil
}

// Destroy closes the connection.
func (f *Factory) Destroy(r pool.Resource) error {
	c, ok := r.(*Conn)
	if !ok {
		return fmt.Errorf("sqlres: cannot destroy %T", r)
	}
	return c.Close()
}

// MySQLDSN returns a DSNFunc connecting over TCP to addr and selecting
// database name.
func MySQLDSN(addr, name string) DSNFunc {
	return func(cred pool.Credential) (string, error) {
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = name
		cfg.User = cred.User
		cfg.Passwd = cred.Secret
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	}
}

// SQLiteDSN returns a DSNFunc opening the SQLite file at path. SQLite has no
// users, so the credential is ignored.
func SQLiteDSN(path string) DSNFunc {
	return func(pool.Credential) (string, error) {
		if path == "" {
			return "", errors.New("sqlres: empty sqlite path")
		}
		return "file:" + path + "?_busy_timeout=5000", nil
	}
}
