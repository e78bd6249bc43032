package store

import (
	"context"
	"database/sql"

	"github.com/media-luna/sonora/internal/logger"
	"go.uber.org/zap"
)

// Pool is a bounded cache of validated, ready-to-reuse *sql.Conn, grounded
// on the reference implementation's queue.Queue(maxsize=5) cursor cache:
// Borrow pops a cached connection and pings it before handing it back,
// falling through to a fresh dial on an empty pool or a failed ping;
// Release returns a healthy connection to the cache or closes it if the
// cache is full. DiscardAfterFork drops every cached connection, matching
// the reference's after_fork cache-clear contract.
type Pool struct {
	db    *sql.DB
	slots chan *sql.Conn
	size  int
}

// NewPool wraps db with a bounded connection cache of the given size
// (design target: 5).
func NewPool(db *sql.DB, size int) *Pool {
	if size <= 0 {
		size = 5
	}
	return &Pool{db: db, slots: make(chan *sql.Conn, size), size: size}
}

// Borrow returns a validated connection: a cached one that pings
// successfully, or a freshly dialed one otherwise.
func (p *Pool) Borrow(ctx context.Context) (*sql.Conn, error) {
	for {
		select {
		case conn := <-p.slots:
			if err := conn.PingContext(ctx); err != nil {
				conn.Close()
				continue
			}
			return conn, nil
		default:
			return p.db.Conn(ctx)
		}
	}
}

// Release returns conn to the cache, or closes it if the cache is full.
func (p *Pool) Release(conn *sql.Conn) {
	select {
	case p.slots <- conn:
	default:
		conn.Close()
	}
}

// DiscardAfterFork drops every cached connection. Go programs rarely
// fork(), but the contract is kept for fidelity with the reference
// implementation's after_fork behavior.
func (p *Pool) DiscardAfterFork() {
	for {
		select {
		case conn := <-p.slots:
			conn.Close()
		default:
			return
		}
	}
}

// WithCursor borrows a connection, begins a transaction on it, runs fn,
// and commits on a nil return or rolls back otherwise — the Go analogue of
// the reference's `with self.cursor() as cur:` context manager (commit on
// normal exit, rollback on database error), always releasing the
// connection back to the pool afterward.
func (p *Pool) WithCursor(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := p.Borrow(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Warn("store: rollback failed", zap.Error(rbErr), zap.Error(err))
		}
		return err
	}
	return tx.Commit()
}
