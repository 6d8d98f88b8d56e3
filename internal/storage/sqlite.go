package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS proxies (
	address    TEXT PRIMARY KEY,
	owner_kind INTEGER NOT NULL,
	owner      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS routes (
	proxy          TEXT NOT NULL,
	selector       TEXT NOT NULL,
	implementation TEXT NOT NULL,
	PRIMARY KEY (proxy, selector)
);
`

// SQLiteStore implements storage.Store on a SQLite database.
// Every storage transaction maps to one SQL transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) a SQLite store at dsn.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Begin starts a SQL transaction over the storage of the proxy at contract.
func (s *SQLiteStore) Begin(ctx context.Context, contract proxy.Address) (storage.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqliteTx{tx: sqlTx, contract: contract.String()}, nil
}

// Contracts returns the addresses of every proxy with initialized storage.
func (s *SQLiteStore) Contracts(ctx context.Context) ([]proxy.Address, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address FROM proxies ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("failed to list proxies: %w", err)
	}
	defer rows.Close()

	var addrs []proxy.Address
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan proxy: %w", err)
		}
		addr, err := proxy.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: proxy address %q", storage.ErrCorruptState, raw)
		}
		addrs = append(addrs, addr)
	}
	return addrs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx       *sql.Tx
	contract string
	done     bool
}

func (t *sqliteTx) Initialized(ctx context.Context) (bool, error) {
	if t.done {
		return false, storage.ErrTxDone
	}
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM proxies WHERE address = ?`, t.contract).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to read proxy: %w", err)
	}
	return n > 0, nil
}

func (t *sqliteTx) Owner(ctx context.Context) (proxy.Identity, error) {
	if t.done {
		return proxy.Identity{}, storage.ErrTxDone
	}
	var (
		kind int
		raw  string
	)
	err := t.tx.QueryRowContext(ctx, `SELECT owner_kind, owner FROM proxies WHERE address = ?`, t.contract).Scan(&kind, &raw)
	if err == sql.ErrNoRows {
		return proxy.Identity{}, nil
	}
	if err != nil {
		return proxy.Identity{}, fmt.Errorf("failed to read owner: %w", err)
	}
	if kind < 0 || kind > int(proxy.IdentityContract) {
		return proxy.Identity{}, fmt.Errorf("%w: owner kind %d", storage.ErrCorruptState, kind)
	}
	addr, err := proxy.ParseAddress(raw)
	if err != nil {
		return proxy.Identity{}, fmt.Errorf("%w: owner %q", storage.ErrCorruptState, raw)
	}
	return proxy.Identity{Kind: proxy.IdentityKind(kind), Value: addr}, nil
}

func (t *sqliteTx) SetOwner(ctx context.Context, owner proxy.Identity) error {
	if t.done {
		return storage.ErrTxDone
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO proxies (address, owner_kind, owner) VALUES (?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET owner_kind = excluded.owner_kind, owner = excluded.owner`,
		t.contract, int(owner.Kind), owner.Value.String())
	if err != nil {
		return fmt.Errorf("failed to write owner: %w", err)
	}
	return nil
}

func (t *sqliteTx) Route(ctx context.Context, selector proxy.Selector) (proxy.Address, bool, error) {
	if t.done {
		return proxy.Address{}, false, storage.ErrTxDone
	}
	var raw string
	err := t.tx.QueryRowContext(ctx,
		`SELECT implementation FROM routes WHERE proxy = ? AND selector = ?`,
		t.contract, selector.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return proxy.Address{}, false, nil
	}
	if err != nil {
		return proxy.Address{}, false, fmt.Errorf("failed to read route: %w", err)
	}
	addr, err := proxy.ParseAddress(raw)
	if err != nil {
		return proxy.Address{}, false, fmt.Errorf("%w: implementation %q", storage.ErrCorruptState, raw)
	}
	return addr, true, nil
}

func (t *sqliteTx) SetRoute(ctx context.Context, selector proxy.Selector, implementation proxy.Address) error {
	if t.done {
		return storage.ErrTxDone
	}
	if err := t.ensureProxy(ctx); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO routes (proxy, selector, implementation) VALUES (?, ?, ?)
		 ON CONFLICT(proxy, selector) DO UPDATE SET implementation = excluded.implementation`,
		t.contract, selector.String(), implementation.String())
	if err != nil {
		return fmt.Errorf("failed to write route: %w", err)
	}
	return nil
}

// ensureProxy creates the proxy row with no owner if it does not exist yet.
func (t *sqliteTx) ensureProxy(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO proxies (address, owner_kind, owner) VALUES (?, 0, ?) ON CONFLICT(address) DO NOTHING`,
		t.contract, proxy.ZeroAddress.String())
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteRoute(ctx context.Context, selector proxy.Selector) error {
	if t.done {
		return storage.ErrTxDone
	}
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM routes WHERE proxy = ? AND selector = ?`,
		t.contract, selector.String())
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	return nil
}

func (t *sqliteTx) Routes(ctx context.Context) ([]storage.Route, error) {
	if t.done {
		return nil, storage.ErrTxDone
	}
	rows, err := t.tx.QueryContext(ctx,
		`SELECT selector, implementation FROM routes WHERE proxy = ?`, t.contract)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	routes := make([]storage.Route, 0)
	for rows.Next() {
		var rawSel, rawImpl string
		if err := rows.Scan(&rawSel, &rawImpl); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		sel, err := proxy.ParseSelector(rawSel)
		if err != nil {
			return nil, fmt.Errorf("%w: selector %q", storage.ErrCorruptState, rawSel)
		}
		impl, err := proxy.ParseAddress(rawImpl)
		if err != nil {
			return nil, fmt.Errorf("%w: implementation %q", storage.ErrCorruptState, rawImpl)
		}
		routes = append(routes, storage.Route{Selector: sel, Implementation: impl})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Selector < routes[j].Selector
	})
	return routes, nil
}

func (t *sqliteTx) Commit() error {
	if t.done {
		return storage.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

// Verify that SQLiteStore implements the Store interface at compile time
var _ storage.Store = (*SQLiteStore)(nil)
