package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists server profiles, proxy rules and panel settings in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens (and creates if needed) the database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single file; one connection avoids SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrateTables(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("database ready", "path", path)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{`
	CREATE TABLE IF NOT EXISTS servers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		server_addr TEXT NOT NULL,
		server_port INTEGER NOT NULL,
		auth_token TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT '',
		tls_enable BOOLEAN NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS proxies (
		id TEXT PRIMARY KEY,
		server_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		local_ip TEXT NOT NULL,
		local_port INTEGER NOT NULL,
		remote_port INTEGER NOT NULL DEFAULT 0,
		custom_domains TEXT NOT NULL DEFAULT '[]',
		subdomain TEXT NOT NULL DEFAULT '',
		UNIQUE (server_id, name),
		FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
	);`, `
	CREATE INDEX IF NOT EXISTS idx_proxies_server ON proxies(server_id, position);`, `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// migrateTables adds columns introduced after the first schema.
func (s *Store) migrateTables() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := addColumnIfNotExists(tx, "servers", "auth_method", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	return tx.Commit()
}

func addColumnIfNotExists(tx *sql.Tx, table, column, definition string) error {
	var count int
	err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		if _, err := tx.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + definition); err != nil {
			return err
		}
		slog.Info("added column", "table", table, "column", column)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

const serverColumns = `id, name, server_addr, server_port, auth_token, auth_method, user_name, tls_enable, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (ServerProfile, error) {
	var p ServerProfile
	err := row.Scan(&p.ID, &p.Name, &p.ServerAddr, &p.ServerPort, &p.AuthToken, &p.AuthMethod,
		&p.User, &p.TLSEnable, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanProxy(row rowScanner) (ProxyRule, error) {
	var (
		p       ProxyRule
		domains string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &p.LocalIP, &p.LocalPort, &p.RemotePort, &domains, &p.Subdomain); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(domains), &p.CustomDomains); err != nil {
		return p, fmt.Errorf("proxy %s: decode custom domains: %w", p.ID, err)
	}
	if len(p.CustomDomains) == 0 {
		p.CustomDomains = nil
	}
	return p, nil
}

// ListServers returns every profile with its proxies, oldest first.
func (s *Store) ListServers(ctx context.Context) ([]ServerProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+serverColumns+` FROM servers ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servers := []ServerProfile{}
	for rows.Next() {
		p, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the single connection before the per-server queries.
	rows.Close()

	for i := range servers {
		if servers[i].Proxies, err = s.ListProxies(ctx, servers[i].ID); err != nil {
			return nil, err
		}
	}
	return servers, nil
}

// GetServer returns one profile with its proxies.
func (s *Store) GetServer(ctx context.Context, id string) (*ServerProfile, error) {
	p, err := scanServer(s.db.QueryRowContext(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if p.Proxies, err = s.ListProxies(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateServer stores a new profile and returns it with its assigned ID.
// Proxies passed in are stored in order.
func (s *Store) CreateServer(ctx context.Context, cfg ServerProfile) (*ServerProfile, error) {
	cfg.ID = uuid.NewString()
	cfg.CreatedAt = s.timestamp()
	cfg.UpdatedAt = cfg.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO servers (`+serverColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, cfg.ServerAddr, cfg.ServerPort, cfg.AuthToken, cfg.AuthMethod, cfg.User,
		cfg.TLSEnable, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	proxies := cfg.Proxies
	cfg.Proxies = []ProxyRule{}
	for _, p := range proxies {
		added, err := insertProxy(ctx, tx, cfg.ID, p)
		if err != nil {
			return nil, err
		}
		cfg.Proxies = append(cfg.Proxies, *added)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateServer replaces the editable fields of a profile. ID, creation time and
// proxies are kept.
func (s *Store) UpdateServer(ctx context.Context, id string, cfg ServerProfile) error {
	res, err := s.db.ExecContext(ctx, `UPDATE servers SET name = ?, server_addr = ?, server_port = ?,
		auth_token = ?, auth_method = ?, user_name = ?, tls_enable = ?, updated_at = ? WHERE id = ?`,
		cfg.Name, cfg.ServerAddr, cfg.ServerPort, cfg.AuthToken, cfg.AuthMethod, cfg.User,
		cfg.TLSEnable, s.timestamp(), id)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Errorf("%w: %s", ErrServerNotFound, id))
}

// DeleteServer removes a profile and its proxies.
func (s *Store) DeleteServer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Errorf("%w: %s", ErrServerNotFound, id))
}

// ListProxies returns a profile's rules in their stored order.
func (s *Store) ListProxies(ctx context.Context, serverID string) ([]ProxyRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type, local_ip, local_port, remote_port, custom_domains, subdomain
		FROM proxies WHERE server_id = ? ORDER BY position`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	proxies := []ProxyRule{}
	for rows.Next() {
		p, err := scanProxy(rows)
		if err != nil {
			return nil, err
		}
		proxies = append(proxies, p)
	}
	return proxies, rows.Err()
}

// AddProxy appends a rule to a profile.
func (s *Store) AddProxy(ctx context.Context, serverID string, p ProxyRule) (*ProxyRule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := touchServer(ctx, tx, serverID, s.timestamp()); err != nil {
		return nil, err
	}
	added, err := insertProxy(ctx, tx, serverID, p)
	if err != nil {
		return nil, err
	}
	return added, tx.Commit()
}

// UpdateProxy replaces a rule in place, keeping its ID and position.
func (s *Store) UpdateProxy(ctx context.Context, serverID, proxyID string, p ProxyRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := touchServer(ctx, tx, serverID, s.timestamp()); err != nil {
		return err
	}
	if err := checkProxyName(ctx, tx, serverID, proxyID, p.Name); err != nil {
		return err
	}

	domains, err := encodeDomains(p.CustomDomains)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE proxies SET name = ?, type = ?, local_ip = ?, local_port = ?,
		remote_port = ?, custom_domains = ?, subdomain = ? WHERE id = ? AND server_id = ?`,
		p.Name, p.Type, p.LocalIP, p.LocalPort, p.RemotePort, domains, p.Subdomain, proxyID, serverID)
	if err != nil {
		return err
	}
	if err := mustAffect(res, fmt.Errorf("%w: %s", ErrProxyNotFound, proxyID)); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteProxy removes a rule; the remaining rules keep their relative order.
func (s *Store) DeleteProxy(ctx context.Context, serverID, proxyID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := touchServer(ctx, tx, serverID, s.timestamp()); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM proxies WHERE id = ? AND server_id = ?`, proxyID, serverID)
	if err != nil {
		return err
	}
	if err := mustAffect(res, fmt.Errorf("%w: %s", ErrProxyNotFound, proxyID)); err != nil {
		return err
	}
	return tx.Commit()
}

// GetSetting returns the value stored under key and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SetSettingIfAbsent stores value only when key is not set yet. It reports whether
// the value was written.
func (s *Store) SetSettingIfAbsent(ctx context.Context, key, value string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING`, key, value)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func touchServer(ctx context.Context, tx *sql.Tx, serverID, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE servers SET updated_at = ? WHERE id = ?`, now, serverID)
	if err != nil {
		return err
	}
	return mustAffect(res, fmt.Errorf("%w: %s", ErrServerNotFound, serverID))
}

func checkProxyName(ctx context.Context, tx *sql.Tx, serverID, proxyID, name string) error {
	var count int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM proxies WHERE server_id = ? AND name = ? AND id != ?`,
		serverID, name, proxyID).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateProxy, name)
	}
	return nil
}

func insertProxy(ctx context.Context, tx *sql.Tx, serverID string, p ProxyRule) (*ProxyRule, error) {
	if err := checkProxyName(ctx, tx, serverID, "", p.Name); err != nil {
		return nil, err
	}

	var position int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM proxies WHERE server_id = ?`,
		serverID).Scan(&position)
	if err != nil {
		return nil, err
	}

	domains, err := encodeDomains(p.CustomDomains)
	if err != nil {
		return nil, err
	}
	p.ID = uuid.NewString()
	_, err = tx.ExecContext(ctx, `INSERT INTO proxies (id, server_id, position, name, type, local_ip, local_port,
		remote_port, custom_domains, subdomain) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, serverID, position, p.Name, p.Type, p.LocalIP, p.LocalPort, p.RemotePort, domains, p.Subdomain)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func encodeDomains(domains []string) (string, error) {
	if domains == nil {
		domains = []string{}
	}
	b, err := json.Marshal(domains)
	return string(b), err
}

func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
