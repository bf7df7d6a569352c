// Package sqlite provides SQLite-based persistent storage for Poisson.
// Uses WAL mode for concurrent reads and crash-safe writes.
//
// Activity state does not survive restarts (spec.md Non-goals) with one
// exception: the bandwidth ledger's rolling window and the fingerprint
// pin are persisted so a restart does not reset the byte budget or
// silently drop a dashboard-reported fingerprint match.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/poisson-noise/poisson/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS node_info (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// One row per settled task's actual byte count, kept so the
		// rolling window survives a restart.
		`CREATE TABLE IF NOT EXISTS bandwidth_samples (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			at         INTEGER NOT NULL,
			engine     TEXT NOT NULL,
			bytes      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bandwidth_at ON bandwidth_samples(at)`,

		// Single-row table holding the dashboard/extension-reported
		// fingerprint bundle, if any, and which persona was pinned to it.
		`CREATE TABLE IF NOT EXISTS fingerprint_state (
			id           INTEGER PRIMARY KEY CHECK (id = 1),
			canvas_hash  TEXT NOT NULL DEFAULT '',
			webgl_vendor TEXT NOT NULL DEFAULT '',
			webgl_render TEXT NOT NULL DEFAULT '',
			fonts        TEXT NOT NULL DEFAULT '',
			persona_name TEXT NOT NULL DEFAULT '',
			updated_at   INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Node Info ──────────────────────────────────────────────────────────────

// SetNodeInfo stores a key-value pair in node_info.
func (d *DB) SetNodeInfo(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO node_info (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetNodeInfo retrieves a value from node_info.
func (d *DB) GetNodeInfo(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM node_info WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// ─── Bandwidth Ledger ───────────────────────────────────────────────────────

// AppendBandwidthSample records one settled task's actual byte count.
func (d *DB) AppendBandwidthSample(at time.Time, engine string, bytes int64) error {
	_, err := d.db.Exec(
		`INSERT INTO bandwidth_samples (at, engine, bytes) VALUES (?, ?, ?)`,
		at.Unix(), engine, bytes,
	)
	return err
}

// BandwidthSample mirrors one row of the ledger, used to rehydrate the
// governor's rolling window on startup.
type BandwidthSample struct {
	At     time.Time
	Engine string
	Bytes  int64
}

// LoadBandwidthSamples returns every sample newer than cutoff, oldest first.
func (d *DB) LoadBandwidthSamples(cutoff time.Time) ([]BandwidthSample, error) {
	rows, err := d.db.Query(
		`SELECT at, engine, bytes FROM bandwidth_samples WHERE at >= ? ORDER BY at ASC`,
		cutoff.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []BandwidthSample
	for rows.Next() {
		var at int64
		var s BandwidthSample
		if err := rows.Scan(&at, &s.Engine, &s.Bytes); err != nil {
			return nil, err
		}
		s.At = time.Unix(at, 0)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// PruneBandwidthSamples deletes every sample older than cutoff, keeping
// the table from growing unbounded across a long-running daemon.
func (d *DB) PruneBandwidthSamples(cutoff time.Time) error {
	_, err := d.db.Exec(`DELETE FROM bandwidth_samples WHERE at < ?`, cutoff.Unix())
	return err
}

// ─── Fingerprint State ──────────────────────────────────────────────────────

// SaveFingerprint persists the reported bundle and the persona it is
// pinned to, replacing any previous pin.
func (d *DB) SaveFingerprint(bundle domain.FingerprintBundle, personaName string) error {
	_, err := d.db.Exec(
		`INSERT INTO fingerprint_state (id, canvas_hash, webgl_vendor, webgl_render, fonts, persona_name, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			canvas_hash=excluded.canvas_hash,
			webgl_vendor=excluded.webgl_vendor,
			webgl_render=excluded.webgl_render,
			fonts=excluded.fonts,
			persona_name=excluded.persona_name,
			updated_at=excluded.updated_at`,
		bundle.CanvasHash, bundle.WebGLVendor, bundle.WebGLRender, strings.Join(bundle.Fonts, ","),
		personaName, time.Now().Unix(),
	)
	return err
}

// LoadFingerprint returns the last-saved bundle and pinned persona name.
// Returns an empty bundle and no error if nothing has been saved yet.
func (d *DB) LoadFingerprint() (domain.FingerprintBundle, string, error) {
	var b domain.FingerprintBundle
	var personaName, fonts string
	err := d.db.QueryRow(
		`SELECT canvas_hash, webgl_vendor, webgl_render, fonts, persona_name FROM fingerprint_state WHERE id = 1`,
	).Scan(&b.CanvasHash, &b.WebGLVendor, &b.WebGLRender, &fonts, &personaName)
	if err == sql.ErrNoRows {
		return domain.FingerprintBundle{}, "", nil
	}
	if err != nil {
		return b, "", err
	}
	if fonts != "" {
		b.Fonts = strings.Split(fonts, ",")
	}
	return b, personaName, nil
}

// ClearFingerprint removes the saved pin, e.g. on operator request.
func (d *DB) ClearFingerprint() error {
	_, err := d.db.Exec(`DELETE FROM fingerprint_state WHERE id = 1`)
	return err
}
