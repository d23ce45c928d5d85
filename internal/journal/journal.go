// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/journal/journal.go
// Summary: SQLite journal of docking transitions for diagnostics.
//
// Transitions arrive through the dock event dispatcher on whichever goroutine
// published them. They are queued and written in batches by a single
// background goroutine so publishers never wait on disk.

package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/StardustXR/orbit/config"
	"github.com/StardustXR/orbit/dock"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal: closed")

// Config holds configuration for the journal.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BatchSize is the number of entries to accumulate before writing.
	BatchSize int

	// BatchTimeout is how long a partial batch may wait.
	BatchTimeout time.Duration

	// ChannelBuffer is the size of the queue between publishers and the writer.
	ChannelBuffer int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:        dbPath,
		BatchSize:     64,
		BatchTimeout:  time.Second,
		ChannelBuffer: 1024,
	}
}

// ConfigFromSystem reads the journal section of cfg.
func ConfigFromSystem(cfg config.Config) (Config, error) {
	path, err := config.JournalPath(cfg)
	if err != nil {
		return Config{}, err
	}
	c := DefaultConfig(path)
	c.BatchSize = cfg.GetInt("journal", "batch_size", c.BatchSize)
	c.BatchTimeout = cfg.GetMillis("journal", "batch_timeout_ms", c.BatchTimeout)
	return c, nil
}

// Entry is one recorded transition.
type Entry struct {
	ID         int64
	Session    string
	Time       time.Time
	Kind       string
	PanelID    string
	AcceptorID string
	Distance   float32
	Error      string
}

// Journal records docking transitions. It implements dock.Listener.
type Journal struct {
	config  Config
	db      *sql.DB
	session string

	entries chan Entry
	stopCh  chan struct{}
	doneCh  chan struct{}
	flushCh chan chan struct{}

	closeOnce sync.Once
	dropMu    sync.Mutex
	dropCount int64

	mu sync.RWMutex
}

// Current schema version.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session TEXT NOT NULL,
    timestamp INTEGER NOT NULL,       -- UnixNano
    kind TEXT NOT NULL,
    panel_id TEXT NOT NULL DEFAULT '',
    acceptor_id TEXT NOT NULL DEFAULT '',
    distance REAL NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transitions_panel ON transitions(panel_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_transitions_kind ON transitions(kind);
`

// Open creates or opens the journal at cfg.DBPath and starts its writer.
func Open(cfg Config) (*Journal, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("journal: empty database path")
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.ChannelBuffer < 1 {
		cfg.ChannelBuffer = 1024
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dsn := cfg.DBPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=temp_store(MEMORY)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := checkSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		config:  cfg,
		db:      db,
		session: uuid.NewString(),
		entries: make(chan Entry, cfg.ChannelBuffer),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		flushCh: make(chan chan struct{}),
	}
	go j.batchWriter()
	log.Printf("[JOURNAL] Session %s recording to %s", j.session, cfg.DBPath)
	return j, nil
}

func checkSchema(db *sql.DB) error {
	var current int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		if err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case current > schemaVersion:
		return fmt.Errorf("journal: schema version %d is newer than supported %d", current, schemaVersion)
	}
	return nil
}

// Session returns the identifier entries from this process are tagged with.
func (j *Journal) Session() string { return j.session }

// OnEvent queues a dock transition. It never blocks; entries are dropped
// when the queue is full.
func (j *Journal) OnEvent(e dock.Event) {
	entry := Entry{Time: e.Time, Kind: e.Type.String()}
	if p, ok := e.Payload.(dock.TransitionPayload); ok {
		entry.PanelID = p.PanelID
		entry.AcceptorID = p.AcceptorID
		entry.Distance = p.Distance
		if p.Err != nil {
			entry.Error = p.Err.Error()
		}
	}
	j.Record(entry)
}

// Record queues an arbitrary entry.
func (j *Journal) Record(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case <-j.stopCh:
		return
	default:
	}
	select {
	case j.entries <- e:
	default:
		j.dropMu.Lock()
		j.dropCount++
		n := j.dropCount
		j.dropMu.Unlock()
		if n == 1 || n%100 == 0 {
			log.Printf("[JOURNAL] Queue full, %d entries dropped", n)
		}
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (j *Journal) Dropped() int64 {
	j.dropMu.Lock()
	defer j.dropMu.Unlock()
	return j.dropCount
}

func (j *Journal) batchWriter() {
	defer close(j.doneCh)

	batch := make([]Entry, 0, j.config.BatchSize)
	timer := time.NewTimer(j.config.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		j.writeBatch(batch)
		batch = batch[:0]
	}
	drain := func() {
		for {
			select {
			case e := <-j.entries:
				batch = append(batch, e)
			default:
				return
			}
		}
	}

	for {
		select {
		case e := <-j.entries:
			batch = append(batch, e)
			if len(batch) >= j.config.BatchSize {
				flush()
				timer.Reset(j.config.BatchTimeout)
			}

		case <-timer.C:
			flush()
			timer.Reset(j.config.BatchTimeout)

		case done := <-j.flushCh:
			drain()
			flush()
			close(done)

		case <-j.stopCh:
			drain()
			flush()
			return
		}
	}
}

func (j *Journal) writeBatch(batch []Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		log.Printf("[JOURNAL] Failed to begin transaction: %v", err)
		return
	}
	stmt, err := tx.Prepare(`INSERT INTO transitions
		(session, timestamp, kind, panel_id, acceptor_id, distance, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("[JOURNAL] Failed to prepare statement: %v", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		session := e.Session
		if session == "" {
			session = j.session
		}
		if _, err := stmt.Exec(session, e.Time.UnixNano(), e.Kind, e.PanelID, e.AcceptorID, e.Distance, e.Error); err != nil {
			log.Printf("[JOURNAL] Failed to insert %s for %s: %v", e.Kind, e.PanelID, err)
			tx.Rollback()
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[JOURNAL] Failed to commit batch: %v", err)
	}
}

// Flush blocks until every queued entry is written.
func (j *Journal) Flush() error {
	done := make(chan struct{})
	select {
	case j.flushCh <- done:
		<-done
		return nil
	case <-j.stopCh:
		return ErrClosed
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	return j.query(`SELECT id, session, timestamp, kind, panel_id, acceptor_id, distance, error
		FROM transitions ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

// PanelHistory returns the transitions of one panel, oldest first.
func (j *Journal) PanelHistory(panelID string, limit int) ([]Entry, error) {
	return j.query(`SELECT id, session, timestamp, kind, panel_id, acceptor_id, distance, error
		FROM transitions WHERE panel_id = ? ORDER BY timestamp ASC, id ASC LIMIT ?`, panelID, limit)
}

// Counts returns the number of recorded transitions per kind.
func (j *Journal) Counts() (map[string]int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.Query("SELECT kind, COUNT(*) FROM transitions GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

func (j *Journal) query(q string, args ...interface{}) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var dist float64
		if err := rows.Scan(&e.ID, &e.Session, &ts, &e.Kind, &e.PanelID, &e.AcceptorID, &dist, &e.Error); err != nil {
			continue // skip malformed rows
		}
		e.Time = time.Unix(0, ts)
		e.Distance = float32(dist)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close writes pending entries and closes the database.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		close(j.stopCh)
		<-j.doneCh
		err = j.db.Close()
	})
	return err
}
