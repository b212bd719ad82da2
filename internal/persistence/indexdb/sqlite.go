package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"replenisher/internal/persistence/snapshot"
	"replenisher/internal/replenish"
)

const schemaVersion = "1"

// startedAtLayout is fixed width so started_at sorts as text.
const startedAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteIndex is a queryable secondary index of replenish runs and snapshots.
// Writes are queued to a single writer goroutine and dropped when the queue
// is full; the JSONL run log stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRun      atomic.Uint64
	dropSnapshot atomic.Uint64
	writtenRuns  atomic.Uint64
	writeErrs    atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqSnapshot
	reqSync
)

type req struct {
	kind reqKind

	run      replenish.Record
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Path    string
	WorldID string
	SavedAt int64
	Runs    uint64
	Chests  int
}

// Stats reports queue health for /metrics.
type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropRunTotal      uint64 `json:"drop_run_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	WrittenRunTotal   uint64 `json:"written_run_total"`
	WriteErrorTotal   uint64 `json:"write_error_total"`
}

// RunRow is one indexed run as returned by RecentRuns.
type RunRow struct {
	RunID      string `json:"run_id"`
	Trigger    string `json:"trigger"`
	Kind       string `json:"kind"`
	Target     int    `json:"target"`
	OreSubtype string `json:"ore_subtype,omitempty"`
	Attempted  int    `json:"attempted"`
	Succeeded  int    `json:"succeeded"`
	Blocked    int    `json:"blocked"`
	Faults     int    `json:"faults"`
	Swept      int    `json:"swept"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			run_trigger TEXT NOT NULL,
			kind TEXT NOT NULL,
			target INTEGER NOT NULL,
			ore_subtype TEXT,
			attempted INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			blocked INTEGER NOT NULL,
			faults INTEGER NOT NULL,
			swept INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_kind_started ON runs(kind, started_at);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			path TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			saved_at INTEGER NOT NULL,
			runs INTEGER NOT NULL,
			chests INTEGER NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteRun queues rec. It never blocks and never fails; a full queue drops
// the row and counts the drop.
func (s *SQLiteIndex) WriteRun(rec replenish.Record) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqRun, run: rec}:
	default:
		s.dropRun.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.WorldV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Path:    path,
		WorldID: snap.Header.WorldID,
		SavedAt: snap.Header.SavedAt,
		Runs:    snap.Header.Runs,
		Chests:  len(snap.Chests),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// Sync waits until every write queued before the call is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropRunTotal:      s.dropRun.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WrittenRunTotal:   s.writtenRuns.Load(),
		WriteErrorTotal:   s.writeErrs.Load(),
	}
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteIndex) RecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,run_trigger,kind,target,COALESCE(ore_subtype,''),attempted,succeeded,blocked,faults,swept,started_at,duration_ms,COALESCE(error,'')
		FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.Trigger, &r.Kind, &r.Target, &r.OreSubtype, &r.Attempted, &r.Succeeded, &r.Blocked, &r.Faults, &r.Swept, &r.StartedAt, &r.DurationMS, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,run_trigger,kind,target,ore_subtype,attempted,succeeded,blocked,faults,swept,started_at,duration_ms,error,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(path,world_id,saved_at,runs,chests) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 256
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrs.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrs.Add(1)
		}
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrs.Add(1)
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			rec := r.run
			raw, _ := json.Marshal(rec)
			swept := 0
			if rec.Result.Sweep != nil {
				swept = rec.Result.Sweep.Removed
			}
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					rec.RunID,
					string(rec.Trigger),
					string(rec.Request.Kind),
					rec.Request.Target,
					rec.Request.OreSubtype,
					rec.Result.Attempted,
					rec.Result.Succeeded,
					rec.Result.Blocked,
					rec.Result.Faults,
					swept,
					rec.StartedAt.UTC().Format(startedAtLayout),
					rec.DurationMS,
					rec.Error,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
				s.writtenRuns.Add(1)
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(sn.Path, sn.WorldID, sn.SavedAt, int64(sn.Runs), sn.Chests); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		// Commit once the queue drains so readers never wait on an idle tx.
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
