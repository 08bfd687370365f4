package indexdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index over the tick and audit streams.
// Writes are queued and applied by a single goroutine; the JSONL logs remain
// the source of truth, so a full queue drops rather than blocking the sim.
type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropAudit atomic.Uint64
	written   atomic.Uint64
	failed    atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
)

type req struct {
	kind reqKind

	tick  world.TickLogEntry
	audit world.AuditEntry
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropTickTotal  uint64 `json:"drop_tick_total"`
	DropAuditTotal uint64 `json:"drop_audit_total"`
	WrittenTotal   uint64 `json:"written_total"`
	FailTotal      uint64 `json:"fail_total"`
}

const defaultQueue = 65536

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, defaultQueue)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
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

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
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

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			changes INTEGER NOT NULL,
			recomputed INTEGER NOT NULL,
			recomputes INTEGER NOT NULL,
			field_cells INTEGER NOT NULL,
			goals INTEGER NOT NULL,
			emerged INTEGER NOT NULL,
			ejected INTEGER NOT NULL,
			deposits INTEGER NOT NULL,
			scent_positions INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS breaches (
			tick INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			claimed_by TEXT NOT NULL,
			reinforcement_requests INTEGER NOT NULL,
			age_s REAL NOT NULL,
			PRIMARY KEY (tick, x, y, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_breaches_pos_tick ON breaches(x, z, y, tick);`,
		`CREATE TABLE IF NOT EXISTS tunnels (
			tick INTEGER NOT NULL,
			segment_id INTEGER NOT NULL,
			intact INTEGER NOT NULL,
			queued INTEGER NOT NULL,
			move_rate REAL NOT NULL,
			PRIMARY KEY (tick, segment_id)
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_kind TEXT NOT NULL,
			to_kind TEXT NOT NULL,
			from_hp INTEGER NOT NULL,
			to_hp INTEGER NOT NULL,
			reason TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, z, y, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_reason_tick ON audits(reason, tick);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue, commits, and closes the database.
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

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTick.Load(),
		DropAuditTotal: s.dropAudit.Load(),
		WrittenTotal:   s.written.Load(),
		FailTotal:      s.failed.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	const (
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)
	var (
		tx         *sqlx.Tx
		opCount    int
		lastCommit = time.Now()

		lastAuditTick uint64
		auditSeq      int
	)

	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	defer commit()

	for r := range s.ch {
		if tx == nil {
			txx, err := s.db.BeginTxx(ctx, nil)
			if err != nil {
				s.failed.Add(1)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			tx = txx
		}

		var err error
		switch r.kind {
		case reqTick:
			err = insertTick(tx, r.tick)
		case reqAudit:
			if r.audit.Tick != lastAuditTick {
				lastAuditTick = r.audit.Tick
				auditSeq = 0
			}
			err = insertAudit(tx, auditSeq, r.audit)
			auditSeq++
		}
		if err != nil {
			// One bad row poisons only the current batch.
			s.failed.Add(1)
			_ = tx.Rollback()
			tx = nil
			opCount = 0
			continue
		}
		s.written.Add(1)
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
}

func insertTick(tx *sqlx.Tx, e world.TickLogEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO ticks(tick,digest,changes,recomputed,recomputes,field_cells,goals,emerged,ejected,deposits,scent_positions,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		int64(e.Tick), e.Digest, e.Changes, e.Recomputed, int64(e.Recomputes), e.FieldCells, e.Goals,
		e.Emerged, e.Ejected, e.Deposits, e.Scent.Positions, string(raw),
	); err != nil {
		return err
	}
	for _, b := range e.Breaches {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO breaches(tick,x,y,z,claimed_by,reinforcement_requests,age_s) VALUES(?,?,?,?,?,?,?)`,
			int64(e.Tick), b.Pos.X, b.Pos.Y, b.Pos.Z, b.ClaimedBy.String(), b.ReinforcementRequests, b.AgeSeconds,
		); err != nil {
			return err
		}
	}
	for _, t := range e.Tunnels {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO tunnels(tick,segment_id,intact,queued,move_rate) VALUES(?,?,?,?,?)`,
			int64(e.Tick), int(t.ID), t.Intact, t.Queued, t.MoveRate,
		); err != nil {
			return err
		}
	}
	return nil
}

type auditInsert struct {
	Tick     int64  `db:"tick"`
	Seq      int    `db:"seq"`
	X        int    `db:"x"`
	Y        int    `db:"y"`
	Z        int    `db:"z"`
	FromKind string `db:"from_kind"`
	ToKind   string `db:"to_kind"`
	FromHP   int    `db:"from_hp"`
	ToHP     int    `db:"to_hp"`
	Reason   string `db:"reason"`
}

func insertAudit(tx *sqlx.Tx, seq int, a world.AuditEntry) error {
	_, err := tx.NamedExec(`INSERT OR REPLACE INTO audits(tick,seq,x,y,z,from_kind,to_kind,from_hp,to_hp,reason)
		VALUES(:tick,:seq,:x,:y,:z,:from_kind,:to_kind,:from_hp,:to_hp,:reason)`, auditInsert{
		Tick:     int64(a.Tick),
		Seq:      seq,
		X:        a.Pos.X,
		Y:        a.Pos.Y,
		Z:        a.Pos.Z,
		FromKind: a.From,
		ToKind:   a.To,
		FromHP:   int(a.FromHP),
		ToHP:     int(a.ToHP),
		Reason:   a.Reason,
	})
	return err
}

type TickRow struct {
	Tick       int64  `db:"tick" json:"tick"`
	Digest     string `db:"digest" json:"digest"`
	Changes    int    `db:"changes" json:"changes"`
	Recomputed bool   `db:"recomputed" json:"recomputed"`
	FieldCells int    `db:"field_cells" json:"field_cells"`
	Goals      int    `db:"goals" json:"goals"`
	Emerged    int    `db:"emerged" json:"emerged"`
	Ejected    int    `db:"ejected" json:"ejected"`
}

type AuditRow struct {
	Tick     int64  `db:"tick" json:"tick"`
	Seq      int    `db:"seq" json:"seq"`
	X        int    `db:"x" json:"x"`
	Y        int    `db:"y" json:"y"`
	Z        int    `db:"z" json:"z"`
	FromKind string `db:"from_kind" json:"from"`
	ToKind   string `db:"to_kind" json:"to"`
	Reason   string `db:"reason" json:"reason"`
}

type BreachRow struct {
	Tick                  int64   `db:"tick" json:"tick"`
	ClaimedBy             string  `db:"claimed_by" json:"claimed_by"`
	ReinforcementRequests int     `db:"reinforcement_requests" json:"reinforcement_requests"`
	AgeSeconds            float64 `db:"age_s" json:"age_s"`
}

// RecentTicks returns up to limit indexed ticks, newest first.
func (s *SQLiteIndex) RecentTicks(ctx context.Context, limit int) ([]TickRow, error) {
	var rows []TickRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT tick,digest,changes,recomputed,field_cells,goals,emerged,ejected FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
	return rows, err
}

// AuditsAt returns every terrain change recorded at pos in tick order.
func (s *SQLiteIndex) AuditsAt(ctx context.Context, pos grid.Pos) ([]AuditRow, error) {
	var rows []AuditRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT tick,seq,x,y,z,from_kind,to_kind,reason FROM audits WHERE x=? AND y=? AND z=? ORDER BY tick, seq`,
		pos.X, pos.Y, pos.Z)
	return rows, err
}

// BreachHistory returns the sampled lifecycle of the breach at pos.
func (s *SQLiteIndex) BreachHistory(ctx context.Context, pos grid.Pos) ([]BreachRow, error) {
	var rows []BreachRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT tick,claimed_by,reinforcement_requests,age_s FROM breaches WHERE x=? AND y=? AND z=? ORDER BY tick`,
		pos.X, pos.Y, pos.Z)
	return rows, err
}

// CountAudits returns how many audit rows carry the given reason.
func (s *SQLiteIndex) CountAudits(ctx context.Context, reason string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM audits WHERE reason=?`, reason)
	return n, err
}
