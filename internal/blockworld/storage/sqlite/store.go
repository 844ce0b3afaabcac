// Package sqlite persists what a BlockWorld run broadcast: every event and a
// summary of every tick, grouped by run. The schema is managed by
// golang-migrate from migrations embedded in the binary.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/blockworld/internal/blockworld/events"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l3objects"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"github.com/banshee-data/blockworld/internal/timeutil"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoRun is returned by queries for a run that was never started.
var ErrNoRun = errors.New("no such run")

// Store is an event log. It implements events.Broadcaster and
// l6world.TickObserver; write failures are logged and kept for Err rather
// than returned to the world.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock

	mu      sync.Mutex
	run     string
	seq     int64
	tickSeq int64
	err     error
}

// Open opens (creating if needed) the database at path and migrates it to
// the current schema.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure event log %s: %w", path, err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Store{db: db, clock: clock}
	if err := s.MigrateUp(Migrations()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate event log %s: %w", path, err)
	}
	diagf("opened event log %s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// StartRun begins a new run and makes it the target of later writes. It
// returns the run ID.
func (s *Store) StartRun(name string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO runs (run_id, name, started_at) VALUES (?, ?, ?)`,
		id, name, s.clock.Now().UnixMicro()); err != nil {
		return "", fmt.Errorf("start run %q: %w", name, err)
	}
	s.mu.Lock()
	s.run, s.seq, s.tickSeq = id, 0, 0
	s.mu.Unlock()
	diagf("started run %s (%s)", id, name)
	return id, nil
}

// RunID returns the current run, or "" before StartRun.
func (s *Store) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Err returns the first write failure since Open.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) fail(err error) {
	opsf("%v", err)
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// ensureRun returns the current run, starting an unnamed one if needed.
func (s *Store) ensureRun() (string, error) {
	if id := s.RunID(); id != "" {
		return id, nil
	}
	return s.StartRun("")
}

// Broadcast implements events.Broadcaster.
func (s *Store) Broadcast(e events.Event) {
	run, err := s.ensureRun()
	if err != nil {
		s.fail(err)
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		s.fail(fmt.Errorf("encode %s event: %w", e.Kind(), err))
		return
	}
	var objectID sql.NullInt64
	if id := eventObjectID(e); id.IsSet() {
		objectID = sql.NullInt64{Int64: int64(id), Valid: true}
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	_, err = s.db.Exec(`INSERT INTO events (event_id, run_id, seq, kind, robot_ts, object_id, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), run, seq, string(e.Kind()), int64(e.Time()), objectID, string(payload), s.clock.Now().UnixMicro())
	if err != nil {
		s.fail(fmt.Errorf("record %s event: %w", e.Kind(), err))
		return
	}
	tracef("run %s event %d: %s at t=%d", run, seq, e.Kind(), e.Time())
}

func eventObjectID(e events.Event) l3objects.ObjectID {
	switch ev := e.(type) {
	case events.ObjectObserved:
		return ev.ID
	case events.PossibleObjectObserved:
		return ev.ID
	case events.PoseUnknown:
		return ev.ID
	}
	return l3objects.NoID
}

// ObserveTick implements l6world.TickObserver.
func (s *Store) ObserveTick(st l6world.TickStats) {
	run, err := s.ensureRun()
	if err != nil {
		s.fail(err)
		return
	}
	var tickErr sql.NullString
	if st.Err != nil {
		tickErr = sql.NullString{String: st.Err.Error(), Valid: true}
	}

	s.mu.Lock()
	s.tickSeq++
	seq := s.tickSeq
	s.mu.Unlock()

	_, err = s.db.Exec(`INSERT INTO ticks (run_id, seq, robot_ts, markers, marker_groups, observed, objects, duration_us, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run, seq, int64(st.Timestamp), st.Markers, st.Groups, st.Observed, st.Objects, st.Duration.Microseconds(), tickErr)
	if err != nil {
		s.fail(fmt.Errorf("record tick %d: %w", seq, err))
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Run is one recorded replay or session.
type Run struct {
	ID        string
	Name      string
	StartedAt time.Time
}

// Runs returns every run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, name, started_at FROM runs ORDER BY started_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &r.Name, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMicro(started)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) checkRun(runID string) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return fmt.Errorf("look up run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNoRun)
	}
	return nil
}

// EventRow is one stored event. Payload is the event's JSON encoding.
type EventRow struct {
	ID         string
	Seq        int64
	Kind       events.Kind
	Timestamp  l2vision.Timestamp
	ObjectID   l3objects.ObjectID
	Payload    string
	RecordedAt time.Time
}

// Events returns runID's events in broadcast order, optionally limited to
// kinds.
func (s *Store) Events(runID string, kinds ...events.Kind) ([]EventRow, error) {
	if err := s.checkRun(runID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT event_id, seq, kind, robot_ts, object_id, payload, recorded_at
		FROM events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events of run %s: %w", runID, err)
	}
	defer rows.Close()

	want := make(map[events.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []EventRow
	for rows.Next() {
		var (
			r        EventRow
			kind     string
			ts       int64
			objectID sql.NullInt64
			recorded int64
		)
		if err := rows.Scan(&r.ID, &r.Seq, &kind, &ts, &objectID, &r.Payload, &recorded); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.Kind = events.Kind(kind)
		if len(want) > 0 && !want[r.Kind] {
			continue
		}
		r.Timestamp = l2vision.Timestamp(ts)
		if objectID.Valid {
			r.ObjectID = l3objects.ObjectID(objectID.Int64)
		}
		r.RecordedAt = time.UnixMicro(recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByKind returns how many events of each kind runID broadcast.
func (s *Store) CountByKind(runID string) (map[events.Kind]int, error) {
	if err := s.checkRun(runID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM events WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("count events of run %s: %w", runID, err)
	}
	defer rows.Close()

	out := make(map[events.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		out[events.Kind(kind)] = n
	}
	return out, rows.Err()
}

// TickRow is one stored tick summary.
type TickRow struct {
	Seq       int64
	Timestamp l2vision.Timestamp
	Markers   int
	Groups    int
	Observed  int
	Objects   int
	Duration  time.Duration
	Err       string
}

// Ticks returns runID's tick summaries in order.
func (s *Store) Ticks(runID string) ([]TickRow, error) {
	if err := s.checkRun(runID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT seq, robot_ts, markers, marker_groups, observed, objects, duration_us, error
		FROM ticks WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list ticks of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []TickRow
	for rows.Next() {
		var (
			r      TickRow
			ts     int64
			us     int64
			errMsg sql.NullString
		)
		if err := rows.Scan(&r.Seq, &ts, &r.Markers, &r.Groups, &r.Observed, &r.Objects, &us, &errMsg); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		r.Timestamp = l2vision.Timestamp(ts)
		r.Duration = time.Duration(us) * time.Microsecond
		r.Err = errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}
