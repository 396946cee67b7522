package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

// Store is an opened per-log database. Read-only opens never migrate and
// tolerate stores created by older versions (missing newer columns).
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool

	hasDisplayName bool
}

// Open opens a store read-write and upgrades its schema if needed.
func Open(path string) (*Store, error) {
	db, err := openDB(path, false)
	if err != nil {
		return nil, err
	}
	if err := migrateLogDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, hasDisplayName: true}, nil
}

// OpenReadOnly opens a store for reading only. The schema is probed, not
// migrated, so legacy files stay untouched.
func OpenReadOnly(path string) (*Store, error) {
	db, err := openDB(path, true)
	if err != nil {
		return nil, err
	}
	hasDisplay, err := hasTableColumn(db, "sessions", "display_name")
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, readOnly: true, hasDisplayName: hasDisplay}, nil
}

// Path returns the file path of the store.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Meta returns the log_meta key/value pairs.
func (s *Store) Meta() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM log_meta`)
	if err != nil {
		return nil, fmt.Errorf("store: query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("store: scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *Store) sessionColumns() string {
	if s.hasDisplayName {
		return "id, unix_start_ms, title, display_name, server, language, patch, fight_count, trial_init_key"
	}
	return "id, unix_start_ms, title, '', server, language, patch, fight_count, trial_init_key"
}

func scanSessionSummary(row interface{ Scan(...any) error }) (model.SessionSummary, error) {
	var sum model.SessionSummary
	err := row.Scan(
		&sum.ID, &sum.UnixStartMs, &sum.Title, &sum.DisplayName,
		&sum.Server, &sum.Language, &sum.Patch, &sum.FightCount, &sum.TrialInitKey,
	)
	return sum, err
}

// Sessions lists all sessions in the store, newest first.
func (s *Store) Sessions() ([]model.SessionSummary, error) {
	q := "SELECT " + s.sessionColumns() + " FROM sessions ORDER BY unix_start_ms DESC, id ASC"
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("store: query sessions: %w", err)
	}
	defer rows.Close()

	var out []model.SessionSummary
	for rows.Next() {
		sum, err := scanSessionSummary(rows)
		if err != nil {
			log.Printf("[store] warning: skip malformed session row in %s: %v", s.path, err)
			continue
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Session returns one session summary by id.
func (s *Store) Session(id string) (*model.SessionSummary, error) {
	q := "SELECT " + s.sessionColumns() + " FROM sessions WHERE id = ?"
	sum, err := scanSessionSummary(s.db.QueryRow(q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: query session %s: %w", id, err)
	}
	return &sum, nil
}

// SessionDetail returns the full decoded session record.
func (s *Store) SessionDetail(id string) (*model.SessionDetail, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT detail_blob FROM sessions WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: query session detail %s: %w", id, err)
	}
	return decodeSessionDetail(blob)
}

// Fights lists the fight summaries of one session ordered by start time.
func (s *Store) Fights(sessionID string) ([]model.FightSummary, error) {
	rows, err := s.db.Query(
		`SELECT summary_blob FROM fights WHERE session_id = ? ORDER BY start_rel_ms ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query fights of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []model.FightSummary
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			log.Printf("[store] warning: skip malformed fight row in %s: %v", s.path, err)
			continue
		}
		sum, err := decodeFightSummary(blob)
		if err != nil {
			log.Printf("[store] warning: skip undecodable fight blob in %s: %v", s.path, err)
			continue
		}
		out = append(out, *sum)
	}
	return out, rows.Err()
}

// Fight returns one fight summary by id.
func (s *Store) Fight(id string) (*model.FightSummary, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT summary_blob FROM fights WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: query fight %s: %w", id, err)
	}
	return decodeFightSummary(blob)
}

// FightDetail returns the full decoded fight record.
func (s *Store) FightDetail(fightID string) (*model.FightDetail, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT detail_blob FROM fight_details WHERE fight_id = ?`, fightID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: query fight detail %s: %w", fightID, err)
	}
	return decodeFightDetail(blob)
}

// Series returns the dense per-second series of one fight.
func (s *Store) Series(fightID string) ([]model.FightSeriesPoint, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT series_blob FROM fight_series WHERE fight_id = ?`, fightID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: query fight series %s: %w", fightID, err)
	}
	return decodeSeries(blob)
}

// SessionIDs returns every session id in the store.
func (s *Store) SessionIDs() ([]string, error) {
	return s.queryIDs(`SELECT id FROM sessions`)
}

// FightIDs returns every fight id in the store.
func (s *Store) FightIDs() ([]string, error) {
	return s.queryIDs(`SELECT id FROM fights`)
}

func (s *Store) queryIDs(q string) ([]string, error) {
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("store: query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetDisplayName sets (or clears, with an empty string) the user-chosen
// display name of a session. Requires a read-write open.
func (s *Store) SetDisplayName(sessionID, name string) error {
	if s.readOnly {
		return fmt.Errorf("store: set display name: %s is read-only", s.path)
	}
	res, err := s.db.Exec(`UPDATE sessions SET display_name = ? WHERE id = ?`, name, sessionID)
	if err != nil {
		return fmt.Errorf("store: set display name %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set display name %s: %w", sessionID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
