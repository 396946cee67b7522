package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

// FightRecord is one fight ready for persistence.
type FightRecord struct {
	Summary model.FightSummary
	Series  []model.FightSeriesPoint
	Detail  model.FightDetail
}

// SessionRecord is one session plus its fights ready for persistence.
type SessionRecord struct {
	Detail model.SessionDetail
	Fights []FightRecord
}

// Meta describes the import recorded in the log_meta table.
type Meta struct {
	SourceFile  string
	Fingerprint string
	ImportedAt  time.Time
}

// Writer builds one per-log store under an in-flight temporary name and
// renames it into place on Finalize. On any failure the temporary file is
// removed best-effort.
type Writer struct {
	db   *sql.DB
	dir  string
	path string

	earliestUnixMs int64
}

// NewWriter creates the store directory if needed, opens a fresh in-flight
// database and applies the schema migrations.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, uuid.New().String()+StoreSuffix+inflightSuffix)
	db, err := openDB(path, false)
	if err != nil {
		return nil, err
	}
	if err := migrateLogDB(db); err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}
	return &Writer{db: db, dir: dir, path: path}, nil
}

// Path returns the in-flight file path.
func (w *Writer) Path() string { return w.path }

// Import persists all sessions and fights in a single transaction. The
// context is checked between fight row groups; cancellation rolls the
// transaction back and the caller is expected to Abort.
func (w *Writer) Import(ctx context.Context, sessions []SessionRecord, meta Meta) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin import tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := w.writeMeta(tx, meta); err != nil {
		return err
	}

	insertSession, err := tx.Prepare(`INSERT INTO sessions (
		id, unix_start_ms, title, display_name, server, language, patch,
		fight_count, trial_init_key, detail_blob
	) VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("store: prepare session insert: %w", err)
	}
	defer insertSession.Close()

	insertFight, err := tx.Prepare(`INSERT INTO fights (
		id, session_id, zone_segment_id, start_rel_ms, end_rel_ms,
		title, zone_name, difficulty, map_name, map_key, is_hard_mode,
		summary_blob
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("store: prepare fight insert: %w", err)
	}
	defer insertFight.Close()

	insertDetail, err := tx.Prepare(`INSERT INTO fight_details (fight_id, detail_blob) VALUES (?,?)`)
	if err != nil {
		return fmt.Errorf("store: prepare detail insert: %w", err)
	}
	defer insertDetail.Close()

	insertSeries, err := tx.Prepare(`INSERT INTO fight_series (fight_id, series_blob) VALUES (?,?)`)
	if err != nil {
		return fmt.Errorf("store: prepare series insert: %w", err)
	}
	defer insertSeries.Close()

	for i := range sessions {
		s := &sessions[i]
		if w.earliestUnixMs == 0 || (s.Detail.UnixStartMs > 0 && s.Detail.UnixStartMs < w.earliestUnixMs) {
			w.earliestUnixMs = s.Detail.UnixStartMs
		}

		detailBlob, err := encodeBlob(s.Detail)
		if err != nil {
			return err
		}
		if _, err := insertSession.Exec(
			s.Detail.ID, s.Detail.UnixStartMs, s.Detail.Title, "",
			s.Detail.Server, s.Detail.Language, s.Detail.Patch,
			len(s.Fights), s.Detail.TrialInitKey, detailBlob,
		); err != nil {
			return fmt.Errorf("store: insert session %s: %w", s.Detail.ID, err)
		}

		for j := range s.Fights {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			f := &s.Fights[j]
			summaryBlob, err := encodeBlob(f.Summary)
			if err != nil {
				return err
			}
			if _, err := insertFight.Exec(
				f.Summary.ID, f.Summary.SessionID, f.Summary.ZoneSegmentID,
				f.Summary.StartRelMs, f.Summary.EndRelMs,
				f.Summary.Title, f.Summary.ZoneName, f.Summary.Difficulty,
				f.Summary.MapName, f.Summary.MapKey, boolToInt(f.Summary.IsHardMode),
				summaryBlob,
			); err != nil {
				return fmt.Errorf("store: insert fight %s: %w", f.Summary.ID, err)
			}

			detailBlob, err := encodeBlob(f.Detail)
			if err != nil {
				return err
			}
			if _, err := insertDetail.Exec(f.Summary.ID, detailBlob); err != nil {
				return fmt.Errorf("store: insert fight detail %s: %w", f.Summary.ID, err)
			}

			seriesBlob, err := encodeBlob(f.Series)
			if err != nil {
				return err
			}
			if _, err := insertSeries.Exec(f.Summary.ID, seriesBlob); err != nil {
				return fmt.Errorf("store: insert fight series %s: %w", f.Summary.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit import: %w", err)
	}
	return nil
}

func (w *Writer) writeMeta(tx *sql.Tx, meta Meta) error {
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO log_meta (key, value) VALUES (?,?)`)
	if err != nil {
		return fmt.Errorf("store: prepare meta insert: %w", err)
	}
	defer stmt.Close()

	kv := map[string]string{
		"imported_at": meta.ImportedAt.UTC().Format(time.RFC3339),
		"source_file": meta.SourceFile,
		"fingerprint": meta.Fingerprint,
	}
	for k, v := range kv {
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("store: insert meta %s: %w", k, err)
		}
	}
	return nil
}

// Finalize closes the database (flushing every pooled handle) and renames
// the in-flight file to its friendly final name. Returns the final path.
func (w *Writer) Finalize(sourceBase string) (string, error) {
	start := time.UnixMilli(w.earliestUnixMs)
	if w.earliestUnixMs == 0 {
		start = time.Now()
	}

	if err := w.db.Close(); err != nil {
		return "", fmt.Errorf("store: close before rename: %w", err)
	}
	w.db = nil

	final := filepath.Join(w.dir, FinalStoreName(sourceBase, start))
	final = resolveCollision(final)
	if err := os.Rename(w.path, final); err != nil {
		return "", fmt.Errorf("store: finalize rename: %w", err)
	}
	w.path = final
	return final, nil
}

// Abort closes and removes the in-flight file, best-effort.
func (w *Writer) Abort() {
	if w.db != nil {
		w.db.Close()
		w.db = nil
	}
	if strings.HasSuffix(w.path, inflightSuffix) {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			log.Printf("[store] warning: remove in-flight %s: %v", w.path, err)
		}
	}
}

// resolveCollision appends a numeric suffix until the path is free.
func resolveCollision(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	stem := strings.TrimSuffix(path, StoreSuffix)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, StoreSuffix)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
