// Package service exposes the operational surface: log import, session
// and fight lookups, projections, and store management.
package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/BloodStainChild/ESOLogViewer/internal/ingest"
	"github.com/BloodStainChild/ESOLogViewer/internal/model"
	"github.com/BloodStainChild/ESOLogViewer/internal/store"
)

// Importer turns encounter log files into per-log stores.
type Importer struct {
	storeDir string
}

// NewImporter creates an Importer writing stores into storeDir.
func NewImporter(storeDir string) *Importer {
	return &Importer{storeDir: storeDir}
}

// ImportLog parses one encounter log and persists it as a fresh per-log
// store. The source file is fingerprinted while it is parsed; a
// fingerprint already present in the store directory is reported as a
// duplicate but does not block the import. Returns the summaries of the
// imported sessions and the final store path.
func (im *Importer) ImportLog(ctx context.Context, path string) ([]model.SessionSummary, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("import %s: %w", path, err)
	}
	defer f.Close()

	hasher := xxh3.New()
	results, err := ingest.ParseStream(ctx, io.TeeReader(f, hasher))
	if err != nil {
		return nil, "", fmt.Errorf("import %s: %w", path, err)
	}
	if len(results) == 0 {
		return nil, "", fmt.Errorf("import %s: no sessions found", path)
	}

	sum := hasher.Sum128().Bytes()
	fingerprint := hex.EncodeToString(sum[:])
	if prev := im.findFingerprint(fingerprint); prev != "" {
		log.Printf("[import] %s is a duplicate of already-imported %s", path, prev)
	}

	w, err := store.NewWriter(im.storeDir)
	if err != nil {
		return nil, "", fmt.Errorf("import %s: %w", path, err)
	}

	records := make([]store.SessionRecord, 0, len(results))
	for _, r := range results {
		rec := store.SessionRecord{Detail: r.Session}
		for _, fr := range r.Fights {
			rec.Fights = append(rec.Fights, store.FightRecord{
				Summary: fr.Summary,
				Series:  fr.Series,
				Detail:  fr.Detail,
			})
		}
		records = append(records, rec)
	}

	meta := store.Meta{
		SourceFile:  filepath.Base(path),
		Fingerprint: fingerprint,
		ImportedAt:  time.Now(),
	}
	if err := w.Import(ctx, records, meta); err != nil {
		w.Abort()
		return nil, "", fmt.Errorf("import %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	final, err := w.Finalize(base)
	if err != nil {
		w.Abort()
		return nil, "", fmt.Errorf("import %s: %w", path, err)
	}

	summaries := make([]model.SessionSummary, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, model.SessionSummary{
			ID:           r.Session.ID,
			UnixStartMs:  r.Session.UnixStartMs,
			Title:        r.Session.Title,
			Server:       r.Session.Server,
			Language:     r.Session.Language,
			Patch:        r.Session.Patch,
			FightCount:   len(r.Fights),
			TrialInitKey: r.Session.TrialInitKey,
		})
	}
	log.Printf("[import] %s: %d session(s), store %s", path, len(summaries), filepath.Base(final))
	return summaries, final, nil
}

// findFingerprint returns the path of an existing store carrying the given
// fingerprint, or "".
func (im *Importer) findFingerprint(fingerprint string) string {
	entries, err := os.ReadDir(im.storeDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), store.StoreSuffix) {
			continue
		}
		path := filepath.Join(im.storeDir, e.Name())
		st, err := store.OpenReadOnly(path)
		if err != nil {
			continue
		}
		meta, err := st.Meta()
		st.Close()
		if err == nil && meta["fingerprint"] == fingerprint {
			return path
		}
	}
	return ""
}

// FileImport is the per-file outcome of a multi-file import.
type FileImport struct {
	Path      string
	StorePath string
	Sessions  []model.SessionSummary
	Err       error
}

// ImportLogs imports several logs with bounded concurrency. Each log owns
// its store file, so failures stay isolated per file.
func (im *Importer) ImportLogs(ctx context.Context, paths []string, concurrency int) []FileImport {
	if concurrency <= 0 {
		concurrency = 1
	}

	out := make([]FileImport, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paths {
		g.Go(func() error {
			sessions, storePath, err := im.ImportLog(ctx, p)
			mu.Lock()
			out[i] = FileImport{Path: p, StorePath: storePath, Sessions: sessions, Err: err}
			mu.Unlock()
			if err != nil {
				log.Printf("[import] %s failed: %v", p, err)
			}
			return nil // per-file errors are reported, not fatal
		})
	}
	g.Wait() //nolint:errcheck
	return out
}
