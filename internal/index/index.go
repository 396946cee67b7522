// Package index discovers per-log stores in the store directory and routes
// session and fight ids to their owning store. All store reads go through
// short-lived read-only handles so that rename and delete stay possible.
package index

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maypok86/otter"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
	"github.com/BloodStainChild/ESOLogViewer/internal/store"
)

// ErrNotFound is returned when no store owns the requested id.
var ErrNotFound = store.ErrNotFound

// Config configures the Index.
type Config struct {
	Dir string

	// DetailCacheEntries bounds the decoded FightDetail cache; 0 uses a
	// default of 64.
	DetailCacheEntries int

	// RescanSchedule is an optional cron expression for periodic rescans
	// in addition to the directory watcher. Empty disables the schedule.
	RescanSchedule string
}

// Index maintains the routing tables over all discovered stores.
type Index struct {
	dir string

	sessions *xsync.Map[string, string] // session id -> store path
	fights   *xsync.Map[string, string] // fight id -> store path

	// refreshMu serialises refreshes; listMu guards the sorted summaries.
	refreshMu sync.Mutex
	listMu    sync.RWMutex
	list      []model.SessionSummary

	detailCache otter.Cache[string, *model.FightDetail]

	cron    *cron.Cron
	watcher *fsnotify.Watcher

	subMu       sync.Mutex
	subscribers []chan struct{}

	stopOnce sync.Once
	done     chan struct{}
}

// New creates an Index over dir. Call Start to scan and begin watching.
func New(cfg Config) (*Index, error) {
	entries := cfg.DetailCacheEntries
	if entries <= 0 {
		entries = 64
	}
	cache, err := otter.MustBuilder[string, *model.FightDetail](entries).
		Cost(func(_ string, _ *model.FightDetail) uint32 { return 1 }).
		Build()
	if err != nil {
		return nil, fmt.Errorf("index: build detail cache: %w", err)
	}

	ix := &Index{
		dir:         cfg.Dir,
		sessions:    xsync.NewMap[string, string](),
		fights:      xsync.NewMap[string, string](),
		detailCache: cache,
		done:        make(chan struct{}),
	}

	if cfg.RescanSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.RescanSchedule, func() {
			if err := ix.Refresh(); err != nil {
				log.Printf("[index] scheduled rescan failed: %v", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("index: invalid rescan schedule %q: %w", cfg.RescanSchedule, err)
		}
		ix.cron = c
	}
	return ix, nil
}

// Start performs the initial scan and starts the directory watcher and the
// rescan schedule.
func (ix *Index) Start() error {
	if err := os.MkdirAll(ix.dir, 0o755); err != nil {
		return fmt.Errorf("index: mkdir %s: %w", ix.dir, err)
	}
	if err := ix.Refresh(); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[index] watcher unavailable, relying on explicit refresh: %v", err)
	} else if err := w.Add(ix.dir); err != nil {
		log.Printf("[index] watch %s failed: %v", ix.dir, err)
		w.Close()
	} else {
		ix.watcher = w
		go ix.watchLoop()
	}

	if ix.cron != nil {
		ix.cron.Start()
	}
	return nil
}

// Stop stops the watcher and the schedule.
func (ix *Index) Stop() {
	ix.stopOnce.Do(func() {
		close(ix.done)
		if ix.cron != nil {
			ix.cron.Stop()
		}
		if ix.watcher != nil {
			ix.watcher.Close()
		}
	})
}

func (ix *Index) watchLoop() {
	for {
		select {
		case <-ix.done:
			return
		case ev, ok := <-ix.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, store.StoreSuffix) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if err := ix.Refresh(); err != nil {
				log.Printf("[index] refresh after %s failed: %v", ev.Op, err)
			}
		case err, ok := <-ix.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[index] watcher error: %v", err)
		}
	}
}

// Subscribe returns a channel that receives one token after every refresh
// that changed the routing tables.
func (ix *Index) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	ix.subMu.Lock()
	ix.subscribers = append(ix.subscribers, ch)
	ix.subMu.Unlock()
	return ch
}

func (ix *Index) notifyChanged() {
	ix.subMu.Lock()
	defer ix.subMu.Unlock()
	for _, ch := range ix.subscribers {
		select {
		case ch <- struct{}{}:
		default: // subscriber is behind; one pending token is enough
		}
	}
}

// StorePaths lists all store files currently present, sorted by name.
func (ix *Index) StorePaths() ([]string, error) {
	entries, err := os.ReadDir(ix.dir)
	if err != nil {
		return nil, fmt.Errorf("index: list dir %s: %w", ix.dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), store.StoreSuffix) {
			continue
		}
		files = append(files, filepath.Join(ix.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Refresh rescans the store directory and rebuilds the routing tables.
// A store that fails to open is skipped; the rest of the index survives.
func (ix *Index) Refresh() error {
	ix.refreshMu.Lock()
	defer ix.refreshMu.Unlock()

	files, err := ix.StorePaths()
	if err != nil {
		return err
	}

	newSessions := make(map[string]string)
	newFights := make(map[string]string)
	var list []model.SessionSummary

	for _, path := range files {
		st, err := store.OpenReadOnly(path)
		if err != nil {
			log.Printf("[index] warning: skip unreadable store %s: %v", path, err)
			continue
		}
		sums, err := st.Sessions()
		if err == nil {
			var fightIDs []string
			fightIDs, err = st.FightIDs()
			if err == nil {
				for _, sum := range sums {
					newSessions[sum.ID] = path
					list = append(list, sum)
				}
				for _, id := range fightIDs {
					newFights[id] = path
				}
			}
		}
		if closeErr := st.Close(); closeErr != nil {
			log.Printf("[index] warning: close store %s: %v", path, closeErr)
		}
		if err != nil {
			log.Printf("[index] warning: skip corrupt store %s: %v", path, err)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].UnixStartMs != list[j].UnixStartMs {
			return list[i].UnixStartMs > list[j].UnixStartMs
		}
		return list[i].ID < list[j].ID
	})

	changed := ix.swapTables(newSessions, newFights, list)
	if changed {
		ix.notifyChanged()
	}
	return nil
}

// swapTables replaces the routing maps with the scan result and reports
// whether anything changed.
func (ix *Index) swapTables(newSessions, newFights map[string]string, list []model.SessionSummary) bool {
	changed := false

	syncMap := func(m *xsync.Map[string, string], want map[string]string) {
		m.Range(func(k, v string) bool {
			if nv, ok := want[k]; !ok || nv != v {
				m.Delete(k)
				changed = true
			}
			return true
		})
		for k, v := range want {
			if old, ok := m.Load(k); !ok || old != v {
				m.Store(k, v)
				changed = true
			}
		}
	}
	syncMap(ix.sessions, newSessions)
	syncMap(ix.fights, newFights)

	ix.listMu.Lock()
	if len(list) != len(ix.list) {
		changed = true
	} else {
		for i := range list {
			if list[i] != ix.list[i] {
				changed = true
				break
			}
		}
	}
	ix.list = list
	ix.listMu.Unlock()

	if changed {
		ix.detailCache.Clear()
	}
	return changed
}

// Sessions returns all known sessions sorted by unix start, descending.
func (ix *Index) Sessions() []model.SessionSummary {
	ix.listMu.RLock()
	defer ix.listMu.RUnlock()
	out := make([]model.SessionSummary, len(ix.list))
	copy(out, ix.list)
	return out
}

// SessionStorePath resolves the store path owning a session id.
func (ix *Index) SessionStorePath(id string) (string, bool) {
	return ix.sessions.Load(id)
}

// FightStorePath resolves the store path owning a fight id.
func (ix *Index) FightStorePath(id string) (string, bool) {
	return ix.fights.Load(id)
}

func (ix *Index) withSessionStore(id string, fn func(*store.Store) error) error {
	path, ok := ix.sessions.Load(id)
	if !ok {
		return ErrNotFound
	}
	return ix.withStore(path, fn)
}

func (ix *Index) withFightStore(id string, fn func(*store.Store) error) error {
	path, ok := ix.fights.Load(id)
	if !ok {
		return ErrNotFound
	}
	return ix.withStore(path, fn)
}

func (ix *Index) withStore(path string, fn func(*store.Store) error) error {
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Printf("[index] warning: close store %s: %v", path, closeErr)
		}
	}()
	return fn(st)
}

// Session returns one session summary by id.
func (ix *Index) Session(id string) (*model.SessionSummary, error) {
	var out *model.SessionSummary
	err := ix.withSessionStore(id, func(st *store.Store) error {
		sum, err := st.Session(id)
		out = sum
		return err
	})
	return out, err
}

// SessionDetail returns the full decoded session by id.
func (ix *Index) SessionDetail(id string) (*model.SessionDetail, error) {
	var out *model.SessionDetail
	err := ix.withSessionStore(id, func(st *store.Store) error {
		d, err := st.SessionDetail(id)
		out = d
		return err
	})
	return out, err
}

// SessionFights lists the fights of one session.
func (ix *Index) SessionFights(sessionID string) ([]model.FightSummary, error) {
	var out []model.FightSummary
	err := ix.withSessionStore(sessionID, func(st *store.Store) error {
		fights, err := st.Fights(sessionID)
		out = fights
		return err
	})
	return out, err
}

// Fight returns one fight summary by id.
func (ix *Index) Fight(id string) (*model.FightSummary, error) {
	var out *model.FightSummary
	err := ix.withFightStore(id, func(st *store.Store) error {
		sum, err := st.Fight(id)
		out = sum
		return err
	})
	return out, err
}

// FightDetail returns the decoded detail of one fight, served from the
// bounded cache when possible.
func (ix *Index) FightDetail(id string) (*model.FightDetail, error) {
	if d, ok := ix.detailCache.Get(id); ok {
		return d, nil
	}
	var out *model.FightDetail
	err := ix.withFightStore(id, func(st *store.Store) error {
		d, err := st.FightDetail(id)
		out = d
		return err
	})
	if err != nil {
		return nil, err
	}
	ix.detailCache.Set(id, out)
	return out, nil
}

// Series returns the dense series of one fight.
func (ix *Index) Series(id string) ([]model.FightSeriesPoint, error) {
	var out []model.FightSeriesPoint
	err := ix.withFightStore(id, func(st *store.Store) error {
		s, err := st.Series(id)
		out = s
		return err
	})
	return out, err
}

// SetSessionDisplayName updates the display name inside the owning store.
func (ix *Index) SetSessionDisplayName(id, name string) error {
	path, ok := ix.sessions.Load(id)
	if !ok {
		return ErrNotFound
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SetDisplayName(id, name); err != nil {
		return err
	}
	return ix.Refresh()
}

// DeleteStore removes one store file (plus WAL/SHM sidecars) from the
// store directory and refreshes the index.
func (ix *Index) DeleteStore(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("index: resolve %s: %w", path, err)
	}
	dir, err := filepath.Abs(ix.dir)
	if err != nil {
		return fmt.Errorf("index: resolve %s: %w", ix.dir, err)
	}
	if filepath.Dir(abs) != dir || !strings.HasSuffix(abs, store.StoreSuffix) {
		return fmt.Errorf("index: %s is not a store in %s", path, ix.dir)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("index: delete store %s: %w", abs, err)
	}
	os.Remove(abs + "-wal")
	os.Remove(abs + "-shm")
	return ix.Refresh()
}

// RenameLegacyStores renames GUID-named store files to the friendly
// `<base>_YYYY-MM-DD_HH-MM-SS.log.db` form. Collisions resolve by numeric
// suffix. Returns the number of files renamed.
func (ix *Index) RenameLegacyStores() (int, error) {
	files, err := ix.StorePaths()
	if err != nil {
		return 0, err
	}

	renamed := 0
	for _, path := range files {
		if !store.IsLegacyStoreName(filepath.Base(path)) {
			continue
		}
		final, err := ix.legacyTargetName(path)
		if err != nil {
			log.Printf("[index] warning: skip legacy rename of %s: %v", path, err)
			continue
		}
		if err := os.Rename(path, final); err != nil {
			log.Printf("[index] warning: rename %s: %v", path, err)
			continue
		}
		renamed++
	}
	if renamed > 0 {
		if err := ix.Refresh(); err != nil {
			return renamed, err
		}
	}
	return renamed, nil
}

func (ix *Index) legacyTargetName(path string) (string, error) {
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	sums, err := st.Sessions()
	if err != nil {
		return "", err
	}
	if len(sums) == 0 {
		return "", fmt.Errorf("index: %s holds no sessions", path)
	}
	earliest := sums[len(sums)-1] // Sessions sorts descending

	base := "encounter"
	if meta, err := st.Meta(); err == nil {
		if src := meta["source_file"]; src != "" {
			base = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		}
	}

	final := filepath.Join(ix.dir, store.FinalStoreName(base, time.UnixMilli(earliest.UnixStartMs)))
	return resolveUniqueName(final), nil
}

func resolveUniqueName(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	stem := strings.TrimSuffix(path, store.StoreSuffix)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, store.StoreSuffix)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
