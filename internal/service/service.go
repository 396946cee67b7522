package service

import (
	"context"
	"sync"

	"github.com/BloodStainChild/ESOLogViewer/internal/index"
	"github.com/BloodStainChild/ESOLogViewer/internal/model"
	"github.com/BloodStainChild/ESOLogViewer/internal/query"
)

// Service is the operational surface over the importer, the multi-log
// index, and the query layer.
type Service struct {
	importer   *Importer
	idx        *index.Index
	trialNames *TrialNameCache

	metaMu   sync.RWMutex
	metadata MetadataProvider
}

// New wires a Service. The index must already be created; the caller owns
// its Start/Stop lifecycle.
func New(importer *Importer, idx *index.Index) *Service {
	return &Service{
		importer:   importer,
		idx:        idx,
		trialNames: NewTrialNameCache(0),
	}
}

// SetMetadataProvider installs the external saved-variables dictionaries.
func (s *Service) SetMetadataProvider(p MetadataProvider) {
	s.metaMu.Lock()
	s.metadata = p
	s.metaMu.Unlock()
}

// AbilityName resolves an ability id to a display name, preferring the
// session's own dictionary and falling back to the external metadata.
func (s *Service) AbilityName(detail *model.SessionDetail, abilityID int64) string {
	if detail != nil {
		if def, ok := detail.Abilities[abilityID]; ok && def.Name != "" {
			return def.Name
		}
	}
	s.metaMu.RLock()
	p := s.metadata
	s.metaMu.RUnlock()
	if p != nil {
		for a := range p.Abilities() {
			if a.ID == abilityID {
				return a.Name
			}
		}
	}
	return ""
}

// TrialName resolves a trial key to its display name.
func (s *Service) TrialName(key int64) string {
	return s.trialNames.Name(key)
}

// SetTrialNameOverride installs a custom trial display name.
func (s *Service) SetTrialNameOverride(key int64, name string) {
	s.trialNames.SetOverride(key, name)
}

// ImportLog imports one encounter log and refreshes the index.
func (s *Service) ImportLog(ctx context.Context, path string) ([]model.SessionSummary, error) {
	sessions, _, err := s.importer.ImportLog(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.idx.Refresh(); err != nil {
		return sessions, err
	}
	return sessions, nil
}

// ImportLogs imports several logs with bounded concurrency and refreshes
// the index once at the end.
func (s *Service) ImportLogs(ctx context.Context, paths []string, concurrency int) []FileImport {
	out := s.importer.ImportLogs(ctx, paths, concurrency)
	if err := s.idx.Refresh(); err != nil {
		for i := range out {
			if out[i].Err == nil {
				out[i].Err = err
			}
		}
	}
	return out
}

// ListSessions returns all known sessions, newest first.
func (s *Service) ListSessions() []model.SessionSummary {
	return s.idx.Sessions()
}

// GetSession returns one session summary.
func (s *Service) GetSession(id string) (*model.SessionSummary, error) {
	return s.idx.Session(id)
}

// GetSessionDetail returns the full decoded session.
func (s *Service) GetSessionDetail(id string) (*model.SessionDetail, error) {
	return s.idx.SessionDetail(id)
}

// GetSessionFights lists the fights of one session.
func (s *Service) GetSessionFights(sessionID string) ([]model.FightSummary, error) {
	return s.idx.SessionFights(sessionID)
}

// GetFight returns one fight summary.
func (s *Service) GetFight(id string) (*model.FightSummary, error) {
	return s.idx.Fight(id)
}

// GetFightDetail returns the full decoded fight.
func (s *Service) GetFightDetail(id string) (*model.FightDetail, error) {
	return s.idx.FightDetail(id)
}

// GetSeries returns the filtered per-second series of one fight.
func (s *Service) GetSeries(id string, f query.Filter) ([]model.FightSeriesPoint, error) {
	detail, err := s.idx.FightDetail(id)
	if err != nil {
		return nil, err
	}
	dense, err := s.idx.Series(id)
	if err != nil {
		return nil, err
	}
	return query.Series(detail, dense, f), nil
}

// GetAggregates returns the per-ability projection of one fight.
func (s *Service) GetAggregates(id string, f query.Filter) ([]query.AbilityAgg, error) {
	detail, err := s.idx.FightDetail(id)
	if err != nil {
		return nil, err
	}
	return query.Aggregates(detail, f), nil
}

// GetAbilityIDs returns the distinct ability ids matching the filters.
func (s *Service) GetAbilityIDs(id string, f query.Filter) ([]int64, error) {
	detail, err := s.idx.FightDetail(id)
	if err != nil {
		return nil, err
	}
	return query.AbilityIDs(detail, f), nil
}

// GetRange returns range statistics for one fight over [from, to)
// milliseconds, honouring filters via the sample series when present.
func (s *Service) GetRange(id string, fromMs, toMs int64, f query.Filter) (*query.RangeStats, error) {
	detail, err := s.idx.FightDetail(id)
	if err != nil {
		return nil, err
	}
	dense, err := s.idx.Series(id)
	if err != nil {
		return nil, err
	}
	series := dense
	if f.HasUnitFilters() {
		series = query.Series(detail, dense, f)
	}
	return query.Range(series, fromMs, toMs), nil
}

// SetSessionDisplayName sets or clears a session's display name.
func (s *Service) SetSessionDisplayName(id, name string) error {
	return s.idx.SetSessionDisplayName(id, name)
}

// ListLogStores lists the per-log store files.
func (s *Service) ListLogStores() ([]string, error) {
	return s.idx.StorePaths()
}

// DeleteLogStore removes one per-log store.
func (s *Service) DeleteLogStore(path string) error {
	return s.idx.DeleteStore(path)
}

// RenameLegacyStores renames GUID-named stores to the friendly form.
func (s *Service) RenameLegacyStores() (int, error) {
	return s.idx.RenameLegacyStores()
}

// Changed returns a channel receiving a token after every index change.
func (s *Service) Changed() <-chan struct{} {
	return s.idx.Subscribe()
}
