package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BloodStainChild/ESOLogViewer/internal/logparse"
	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

// FightResult bundles everything one closed fight produced.
type FightResult struct {
	Summary model.FightSummary
	Series  []model.FightSeriesPoint
	Detail  model.FightDetail
}

// SessionResult is one finalised BEGIN_LOG/END_LOG interval with its fights.
type SessionResult struct {
	Session model.SessionDetail
	Fights  []FightResult
}

// Builder drives the log-level state machine. It is single-threaded by
// construction: records must be fed in log order.
type Builder struct {
	current   *sessionState
	completed []SessionResult
}

type sessionState struct {
	detail model.SessionDetail

	// activeUnits maps a unit id to the index of its open lifetime entry
	// in detail.Units.
	activeUnits map[int64]int

	hardModeMarkers map[int64]bool

	fight      *fightBuilder
	fights     []FightResult
	fightCount int

	lastRelMs int64
}

// NewBuilder returns an idle Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// ProcessLine feeds one raw log line through the state machines. Lines
// that do not frame or parse are skipped silently.
func (b *Builder) ProcessLine(line string) {
	frame, ok := logparse.FrameLine(line)
	if !ok {
		return
	}
	ev, ok := logparse.ParseRecord(frame)
	if !ok {
		return
	}

	if begin, isBegin := ev.(logparse.BeginLog); isBegin {
		// A second BEGIN_LOG while in-session finalises the current
		// session first.
		if b.current != nil {
			b.finalizeCurrent()
		}
		b.current = newSessionState(frame.RelMs, begin)
		return
	}
	if b.current == nil {
		return
	}

	s := b.current
	if frame.RelMs > s.lastRelMs {
		s.lastRelMs = frame.RelMs
	}

	switch ev := ev.(type) {
	case logparse.EndLog:
		b.finalizeCurrent()
	case logparse.ZoneChanged:
		s.openZone(frame.RelMs, ev)
	case logparse.MapChanged:
		s.addMap(frame.RelMs, ev)
	case logparse.UnitAdded:
		s.unitAdded(frame.RelMs, ev.Unit)
	case logparse.UnitChanged:
		s.unitChanged(frame.RelMs, ev)
	case logparse.UnitRemoved:
		s.unitRemoved(frame.RelMs, ev.UnitID)
	case logparse.AbilityInfo:
		s.detail.Abilities[ev.Ability.ID] = ev.Ability
		if isHardModeMarkerName(ev.Ability.Name) {
			s.hardModeMarkers[ev.Ability.ID] = true
		}
	case logparse.EffectInfo:
		s.detail.Effects[ev.Effect.AbilityID] = ev.Effect
	case logparse.PlayerInfo:
		snap := ev.Snapshot
		snap.AtRelMs = frame.RelMs
		s.detail.PlayerInfos = append(s.detail.PlayerInfos, snap)
	case logparse.BeginCombat:
		if s.fight == nil {
			s.fight = newFightBuilder(s.fightCount, frame.RelMs)
		}
	case logparse.EndCombat:
		s.closeFight(frame.RelMs)
	case logparse.BeginTrial:
		s.detail.Trials = append(s.detail.Trials, model.TrialRun{
			TrialKey:    ev.TrialKey,
			StartRelMs:  frame.RelMs,
			StartUnixMs: ev.UnixStartMs,
			InProgress:  true,
			BeginFields: ev.Fields,
		})
	case logparse.EndTrial:
		s.endTrial(frame.RelMs, ev)
	case logparse.TrialInit:
		s.detail.TrialInitKey = ev.TrialKey
	case logparse.CombatEvent:
		if s.fight != nil {
			s.fight.handleCombatEvent(frame.RelMs, ev)
		}
	case logparse.EffectChanged:
		if s.fight != nil {
			s.fight.handleEffectChanged(frame.RelMs, ev, s.hardModeMarkers)
		}
	case logparse.BeginCast:
		if s.fight != nil {
			s.fight.handleBeginCast(frame.RelMs, ev)
		}
	case logparse.EndCast:
		if s.fight != nil {
			s.fight.handleEndCast(frame.RelMs, ev)
		}
	case logparse.HealthRegen:
		if s.fight != nil {
			s.fight.handleHealthRegen(frame.RelMs, ev)
		}
	case logparse.Unknown:
		s.detail.Unhandled[ev.Type]++
		if s.fight != nil {
			s.fight.countUnhandled(ev.Type)
		}
	}
}

// Finish closes any in-flight session (premature end-of-file) and returns
// all completed sessions in log order.
func (b *Builder) Finish() []SessionResult {
	if b.current != nil {
		b.finalizeCurrent()
	}
	return b.completed
}

func newSessionState(relMs int64, begin logparse.BeginLog) *sessionState {
	title := ""
	if begin.UnixStartMs > 0 {
		title = time.UnixMilli(begin.UnixStartMs).Format("2006-01-02 15:04:05")
	}
	return &sessionState{
		detail: model.SessionDetail{
			ID:          uuid.New().String(),
			Title:       title,
			UnixStartMs: begin.UnixStartMs,
			Server:      begin.Server,
			Language:    begin.Language,
			Patch:       begin.Patch,
			Abilities:   make(map[int64]model.AbilityDef),
			Effects:     make(map[int64]model.EffectDef),
			Unhandled:   make(map[string]int64),
		},
		activeUnits:     make(map[int64]int),
		hardModeMarkers: make(map[int64]bool),
		lastRelMs:       relMs,
	}
}

func (b *Builder) finalizeCurrent() {
	s := b.current
	b.current = nil

	now := s.lastRelMs
	s.closeFight(now)
	if z := s.currentZone(); z != nil && z.EndRelMs == nil {
		end := now
		z.EndRelMs = &end
	}
	s.detail.EndRelMs = now

	b.completed = append(b.completed, SessionResult{
		Session: s.detail,
		Fights:  s.fights,
	})
}

// isHardModeMarkerName reports whether an ability name marks hard mode.
// Heuristic from observed logs: "Hard Mode" (any case), or both "HM" and
// "Mode" present.
func isHardModeMarkerName(name string) bool {
	if strings.Contains(strings.ToLower(name), "hard mode") {
		return true
	}
	return strings.Contains(name, "HM") && strings.Contains(name, "Mode")
}

func (s *sessionState) currentZone() *model.ZoneSegment {
	if len(s.detail.Zones) == 0 {
		return nil
	}
	return &s.detail.Zones[len(s.detail.Zones)-1]
}

func (s *sessionState) openZone(relMs int64, ev logparse.ZoneChanged) {
	if z := s.currentZone(); z != nil && z.EndRelMs == nil {
		end := relMs
		z.EndRelMs = &end
	}
	s.detail.Zones = append(s.detail.Zones, model.ZoneSegment{
		ID:         len(s.detail.Zones),
		StartRelMs: relMs,
		ZoneID:     ev.ZoneID,
		ZoneName:   ev.ZoneName,
		Difficulty: ev.Difficulty,
	})
}

func (s *sessionState) addMap(relMs int64, ev logparse.MapChanged) {
	z := s.currentZone()
	if z == nil {
		// A map before any zone: synthesise a zone named after the map.
		s.detail.Zones = append(s.detail.Zones, model.ZoneSegment{
			ID:         0,
			StartRelMs: relMs,
			ZoneID:     0,
			ZoneName:   ev.MapName,
		})
		z = s.currentZone()
	}
	z.Maps = append(z.Maps, model.MapChange{
		AtRelMs: relMs,
		MapID:   ev.MapID,
		MapName: ev.MapName,
		MapKey:  ev.MapKey,
	})
}

func (s *sessionState) unitAdded(relMs int64, u model.UnitInfo) {
	if idx, ok := s.activeUnits[u.UnitID]; ok {
		// Id reuse: close the previous lifetime entry.
		prev := &s.detail.Units[idx]
		prev.IsActive = false
		prev.LastSeenRelMs = relMs
	}
	u.IsActive = true
	u.FirstSeenRelMs = relMs
	u.LastSeenRelMs = relMs
	s.detail.Units = append(s.detail.Units, u)
	s.activeUnits[u.UnitID] = len(s.detail.Units) - 1
}

func (s *sessionState) unitChanged(relMs int64, ev logparse.UnitChanged) {
	idx, ok := s.activeUnits[ev.UnitID]
	if !ok {
		return
	}
	u := &s.detail.Units[idx]
	u.ClassID = ev.ClassID
	u.RaceID = ev.RaceID
	u.Name = ev.Name
	u.Account = ev.Account
	u.CharacterID = ev.CharacterID
	u.Level = ev.Level
	u.ChampionPoints = ev.ChampionPoints
	u.Disposition = ev.Disposition
	u.IsGrouped = ev.IsGrouped
	u.LastSeenRelMs = relMs
}

func (s *sessionState) unitRemoved(relMs int64, unitID int64) {
	idx, ok := s.activeUnits[unitID]
	if !ok {
		return
	}
	u := &s.detail.Units[idx]
	u.IsActive = false
	u.LastSeenRelMs = relMs
	delete(s.activeUnits, unitID)
}

// resolveUnit returns the active lifetime entry for a unit id. Closed
// entries still resolve to the most recent lifetime so that units removed
// mid-fight keep their identity.
func (s *sessionState) resolveUnit(unitID int64) *model.UnitInfo {
	if idx, ok := s.activeUnits[unitID]; ok {
		return &s.detail.Units[idx]
	}
	for i := len(s.detail.Units) - 1; i >= 0; i-- {
		if s.detail.Units[i].UnitID == unitID {
			return &s.detail.Units[i]
		}
	}
	return nil
}

func (s *sessionState) closeFight(relMs int64) {
	if s.fight == nil {
		return
	}
	ctx := fightContext{
		sessionID: s.detail.ID,
		resolve:   s.resolveUnit,
	}
	if z := s.currentZone(); z != nil {
		ctx.zoneSegmentID = z.ID
		ctx.zoneName = z.ZoneName
		ctx.difficulty = z.Difficulty
		if len(z.Maps) > 0 {
			last := z.Maps[len(z.Maps)-1]
			ctx.mapName = last.MapName
			ctx.mapKey = last.MapKey
		}
	}
	summary, series, detail := s.fight.finish(relMs, ctx)
	s.fights = append(s.fights, FightResult{Summary: summary, Series: series, Detail: detail})
	s.fight = nil
	s.fightCount++
}

func (s *sessionState) endTrial(relMs int64, ev logparse.EndTrial) {
	var run *model.TrialRun
	for i := len(s.detail.Trials) - 1; i >= 0; i-- {
		t := &s.detail.Trials[i]
		if t.InProgress && t.TrialKey == ev.TrialKey {
			run = t
			break
		}
	}
	if run == nil {
		// END_TRIAL without BEGIN_TRIAL: fabricate a draft starting now.
		s.detail.Trials = append(s.detail.Trials, model.TrialRun{
			TrialKey:    ev.TrialKey,
			StartRelMs:  relMs,
			StartUnixMs: s.detail.UnixStartMs + relMs,
			InProgress:  true,
		})
		run = &s.detail.Trials[len(s.detail.Trials)-1]
	}

	run.InProgress = false
	run.EndRelMs = relMs
	run.EndUnixMs = s.detail.UnixStartMs + relMs
	run.DurationMs = ev.DurationMs
	if run.DurationMs == 0 {
		if d := relMs - run.StartRelMs; d > 0 {
			run.DurationMs = d
		}
	}
	run.Success = ev.Success
	run.FinalScore = ev.FinalScore
	run.Vitality = ev.Vitality
	run.EndFields = ev.Fields
}

// maxLineBytes bounds a single record; PLAYER_INFO lines carry full
// equipment dumps and can run long.
const maxLineBytes = 4 * 1024 * 1024

// ParseStream reads an encounter log line by line and returns the
// finalised sessions. The context is checked between records; parse
// problems in the data never surface as errors.
func ParseStream(ctx context.Context, r io.Reader) ([]SessionResult, error) {
	b := NewBuilder()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	n := 0
	for sc.Scan() {
		if n%1024 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		n++
		b.ProcessLine(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: read log: %w", err)
	}
	return b.Finish(), nil
}
