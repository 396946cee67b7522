package logparse

import (
	"strconv"
	"strings"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

// Event is the decoded form of one recognised record. The concrete types
// below form a closed tagged variant; the ingestion state machines switch
// on them instead of on raw type strings.
type Event interface{ event() }

type BeginLog struct {
	UnixStartMs int64
	Server      string
	Language    string
	Patch       string
}

type EndLog struct{}

type ZoneChanged struct {
	ZoneID     int64
	ZoneName   string
	Difficulty string
}

type MapChanged struct {
	MapID   int64
	MapName string
	MapKey  string
}

type UnitAdded struct{ Unit model.UnitInfo }

// UnitChanged mutates mutable unit fields; lifetime bounds are untouched.
type UnitChanged struct {
	UnitID         int64
	ClassID        int64
	RaceID         int64
	Name           string
	Account        string
	CharacterID    string
	Level          int64
	ChampionPoints int64
	Disposition    string
	IsGrouped      bool
}

type UnitRemoved struct{ UnitID int64 }

type AbilityInfo struct{ Ability model.AbilityDef }

type EffectInfo struct{ Effect model.EffectDef }

type PlayerInfo struct{ Snapshot model.PlayerInfoSnapshot }

type BeginCombat struct{}

type EndCombat struct{}

type BeginTrial struct {
	TrialKey    int64
	UnixStartMs int64
	Fields      []string
}

type EndTrial struct {
	TrialKey   int64
	DurationMs int64
	Success    bool
	FinalScore int64
	Vitality   int64
	Fields     []string
}

type TrialInit struct{ TrialKey int64 }

type CombatEvent struct {
	Result           string
	DamageType       string
	PowerType        int64
	Damage           int64
	Heal             int64
	SourceInstanceID int64
	AbilityID        int64
	SourceUnitID     int64
	Source           *model.UnitState
	HasTarget        bool
	TargetUnitID     int64
	Target           *model.UnitState
}

type EffectChanged struct {
	ChangeType       string
	EffectSlot       int64
	EffectInstanceID int64
	AbilityID        int64
	TargetUnitID     int64
	Target           model.UnitState
}

type BeginCast struct {
	CastID       int64
	AbilityID    int64
	CasterUnitID int64
	Caster       model.UnitState
}

type EndCast struct {
	Result    string
	CastID    int64
	AbilityID int64
}

type HealthRegen struct {
	UnitID int64
	Regen  int64
	State  model.UnitState
	Raw    []string
}

// Unknown carries a record type not handled by the pipeline; the builders
// count these per type.
type Unknown struct{ Type string }

func (BeginLog) event()      {}
func (EndLog) event()        {}
func (ZoneChanged) event()   {}
func (MapChanged) event()    {}
func (UnitAdded) event()     {}
func (UnitChanged) event()   {}
func (UnitRemoved) event()   {}
func (AbilityInfo) event()   {}
func (EffectInfo) event()    {}
func (PlayerInfo) event()    {}
func (BeginCombat) event()   {}
func (EndCombat) event()     {}
func (BeginTrial) event()    {}
func (EndTrial) event()      {}
func (TrialInit) event()     {}
func (CombatEvent) event()   {}
func (EffectChanged) event() {}
func (BeginCast) event()     {}
func (EndCast) event()       {}
func (HealthRegen) event()   {}
func (Unknown) event()       {}

// --- tolerant field accessors: missing trailing fields default to zero ---

func fieldStr(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func fieldInt(fields []string, i int) int64 {
	n, err := strconv.ParseInt(fieldStr(fields, i), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func fieldBool(fields []string, i int) bool {
	return fieldStr(fields, i) == "T"
}

// ParseRecord decodes one framed record into an Event. Records of an
// unrecognised type yield Unknown; records of a recognised type whose
// mandatory fields do not parse yield ok=false and are skipped.
func ParseRecord(f Frame) (Event, bool) {
	switch f.Type {
	case "BEGIN_LOG":
		fields := SplitFields(f.Rest)
		return BeginLog{
			UnixStartMs: fieldInt(fields, 0),
			Server:      fieldStr(fields, 2),
			Language:    fieldStr(fields, 3),
			Patch:       fieldStr(fields, 4),
		}, true
	case "END_LOG":
		return EndLog{}, true
	case "ZONE_CHANGED":
		fields := SplitFields(f.Rest)
		return ZoneChanged{
			ZoneID:     fieldInt(fields, 0),
			ZoneName:   fieldStr(fields, 1),
			Difficulty: fieldStr(fields, 2),
		}, true
	case "MAP_CHANGED":
		fields := SplitFields(f.Rest)
		return MapChanged{
			MapID:   fieldInt(fields, 0),
			MapName: fieldStr(fields, 1),
			MapKey:  fieldStr(fields, 2),
		}, true
	case "UNIT_ADDED":
		fields := SplitFields(f.Rest)
		return UnitAdded{Unit: model.UnitInfo{
			UnitID:         fieldInt(fields, 0),
			UnitType:       fieldStr(fields, 1),
			IsLocal:        fieldBool(fields, 2),
			GroupIndex:     fieldInt(fields, 3),
			MonsterID:      fieldInt(fields, 4),
			IsBoss:         fieldBool(fields, 5),
			ClassID:        fieldInt(fields, 6),
			RaceID:         fieldInt(fields, 7),
			Name:           fieldStr(fields, 8),
			Account:        fieldStr(fields, 9),
			CharacterID:    fieldStr(fields, 10),
			Level:          fieldInt(fields, 11),
			ChampionPoints: fieldInt(fields, 12),
			Disposition:    fieldStr(fields, 14),
			IsGrouped:      fieldBool(fields, 15),
		}}, true
	case "UNIT_CHANGED":
		fields := SplitFields(f.Rest)
		return UnitChanged{
			UnitID:         fieldInt(fields, 0),
			ClassID:        fieldInt(fields, 1),
			RaceID:         fieldInt(fields, 2),
			Name:           fieldStr(fields, 3),
			Account:        fieldStr(fields, 4),
			CharacterID:    fieldStr(fields, 5),
			Level:          fieldInt(fields, 6),
			ChampionPoints: fieldInt(fields, 7),
			Disposition:    fieldStr(fields, 9),
			IsGrouped:      fieldBool(fields, 10),
		}, true
	case "UNIT_REMOVED":
		fields := SplitFields(f.Rest)
		return UnitRemoved{UnitID: fieldInt(fields, 0)}, true
	case "ABILITY_INFO":
		fields := SplitFields(f.Rest)
		return AbilityInfo{Ability: model.AbilityDef{
			ID:        fieldInt(fields, 0),
			Name:      fieldStr(fields, 1),
			Icon:      fieldStr(fields, 2),
			IsPassive: fieldBool(fields, 3),
			IsPlayer:  fieldBool(fields, 4),
		}}, true
	case "EFFECT_INFO":
		fields := SplitFields(f.Rest)
		return EffectInfo{Effect: model.EffectDef{
			AbilityID:       fieldInt(fields, 0),
			Kind:            fieldStr(fields, 1),
			DamageType:      fieldStr(fields, 2),
			DurationType:    fieldStr(fields, 3),
			LinkedAbilityID: fieldInt(fields, 4),
		}}, true
	case "PLAYER_INFO":
		fields := SplitFieldsBracketed(f.Rest)
		return parsePlayerInfo(fields)
	case "BEGIN_COMBAT":
		return BeginCombat{}, true
	case "END_COMBAT":
		return EndCombat{}, true
	case "BEGIN_TRIAL":
		fields := SplitFields(f.Rest)
		return BeginTrial{
			TrialKey:    fieldInt(fields, 0),
			UnixStartMs: fieldInt(fields, 1),
			Fields:      fields,
		}, true
	case "END_TRIAL":
		fields := SplitFields(f.Rest)
		return EndTrial{
			TrialKey:   fieldInt(fields, 0),
			DurationMs: fieldInt(fields, 1),
			Success:    fieldBool(fields, 2),
			FinalScore: fieldInt(fields, 3),
			Vitality:   fieldInt(fields, 4),
			Fields:     fields,
		}, true
	case "TRIAL_INIT", "TRAIL_INIT": // the misspelling ships in some patches
		fields := SplitFields(f.Rest)
		return TrialInit{TrialKey: fieldInt(fields, 0)}, true
	case "COMBAT_EVENT":
		fields := SplitFields(f.Rest)
		return parseCombatEvent(fields)
	case "EFFECT_CHANGED":
		fields := SplitFields(f.Rest)
		ev := EffectChanged{
			ChangeType:       fieldStr(fields, 0),
			EffectSlot:       fieldInt(fields, 1),
			EffectInstanceID: fieldInt(fields, 2),
			AbilityID:        fieldInt(fields, 3),
			TargetUnitID:     fieldInt(fields, 4),
		}
		if ev.ChangeType == "" {
			return nil, false
		}
		if st, _, ok := readUnitState(fields, 5); ok {
			ev.Target = st
		}
		return ev, true
	case "BEGIN_CAST":
		fields := SplitFields(f.Rest)
		ev := BeginCast{
			CastID:       fieldInt(fields, 2),
			AbilityID:    fieldInt(fields, 3),
			CasterUnitID: fieldInt(fields, 4),
		}
		if st, _, ok := readUnitState(fields, 5); ok {
			ev.Caster = st
		}
		return ev, true
	case "END_CAST":
		fields := SplitFields(f.Rest)
		return EndCast{
			Result:    fieldStr(fields, 0),
			CastID:    fieldInt(fields, 1),
			AbilityID: fieldInt(fields, 2),
		}, true
	case "HEALTH_REGEN":
		fields := SplitFields(f.Rest)
		ev := HealthRegen{
			UnitID: fieldInt(fields, 0),
			Regen:  fieldInt(fields, 1),
			Raw:    fields,
		}
		if st, _, ok := readUnitState(fields, 2); ok {
			ev.State = st
		}
		return ev, true
	default:
		return Unknown{Type: f.Type}, true
	}
}

func parseCombatEvent(fields []string) (Event, bool) {
	ev := CombatEvent{
		Result:           fieldStr(fields, 0),
		DamageType:       fieldStr(fields, 1),
		PowerType:        fieldInt(fields, 2),
		Damage:           fieldInt(fields, 3),
		Heal:             fieldInt(fields, 4),
		SourceInstanceID: fieldInt(fields, 5),
		AbilityID:        fieldInt(fields, 6),
		SourceUnitID:     fieldInt(fields, 7),
	}
	if ev.Result == "" {
		return nil, false
	}

	next := 8
	if st, after, ok := readUnitState(fields, 8); ok {
		ev.Source = &st
		next = after
	}

	tgt := fieldStr(fields, next)
	if tgt == "" || tgt == "*" {
		return ev, true
	}
	id, err := strconv.ParseInt(tgt, 10, 64)
	if err != nil {
		return ev, true
	}
	ev.HasTarget = true
	ev.TargetUnitID = id
	if st, _, ok := readUnitState(fields, next+1); ok {
		ev.Target = &st
	}
	return ev, true
}
