// Package model defines the domain structs shared across the ingestion
// pipeline, the per-log store, and the query layer.
package model

// ResourceKind identifies one of the four unit resource pools.
type ResourceKind int

const (
	ResourceUnknown ResourceKind = iota
	ResourceHealth
	ResourceMagicka
	ResourceStamina
	ResourceUltimate
)

// ResourceFromPowerType maps a log powerType code to a ResourceKind.
// Both the historical and the current code sets are accepted.
func ResourceFromPowerType(powerType int64) ResourceKind {
	switch powerType {
	case -2, 32:
		return ResourceHealth
	case 0, 1:
		return ResourceMagicka
	case 6, 4:
		return ResourceStamina
	case 10, 8:
		return ResourceUltimate
	default:
		return ResourceUnknown
	}
}

// String returns the canonical name of the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case ResourceHealth:
		return "health"
	case ResourceMagicka:
		return "magicka"
	case ResourceStamina:
		return "stamina"
	case ResourceUltimate:
		return "ultimate"
	default:
		return "unknown"
	}
}

// Pool is a cur/max pair for one resource.
type Pool struct {
	Cur int64 `json:"cur"`
	Max int64 `json:"max"`
}

// UnitState is the decoded variable-width unit block of a combat record:
// the four pools plus a world position.
type UnitState struct {
	Health   Pool    `json:"health"`
	Magicka  Pool    `json:"magicka"`
	Stamina  Pool    `json:"stamina"`
	Ultimate Pool    `json:"ultimate"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
}

// AbilityDef is one ABILITY_INFO dictionary entry.
type AbilityDef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	IsPassive bool   `json:"is_passive"`
	IsPlayer  bool   `json:"is_player"`
}

// EffectDef is one EFFECT_INFO dictionary entry.
type EffectDef struct {
	AbilityID       int64  `json:"ability_id"`
	Kind            string `json:"kind"`
	DamageType      string `json:"damage_type"`
	DurationType    string `json:"duration_type"`
	LinkedAbilityID int64  `json:"linked_ability_id,omitempty"`
}

// UnitInfo is one lifetime entry of a unit id. Unit ids are reused by the
// game client; each reuse appends a fresh entry and closes the previous one.
type UnitInfo struct {
	UnitID         int64  `json:"unit_id"`
	UnitType       string `json:"unit_type"`
	IsLocal        bool   `json:"is_local"`
	GroupIndex     int64  `json:"group_index,omitempty"`
	MonsterID      int64  `json:"monster_id,omitempty"`
	IsBoss         bool   `json:"is_boss"`
	ClassID        int64  `json:"class_id,omitempty"`
	RaceID         int64  `json:"race_id,omitempty"`
	Name           string `json:"name"`
	Account        string `json:"account"`
	CharacterID    string `json:"character_id"`
	Level          int64  `json:"level"`
	ChampionPoints int64  `json:"champion_points"`
	Disposition    string `json:"disposition"`
	IsGrouped      bool   `json:"is_grouped"`
	IsActive       bool   `json:"is_active"`
	FirstSeenRelMs int64  `json:"first_seen_rel_ms"`
	LastSeenRelMs  int64  `json:"last_seen_rel_ms"`
}

// MapChange is one MAP_CHANGED record inside a zone segment.
type MapChange struct {
	AtRelMs int64  `json:"at_rel_ms"`
	MapID   int64  `json:"map_id"`
	MapName string `json:"map_name"`
	MapKey  string `json:"map_key"`
}

// ZoneSegment is a maximal interval between ZONE_CHANGED boundaries.
// ID is the ordinal of the segment within its session. When a MAP_CHANGED
// arrives before any ZONE_CHANGED, a synthetic segment with id 0 and zone id
// 0 is created and named after that map.
type ZoneSegment struct {
	ID         int         `json:"id"`
	StartRelMs int64       `json:"start_rel_ms"`
	EndRelMs   *int64      `json:"end_rel_ms,omitempty"`
	ZoneID     int64       `json:"zone_id"`
	ZoneName   string      `json:"zone_name"`
	Difficulty string      `json:"difficulty"`
	Maps       []MapChange `json:"maps,omitempty"`
}

// GearPiece is one equipped item from a PLAYER_INFO equipment list.
// Unparsable integer fields default to 0.
type GearPiece struct {
	Slot           string `json:"slot"`
	ItemID         int64  `json:"item_id"`
	IsCP           bool   `json:"is_cp"`
	Level          int64  `json:"level"`
	Trait          int64  `json:"trait"`
	Quality        int64  `json:"quality"`
	SetID          int64  `json:"set_id"`
	EnchantType    int64  `json:"enchant_type"`
	IsEnchantCP    bool   `json:"is_enchant_cp"`
	EnchantLevel   int64  `json:"enchant_level"`
	EnchantQuality int64  `json:"enchant_quality"`
}

// PlayerInfoSnapshot is one PLAYER_INFO record: passives, gear and bars.
type PlayerInfoSnapshot struct {
	AtRelMs      int64       `json:"at_rel_ms"`
	UnitID       int64       `json:"unit_id"`
	Passives     []int64     `json:"passives,omitempty"`
	PassiveRanks []int64     `json:"passive_ranks,omitempty"`
	Gear         []GearPiece `json:"gear,omitempty"`
	FrontBar     []int64     `json:"front_bar,omitempty"`
	BackBar      []int64     `json:"back_bar,omitempty"`
}

// TrialRun is one BEGIN_TRIAL/END_TRIAL interval. A run whose BEGIN_TRIAL
// was never seen is synthesised at END_TRIAL time.
type TrialRun struct {
	TrialKey    int64    `json:"trial_key"`
	StartRelMs  int64    `json:"start_rel_ms"`
	EndRelMs    int64    `json:"end_rel_ms,omitempty"`
	StartUnixMs int64    `json:"start_unix_ms"`
	EndUnixMs   int64    `json:"end_unix_ms,omitempty"`
	DurationMs  int64    `json:"duration_ms"`
	Success     bool     `json:"success"`
	FinalScore  int64    `json:"final_score"`
	Vitality    int64    `json:"vitality"`
	InProgress  bool     `json:"in_progress,omitempty"`
	BeginFields []string `json:"begin_fields,omitempty"`
	EndFields   []string `json:"end_fields,omitempty"`
}

// SessionDetail is the full per-session state extracted from one
// BEGIN_LOG/END_LOG interval.
type SessionDetail struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	UnixStartMs  int64                `json:"unix_start_ms"`
	Server       string               `json:"server"`
	Language     string               `json:"language"`
	Patch        string               `json:"patch"`
	EndRelMs     int64                `json:"end_rel_ms"`
	Abilities    map[int64]AbilityDef `json:"abilities,omitempty"`
	Effects      map[int64]EffectDef  `json:"effects,omitempty"`
	Units        []UnitInfo           `json:"units,omitempty"`
	Zones        []ZoneSegment        `json:"zones,omitempty"`
	PlayerInfos  []PlayerInfoSnapshot `json:"player_infos,omitempty"`
	Trials       []TrialRun           `json:"trials,omitempty"`
	Unhandled    map[string]int64     `json:"unhandled,omitempty"`
	TrialInitKey int64                `json:"trial_init_key,omitempty"`
}

// SessionSummary is the row-level projection of a session.
type SessionSummary struct {
	ID           string `json:"id"`
	UnixStartMs  int64  `json:"unix_start_ms"`
	Title        string `json:"title"`
	DisplayName  string `json:"display_name,omitempty"`
	Server       string `json:"server"`
	Language     string `json:"language"`
	Patch        string `json:"patch"`
	FightCount   int    `json:"fight_count"`
	TrialInitKey int64  `json:"trial_init_key,omitempty"`
}
