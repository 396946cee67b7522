package model

// FightSummary is the row-level projection of one BEGIN_COMBAT/END_COMBAT
// interval. Fights reference their session and zone segment by id only.
type FightSummary struct {
	ID            string  `json:"id"`
	SessionID     string  `json:"session_id"`
	ZoneSegmentID int     `json:"zone_segment_id"`
	StartRelMs    int64   `json:"start_rel_ms"`
	EndRelMs      int64   `json:"end_rel_ms"`
	Title         string  `json:"title"`
	ZoneName      string  `json:"zone_name"`
	Difficulty    string  `json:"difficulty"`
	MapName       string  `json:"map_name,omitempty"`
	MapKey        string  `json:"map_key,omitempty"`
	IsHardMode    bool    `json:"is_hard_mode"`
	BossUnitIDs   []int64 `json:"boss_unit_ids,omitempty"`
	BossNames     string  `json:"boss_names,omitempty"`
}

// CombatAgg accumulates damage or heal events for one
// (source, target, ability) key. ActiveSeconds counts distinct integer
// seconds with at least one contributing event.
type CombatAgg struct {
	SourceUnitID  int64 `json:"source_unit_id"`
	TargetUnitID  int64 `json:"target_unit_id"`
	AbilityID     int64 `json:"ability_id"`
	Total         int64 `json:"total"`
	Hits          int64 `json:"hits"`
	Crits         int64 `json:"crits"`
	ActiveSeconds int64 `json:"active_seconds"`
	Overheal      int64 `json:"overheal"`
}

// AggKey is the composite key of a CombatAgg.
type AggKey struct {
	SourceUnitID int64
	TargetUnitID int64
	AbilityID    int64
}

// Key returns the composite key of the aggregate.
func (a CombatAgg) Key() AggKey {
	return AggKey{SourceUnitID: a.SourceUnitID, TargetUnitID: a.TargetUnitID, AbilityID: a.AbilityID}
}

// FightSeriesPoint is one second of the dense per-fight timeline.
type FightSeriesPoint struct {
	Second int   `json:"second"`
	Damage int64 `json:"damage"`
	Heal   int64 `json:"heal"`
}

// ResourceEvent is one signed resource change (ENERGIZE positive,
// DRAIN negative) received by a unit.
type ResourceEvent struct {
	RelMs     int64        `json:"rel_ms"`
	UnitID    int64        `json:"unit_id"`
	AbilityID int64        `json:"ability_id"`
	Kind      ResourceKind `json:"kind"`
	Amount    int64        `json:"amount"`
}

// EffectUptime tracks buff/debuff presence for one (target, ability) pair.
type EffectUptime struct {
	TargetUnitID int64 `json:"target_unit_id"`
	AbilityID    int64 `json:"ability_id"`
	TotalMs      int64 `json:"total_ms"`
	Applications int64 `json:"applications"`
}

// CastResultOpen marks a cast that was still open when the fight ended.
const CastResultOpen = "OPEN"

// CastEntry is one closed (or force-closed) BEGIN_CAST/END_CAST pair.
// CasterUnitID 0 is the sentinel for an orphan END_CAST.
type CastEntry struct {
	CastID       int64  `json:"cast_id"`
	AbilityID    int64  `json:"ability_id"`
	CasterUnitID int64  `json:"caster_unit_id"`
	StartRelMs   int64  `json:"start_rel_ms"`
	EndRelMs     *int64 `json:"end_rel_ms,omitempty"`
	Result       string `json:"result"`
}

// DeathEntry is one recorded death. KillerUnitID is 0 when the death was
// self-reported (DIED/UNIT_DIED) rather than a killing blow.
type DeathEntry struct {
	RelMs        int64 `json:"rel_ms"`
	VictimUnitID int64 `json:"victim_unit_id"`
	KillerUnitID int64 `json:"killer_unit_id,omitempty"`
	AbilityID    int64 `json:"ability_id,omitempty"`
}

// CombatSample is one raw damage/heal event kept for per-second filtering
// in the query layer.
type CombatSample struct {
	RelMs        int64  `json:"rel_ms"`
	SourceUnitID int64  `json:"source_unit_id"`
	TargetUnitID int64  `json:"target_unit_id"`
	AbilityID    int64  `json:"ability_id"`
	Damage       int64  `json:"damage"`
	Heal         int64  `json:"heal"`
	Overheal     int64  `json:"overheal"`
	IsCrit       bool   `json:"is_crit"`
	Result       string `json:"result"`
}

// EffectChangedEvent is one EFFECT_CHANGED record retained verbatim.
type EffectChangedEvent struct {
	RelMs            int64     `json:"rel_ms"`
	ChangeType       string    `json:"change_type"`
	EffectSlot       int64     `json:"effect_slot"`
	EffectInstanceID int64     `json:"effect_instance_id"`
	AbilityID        int64     `json:"ability_id"`
	TargetUnitID     int64     `json:"target_unit_id"`
	Target           UnitState `json:"target"`
}

// HealthRegenEvent is one HEALTH_REGEN snapshot. Raw preserves the
// original fields because the record's tail is only loosely specified.
type HealthRegenEvent struct {
	RelMs  int64     `json:"rel_ms"`
	UnitID int64     `json:"unit_id"`
	Regen  int64     `json:"regen"`
	State  UnitState `json:"state"`
	Raw    []string  `json:"raw,omitempty"`
}

// FightDetail is the fully materialised per-fight record, built in memory
// during the fight and serialised once at END_COMBAT.
type FightDetail struct {
	FightID    string `json:"fight_id"`
	StartRelMs int64  `json:"start_rel_ms"`
	EndRelMs   int64  `json:"end_rel_ms"`

	FriendlyUnitIDs []int64 `json:"friendly_unit_ids,omitempty"`
	EnemyUnitIDs    []int64 `json:"enemy_unit_ids,omitempty"`

	DamageDone     map[int64]int64 `json:"damage_done,omitempty"`
	DamageTaken    map[int64]int64 `json:"damage_taken,omitempty"`
	HealingDone    map[int64]int64 `json:"healing_done,omitempty"`
	HealingTaken   map[int64]int64 `json:"healing_taken,omitempty"`
	ResourceGained map[int64]int64 `json:"resource_gained,omitempty"`
	Deaths         map[int64]int64 `json:"deaths,omitempty"`
	Casts          map[int64]int64 `json:"casts,omitempty"`

	DamageDoneByAbility    map[int64]map[int64]int64 `json:"damage_done_by_ability,omitempty"`
	DamageTakenByAbility   map[int64]map[int64]int64 `json:"damage_taken_by_ability,omitempty"`
	HealingDoneByAbility   map[int64]map[int64]int64 `json:"healing_done_by_ability,omitempty"`
	HealingTakenByAbility  map[int64]map[int64]int64 `json:"healing_taken_by_ability,omitempty"`
	ResourceGainedByAbility map[int64]map[int64]int64 `json:"resource_gained_by_ability,omitempty"`

	// ResourceSamples holds the last unit state observed in each integer
	// second, keyed unit id -> second.
	ResourceSamples map[int64]map[int]UnitState `json:"resource_samples,omitempty"`
	ResourceEvents  []ResourceEvent             `json:"resource_events,omitempty"`

	Uptimes    []EffectUptime `json:"uptimes,omitempty"`
	CastList   []CastEntry    `json:"cast_list,omitempty"`
	DeathList  []DeathEntry   `json:"death_list,omitempty"`

	DamageAggs []CombatAgg `json:"damage_aggs,omitempty"`
	HealAggs   []CombatAgg `json:"heal_aggs,omitempty"`

	EffectChanges []EffectChangedEvent `json:"effect_changes,omitempty"`
	HealthRegens  []HealthRegenEvent   `json:"health_regens,omitempty"`

	// Samples is optional raw event retention; may be absent in older blobs.
	Samples []CombatSample `json:"samples,omitempty"`

	Unhandled map[string]int64 `json:"unhandled,omitempty"`
}
