// Package ingest drives the log-level and combat-level state machines that
// turn framed records into session and fight values ready for storage.
package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/BloodStainChild/ESOLogViewer/internal/logparse"
	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

// unitResolver returns the active lifetime entry for a unit id, else its
// most recent closed entry, or nil when the id was never seen.
type unitResolver func(unitID int64) *model.UnitInfo

type uptimeKey struct {
	TargetUnitID int64
	AbilityID    int64
}

type uptimeState struct {
	model.EffectUptime
	open      bool
	openSince int64
}

type castKey struct {
	CastID    int64
	AbilityID int64
}

type openCast struct {
	casterUnitID int64
	startRelMs   int64
}

type aggState struct {
	model.CombatAgg
	lastSecond int
}

// fightBuilder accumulates one fight entirely in memory; nothing is
// persisted until the fight closes.
type fightBuilder struct {
	id         string
	ordinal    int
	startRelMs int64
	lastRelMs  int64

	unitsSeen map[int64]struct{}

	damageDone     map[int64]int64
	damageTaken    map[int64]int64
	healingDone    map[int64]int64
	healingTaken   map[int64]int64
	resourceGained map[int64]int64
	deaths         map[int64]int64
	casts          map[int64]int64

	damageDoneByAbility     map[int64]map[int64]int64
	damageTakenByAbility    map[int64]map[int64]int64
	healingDoneByAbility    map[int64]map[int64]int64
	healingTakenByAbility   map[int64]map[int64]int64
	resourceGainedByAbility map[int64]map[int64]int64

	damagePerSecond map[int]int64
	healPerSecond   map[int]int64

	resourceSamples map[int64]map[int]model.UnitState
	resourceEvents  []model.ResourceEvent

	damageAggs map[model.AggKey]*aggState
	healAggs   map[model.AggKey]*aggState

	uptimes   map[uptimeKey]*uptimeState
	openCasts map[castKey]*openCast
	castList  []model.CastEntry
	deathList []model.DeathEntry

	effectChanges []model.EffectChangedEvent
	healthRegens  []model.HealthRegenEvent
	samples       []model.CombatSample

	unhandled  map[string]int64
	isHardMode bool
}

func newFightBuilder(ordinal int, startRelMs int64) *fightBuilder {
	return &fightBuilder{
		id:         uuid.New().String(),
		ordinal:    ordinal,
		startRelMs: startRelMs,
		lastRelMs:  startRelMs,

		unitsSeen: make(map[int64]struct{}),

		damageDone:     make(map[int64]int64),
		damageTaken:    make(map[int64]int64),
		healingDone:    make(map[int64]int64),
		healingTaken:   make(map[int64]int64),
		resourceGained: make(map[int64]int64),
		deaths:         make(map[int64]int64),
		casts:          make(map[int64]int64),

		damageDoneByAbility:     make(map[int64]map[int64]int64),
		damageTakenByAbility:    make(map[int64]map[int64]int64),
		healingDoneByAbility:    make(map[int64]map[int64]int64),
		healingTakenByAbility:   make(map[int64]map[int64]int64),
		resourceGainedByAbility: make(map[int64]map[int64]int64),

		damagePerSecond: make(map[int]int64),
		healPerSecond:   make(map[int]int64),

		resourceSamples: make(map[int64]map[int]model.UnitState),

		damageAggs: make(map[model.AggKey]*aggState),
		healAggs:   make(map[model.AggKey]*aggState),

		uptimes:   make(map[uptimeKey]*uptimeState),
		openCasts: make(map[castKey]*openCast),

		unhandled: make(map[string]int64),
	}
}

func (f *fightBuilder) second(relMs int64) int {
	d := relMs - f.startRelMs
	if d < 0 {
		d = 0
	}
	return int(d / 1000)
}

func (f *fightBuilder) touch(relMs int64) {
	if relMs > f.lastRelMs {
		f.lastRelMs = relMs
	}
}

func (f *fightBuilder) seeUnit(unitID int64) {
	if unitID > 0 {
		f.unitsSeen[unitID] = struct{}{}
	}
}

func addNested(m map[int64]map[int64]int64, unitID, abilityID, amount int64) {
	inner := m[unitID]
	if inner == nil {
		inner = make(map[int64]int64)
		m[unitID] = inner
	}
	inner[abilityID] += amount
}

func (f *fightBuilder) recordResourceSample(relMs int64, unitID int64, st model.UnitState) {
	if unitID <= 0 {
		return
	}
	sec := f.second(relMs)
	perSec := f.resourceSamples[unitID]
	if perSec == nil {
		perSec = make(map[int]model.UnitState)
		f.resourceSamples[unitID] = perSec
	}
	perSec[sec] = st // same-second sample is replaced
}

func isCritResult(result string) bool {
	return strings.Contains(strings.ToUpper(result), "CRITICAL")
}

func (f *fightBuilder) bumpAgg(aggs map[model.AggKey]*aggState, key model.AggKey, amount, overheal int64, crit bool, sec int) {
	a := aggs[key]
	if a == nil {
		a = &aggState{
			CombatAgg:  model.CombatAgg{SourceUnitID: key.SourceUnitID, TargetUnitID: key.TargetUnitID, AbilityID: key.AbilityID},
			lastSecond: -1,
		}
		aggs[key] = a
	}
	a.Total += amount
	a.Hits++
	if crit {
		a.Crits++
	}
	a.Overheal += overheal
	if sec != a.lastSecond {
		a.ActiveSeconds++
		a.lastSecond = sec
	}
}

func (f *fightBuilder) handleCombatEvent(relMs int64, ev logparse.CombatEvent) {
	f.touch(relMs)
	f.seeUnit(ev.SourceUnitID)
	sec := f.second(relMs)

	if ev.Source != nil {
		f.recordResourceSample(relMs, ev.SourceUnitID, *ev.Source)
	}
	if ev.HasTarget {
		f.seeUnit(ev.TargetUnitID)
		if ev.Target != nil {
			f.recordResourceSample(relMs, ev.TargetUnitID, *ev.Target)
		}
	}

	crit := isCritResult(ev.Result)
	targetKey := int64(0)
	if ev.HasTarget {
		targetKey = ev.TargetUnitID
	}

	if ev.Damage > 0 {
		f.damagePerSecond[sec] += ev.Damage
		f.damageDone[ev.SourceUnitID] += ev.Damage
		addNested(f.damageDoneByAbility, ev.SourceUnitID, ev.AbilityID, ev.Damage)
		if ev.HasTarget {
			f.damageTaken[ev.TargetUnitID] += ev.Damage
			addNested(f.damageTakenByAbility, ev.TargetUnitID, ev.AbilityID, ev.Damage)
		}
		f.bumpAgg(f.damageAggs, model.AggKey{SourceUnitID: ev.SourceUnitID, TargetUnitID: targetKey, AbilityID: ev.AbilityID},
			ev.Damage, 0, crit, sec)
	}

	var overheal int64
	if ev.Heal > 0 {
		if ev.Target != nil {
			missing := ev.Target.Health.Max - ev.Target.Health.Cur
			if missing < 0 {
				missing = 0
			}
			if over := ev.Heal - missing; over > 0 {
				overheal = over
			}
		}
		f.healPerSecond[sec] += ev.Heal
		f.healingDone[ev.SourceUnitID] += ev.Heal
		addNested(f.healingDoneByAbility, ev.SourceUnitID, ev.AbilityID, ev.Heal)
		if ev.HasTarget {
			f.healingTaken[ev.TargetUnitID] += ev.Heal
			addNested(f.healingTakenByAbility, ev.TargetUnitID, ev.AbilityID, ev.Heal)
		}
		f.bumpAgg(f.healAggs, model.AggKey{SourceUnitID: ev.SourceUnitID, TargetUnitID: targetKey, AbilityID: ev.AbilityID},
			ev.Heal, overheal, crit, sec)
	}

	upper := strings.ToUpper(ev.Result)
	if (strings.Contains(upper, "ENERGIZE") || strings.Contains(upper, "DRAIN")) && ev.Damage != 0 {
		amount := ev.Damage
		if amount < 0 {
			amount = -amount
		}
		if strings.Contains(upper, "DRAIN") {
			amount = -amount
		}
		receiver := ev.SourceUnitID
		if ev.HasTarget {
			receiver = ev.TargetUnitID
		}
		f.resourceEvents = append(f.resourceEvents, model.ResourceEvent{
			RelMs:     relMs,
			UnitID:    receiver,
			AbilityID: ev.AbilityID,
			Kind:      model.ResourceFromPowerType(ev.PowerType),
			Amount:    amount,
		})
		if amount > 0 {
			f.resourceGained[receiver] += amount
			addNested(f.resourceGainedByAbility, receiver, ev.AbilityID, amount)
		}
	}

	switch {
	case upper == "KILLING_BLOW" && ev.HasTarget:
		f.deaths[ev.TargetUnitID]++
		f.deathList = append(f.deathList, model.DeathEntry{
			RelMs: relMs, VictimUnitID: ev.TargetUnitID, KillerUnitID: ev.SourceUnitID, AbilityID: ev.AbilityID,
		})
	case (upper == "DIED" || upper == "UNIT_DIED") && ev.SourceUnitID > 0:
		f.deaths[ev.SourceUnitID]++
		f.deathList = append(f.deathList, model.DeathEntry{
			RelMs: relMs, VictimUnitID: ev.SourceUnitID, AbilityID: ev.AbilityID,
		})
	}

	if ev.Damage > 0 || ev.Heal > 0 {
		f.samples = append(f.samples, model.CombatSample{
			RelMs:        relMs,
			SourceUnitID: ev.SourceUnitID,
			TargetUnitID: targetKey,
			AbilityID:    ev.AbilityID,
			Damage:       ev.Damage,
			Heal:         ev.Heal,
			Overheal:     overheal,
			IsCrit:       crit,
			Result:       ev.Result,
		})
	}
}

// handleEffectChanged maintains per-(target, ability) uptime intervals.
// hardModeMarkers holds ability ids whose GAINED/UPDATED marks the fight
// as hard mode.
func (f *fightBuilder) handleEffectChanged(relMs int64, ev logparse.EffectChanged, hardModeMarkers map[int64]bool) {
	f.touch(relMs)
	f.seeUnit(ev.TargetUnitID)
	if ev.TargetUnitID > 0 {
		f.recordResourceSample(relMs, ev.TargetUnitID, ev.Target)
	}

	key := uptimeKey{TargetUnitID: ev.TargetUnitID, AbilityID: ev.AbilityID}
	switch ev.ChangeType {
	case "GAINED", "UPDATED":
		u := f.uptimes[key]
		if u == nil {
			u = &uptimeState{EffectUptime: model.EffectUptime{TargetUnitID: ev.TargetUnitID, AbilityID: ev.AbilityID}}
			f.uptimes[key] = u
		}
		if !u.open {
			u.open = true
			u.openSince = relMs
		}
		u.Applications++
		if hardModeMarkers[ev.AbilityID] {
			f.isHardMode = true
		}
	case "FADED":
		if u := f.uptimes[key]; u != nil && u.open {
			u.open = false
			if d := relMs - u.openSince; d > 0 {
				u.TotalMs += d
			}
		}
	}

	f.effectChanges = append(f.effectChanges, model.EffectChangedEvent{
		RelMs:            relMs,
		ChangeType:       ev.ChangeType,
		EffectSlot:       ev.EffectSlot,
		EffectInstanceID: ev.EffectInstanceID,
		AbilityID:        ev.AbilityID,
		TargetUnitID:     ev.TargetUnitID,
		Target:           ev.Target,
	})
}

func (f *fightBuilder) handleBeginCast(relMs int64, ev logparse.BeginCast) {
	f.touch(relMs)
	f.seeUnit(ev.CasterUnitID)
	if ev.CasterUnitID > 0 {
		f.recordResourceSample(relMs, ev.CasterUnitID, ev.Caster)
	}
	f.openCasts[castKey{CastID: ev.CastID, AbilityID: ev.AbilityID}] = &openCast{
		casterUnitID: ev.CasterUnitID,
		startRelMs:   relMs,
	}
}

func (f *fightBuilder) handleEndCast(relMs int64, ev logparse.EndCast) {
	f.touch(relMs)
	key := castKey{CastID: ev.CastID, AbilityID: ev.AbilityID}
	end := relMs
	if open, ok := f.openCasts[key]; ok {
		delete(f.openCasts, key)
		f.castList = append(f.castList, model.CastEntry{
			CastID:       ev.CastID,
			AbilityID:    ev.AbilityID,
			CasterUnitID: open.casterUnitID,
			StartRelMs:   open.startRelMs,
			EndRelMs:     &end,
			Result:       ev.Result,
		})
		if open.casterUnitID > 0 {
			f.casts[open.casterUnitID]++
		}
		return
	}
	// Orphan END_CAST: record with the sentinel caster, count nothing.
	f.castList = append(f.castList, model.CastEntry{
		CastID:     ev.CastID,
		AbilityID:  ev.AbilityID,
		StartRelMs: relMs,
		EndRelMs:   &end,
		Result:     ev.Result,
	})
}

func (f *fightBuilder) handleHealthRegen(relMs int64, ev logparse.HealthRegen) {
	f.touch(relMs)
	f.seeUnit(ev.UnitID)
	f.recordResourceSample(relMs, ev.UnitID, ev.State)
	f.healthRegens = append(f.healthRegens, model.HealthRegenEvent{
		RelMs:  relMs,
		UnitID: ev.UnitID,
		Regen:  ev.Regen,
		State:  ev.State,
		Raw:    ev.Raw,
	})
}

func (f *fightBuilder) countUnhandled(typ string) {
	f.unhandled[typ]++
}

// fightContext is the session-side context a fight closes against.
type fightContext struct {
	sessionID     string
	zoneSegmentID int
	zoneName      string
	difficulty    string
	mapName       string
	mapKey        string
	resolve       unitResolver
}

func isFriendlyUnit(u *model.UnitInfo) bool {
	if u == nil {
		return false
	}
	if u.UnitType == "PLAYER" {
		return true
	}
	d := strings.ToUpper(u.Disposition)
	return strings.Contains(d, "PLAYER_ALLY") || strings.Contains(d, "NPC_ALLY") || strings.Contains(d, "FRIENDLY")
}

func isEnemyUnit(u *model.UnitInfo) bool {
	return u != nil && strings.Contains(strings.ToUpper(u.Disposition), "HOSTILE")
}

// finish closes the fight at endRelMs and materialises the summary, the
// dense series, and the detail record.
func (f *fightBuilder) finish(endRelMs int64, ctx fightContext) (model.FightSummary, []model.FightSeriesPoint, model.FightDetail) {
	f.touch(endRelMs)
	if endRelMs < f.startRelMs {
		endRelMs = f.startRelMs
	}

	// Close still-open effect intervals.
	for _, u := range f.uptimes {
		if u.open {
			u.open = false
			if d := endRelMs - u.openSince; d > 0 {
				u.TotalMs += d
			}
		}
	}

	// Close still-open casts.
	openKeys := make([]castKey, 0, len(f.openCasts))
	for k := range f.openCasts {
		openKeys = append(openKeys, k)
	}
	sort.Slice(openKeys, func(i, j int) bool {
		if openKeys[i].CastID != openKeys[j].CastID {
			return openKeys[i].CastID < openKeys[j].CastID
		}
		return openKeys[i].AbilityID < openKeys[j].AbilityID
	})
	for _, k := range openKeys {
		open := f.openCasts[k]
		f.castList = append(f.castList, model.CastEntry{
			CastID:       k.CastID,
			AbilityID:    k.AbilityID,
			CasterUnitID: open.casterUnitID,
			StartRelMs:   open.startRelMs,
			Result:       model.CastResultOpen,
		})
	}
	f.openCasts = make(map[castKey]*openCast)

	// Partition seen units and derive bosses.
	seen := make([]int64, 0, len(f.unitsSeen))
	for id := range f.unitsSeen {
		seen = append(seen, id)
	}
	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })

	var friendly, enemy, bossIDs []int64
	var bossNames []string
	for _, id := range seen {
		u := ctx.resolve(id)
		if isFriendlyUnit(u) {
			friendly = append(friendly, id)
		}
		if isEnemyUnit(u) {
			enemy = append(enemy, id)
			if u.IsBoss {
				bossIDs = append(bossIDs, id)
				if u.Name != "" {
					bossNames = append(bossNames, u.Name)
				}
			}
		}
	}

	title := strings.Join(bossNames, " + ")
	if title == "" {
		title = fmt.Sprintf("Fight %d", f.ordinal+1)
	}

	summary := model.FightSummary{
		ID:            f.id,
		SessionID:     ctx.sessionID,
		ZoneSegmentID: ctx.zoneSegmentID,
		StartRelMs:    f.startRelMs,
		EndRelMs:      endRelMs,
		Title:         title,
		ZoneName:      ctx.zoneName,
		Difficulty:    ctx.difficulty,
		MapName:       ctx.mapName,
		MapKey:        ctx.mapKey,
		IsHardMode:    f.isHardMode,
		BossUnitIDs:   bossIDs,
		BossNames:     strings.Join(bossNames, " + "),
	}

	series := f.buildSeries(endRelMs)
	detail := f.buildDetail(endRelMs)
	detail.FriendlyUnitIDs = friendly
	detail.EnemyUnitIDs = enemy
	return summary, series, detail
}

func (f *fightBuilder) buildSeries(endRelMs int64) []model.FightSeriesPoint {
	maxSec := f.second(endRelMs)
	for s := range f.damagePerSecond {
		if s > maxSec {
			maxSec = s
		}
	}
	for s := range f.healPerSecond {
		if s > maxSec {
			maxSec = s
		}
	}
	series := make([]model.FightSeriesPoint, 0, maxSec+1)
	for s := 0; s <= maxSec; s++ {
		series = append(series, model.FightSeriesPoint{
			Second: s,
			Damage: f.damagePerSecond[s],
			Heal:   f.healPerSecond[s],
		})
	}
	return series
}

func (f *fightBuilder) buildDetail(endRelMs int64) model.FightDetail {
	damageAggs := make([]model.CombatAgg, 0, len(f.damageAggs))
	for _, a := range f.damageAggs {
		damageAggs = append(damageAggs, a.CombatAgg)
	}
	healAggs := make([]model.CombatAgg, 0, len(f.healAggs))
	for _, a := range f.healAggs {
		healAggs = append(healAggs, a.CombatAgg)
	}
	sortAggs := func(aggs []model.CombatAgg) {
		sort.Slice(aggs, func(i, j int) bool {
			a, b := aggs[i].Key(), aggs[j].Key()
			if a.SourceUnitID != b.SourceUnitID {
				return a.SourceUnitID < b.SourceUnitID
			}
			if a.TargetUnitID != b.TargetUnitID {
				return a.TargetUnitID < b.TargetUnitID
			}
			return a.AbilityID < b.AbilityID
		})
	}
	sortAggs(damageAggs)
	sortAggs(healAggs)

	uptimes := make([]model.EffectUptime, 0, len(f.uptimes))
	for _, u := range f.uptimes {
		uptimes = append(uptimes, u.EffectUptime)
	}
	sort.Slice(uptimes, func(i, j int) bool {
		if uptimes[i].TargetUnitID != uptimes[j].TargetUnitID {
			return uptimes[i].TargetUnitID < uptimes[j].TargetUnitID
		}
		return uptimes[i].AbilityID < uptimes[j].AbilityID
	})

	return model.FightDetail{
		FightID:    f.id,
		StartRelMs: f.startRelMs,
		EndRelMs:   endRelMs,

		DamageDone:     f.damageDone,
		DamageTaken:    f.damageTaken,
		HealingDone:    f.healingDone,
		HealingTaken:   f.healingTaken,
		ResourceGained: f.resourceGained,
		Deaths:         f.deaths,
		Casts:          f.casts,

		DamageDoneByAbility:     f.damageDoneByAbility,
		DamageTakenByAbility:    f.damageTakenByAbility,
		HealingDoneByAbility:    f.healingDoneByAbility,
		HealingTakenByAbility:   f.healingTakenByAbility,
		ResourceGainedByAbility: f.resourceGainedByAbility,

		ResourceSamples: f.resourceSamples,
		ResourceEvents:  f.resourceEvents,

		Uptimes:   uptimes,
		CastList:  f.castList,
		DeathList: f.deathList,

		DamageAggs: damageAggs,
		HealAggs:   healAggs,

		EffectChanges: f.effectChanges,
		HealthRegens:  f.healthRegens,
		Samples:       f.samples,

		Unhandled: f.unhandled,
	}
}
