package ingest

import (
	"strings"
	"testing"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
	"github.com/BloodStainChild/ESOLogViewer/internal/testutil"
)

func singleFight(t *testing.T, lines ...string) FightResult {
	t.Helper()
	all := append([]string{"0,BEGIN_LOG,1700000000000,,NA,EN,10.0"}, lines...)
	results := parseLog(t, strings.Join(all, "\n"))
	if len(results) != 1 {
		t.Fatalf("expected 1 session, got %d", len(results))
	}
	if len(results[0].Fights) != 1 {
		t.Fatalf("expected 1 fight, got %d", len(results[0].Fights))
	}
	return results[0].Fights[0]
}

func findAgg(aggs []model.CombatAgg, src, tgt, ability int64) *model.CombatAgg {
	for i := range aggs {
		if aggs[i].SourceUnitID == src && aggs[i].TargetUnitID == tgt && aggs[i].AbilityID == ability {
			return &aggs[i]
		}
	}
	return nil
}

func TestSimpleFightAggregation(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		testutil.DamageEvent(1000, "DAMAGE", 100, 7, 1, 2),
		testutil.DamageEvent(1500, "DAMAGE", 100, 7, 1, 2),
		"3000,END_COMBAT",
	)

	series := fr.Series
	if len(series) != 4 { // dense over [0, 3]
		t.Fatalf("expected 4 series points, got %d", len(series))
	}
	if series[1].Damage != 200 {
		t.Fatalf("series[1].damage = %d, want 200", series[1].Damage)
	}
	if series[0].Damage != 0 || series[2].Damage != 0 {
		t.Fatalf("series should be zero outside second 1: %+v", series)
	}

	agg := findAgg(fr.Detail.DamageAggs, 1, 2, 7)
	if agg == nil {
		t.Fatalf("missing aggregate; have %+v", fr.Detail.DamageAggs)
	}
	if agg.Total != 200 || agg.Hits != 2 || agg.Crits != 0 || agg.ActiveSeconds != 1 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}
	if fr.Detail.DamageDone[1] != 200 || fr.Detail.DamageTaken[2] != 200 {
		t.Fatalf("unit totals wrong: done=%v taken=%v", fr.Detail.DamageDone, fr.Detail.DamageTaken)
	}
	if fr.Detail.DamageDoneByAbility[1][7] != 200 {
		t.Fatalf("nested totals wrong: %v", fr.Detail.DamageDoneByAbility)
	}
}

func TestCritCounting(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		testutil.DamageEvent(1000, "CRITICAL_DAMAGE", 300, 7, 1, 2),
		testutil.DamageEvent(2100, "DAMAGE", 100, 7, 1, 2),
		"3000,END_COMBAT",
	)
	agg := findAgg(fr.Detail.DamageAggs, 1, 2, 7)
	if agg.Crits != 1 || agg.Hits != 2 || agg.ActiveSeconds != 2 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}
	if agg.Crits > agg.Hits || agg.ActiveSeconds > agg.Hits {
		t.Fatalf("invariant violated: %+v", agg)
	}
}

func TestOverheal(t *testing.T) {
	// Target is missing 1000 health; a 1500 heal overheals by 500.
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		testutil.HealEvent(1000, 1500, 20, 1, 2, 19000, 20000),
		"2000,END_COMBAT",
	)
	agg := findAgg(fr.Detail.HealAggs, 1, 2, 20)
	if agg == nil {
		t.Fatalf("missing heal aggregate: %+v", fr.Detail.HealAggs)
	}
	if agg.Total != 1500 || agg.Overheal != 500 {
		t.Fatalf("unexpected heal aggregate: %+v", agg)
	}
	if fr.Detail.HealingDone[1] != 1500 || fr.Detail.HealingTaken[2] != 1500 {
		t.Fatalf("heal totals wrong")
	}
	if len(fr.Detail.Samples) != 1 || fr.Detail.Samples[0].Overheal != 500 {
		t.Fatalf("sample overheal wrong: %+v", fr.Detail.Samples)
	}
}

func TestResourceEvents(t *testing.T) {
	energize := "1000,COMBAT_EVENT,POWER_ENERGIZE,GENERIC,4,800,0,1,9,3," +
		"20000/20000,30000/30000,25000/25000,100/500,0,0.5000,0.6000,1.2000,*"
	drain := "2000,COMBAT_EVENT,POWER_DRAIN,GENERIC,0,500,0,1,9,3," +
		"20000/20000,30000/30000,25000/25000,100/500,0,0.5000,0.6000,1.2000,*"
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		energize,
		drain,
		"3000,END_COMBAT",
	)
	events := fr.Detail.ResourceEvents
	if len(events) != 2 {
		t.Fatalf("expected 2 resource events, got %d", len(events))
	}
	if events[0].Amount != 800 || events[0].Kind != model.ResourceStamina || events[0].UnitID != 3 {
		t.Fatalf("unexpected energize: %+v", events[0])
	}
	if events[1].Amount != -500 || events[1].Kind != model.ResourceMagicka {
		t.Fatalf("unexpected drain: %+v", events[1])
	}
	if fr.Detail.ResourceGained[3] != 800 {
		t.Fatalf("only positive amounts count as gained: %v", fr.Detail.ResourceGained)
	}
}

func TestDeaths(t *testing.T) {
	fr := singleFight(t,
		testutil.PlayerUnit(10, 1, "Hero"),
		testutil.BossUnit(10, 2, "Boss"),
		"0,BEGIN_COMBAT",
		testutil.DamageEvent(1000, "KILLING_BLOW", 5000, 7, 2, 1),
		"2000,COMBAT_EVENT,DIED,GENERIC,0,0,0,0,0,2,"+
			"0/1000000,0/0,0/0,0/500,0,0.4000,0.5000,2.1000,*",
		"3000,END_COMBAT",
	)
	if fr.Detail.Deaths[1] != 1 || fr.Detail.Deaths[2] != 1 {
		t.Fatalf("deaths = %v", fr.Detail.Deaths)
	}
	if len(fr.Detail.DeathList) != 2 {
		t.Fatalf("death list = %+v", fr.Detail.DeathList)
	}
	kb := fr.Detail.DeathList[0]
	if kb.VictimUnitID != 1 || kb.KillerUnitID != 2 {
		t.Fatalf("killing blow attribution wrong: %+v", kb)
	}
}

func TestEffectUptime(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		"1000,EFFECT_CHANGED,GAINED,1,55,9,3,18000/20000,100/100,100/100,0/500,0,0.1000,0.2000,0.3000",
		"4000,EFFECT_CHANGED,FADED,1,55,9,3,18000/20000,100/100,100/100,0/500,0,0.1000,0.2000,0.3000",
		"5000,END_COMBAT",
	)
	if len(fr.Detail.Uptimes) != 1 {
		t.Fatalf("uptimes = %+v", fr.Detail.Uptimes)
	}
	u := fr.Detail.Uptimes[0]
	if u.TargetUnitID != 3 || u.AbilityID != 9 {
		t.Fatalf("unexpected key: %+v", u)
	}
	if u.TotalMs != 3000 || u.Applications != 1 {
		t.Fatalf("uptime = %+v, want 3000ms / 1 application", u)
	}
}

func TestEffectUptimeClosedAtFightEnd(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		"1000,EFFECT_CHANGED,GAINED,1,55,9,3,18000/20000,100/100,100/100,0/500,0,0.1000,0.2000,0.3000",
		"2500,END_COMBAT",
	)
	u := fr.Detail.Uptimes[0]
	if u.TotalMs != 1500 {
		t.Fatalf("open interval should close at fight end: %+v", u)
	}
}

func TestEffectUpdatedCountsApplication(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		"1000,EFFECT_CHANGED,GAINED,1,55,9,3,18000/20000,100/100,100/100,0/500,0,0.1000,0.2000,0.3000",
		"2000,EFFECT_CHANGED,UPDATED,1,55,9,3,18000/20000,100/100,100/100,0/500,0,0.1000,0.2000,0.3000",
		"3000,EFFECT_CHANGED,FADED,1,55,9,3,18000/20000,100/100,100/100,0/500,0,0.1000,0.2000,0.3000",
		"4000,END_COMBAT",
	)
	u := fr.Detail.Uptimes[0]
	if u.Applications != 2 || u.TotalMs != 2000 {
		t.Fatalf("uptime = %+v", u)
	}
}

func TestHardModePropagation(t *testing.T) {
	fr := singleFight(t,
		"5,ABILITY_INFO,777,Vault Hard Mode,icon.dds,F,F",
		"0,BEGIN_COMBAT",
		"1000,EFFECT_CHANGED,GAINED,1,55,777,3,18000/20000,100/100,100/100,0/500,0,0.1000,0.2000,0.3000",
		"2000,END_COMBAT",
	)
	if !fr.Summary.IsHardMode {
		t.Fatal("expected hard-mode fight")
	}
}

func TestCastLifecycle(t *testing.T) {
	fr := singleFight(t,
		testutil.PlayerUnit(10, 1, "Hero"),
		"0,BEGIN_COMBAT",
		"1000,BEGIN_CAST,0,F,42,7,1,20000/20000,30000/30000,25000/25000,100/500,0,0.5000,0.6000,1.2000",
		"1800,END_CAST,COMPLETED,42,7",
		"3000,END_COMBAT",
	)
	if len(fr.Detail.CastList) != 1 {
		t.Fatalf("cast list = %+v", fr.Detail.CastList)
	}
	c := fr.Detail.CastList[0]
	if c.CasterUnitID != 1 || c.Result != "COMPLETED" || c.StartRelMs != 1000 {
		t.Fatalf("unexpected cast: %+v", c)
	}
	if c.EndRelMs == nil || *c.EndRelMs != 1800 {
		t.Fatalf("cast end wrong: %+v", c)
	}
	if fr.Detail.Casts[1] != 1 {
		t.Fatalf("caster counter = %v", fr.Detail.Casts)
	}
}

func TestOrphanEndCast(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		"1800,END_CAST,INTERRUPTED,42,7",
		"3000,END_COMBAT",
	)
	if len(fr.Detail.CastList) != 1 {
		t.Fatalf("cast list = %+v", fr.Detail.CastList)
	}
	c := fr.Detail.CastList[0]
	if c.CasterUnitID != 0 {
		t.Fatalf("orphan cast must use the sentinel caster: %+v", c)
	}
	if c.Result != "INTERRUPTED" {
		t.Fatalf("result must be preserved: %+v", c)
	}
	if len(fr.Detail.Casts) != 0 {
		t.Fatalf("nobody's cast counter may move: %v", fr.Detail.Casts)
	}
}

func TestOpenCastClosedAtFightEnd(t *testing.T) {
	fr := singleFight(t,
		testutil.PlayerUnit(10, 1, "Hero"),
		"0,BEGIN_COMBAT",
		"1000,BEGIN_CAST,0,F,42,7,1,20000/20000,30000/30000,25000/25000,100/500,0,0.5000,0.6000,1.2000",
		"3000,END_COMBAT",
	)
	c := fr.Detail.CastList[0]
	if c.Result != model.CastResultOpen || c.EndRelMs != nil {
		t.Fatalf("expected forced-open cast: %+v", c)
	}
}

func TestPartitionAndBossTitle(t *testing.T) {
	fr := singleFight(t,
		testutil.PlayerUnit(10, 1, "Hero"),
		testutil.BossUnit(10, 2, "Lord Falgravn"),
		"0,BEGIN_COMBAT",
		testutil.DamageEvent(1000, "DAMAGE", 100, 7, 1, 2),
		"3000,END_COMBAT",
	)
	if len(fr.Detail.FriendlyUnitIDs) != 1 || fr.Detail.FriendlyUnitIDs[0] != 1 {
		t.Fatalf("friendly = %v", fr.Detail.FriendlyUnitIDs)
	}
	if len(fr.Detail.EnemyUnitIDs) != 1 || fr.Detail.EnemyUnitIDs[0] != 2 {
		t.Fatalf("enemy = %v", fr.Detail.EnemyUnitIDs)
	}
	if fr.Summary.Title != "Lord Falgravn" {
		t.Fatalf("title = %q", fr.Summary.Title)
	}
	if len(fr.Summary.BossUnitIDs) != 1 || fr.Summary.BossUnitIDs[0] != 2 {
		t.Fatalf("boss ids = %v", fr.Summary.BossUnitIDs)
	}
}

func TestFallbackFightTitle(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		testutil.DamageEvent(1000, "DAMAGE", 100, 7, 1, 2),
		"2000,END_COMBAT",
	)
	if fr.Summary.Title != "Fight 1" {
		t.Fatalf("title = %q", fr.Summary.Title)
	}
}

func TestNestedBeginCombatIgnored(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		testutil.DamageEvent(1000, "DAMAGE", 100, 7, 1, 2),
		"1500,BEGIN_COMBAT",
		testutil.DamageEvent(2000, "DAMAGE", 100, 7, 1, 2),
		"3000,END_COMBAT",
	)
	if fr.Summary.StartRelMs != 0 {
		t.Fatalf("nested BEGIN_COMBAT must not restart the fight: %+v", fr.Summary)
	}
	agg := findAgg(fr.Detail.DamageAggs, 1, 2, 7)
	if agg.Total != 200 {
		t.Fatalf("both events belong to the one fight: %+v", agg)
	}
}

func TestResourceSamplesReplacedPerSecond(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		testutil.DamageEvent(1000, "DAMAGE", 100, 7, 1, 2),
		testutil.DamageEvent(1500, "DAMAGE", 100, 7, 1, 2),
		"3000,END_COMBAT",
	)
	perSec := fr.Detail.ResourceSamples[1]
	if len(perSec) != 1 {
		t.Fatalf("same-second samples must replace: %v", perSec)
	}
	if _, ok := perSec[1]; !ok {
		t.Fatalf("sample should land in second 1: %v", perSec)
	}
}

func TestSeriesInvariants(t *testing.T) {
	fr := singleFight(t,
		"0,BEGIN_COMBAT",
		testutil.DamageEvent(500, "DAMAGE", 100, 7, 1, 2),
		testutil.HealEvent(2500, 300, 20, 1, 2, 19000, 20000),
		"4200,END_COMBAT",
	)
	if fr.Summary.StartRelMs > fr.Summary.EndRelMs {
		t.Fatalf("start > end: %+v", fr.Summary)
	}
	for i, p := range fr.Series {
		if p.Second != i {
			t.Fatalf("series not dense at %d: %+v", i, p)
		}
		if p.Damage < 0 || p.Heal < 0 {
			t.Fatalf("negative point: %+v", p)
		}
	}
	if last := fr.Series[len(fr.Series)-1].Second; last != 4 {
		t.Fatalf("series should span to second 4, got %d", last)
	}
}
