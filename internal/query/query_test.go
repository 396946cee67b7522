package query

import (
	"math"
	"testing"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

func testDetail() *model.FightDetail {
	return &model.FightDetail{
		FightID:    "f1",
		StartRelMs: 1000,
		EndRelMs:   11000,
		DamageAggs: []model.CombatAgg{
			{SourceUnitID: 1, TargetUnitID: 2, AbilityID: 7, Total: 1000, Hits: 10, Crits: 5, ActiveSeconds: 5},
			{SourceUnitID: 1, TargetUnitID: 3, AbilityID: 7, Total: 500, Hits: 5, Crits: 0, ActiveSeconds: 5},
			{SourceUnitID: 4, TargetUnitID: 2, AbilityID: 8, Total: 3000, Hits: 3, Crits: 3, ActiveSeconds: 3},
		},
		HealAggs: []model.CombatAgg{
			{SourceUnitID: 5, TargetUnitID: 1, AbilityID: 20, Total: 800, Hits: 4, Crits: 1, ActiveSeconds: 4, Overheal: 100},
		},
	}
}

func TestAbilityIDs(t *testing.T) {
	d := testDetail()
	ids := AbilityIDs(d, Filter{})
	if len(ids) != 2 || ids[0] != 7 || ids[1] != 8 {
		t.Fatalf("ids = %v", ids)
	}
	ids = AbilityIDs(d, Filter{SourceUnitID: 1})
	if len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("filtered ids = %v", ids)
	}
	ids = AbilityIDs(d, Filter{Heals: true})
	if len(ids) != 1 || ids[0] != 20 {
		t.Fatalf("heal ids = %v", ids)
	}
}

func TestAggregatesProjection(t *testing.T) {
	d := testDetail()
	rows := Aggregates(d, Filter{})
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	// Sorted by total descending: ability 8 (3000) before ability 7 (1500).
	if rows[0].AbilityID != 8 || rows[1].AbilityID != 7 {
		t.Fatalf("sort order wrong: %+v", rows)
	}

	seven := rows[1]
	if seven.Total != 1500 || seven.Hits != 15 || seven.Crits != 5 || seven.ActiveSeconds != 10 {
		t.Fatalf("sums wrong: %+v", seven)
	}
	if math.Abs(seven.DPS-150) > 1e-9 {
		t.Fatalf("dps = %v", seven.DPS)
	}
	if math.Abs(seven.Average-100) > 1e-9 {
		t.Fatalf("average = %v", seven.Average)
	}
	if math.Abs(seven.CritPct-float64(5)/15) > 1e-9 {
		t.Fatalf("critPct = %v", seven.CritPct)
	}
	if math.Abs(seven.Percent-1500.0/4500.0) > 1e-9 {
		t.Fatalf("percent = %v", seven.Percent)
	}
}

func TestAggregatesDPSFallback(t *testing.T) {
	d := &model.FightDetail{
		DamageAggs: []model.CombatAgg{
			{SourceUnitID: 1, TargetUnitID: 2, AbilityID: 7, Total: 400, Hits: 1},
		},
	}
	rows := Aggregates(d, Filter{})
	if rows[0].DPS != 400 {
		t.Fatalf("dps fallback = %v", rows[0].DPS)
	}
}

func TestSeriesFromSamples(t *testing.T) {
	d := testDetail()
	d.Samples = []model.CombatSample{
		{RelMs: 1000, SourceUnitID: 1, TargetUnitID: 2, AbilityID: 7, Damage: 100},
		{RelMs: 1500, SourceUnitID: 1, TargetUnitID: 2, AbilityID: 7, Damage: 100},
		{RelMs: 5000, SourceUnitID: 4, TargetUnitID: 2, AbilityID: 8, Damage: 300},
	}
	out := Series(d, nil, Filter{})
	if len(out) != 2 {
		t.Fatalf("series = %+v", out)
	}
	if out[0].Second != 0 || out[0].Damage != 200 {
		t.Fatalf("bucket 0 = %+v", out[0])
	}
	if out[1].Second != 4 || out[1].Damage != 300 {
		t.Fatalf("bucket 4 = %+v", out[1])
	}

	filtered := Series(d, nil, Filter{SourceUnitID: 4})
	if len(filtered) != 1 || filtered[0].Damage != 300 {
		t.Fatalf("filtered series = %+v", filtered)
	}
}

func TestSeriesDenseFallback(t *testing.T) {
	d := &model.FightDetail{} // no samples
	dense := []model.FightSeriesPoint{
		{Second: 0, Damage: 10, Heal: 5},
		{Second: 1, Damage: 20, Heal: 0},
	}
	out := Series(d, dense, Filter{})
	if len(out) != 2 || out[0].Damage != 10 {
		t.Fatalf("verbatim fallback broken: %+v", out)
	}

	heals := Series(d, dense, Filter{Heals: true})
	if heals[0].Damage != 0 || heals[0].Heal != 5 {
		t.Fatalf("heal channel projection broken: %+v", heals)
	}

	if got := Series(d, dense, Filter{SourceUnitID: 1}); got != nil {
		t.Fatalf("unit filters without samples must yield nil, got %+v", got)
	}
}

func TestRangeStats(t *testing.T) {
	series := []model.FightSeriesPoint{
		{Second: 0, Damage: 100, Heal: 10},
		{Second: 1, Damage: 200, Heal: 20},
		{Second: 2, Damage: 300, Heal: 30},
	}
	stats := Range(series, 0, 2000)
	if stats == nil {
		t.Fatal("expected stats")
	}
	if stats.Damage != 300 || stats.Heal != 30 {
		t.Fatalf("sums = %+v", stats)
	}
	if math.Abs(stats.DPS-150) > 1e-9 || math.Abs(stats.HPS-15) > 1e-9 {
		t.Fatalf("rates = %+v", stats)
	}
}

func TestRangeNilWhenEmpty(t *testing.T) {
	if Range(nil, 2000, 2000) != nil {
		t.Fatal("to == from must yield nil")
	}
	if Range(nil, 2000, 1000) != nil {
		t.Fatal("to < from must yield nil")
	}
}

func TestRangeAdditive(t *testing.T) {
	series := []model.FightSeriesPoint{
		{Second: 0, Damage: 100},
		{Second: 1, Damage: 200},
		{Second: 2, Damage: 300},
		{Second: 3, Damage: 400},
	}
	whole := Range(series, 0, 4000)
	left := Range(series, 0, 2000)
	right := Range(series, 2000, 4000)
	if whole.Damage != left.Damage+right.Damage {
		t.Fatalf("range not additive: %d != %d + %d", whole.Damage, left.Damage, right.Damage)
	}
}

func TestRangeDurationFloor(t *testing.T) {
	series := []model.FightSeriesPoint{{Second: 0, Damage: 100}}
	stats := Range(series, 0, 1)
	if stats.DurationSec != 0.001 {
		t.Fatalf("duration floor = %v", stats.DurationSec)
	}
}
