// Package query projects fight details and series into filtered
// aggregates, per-second timelines, and time-range statistics. All
// functions are pure; the store is read elsewhere.
package query

import (
	"sort"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

// Filter narrows a projection. Zero values mean "any".
type Filter struct {
	SourceUnitID int64
	TargetUnitID int64
	AbilityID    int64
	Heals        bool
}

func (f Filter) matchesAgg(a model.CombatAgg) bool {
	if f.SourceUnitID != 0 && a.SourceUnitID != f.SourceUnitID {
		return false
	}
	if f.TargetUnitID != 0 && a.TargetUnitID != f.TargetUnitID {
		return false
	}
	if f.AbilityID != 0 && a.AbilityID != f.AbilityID {
		return false
	}
	return true
}

func (f Filter) matchesSample(s model.CombatSample) bool {
	if f.SourceUnitID != 0 && s.SourceUnitID != f.SourceUnitID {
		return false
	}
	if f.TargetUnitID != 0 && s.TargetUnitID != f.TargetUnitID {
		return false
	}
	if f.AbilityID != 0 && s.AbilityID != f.AbilityID {
		return false
	}
	return true
}

// HasUnitFilters reports whether any narrowing filter beyond the
// damage/heal channel switch is set.
func (f Filter) HasUnitFilters() bool {
	return f.SourceUnitID != 0 || f.TargetUnitID != 0 || f.AbilityID != 0
}

func selectAggs(d *model.FightDetail, f Filter) []model.CombatAgg {
	if f.Heals {
		return d.HealAggs
	}
	return d.DamageAggs
}

// AbilityIDs returns the distinct ability ids contributing to the
// selected aggregate list under the given filters, ascending.
func AbilityIDs(d *model.FightDetail, f Filter) []int64 {
	seen := make(map[int64]struct{})
	for _, a := range selectAggs(d, f) {
		if f.matchesAgg(a) {
			seen[a.AbilityID] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AbilityAgg is one per-ability projection row.
type AbilityAgg struct {
	AbilityID     int64   `json:"ability_id"`
	Total         int64   `json:"total"`
	Hits          int64   `json:"hits"`
	Crits         int64   `json:"crits"`
	ActiveSeconds int64   `json:"active_seconds"`
	Overheal      int64   `json:"overheal"`
	DPS           float64 `json:"dps"`
	Average       float64 `json:"average"`
	CritPct       float64 `json:"crit_pct"`
	Percent       float64 `json:"percent"`
}

// Aggregates groups the filtered aggregates by ability and derives the
// rate columns. Rows are sorted by total, descending.
func Aggregates(d *model.FightDetail, f Filter) []AbilityAgg {
	byAbility := make(map[int64]*AbilityAgg)
	var grandTotal int64
	for _, a := range selectAggs(d, f) {
		if !f.matchesAgg(a) {
			continue
		}
		row := byAbility[a.AbilityID]
		if row == nil {
			row = &AbilityAgg{AbilityID: a.AbilityID}
			byAbility[a.AbilityID] = row
		}
		row.Total += a.Total
		row.Hits += a.Hits
		row.Crits += a.Crits
		row.ActiveSeconds += a.ActiveSeconds
		row.Overheal += a.Overheal
		grandTotal += a.Total
	}

	out := make([]AbilityAgg, 0, len(byAbility))
	for _, row := range byAbility {
		if row.ActiveSeconds > 0 {
			row.DPS = float64(row.Total) / float64(row.ActiveSeconds)
		} else {
			row.DPS = float64(row.Total)
		}
		if row.Hits > 0 {
			row.Average = float64(row.Total) / float64(row.Hits)
			row.CritPct = float64(row.Crits) / float64(row.Hits)
		}
		if grandTotal > 0 {
			row.Percent = float64(row.Total) / float64(grandTotal)
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].AbilityID < out[j].AbilityID
	})
	return out
}

// Series projects the per-second timeline. With combat samples present
// the samples are bucketed by integer second under the filters and only
// non-zero buckets are returned, ascending. Without samples the dense
// series is returned verbatim when no unit filters are given (the channel
// not selected by Heals is zeroed); unit filters without samples cannot
// be honoured and yield nil.
func Series(d *model.FightDetail, dense []model.FightSeriesPoint, f Filter) []model.FightSeriesPoint {
	if len(d.Samples) == 0 {
		if f.HasUnitFilters() {
			return nil
		}
		if !f.Heals {
			return dense
		}
		out := make([]model.FightSeriesPoint, len(dense))
		for i, p := range dense {
			out[i] = model.FightSeriesPoint{Second: p.Second, Heal: p.Heal}
		}
		return out
	}

	buckets := make(map[int]*model.FightSeriesPoint)
	for _, s := range d.Samples {
		if !f.matchesSample(s) {
			continue
		}
		rel := s.RelMs - d.StartRelMs
		if rel < 0 {
			rel = 0
		}
		sec := int(rel / 1000)
		p := buckets[sec]
		if p == nil {
			p = &model.FightSeriesPoint{Second: sec}
			buckets[sec] = p
		}
		p.Damage += s.Damage
		p.Heal += s.Heal
	}

	out := make([]model.FightSeriesPoint, 0, len(buckets))
	for _, p := range buckets {
		if f.Heals {
			p.Damage = 0
		}
		if p.Damage == 0 && p.Heal == 0 {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Second < out[j].Second })
	return out
}

// RangeStats summarises one [from, to) millisecond window of a series.
type RangeStats struct {
	Damage      int64   `json:"damage"`
	Heal        int64   `json:"heal"`
	DurationSec float64 `json:"duration_sec"`
	DPS         float64 `json:"dps"`
	HPS         float64 `json:"hps"`
}

// Range sums the series seconds in [floor(from/1000), ceil(to/1000)).
// Returns nil when to <= from. The duration is floored at one millisecond
// to keep the rates finite.
func Range(series []model.FightSeriesPoint, fromMs, toMs int64) *RangeStats {
	if toMs <= fromMs {
		return nil
	}
	fromSec := int(fromMs / 1000)
	toSec := int((toMs + 999) / 1000)

	var stats RangeStats
	for _, p := range series {
		if p.Second >= fromSec && p.Second < toSec {
			stats.Damage += p.Damage
			stats.Heal += p.Heal
		}
	}
	stats.DurationSec = float64(toMs-fromMs) / 1000
	if stats.DurationSec < 0.001 {
		stats.DurationSec = 0.001
	}
	stats.DPS = float64(stats.Damage) / stats.DurationSec
	stats.HPS = float64(stats.Heal) / stats.DurationSec
	return &stats
}
