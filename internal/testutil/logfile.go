// Package testutil provides helpers for building synthetic encounter logs
// in tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// LogBuilder assembles encounter-log text line by line.
type LogBuilder struct {
	lines []string
}

// NewLog starts a log with a BEGIN_LOG record at relMs 0.
func NewLog(unixStartMs int64) *LogBuilder {
	b := &LogBuilder{}
	return b.Linef("0,BEGIN_LOG,%d,15,NA Megaserver,en,eso.live.10.0", unixStartMs)
}

// Line appends one raw line.
func (b *LogBuilder) Line(line string) *LogBuilder {
	b.lines = append(b.lines, line)
	return b
}

// Linef appends one formatted line.
func (b *LogBuilder) Linef(format string, args ...any) *LogBuilder {
	return b.Line(fmt.Sprintf(format, args...))
}

// End appends an END_LOG record at relMs.
func (b *LogBuilder) End(relMs int64) *LogBuilder {
	return b.Linef("%d,END_LOG", relMs)
}

// String returns the assembled log text.
func (b *LogBuilder) String() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// WriteFile writes the log into dir and returns its path.
func (b *LogBuilder) WriteFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write log %s: %v", path, err)
	}
	return path
}

// PlayerUnit returns a UNIT_ADDED line for a grouped friendly player.
func PlayerUnit(relMs, unitID int64, name string) string {
	return fmt.Sprintf("%d,UNIT_ADDED,%d,PLAYER,T,1,0,F,3,7,%s,@%s,123456,50,1800,0,PLAYER_ALLY,T",
		relMs, unitID, name, strings.ToLower(name))
}

// BossUnit returns a UNIT_ADDED line for a hostile boss monster.
func BossUnit(relMs, unitID int64, name string) string {
	return fmt.Sprintf("%d,UNIT_ADDED,%d,MONSTER,F,0,99999,T,0,0,%s,,0,50,0,0,HOSTILE,F",
		relMs, unitID, name)
}

// DamageEvent returns a COMBAT_EVENT line with a full source unit block
// and a targeted hit.
func DamageEvent(relMs int64, result string, damage, abilityID, sourceID, targetID int64) string {
	return fmt.Sprintf("%d,COMBAT_EVENT,%s,PHYSICAL,0,%d,0,1,%d,%d,20000/20000,30000/30000,25000/25000,100/500,0,0.5000,0.6000,1.2000,%d,900000/1000000,0/0,0/0,0/500,0,0.4000,0.5000,2.1000",
		relMs, result, damage, abilityID, sourceID, targetID)
}

// HealEvent returns a COMBAT_EVENT line healing a target whose health
// pool is part of the line.
func HealEvent(relMs int64, heal, abilityID, sourceID, targetID, targetCur, targetMax int64) string {
	return fmt.Sprintf("%d,COMBAT_EVENT,HOT_TICK,GENERIC,0,0,%d,1,%d,%d,20000/20000,30000/30000,25000/25000,100/500,0,0.5000,0.6000,1.2000,%d,%d/%d,0/0,0/0,0/500,0,0.4000,0.5000,2.1000",
		relMs, heal, abilityID, sourceID, targetID, targetCur, targetMax)
}
