package service

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/BloodStainChild/ESOLogViewer/internal/index"
	"github.com/BloodStainChild/ESOLogViewer/internal/query"
	"github.com/BloodStainChild/ESOLogViewer/internal/testutil"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	storeDir := t.TempDir()
	ix, err := index.New(index.Config{Dir: storeDir})
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Refresh(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ix.Stop)
	return New(NewImporter(storeDir), ix), storeDir
}

func buildRaidLog(t *testing.T, dir string) string {
	t.Helper()
	b := testutil.NewLog(1700000000000).
		Line("50,ZONE_CHANGED,1000,Kyne's Aegis,VETERAN").
		Line(testutil.PlayerUnit(60, 1, "Hero")).
		Line(testutil.BossUnit(70, 2, "Lord Falgravn")).
		Line("100,BEGIN_COMBAT").
		Line(testutil.DamageEvent(1100, "DAMAGE", 100, 7, 1, 2)).
		Line(testutil.DamageEvent(1600, "CRITICAL_DAMAGE", 300, 7, 1, 2)).
		Line(testutil.HealEvent(2200, 500, 20, 1, 1, 19900, 20000)).
		Line("4100,END_COMBAT").
		End(9000)
	return b.WriteFile(t, dir, "raid.log")
}

func TestImportAndQueryEndToEnd(t *testing.T) {
	svc, _ := newTestService(t)
	path := buildRaidLog(t, t.TempDir())

	sessions, err := svc.ImportLog(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].FightCount != 1 {
		t.Fatalf("sessions = %+v", sessions)
	}

	listed := svc.ListSessions()
	if len(listed) != 1 || listed[0].ID != sessions[0].ID {
		t.Fatalf("listed = %+v", listed)
	}

	fights, err := svc.GetSessionFights(sessions[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fights) != 1 || fights[0].Title != "Lord Falgravn" {
		t.Fatalf("fights = %+v", fights)
	}
	fightID := fights[0].ID

	aggs, err := svc.GetAggregates(fightID, query.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(aggs) != 1 || aggs[0].AbilityID != 7 || aggs[0].Total != 400 || aggs[0].Crits != 1 {
		t.Fatalf("aggs = %+v", aggs)
	}

	ids, err := svc.GetAbilityIDs(fightID, query.Filter{Heals: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 20 {
		t.Fatalf("heal ability ids = %v", ids)
	}

	series, err := svc.GetSeries(fightID, query.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, p := range series {
		total += p.Damage
	}
	if total != 400 {
		t.Fatalf("series damage total = %d", total)
	}

	stats, err := svc.GetRange(fightID, 0, 4000, query.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if stats == nil || stats.Damage != 400 || stats.Heal != 500 {
		t.Fatalf("range = %+v", stats)
	}

	if stats := mustRange(t, svc, fightID, 2000, 2000); stats != nil {
		t.Fatalf("empty range must be nil, got %+v", stats)
	}
}

func mustRange(t *testing.T, svc *Service, fightID string, from, to int64) *query.RangeStats {
	t.Helper()
	stats, err := svc.GetRange(fightID, from, to, query.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	return stats
}

func TestSetSessionDisplayName(t *testing.T) {
	svc, _ := newTestService(t)
	path := buildRaidLog(t, t.TempDir())
	sessions, err := svc.ImportLog(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SetSessionDisplayName(sessions[0].ID, "Prog Night"); err != nil {
		t.Fatal(err)
	}
	sum, err := svc.GetSession(sessions[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.DisplayName != "Prog Night" {
		t.Fatalf("display name = %q", sum.DisplayName)
	}
}

func TestImportLogsIsolatesFailures(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	good := buildRaidLog(t, dir)
	bad := dir + "/missing.log"

	results := svc.ImportLogs(context.Background(), []string{good, bad}, 2)
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	byPath := map[string]FileImport{}
	for _, r := range results {
		byPath[r.Path] = r
	}
	if byPath[good].Err != nil {
		t.Fatalf("good import failed: %v", byPath[good].Err)
	}
	if byPath[bad].Err == nil {
		t.Fatal("missing file must fail")
	}
	if len(svc.ListSessions()) != 1 {
		t.Fatalf("one session expected, got %+v", svc.ListSessions())
	}
}

func TestImportEmptyLogFails(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	path := dir + "/empty.log"
	if err := os.WriteFile(path, []byte("no records here\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ImportLog(context.Background(), path); err == nil ||
		!strings.Contains(err.Error(), "no sessions") {
		t.Fatalf("expected no-sessions error, got %v", err)
	}
}

func TestDeleteLogStore(t *testing.T) {
	svc, _ := newTestService(t)
	path := buildRaidLog(t, t.TempDir())
	if _, err := svc.ImportLog(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	stores, err := svc.ListLogStores()
	if err != nil {
		t.Fatal(err)
	}
	if len(stores) != 1 {
		t.Fatalf("stores = %v", stores)
	}
	if err := svc.DeleteLogStore(stores[0]); err != nil {
		t.Fatal(err)
	}
	if len(svc.ListSessions()) != 0 {
		t.Fatal("sessions should be gone after store delete")
	}
}

func TestTrialNames(t *testing.T) {
	c := NewTrialNameCache(0)
	if got := c.Name(10); got != "Kyne's Aegis" {
		t.Fatalf("name = %q", got)
	}
	if got := c.Name(9999); got != "Trial 9999" {
		t.Fatalf("fallback = %q", got)
	}

	c.SetOverride(10, "KA Prog")
	if got := c.Name(10); got != "KA Prog" {
		t.Fatalf("override = %q", got)
	}
	c.SetOverride(10, "")
	if got := c.Name(10); got != "Kyne's Aegis" {
		t.Fatalf("cleared override = %q", got)
	}
}
