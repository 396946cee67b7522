package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/BloodStainChild/ESOLogViewer/internal/buildinfo"
	"github.com/BloodStainChild/ESOLogViewer/internal/config"
	"github.com/BloodStainChild/ESOLogViewer/internal/index"
	"github.com/BloodStainChild/ESOLogViewer/internal/service"
)

func usage() {
	fmt.Fprintf(os.Stderr, `esolog %s — encounter log importer and query tool

Usage:
  esolog import <file.log> [...]   import encounter logs
  esolog sessions                  list imported sessions
  esolog stores                    list per-log store files
  esolog rename-legacy             rename GUID-named stores
`, buildinfo.Version)
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	idx, err := index.New(index.Config{
		Dir:                cfg.LogDBDir,
		DetailCacheEntries: cfg.DetailCacheEntries,
		RescanSchedule:     cfg.IndexRescanSchedule,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if err := idx.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer idx.Stop()

	svc := service.New(service.NewImporter(cfg.LogDBDir), idx)

	switch args[0] {
	case "import":
		if len(args) < 2 {
			usage()
		}
		runImport(ctx, svc, cfg, args[1:])
	case "sessions":
		runSessions(svc)
	case "stores":
		runStores(svc)
	case "rename-legacy":
		n, err := svc.RenameLegacyStores()
		if err != nil {
			log.Fatalf("rename-legacy: %v", err)
		}
		fmt.Printf("renamed %d store(s)\n", n)
	default:
		usage()
	}
}

func runImport(ctx context.Context, svc *service.Service, cfg *config.Config, paths []string) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ImportTimeout)
	defer cancel()

	results := svc.ImportLogs(ctx, paths, cfg.ImportConcurrency)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", r.Path, r.Err)
			continue
		}
		for _, s := range r.Sessions {
			fmt.Printf("OK   %s: session %s (%d fights)\n", r.Path, s.Title, s.FightCount)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runSessions(svc *service.Service) {
	sessions := svc.ListSessions()
	if len(sessions) == 0 {
		fmt.Println("no sessions imported")
		return
	}
	for _, s := range sessions {
		name := s.Title
		if s.DisplayName != "" {
			name = s.DisplayName
		}
		trial := ""
		if s.TrialInitKey != 0 {
			trial = " [" + svc.TrialName(s.TrialInitKey) + "]"
		}
		fmt.Printf("%s  %-24s %s/%s fights=%d%s\n", s.ID, name, s.Server, s.Patch, s.FightCount, trial)
	}
}

func runStores(svc *service.Service) {
	stores, err := svc.ListLogStores()
	if err != nil {
		log.Fatalf("stores: %v", err)
	}
	for _, p := range stores {
		fmt.Println(p)
	}
}
