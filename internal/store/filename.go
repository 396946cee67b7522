package store

import (
	"regexp"
	"strings"
	"time"
)

// StoreSuffix is the filename suffix shared by every per-log store.
const StoreSuffix = ".log.db"

// inflightSuffix marks a store that is still being written.
const inflightSuffix = ".inflight"

var (
	invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	legacyGUIDName   = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// SanitizeBaseName strips characters the host filesystem rejects and
// collapses the result to something usable as a file name stem.
func SanitizeBaseName(base string) string {
	base = strings.TrimSuffix(base, ".log")
	base = invalidNameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, " .")
	if base == "" {
		base = "encounter"
	}
	return base
}

// FinalStoreName derives the friendly store file name from a log's base
// name and the earliest session's local start time:
// `<base>_YYYY-MM-DD_HH-MM-SS.log.db`.
func FinalStoreName(base string, start time.Time) string {
	return SanitizeBaseName(base) + "_" + start.Local().Format("2006-01-02_15-04-05") + StoreSuffix
}

// IsLegacyStoreName reports whether a store file still carries the old
// GUID naming scheme (`<uuid>.log.db`).
func IsLegacyStoreName(name string) bool {
	stem, ok := strings.CutSuffix(name, StoreSuffix)
	if !ok {
		return false
	}
	return legacyGUIDName.MatchString(stem)
}
