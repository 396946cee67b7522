package service

import (
	"fmt"
	"sync"

	"github.com/maypok86/otter"
)

// trialKeyNames maps the trial init keys observed in logs to display
// names. Unknown keys fall back to a numbered label.
var trialKeyNames = map[int64]string{
	1:  "Hel Ra Citadel",
	2:  "Aetherian Archive",
	3:  "Sanctum Ophidia",
	5:  "Maw of Lorkhaj",
	6:  "The Halls of Fabrication",
	7:  "Asylum Sanctorium",
	8:  "Cloudrest",
	9:  "Sunspire",
	10: "Kyne's Aegis",
	12: "Rockgrove",
	14: "Dreadsail Reef",
	15: "Sanity's Edge",
	16: "Lucent Citadel",
	17: "Ossein Cage",
}

// TrialNameCache resolves trial keys to display names through a bounded
// cache. Custom overrides invalidate under a single-writer gate so
// concurrent readers never observe a half-applied rename.
type TrialNameCache struct {
	cache otter.Cache[int64, string]

	writeMu   sync.Mutex
	overrides map[int64]string
}

// NewTrialNameCache builds a cache bounded to maxEntries keys.
func NewTrialNameCache(maxEntries int) *TrialNameCache {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	cache, err := otter.MustBuilder[int64, string](maxEntries).
		Cost(func(_ int64, _ string) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("service: failed to create trial name cache: " + err.Error())
	}
	return &TrialNameCache{
		cache:     cache,
		overrides: make(map[int64]string),
	}
}

// Name returns the display name for a trial key.
func (c *TrialNameCache) Name(key int64) string {
	if name, ok := c.cache.Get(key); ok {
		return name
	}
	name := c.resolve(key)
	c.cache.Set(key, name)
	return name
}

func (c *TrialNameCache) resolve(key int64) string {
	c.writeMu.Lock()
	override, ok := c.overrides[key]
	c.writeMu.Unlock()
	if ok {
		return override
	}
	if name, ok := trialKeyNames[key]; ok {
		return name
	}
	return fmt.Sprintf("Trial %d", key)
}

// SetOverride installs (or clears, with an empty name) a custom display
// name for a trial key and invalidates the cached entry.
func (c *TrialNameCache) SetOverride(key int64, name string) {
	c.writeMu.Lock()
	if name == "" {
		delete(c.overrides, key)
	} else {
		c.overrides[key] = name
	}
	c.writeMu.Unlock()
	c.cache.Delete(key)
}
