package pii

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

var (
	// Global instance for reuse (thread-safe)
	defaultScrubber *Scrubber
	once            sync.Once
)

// DeniedKeys is the fixed set of attribute keys that are never stored or
// published. Matching is case-insensitive.
var DeniedKeys = []string{"password", "phone", "phone_number", "email"}

type Scrubber struct {
	denied map[string]struct{}
}

// NewScrubber builds a scrubber denying DeniedKeys plus any extra keys.
func NewScrubber(extra ...string) *Scrubber {
	denied := make(map[string]struct{}, len(DeniedKeys)+len(extra))
	for _, k := range DeniedKeys {
		denied[normalizeKey(k)] = struct{}{}
	}
	for _, k := range extra {
		if k = normalizeKey(k); k != "" {
			denied[k] = struct{}{}
		}
	}

	return &Scrubber{denied: denied}
}

// Default returns the process-wide scrubber for DeniedKeys.
func Default() *Scrubber {
	once.Do(func() {
		defaultScrubber = NewScrubber()
	})

	return defaultScrubber
}

// Scrub removes denied keys using the default scrubber.
func Scrub(attrs map[string]any) map[string]any {
	return Default().Scrub(attrs)
}

// Scrub returns a new map holding every entry of attrs whose key is not
// denied. attrs is never modified; a nil input yields an empty map.
func (s *Scrubber) Scrub(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if s.IsDenied(k) {
			continue
		}
		out[k] = v
	}

	return out
}

func (s *Scrubber) IsDenied(key string) bool {
	_, ok := s.denied[normalizeKey(key)]
	return ok
}

// Keys lists the denied keys in sorted order.
func (s *Scrubber) Keys() []string {
	return slices.Sorted(maps.Keys(s.denied))
}

func normalizeKey(key string) string {
	return strings.ToLower(key)
}
