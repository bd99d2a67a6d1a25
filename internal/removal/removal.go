// Package removal decides which capability grants to drop from a group,
// either by exact canonical key or in bulk by legacy resource name.
package removal

import (
	"strings"

	"github.com/permafrost-io/groupctl/internal/capability"
	"github.com/permafrost-io/groupctl/internal/iam"
)

// LegacyResources is the default catalog of core-resource names whose
// capabilities are eligible for bulk removal. Callers can supply their own
// list instead.
var LegacyResources = []string{
	"assets",
	"timeseries",
	"events",
	"files",
	"sequences",
	"raw",
	"data_sets",
	"spaces",
	"containers",
	"datapoints",
	"three_d",
	"three_d_models",
	"documents",
}

// Spec is a compiled removal specification. Entries without a ':' are bare
// resource tokens and match any key with that resource prefix; entries with
// a ':' only match exactly. Prefix matching is only consulted when the spec
// was built with legacy resources.
type Spec struct {
	entries map[string]bool
	legacy  bool
}

// NewSpec compiles explicit keys and legacy resource names into a Spec.
// Explicit keys are trimmed and stored verbatim; empty ones are dropped.
// Legacy names are trimmed and lowercased; a non-empty list enables
// resource-prefix matching.
func NewSpec(explicitKeys, legacyNames []string) Spec {
	s := Spec{entries: make(map[string]bool)}
	for _, k := range explicitKeys {
		if k = strings.TrimSpace(k); k != "" {
			s.entries[k] = true
		}
	}
	for _, r := range legacyNames {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			s.entries[r] = true
			s.legacy = true
		}
	}
	return s
}

// Empty reports whether the spec matches nothing.
func (s Spec) Empty() bool {
	return len(s.entries) == 0
}

// ShouldRemove reports whether a canonical key matches the spec. The key is
// lowercased first; an exact entry match wins, otherwise bare resource
// entries match "resource:" prefixes when legacy matching is enabled.
func (s Spec) ShouldRemove(key string) bool {
	lower := strings.ToLower(key)
	if s.entries[lower] {
		return true
	}
	if !s.legacy {
		return false
	}
	for entry := range s.entries {
		if !strings.Contains(entry, ":") && strings.HasPrefix(lower, entry+":") {
			return true
		}
	}
	return false
}

// FilterGrants returns the group's grants minus the ones the spec removes,
// in the original order. A grant with no derivable keys cannot be identified
// and is always kept. A grant is dropped whole as soon as any of its keys
// matches; removal operates per grant, not per action.
func FilterGrants(g iam.Group, s Spec) []capability.Grant {
	if len(g.Capabilities) == 0 {
		return nil
	}
	keep := make([]capability.Grant, 0, len(g.Capabilities))
	for _, grant := range g.Capabilities {
		keys := grant.Keys()
		if keys == nil {
			keep = append(keep, grant)
			continue
		}
		remove := false
		for _, k := range keys {
			if s.ShouldRemove(k) {
				remove = true
				break
			}
		}
		if !remove {
			keep = append(keep, grant)
		}
	}
	return keep
}
