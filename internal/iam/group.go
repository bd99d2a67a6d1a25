// Package iam holds the group model and the derived capability views:
// the universe of canonical keys across customers, and the per-customer
// presence matrix used for spreadsheet export.
package iam

import (
	"sort"
	"strconv"

	"github.com/permafrost-io/groupctl/internal/capability"
)

// Group is one IAM group as returned by the CDF groups API.
type Group struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	SourceID     string             `json:"sourceId,omitempty"`
	Capabilities []capability.Grant `json:"capabilities,omitempty"`
}

// CapabilityKeys returns the set of canonical keys across all the group's
// grants. Grants with no derivable key contribute nothing.
func (g Group) CapabilityKeys() map[string]bool {
	keys := make(map[string]bool)
	for _, grant := range g.Capabilities {
		for _, k := range grant.Keys() {
			keys[k] = true
		}
	}
	return keys
}

// BuildUniverse collects every distinct canonical key across all customers'
// groups into a sorted slice. Customers with a nil group list (failed
// fetches) are skipped. The result is independent of map iteration order.
func BuildUniverse(groupsByCustomer map[string][]Group) []string {
	seen := make(map[string]bool)
	for _, groups := range groupsByCustomer {
		if groups == nil {
			continue
		}
		for _, g := range groups {
			for _, grant := range g.Capabilities {
				for _, k := range grant.Keys() {
					seen[k] = true
				}
			}
		}
	}
	universe := make([]string, 0, len(seen))
	for k := range seen {
		universe = append(universe, k)
	}
	sort.Strings(universe)
	return universe
}

// IdentityColumns are the leading matrix columns before the capability
// columns.
var IdentityColumns = []string{"Group Name", "Group ID", "Source ID"}

// Table is a rendered capability matrix: a header row plus one row per
// group with "Y"/"N" membership cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// BuildMatrix renders one customer's groups against a capability universe.
// Rows keep the input group order; a group with no capabilities gets "N"
// across the board.
func BuildMatrix(groups []Group, universe []string) *Table {
	columns := make([]string, 0, len(IdentityColumns)+len(universe))
	columns = append(columns, IdentityColumns...)
	columns = append(columns, universe...)

	t := &Table{Columns: columns, Rows: make([][]string, 0, len(groups))}
	for _, g := range groups {
		keys := g.CapabilityKeys()
		row := make([]string, 0, len(columns))
		row = append(row, g.Name, strconv.FormatInt(g.ID, 10), g.SourceID)
		for _, key := range universe {
			if keys[key] {
				row = append(row, "Y")
			} else {
				row = append(row, "N")
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
