package iam

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/permafrost-io/groupctl/internal/capability"
)

func grant(t *testing.T, acl string, actions ...string) capability.Grant {
	t.Helper()
	return capability.New(acl, actions, capability.AllScope())
}

func TestBuildUniverse(t *testing.T) {
	g1 := Group{ID: 1, Name: "readers", Capabilities: []capability.Grant{
		grant(t, "timeSeriesAcl", "READ"),
		grant(t, "assetsAcl", "READ", "WRITE"),
	}}
	g2 := Group{ID: 2, Name: "writers", Capabilities: []capability.Grant{
		grant(t, "assetsAcl", "WRITE"),
	}}

	got := BuildUniverse(map[string][]Group{
		"customer-a": {g1},
		"customer-b": {g2},
		"customer-c": nil, // failed fetch, skipped
	})
	want := []string{"assets:read", "assets:write", "time_series:read"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildUniverse() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildUniverse_OrderIndependent(t *testing.T) {
	g := Group{ID: 1, Name: "g", Capabilities: []capability.Grant{
		grant(t, "eventsAcl", "WRITE", "READ"),
	}}
	a := BuildUniverse(map[string][]Group{"x": {g}, "y": nil})
	b := BuildUniverse(map[string][]Group{"y": nil, "x": {g}})
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("universe depends on iteration order (-a +b):\n%s", diff)
	}
}

func TestBuildUniverse_Empty(t *testing.T) {
	if got := BuildUniverse(map[string][]Group{"a": nil}); len(got) != 0 {
		t.Errorf("BuildUniverse() = %v, want empty", got)
	}
}

func TestBuildMatrix(t *testing.T) {
	g1 := Group{ID: 101, Name: "G1", SourceID: "src-1", Capabilities: []capability.Grant{
		grant(t, "timeSeriesAcl", "READ"),
	}}
	g2 := Group{ID: 102, Name: "G2"}

	universe := BuildUniverse(map[string][]Group{"c": {g1, g2}})
	if diff := cmp.Diff([]string{"time_series:read"}, universe); diff != "" {
		t.Fatalf("universe mismatch (-want +got):\n%s", diff)
	}

	table := BuildMatrix([]Group{g1, g2}, universe)

	wantCols := []string{"Group Name", "Group ID", "Source ID", "time_series:read"}
	if diff := cmp.Diff(wantCols, table.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	wantRows := [][]string{
		{"G1", "101", "src-1", "Y"},
		{"G2", "102", "", "N"},
	}
	if diff := cmp.Diff(wantRows, table.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMatrix_PreservesGroupOrder(t *testing.T) {
	groups := []Group{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
	table := BuildMatrix(groups, nil)
	var names []string
	for _, row := range table.Rows {
		names = append(names, row[0])
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, names); diff != "" {
		t.Errorf("row order mismatch (-want +got):\n%s", diff)
	}
}

func TestCapabilityKeys_KeylessGrantContributesNothing(t *testing.T) {
	g := Group{ID: 1, Name: "g", Capabilities: []capability.Grant{
		grant(t, "assetsAcl"), // no actions
		grant(t, "filesAcl", "READ"),
	}}
	keys := g.CapabilityKeys()
	if len(keys) != 1 || !keys["files:read"] {
		t.Errorf("CapabilityKeys() = %v, want only files:read", keys)
	}
}
