package archive

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/permafrost-io/groupctl/internal/capability"
	"github.com/permafrost-io/groupctl/internal/iam"
)

func TestTimestampFormat(t *testing.T) {
	ts := Timestamp(time.Date(2026, 2, 18, 14, 30, 5, 0, time.UTC))
	if ts != "2026-02-18_14-30-05" {
		t.Errorf("Timestamp() = %q", ts)
	}
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}$`).MatchString(ts) {
		t.Errorf("Timestamp() %q does not match layout", ts)
	}
}

func TestList_EmptyOrMissingDir(t *testing.T) {
	dir := t.TempDir()
	if entries, err := List(dir); err != nil || len(entries) != 0 {
		t.Errorf("List(empty) = %v, %v", entries, err)
	}
	if entries, err := List(filepath.Join(dir, "nope")); err != nil || len(entries) != 0 {
		t.Errorf("List(missing) = %v, %v", entries, err)
	}
}

func TestList_PairsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	touch := func(name string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	touch("groups_backup_2026-01-01_12-00-00.json")
	touch("groups_backup_2026-01-01_12-00-00.xlsx")
	touch("groups_backup_2026-01-02_10-00-00.json")
	touch("groups_backup_2026-01-02_10-00-00.xlsx")
	touch("groups_backup_2026-01-03_09-00-00.json") // no xlsx companion
	touch("groups_backup_2025-12-31_08-00-00.xlsx") // no json companion
	touch("unrelated.json")

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List(): %v", err)
	}
	var stamps []string
	for _, e := range entries {
		stamps = append(stamps, e.Timestamp)
	}
	want := []string{"2026-01-02_10-00-00", "2026-01-01_12-00-00"}
	if diff := cmp.Diff(want, stamps); diff != "" {
		t.Errorf("List() timestamps mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g1 := iam.Group{ID: 101, Name: "G1", Capabilities: []capability.Grant{
		capability.New("timeSeriesAcl", []string{"READ"}, capability.AllScope()),
		capability.New("assetsAcl", []string{"WRITE"}, capability.Scope{Kind: capability.ScopeDataSet, IDs: []string{"5"}}),
	}}
	groups := map[string][]iam.Group{
		"customer-a": {g1},
		"customer-b": nil, // failed fetch
	}

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	xlsxPath, jsonPath, err := Snapshot(dir, []string{"customer-a", "customer-b"}, groups, now)
	if err != nil {
		t.Fatalf("Snapshot(): %v", err)
	}
	if filepath.Base(jsonPath) != "groups_backup_2026-03-01_08-00-00.json" {
		t.Errorf("json path = %s", jsonPath)
	}
	// both artifacts share the stem
	if filepath.Base(xlsxPath) != "groups_backup_2026-03-01_08-00-00.xlsx" {
		t.Errorf("xlsx path = %s", xlsxPath)
	}

	rec, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if len(rec["customer-b"]) != 0 {
		t.Errorf("failed customer has %d group records, want 0", len(rec["customer-b"]))
	}
	got := rec["customer-a"]
	if len(got) != 1 || got[0].ID != 101 || got[0].Name != "G1" {
		t.Fatalf("customer-a record = %+v", got)
	}

	// lossless fidelity: reloaded grants canonicalize like the originals
	var keys []string
	for _, raw := range got[0].Capabilities {
		g, err := capability.Load(raw)
		if err != nil {
			t.Fatalf("Load grant: %v", err)
		}
		keys = append(keys, g.Keys()...)
	}
	want := []string{"time_series:read", "assets:write:data_set_ids=5"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("round-trip keys mismatch (-want +got):\n%s", diff)
	}

	entries, err := List(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("List() after snapshot = %v, %v", entries, err)
	}
}

func TestRestore_DryRunAppliesNothing(t *testing.T) {
	rec := Record{
		"customer-a": {
			{ID: 1, Name: "G1", Capabilities: []json.RawMessage{
				json.RawMessage(`{"assetsAcl":{"actions":["READ"],"scope":{"all":{}}}}`),
			}},
		},
	}
	calls := 0
	apply := func(ctx context.Context, customer string, groupID int64, grants []capability.Grant) error {
		calls++
		return nil
	}

	outcomes := Restore(context.Background(), rec, apply, true)
	if calls != 0 {
		t.Errorf("apply called %d times in dry run", calls)
	}
	if len(outcomes) != 1 || outcomes[0].Status != StatusPlanned || outcomes[0].Capabilities != 1 {
		t.Errorf("outcomes = %+v", outcomes)
	}
}

func TestRestore_SkipsMalformedGroupAndContinues(t *testing.T) {
	rec := Record{
		"customer-a": {
			{ID: 1, Name: "bad", Capabilities: []json.RawMessage{
				json.RawMessage(`{"projectScope":{"projects":["p"]}}`), // no acl entry
			}},
			{ID: 2, Name: "good", Capabilities: []json.RawMessage{
				json.RawMessage(`{"eventsAcl":{"actions":["READ"],"scope":{"all":{}}}}`),
			}},
		},
	}
	var applied []int64
	apply := func(ctx context.Context, customer string, groupID int64, grants []capability.Grant) error {
		applied = append(applied, groupID)
		return nil
	}

	outcomes := Restore(context.Background(), rec, apply, false)
	if diff := cmp.Diff([]int64{2}, applied); diff != "" {
		t.Errorf("applied groups mismatch (-want +got):\n%s", diff)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Status != StatusSkipped || outcomes[0].Err == nil {
		t.Errorf("bad group outcome = %+v", outcomes[0])
	}
	if outcomes[1].Status != StatusRestored {
		t.Errorf("good group outcome = %+v", outcomes[1])
	}
}

func TestRestore_ApplyFailureDoesNotAbortBatch(t *testing.T) {
	rec := Record{
		"customer-a": {
			{ID: 1, Name: "G1", Capabilities: []json.RawMessage{
				json.RawMessage(`{"assetsAcl":{"actions":["READ"],"scope":{"all":{}}}}`),
			}},
			{ID: 2, Name: "G2", Capabilities: []json.RawMessage{
				json.RawMessage(`{"eventsAcl":{"actions":["READ"],"scope":{"all":{}}}}`),
			}},
		},
	}
	apply := func(ctx context.Context, customer string, groupID int64, grants []capability.Grant) error {
		if groupID == 1 {
			return errors.New("api rejected update")
		}
		return nil
	}

	outcomes := Restore(context.Background(), rec, apply, false)
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Status != StatusFailed || outcomes[0].Err == nil {
		t.Errorf("failed outcome = %+v", outcomes[0])
	}
	if outcomes[1].Status != StatusRestored {
		t.Errorf("second outcome = %+v", outcomes[1])
	}
}
