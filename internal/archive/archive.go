// Package archive persists timestamped group snapshots and restores group
// capabilities from them. A snapshot is a pair of files sharing one stem:
// a JSON backup record with full grant fidelity (the restore source) and an
// xlsx capability matrix (the human-readable view).
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/permafrost-io/groupctl/internal/export"
	"github.com/permafrost-io/groupctl/internal/iam"
)

const (
	// FilePrefix is the filename stem prefix shared by both snapshot files.
	FilePrefix = "groups_backup_"
	// TimeLayout keeps directory listings in reverse lexical order equal to
	// reverse chronological order.
	TimeLayout = "2006-01-02_15-04-05"
)

// DefaultDir is the archive directory used when none is given.
const DefaultDir = "groups/archive"

// Timestamp renders a time in the archive filename layout.
func Timestamp(t time.Time) string {
	return t.Format(TimeLayout)
}

// GroupRecord is one group's entry in a backup record. Capabilities are the
// raw grant dumps, kept verbatim so restore loses nothing.
type GroupRecord struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Capabilities []json.RawMessage `json:"capabilities"`
}

// Record is a full backup record, keyed by customer name.
type Record map[string][]GroupRecord

// Snapshot writes a backup pair for the given customers into dir, which is
// created if needed. Customers with nil groups (failed fetches) get an empty
// record entry and an error sheet. Returns (xlsxPath, jsonPath).
func Snapshot(dir string, customers []string, groupsByCustomer map[string][]iam.Group, now time.Time) (string, string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("archive: create dir: %w", err)
	}

	ts := Timestamp(now)
	xlsxPath := filepath.Join(dir, FilePrefix+ts+".xlsx")
	jsonPath := filepath.Join(dir, FilePrefix+ts+".json")

	universe := iam.BuildUniverse(groupsByCustomer)
	tables := make(map[string]*iam.Table, len(customers))
	record := make(Record, len(customers))
	for _, customer := range customers {
		groups := groupsByCustomer[customer]
		if groups == nil {
			record[customer] = []GroupRecord{}
			continue
		}
		tables[customer] = iam.BuildMatrix(groups, universe)
		entries := make([]GroupRecord, 0, len(groups))
		for _, g := range groups {
			gr := GroupRecord{ID: g.ID, Name: g.Name, Capabilities: []json.RawMessage{}}
			for _, grant := range g.Capabilities {
				dump, err := grant.Dump()
				if err != nil {
					return "", "", fmt.Errorf("archive: dump grant for group %q (id=%d): %w", g.Name, g.ID, err)
				}
				gr.Capabilities = append(gr.Capabilities, dump)
			}
			entries = append(entries, gr)
		}
		record[customer] = entries
	}

	if err := export.WriteWorkbook(xlsxPath, customers, tables); err != nil {
		return "", "", err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("archive: encode record: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("archive: write record: %w", err)
	}
	return xlsxPath, jsonPath, nil
}

// Entry is one complete snapshot pair found in the archive.
type Entry struct {
	XLSXPath  string
	JSONPath  string
	Timestamp string
}

// List returns the complete snapshot pairs in dir, newest first. Record
// files without a matching xlsx companion are excluded, as are companions
// without a record. A missing directory yields an empty list.
func List(dir string) ([]Entry, error) {
	if dir == "" {
		dir = DefaultDir
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: read dir: %w", err)
	}

	var entries []Entry
	for _, f := range files {
		name := f.Name()
		if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		xlsxPath := filepath.Join(dir, stem+".xlsx")
		if _, err := os.Stat(xlsxPath); err != nil {
			continue
		}
		entries = append(entries, Entry{
			XLSXPath:  xlsxPath,
			JSONPath:  filepath.Join(dir, name),
			Timestamp: strings.TrimPrefix(stem, FilePrefix),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	return entries, nil
}

// Load reads a backup record file.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("archive: decode record %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}
