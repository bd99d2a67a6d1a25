package export

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/permafrost-io/groupctl/internal/iam"
)

func TestSheetName(t *testing.T) {
	long := strings.Repeat("x", 40)
	if got := SheetName(long); len(got) != 31 {
		t.Errorf("SheetName() length = %d, want 31", len(got))
	}
	if got := SheetName("short"); got != "short" {
		t.Errorf("SheetName(short) = %q", got)
	}
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.xlsx")
	table := &iam.Table{
		Columns: []string{"Group Name", "Group ID", "Source ID", "assets:read"},
		Rows: [][]string{
			{"G1", "101", "src-1", "Y"},
			{"G2", "102", "src-2", "N"},
		},
	}
	customers := []string{"customer-a", "customer-b"}
	tables := map[string]*iam.Table{
		"customer-a": table,
		"customer-b": nil, // failed fetch
	}

	if err := WriteWorkbook(path, customers, tables); err != nil {
		t.Fatalf("WriteWorkbook(): %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile(): %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if diff := cmp.Diff(customers, sheets); diff != "" {
		t.Errorf("sheet list mismatch (-want +got):\n%s", diff)
	}

	rows, err := f.GetRows("customer-a")
	if err != nil {
		t.Fatalf("GetRows(customer-a): %v", err)
	}
	want := [][]string{
		{"Group Name", "Group ID", "Source ID", "assets:read"},
		{"G1", "101", "src-1", "Y"},
		{"G2", "102", "src-2", "N"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("customer-a rows mismatch (-want +got):\n%s", diff)
	}

	rows, err = f.GetRows("customer-b")
	if err != nil {
		t.Fatalf("GetRows(customer-b): %v", err)
	}
	wantErrSheet := [][]string{{ErrorHeader}, {ErrorMessage}}
	if diff := cmp.Diff(wantErrSheet, rows); diff != "" {
		t.Errorf("error sheet mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteWorkbook_TruncatesSheetNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.xlsx")
	long := strings.Repeat("customer-", 5) // 45 chars
	if err := WriteWorkbook(path, []string{long}, map[string]*iam.Table{}); err != nil {
		t.Fatalf("WriteWorkbook(): %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile(): %v", err)
	}
	defer f.Close()
	if got := f.GetSheetName(0); got != long[:31] {
		t.Errorf("sheet name = %q, want %q", got, long[:31])
	}
}

func TestWriteWorkbook_NoCustomers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.xlsx")
	if err := WriteWorkbook(path, nil, nil); err == nil {
		t.Error("WriteWorkbook() with no customers = nil error, want error")
	}
}
