package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"poscraper/pkg/extract"
	"poscraper/pkg/scraper"
)

func sampleDataset() *scraper.Dataset {
	return &scraper.Dataset{
		Type:    "po_receive",
		Columns: []string{"ID", "Requisition Number", "Item", "Qty"},
		Records: []extract.Record{
			{"ID": "100", "Requisition Number": "R-1", "Item": "Bolt, M8", "Qty": "4"},
			{"ID": "100", "Requisition Number": "R-1", "Item": "Nut \"hex\""},
			{"ID": "102", "Requisition Number": "R-3", "Item": "Washer", "Qty": "10"},
		},
	}
}

func fixedClock(m *Manager) {
	m.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }
}

func TestNewManagerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	manager, err := NewManager(dir, FormatCSV, true)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if manager.GetOutputDir() != dir {
		t.Errorf("Output dir mismatch: got %s, want %s", manager.GetOutputDir(), dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Error("Expected output directory to be created")
	}
}

func TestNewManagerRejectsUnknownFormat(t *testing.T) {
	if _, err := NewManager(t.TempDir(), "xlsx", true); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestFileName(t *testing.T) {
	manager, _ := NewManager(t.TempDir(), FormatCSV, true)
	fixedClock(manager)
	if got := manager.FileName("po_receive"); got != "po_receive_20240305_140709.csv" {
		t.Errorf("Unexpected file name: %s", got)
	}

	manager.format = FormatJSON
	if got := manager.FileName("tl_receive"); got != "tl_receive_20240305_140709.jsonl" {
		t.Errorf("Unexpected file name: %s", got)
	}

	manager.timestamped = false
	if got := manager.FileName("tl_receive"); got != "tl_receive.jsonl" {
		t.Errorf("Unexpected file name: %s", got)
	}
}

func TestSaveDatasetCSV(t *testing.T) {
	dir := t.TempDir()
	manager, _ := NewManager(dir, FormatCSV, true)
	fixedClock(manager)

	path, err := manager.SaveDataset(sampleDataset())
	if err != nil {
		t.Fatalf("Failed to save dataset: %v", err)
	}
	if path != filepath.Join(dir, "po_receive_20240305_140709.csv") {
		t.Errorf("Unexpected path: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Written file is not valid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected header plus 3 rows, got %d", len(rows))
	}
	if rows[0][1] != "Requisition Number" {
		t.Errorf("Header mismatch: %v", rows[0])
	}
	if rows[1][2] != "Bolt, M8" || rows[2][2] != `Nut "hex"` {
		t.Errorf("Quoted fields not preserved: %v %v", rows[1], rows[2])
	}
	if rows[2][3] != "" {
		t.Errorf("Missing column should be empty, got %q", rows[2][3])
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file should not remain")
	}
	if len(manager.Written()) != 1 {
		t.Errorf("Expected 1 written file, got %d", len(manager.Written()))
	}
}

func TestSaveDatasetJSONLines(t *testing.T) {
	manager, _ := NewManager(t.TempDir(), FormatJSON, false)

	path, err := manager.SaveDataset(sampleDataset())
	if err != nil {
		t.Fatalf("Failed to save dataset: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var obj map[string]string
		if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
			t.Fatalf("Invalid JSON line: %v", err)
		}
		lines = append(lines, obj)
	}

	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if qty, ok := lines[1]["Qty"]; !ok || qty != "" {
		t.Errorf("Every line should carry every column, got %v", lines[1])
	}
	if lines[2]["ID"] != "102" {
		t.Errorf("Record order not preserved: %v", lines[2])
	}
}

func TestSaveEmptyDataset(t *testing.T) {
	manager, _ := NewManager(t.TempDir(), FormatCSV, false)

	path, err := manager.SaveDataset(&scraper.Dataset{Type: "tl_receive", Columns: []string{"ID", "Item"}})
	if err != nil {
		t.Fatalf("Failed to save empty dataset: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "ID,Item\n" {
		t.Errorf("Expected header only, got %q", content)
	}
}

func TestSaveNilDataset(t *testing.T) {
	manager, _ := NewManager(t.TempDir(), FormatCSV, false)
	if _, err := manager.SaveDataset(nil); err == nil {
		t.Error("Expected error for nil dataset")
	}
}
