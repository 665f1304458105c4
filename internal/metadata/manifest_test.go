package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestManifestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	m := NewManifest("FXStory", "1.0.0", "euro-daily-hist_1999_2020.csv")
	if _, err := uuid.Parse(m.RunID); err != nil {
		t.Fatalf("run id is not a uuid: %v", err)
	}

	m.AddFile(DataFile{
		Path:        filepath.Join(dir, "dollar_real_storytelling.png"),
		Kind:        "figure",
		FileSize:    100,
		RecordCount: 5000,
		Partition:   map[string]any{"figure": "dollar"},
		Timestamp:   time.Unix(10, 0).UTC(),
	})
	m.AddFile(DataFile{
		Path:      filepath.Join(dir, "exchange_rates.parquet"),
		Kind:      "parquet",
		FileSize:  42,
		Timestamp: time.Unix(5, 0).UTC(),
	})
	m.SetCount("rows_loaded", 5500)
	if !m.SetRemote(filepath.Join(dir, "exchange_rates.parquet"), "s3://b/k") {
		t.Fatalf("SetRemote did not find the entry")
	}
	if m.SetRemote("nope", "s3://b/x") {
		t.Fatalf("SetRemote matched an unknown path")
	}

	path := filepath.Join(dir, "out", "manifest.json")
	if err := m.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}

	got, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if got.RunID != m.RunID || got.Counts["rows_loaded"] != 5500 {
		t.Fatalf("unexpected manifest: %+v", got)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Entries))
	}
	// Entries are ordered by write time.
	if got.Entries[0].DataFile.Kind != "parquet" || got.Entries[0].Remote != "s3://b/k" {
		t.Fatalf("unexpected first entry: %+v", got.Entries[0])
	}
	if got.Entries[1].DataFile.Partition["figure"] != "dollar" {
		t.Fatalf("partition lost: %+v", got.Entries[1].DataFile.Partition)
	}
}

func TestAddFileStampsTime(t *testing.T) {
	m := NewManifest("FXStory", "", "")
	m.AddFile(DataFile{Path: "a"})
	if m.Entries[0].DataFile.Timestamp.IsZero() {
		t.Fatalf("timestamp not set")
	}
	if got := m.Paths(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected paths: %v", got)
	}
}
