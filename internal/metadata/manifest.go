// Package metadata records what a run produced.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DataFile describes a single artifact written by the pipeline.
type DataFile struct {
	Path        string         `json:"path"`
	Kind        string         `json:"kind"`
	FileSize    int64          `json:"file_size_in_bytes"`
	RecordCount int64          `json:"record_count"`
	Partition   map[string]any `json:"partition,omitempty"`
	Timestamp   time.Time      `json:"written_at"`
}

// ManifestEntry wraps a data file with its upload location, if any.
type ManifestEntry struct {
	Status   int      `json:"status"`
	DataFile DataFile `json:"data_file"`
	Remote   string   `json:"remote,omitempty"`
}

// Manifest is the JSON document describing one run.
type Manifest struct {
	FormatVersion int               `json:"format-version"`
	RunID         string            `json:"run-id"`
	Application   string            `json:"application"`
	Version       string            `json:"version"`
	Input         string            `json:"input"`
	StartedAt     time.Time         `json:"started-at"`
	Counts        map[string]int    `json:"counts"`
	Entries       []ManifestEntry   `json:"entries"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// NewManifest starts a manifest for a fresh run with a random run ID.
func NewManifest(application, version, input string) *Manifest {
	return &Manifest{
		FormatVersion: 1,
		RunID:         uuid.NewString(),
		Application:   application,
		Version:       version,
		Input:         input,
		StartedAt:     time.Now().UTC(),
		Counts:        map[string]int{},
	}
}

// AddFile records a newly written artifact.
func (m *Manifest) AddFile(df DataFile) {
	if df.Timestamp.IsZero() {
		df.Timestamp = time.Now().UTC()
	}
	m.Entries = append(m.Entries, ManifestEntry{Status: 1, DataFile: df})
}

// SetRemote records where the artifact at path was uploaded to.
func (m *Manifest) SetRemote(path, remote string) bool {
	for i := range m.Entries {
		if m.Entries[i].DataFile.Path == path {
			m.Entries[i].Remote = remote
			return true
		}
	}
	return false
}

// SetCount records a named row count.
func (m *Manifest) SetCount(name string, n int) {
	m.Counts[name] = n
}

// Paths returns the recorded artifact paths in insertion order.
func (m *Manifest) Paths() []string {
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.DataFile.Path
	}
	return out
}

// Write stores the manifest as indented JSON at path.
func (m *Manifest) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	sort.SliceStable(m.Entries, func(i, j int) bool {
		return m.Entries[i].DataFile.Timestamp.Before(m.Entries[j].DataFile.Timestamp)
	})
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadManifest loads a manifest written by Write.
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
