package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Manifest describes the outputs of one run.
type Manifest struct {
	RunID     string         `json:"run_id"`
	Table     TableInfo      `json:"table"`
	Artifacts []ArtifactInfo `json:"artifacts"`
	Failed    []FailedInfo   `json:"failed,omitempty"`
	Producer  ProducerInfo   `json:"producer"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableInfo describes the merged wide table.
type TableInfo struct {
	File     string `json:"file"`
	Checksum string `json:"checksum"`
	RowCount int64  `json:"row_count"`
	ByteSize int64  `json:"byte_size"`
}

// ArtifactInfo describes one intermediate artifact and the input it came from.
type ArtifactInfo struct {
	Source   string `json:"source"`
	File     string `json:"file"`
	Checksum string `json:"checksum"`
	RowCount int64  `json:"row_count"`
	ByteSize int64  `json:"byte_size"`
	Kept     bool   `json:"kept"`
}

// FailedInfo records an input that produced no artifact.
type FailedInfo struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// ProducerInfo describes the software that produced the run.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as JSON bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// ReadManifest loads the manifest stored at ManifestKey.
func ReadManifest(ctx context.Context, store ArtifactStore) (*Manifest, error) {
	data, err := store.ReadAll(ctx, ManifestKey)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
