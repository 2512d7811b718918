// Package manifest implements the dataset metadata document.
//
// One manifest lives in every complete version directory. It records
// what the build pipeline produced (version, splits, sizes, shard
// encoding) and is the only file a reader needs to resolve read
// instructions; shard filenames are derived, never listed.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/hupe1980/shardset/split"
	"github.com/hupe1980/shardset/storage"
	"github.com/hupe1980/shardset/version"
)

const (
	// Filename is the manifest's name inside a version directory.
	Filename = "dataset_info.json"

	// CurrentFormat is the manifest format version.
	CurrentFormat = 1
)

// ErrNotFound is returned when a directory has no manifest.
var ErrNotFound = errors.New("manifest not found")

// Manifest describes one complete, immutable dataset version.
type Manifest struct {
	Format            int          `json:"format"`
	Name              string       `json:"name"`
	Config            string       `json:"config,omitempty"`
	Version           string       `json:"version"`
	Splits            []split.Info `json:"splits"`
	DownloadSizeBytes int64        `json:"download_size_bytes,omitempty"`
	SupervisedKeys    []string     `json:"supervised_keys,omitempty"`
	ShardSuffix       string       `json:"shard_suffix"`
	EncoderName       string       `json:"encoder_name"`
}

// Load reads the manifest of a version directory.
func Load(ctx context.Context, backend storage.Backend, dir string) (*Manifest, error) {
	data, err := storage.ReadAll(ctx, backend, path.Join(dir, Filename))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Format != CurrentFormat {
		return nil, fmt.Errorf("unsupported manifest format: %d (expected %d)", m.Format, CurrentFormat)
	}
	return &m, nil
}

// Save writes the manifest into a version directory. The backend's
// Put is atomic, so the manifest appears all at once.
func (m *Manifest) Save(ctx context.Context, backend storage.Backend, dir string) error {
	m.Format = CurrentFormat

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return backend.Put(ctx, path.Join(dir, Filename), data)
}

// ParsedVersion returns the recorded dataset version.
func (m *Manifest) ParsedVersion() (version.Version, error) {
	return version.Parse(m.Version)
}

// SplitDict rebuilds the split dictionary recorded in the manifest.
func (m *Manifest) SplitDict() (*split.Dict, error) {
	return split.FromInfos(m.Splits)
}

// UpdateSplitsIfDifferent replaces the recorded splits with the newly
// computed dictionary when they differ. The freshly generated data is
// the source of truth going forward. Reports whether anything changed.
func (m *Manifest) UpdateSplitsIfDifferent(d *split.Dict) bool {
	current, err := m.SplitDict()
	if err == nil && current.Equal(d) {
		return false
	}
	m.Splits = d.Infos()
	return true
}
