package shardset

import (
	"errors"
	"fmt"

	"github.com/hupe1980/shardset/version"
)

var (
	// ErrMissingVersion is returned when a builder declares no
	// version (directly or through its selected config).
	ErrMissingVersion = errors.New("builder has no declared version")

	// ErrDatasetNotFound is returned when opening a dataset whose
	// version directory does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")
)

// ConfigError reports an invalid builder configuration. It is always
// fatal and surfaces at construction, before any I/O.
type ConfigError struct {
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid builder config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid builder config %q: %s", e.Name, e.Reason)
}

// OverwriteError reports an attempt to build into a directory that
// already holds a complete dataset. The fix is to bump the declared
// version, never to overwrite in place.
type OverwriteError struct {
	Name     string
	Dir      string
	Declared version.Version
	OnDisk   version.Version
}

func (e *OverwriteError) Error() string {
	return fmt.Sprintf(
		"trying to overwrite existing dataset %s at %s: version %s already on disk, code declares %s; if the dataset has changed, update the version number",
		e.Name, e.Dir, e.OnDisk, e.Declared)
}
