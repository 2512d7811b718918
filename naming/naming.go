// Package naming computes the deterministic file and directory names
// of a materialized dataset.
//
// Every name is reproducible from (dataset, config, version, split,
// shard index, shard count) alone, so readers never need a directory
// listing to locate shard files.
package naming

import (
	"fmt"
	"path"

	"github.com/hupe1980/shardset/version"
)

// ShardFilename returns the name of one shard file:
//
//	<dataset>-<split>.<suffix>-<index 05d>-of-<total 05d>
//
// The suffix identifies the shard encoding (see package shard).
func ShardFilename(dataset, split, suffix string, index, total int) string {
	return fmt.Sprintf("%s-%s.%s-%05d-of-%05d", dataset, split, suffix, index, total)
}

// ShardFilenames returns all shard names of one split in ascending
// shard-index order.
func ShardFilenames(dataset, split, suffix string, total int) []string {
	names := make([]string, total)
	for i := range names {
		names[i] = ShardFilename(dataset, split, suffix, i, total)
	}
	return names
}

// ShardFilepaths returns the shard names of one split joined onto the
// dataset's version directory.
func ShardFilepaths(dir, dataset, split, suffix string, total int) []string {
	paths := make([]string, total)
	for i, name := range ShardFilenames(dataset, split, suffix, total) {
		paths[i] = path.Join(dir, name)
	}
	return paths
}

// DatasetDir returns the directory holding every version of a dataset:
// <dataset>[/<config>]. Keys are slash-separated storage keys relative
// to the backend root.
func DatasetDir(dataset, config string) string {
	if config == "" {
		return dataset
	}
	return path.Join(dataset, config)
}

// VersionDir returns the canonical directory of one dataset version:
// <dataset>[/<config>]/<version>.
func VersionDir(dataset, config string, v version.Version) string {
	return path.Join(DatasetDir(dataset, config), v.String())
}
