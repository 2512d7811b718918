// Package split implements the in-memory catalog of dataset splits and
// the read instructions that slice them.
//
// A split is a named, immutable set of shard files produced by one
// build run. Read instructions express which fraction of which splits
// a reader wants; resolving one against a Dict yields an ordered list
// of (split, percent range) pairs that the shard layer turns into
// concrete files and row masks.
package split

import (
	"errors"
	"fmt"
	"sort"
)

// All is the reserved alias naming the union of every declared split.
// It can never be registered as a concrete split.
const All = "all"

var (
	// ErrReservedName is returned when the "all" alias is used as a
	// concrete split name.
	ErrReservedName = errors.New(`"all" is a reserved split alias`)

	// ErrUnknownSplit is returned when an instruction names a split
	// that is not in the dictionary.
	ErrUnknownSplit = errors.New("unknown split")
)

// Info describes one finalized split.
type Info struct {
	Name        string `json:"name"`
	ShardCount  int    `json:"shard_count"`
	NumExamples int    `json:"num_examples"`
}

// ShardRowCount returns the number of rows stored in shard index
// within this split.
//
// Shards are filled round-robin during generation, so shard j holds
// n/s rows plus one extra when j < n%s. This keeps row counts
// derivable from the Info alone, without listing the directory.
func (i Info) ShardRowCount(shard int) int {
	if shard < 0 || shard >= i.ShardCount {
		return 0
	}
	n := i.NumExamples / i.ShardCount
	if shard < i.NumExamples%i.ShardCount {
		n++
	}
	return n
}

// Dict is the registry of declared splits, keyed by name.
//
// It is built incrementally during generation and persisted in the
// dataset manifest once the build finalizes.
type Dict struct {
	infos map[string]Info
}

// NewDict returns an empty split dictionary.
func NewDict() *Dict {
	return &Dict{infos: make(map[string]Info)}
}

// FromInfos builds a dictionary from persisted split infos.
func FromInfos(infos []Info) (*Dict, error) {
	d := NewDict()
	for _, info := range infos {
		if err := d.Add(info); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add registers a split. The reserved "all" alias is rejected;
// otherwise the entry overwrites any previous split of the same name
// (last write wins within one build, so a subset of splits can be
// regenerated).
func (d *Dict) Add(info Info) error {
	if info.Name == All {
		return fmt.Errorf("%w: cannot register split %q", ErrReservedName, info.Name)
	}
	d.infos[info.Name] = info
	return nil
}

// Get returns the split with the given name.
func (d *Dict) Get(name string) (Info, bool) {
	info, ok := d.infos[name]
	return info, ok
}

// Len returns the number of declared splits.
func (d *Dict) Len() int { return len(d.infos) }

// Names returns all split names in sorted order.
func (d *Dict) Names() []string {
	names := make([]string, 0, len(d.infos))
	for name := range d.infos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos returns all splits sorted by name.
func (d *Dict) Infos() []Info {
	infos := make([]Info, 0, len(d.infos))
	for _, name := range d.Names() {
		infos = append(infos, d.infos[name])
	}
	return infos
}

// TotalNumExamples returns the example count summed over all splits.
func (d *Dict) TotalNumExamples() int {
	total := 0
	for _, info := range d.infos {
		total += info.NumExamples
	}
	return total
}

// Equal reports whether two dictionaries hold the same splits.
func (d *Dict) Equal(o *Dict) bool {
	if d.Len() != o.Len() {
		return false
	}
	for name, info := range d.infos {
		other, ok := o.infos[name]
		if !ok || other != info {
			return false
		}
	}
	return true
}
