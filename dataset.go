package shardset

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/shardset/manifest"
	"github.com/hupe1980/shardset/naming"
	"github.com/hupe1980/shardset/shard"
	"github.com/hupe1980/shardset/split"
	"github.com/hupe1980/shardset/storage"
	"github.com/hupe1980/shardset/version"
)

// Dataset is a read handle on one complete dataset version. It is
// built entirely from the manifest; shard files are located by
// derivation, never by listing the directory.
type Dataset struct {
	backend     storage.Backend
	name        string
	dir         string
	manifest    *manifest.Manifest
	dict        *split.Dict
	compression shard.Compression
	encoder     Encoder
}

// Open loads a dataset version for reading.
func Open(ctx context.Context, name string, v version.Version, optFns ...Option) (*Dataset, error) {
	opts := applyOptions(optFns)
	if opts.backend == nil {
		opts.backend = storage.NewLocal(DefaultDataDir())
	}

	dir := naming.VersionDir(name, opts.configName, v)

	m, err := manifest.Load(ctx, opts.backend, dir)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, dir)
		}
		return nil, err
	}

	dict, err := m.SplitDict()
	if err != nil {
		return nil, err
	}

	compression, ok := shard.BySuffix(m.ShardSuffix)
	if !ok {
		return nil, fmt.Errorf("unknown shard suffix %q in %s", m.ShardSuffix, dir)
	}

	encoder := opts.encoder
	if enc, ok := EncoderByName(m.EncoderName); ok {
		encoder = enc
	}

	return &Dataset{
		backend:     opts.backend,
		name:        name,
		dir:         dir,
		manifest:    m,
		dict:        dict,
		compression: compression,
		encoder:     encoder,
	}, nil
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Dir returns the version directory, relative to the backend root.
func (d *Dataset) Dir() string { return d.dir }

// Manifest returns the loaded manifest.
func (d *Dataset) Manifest() *manifest.Manifest { return d.manifest }

// Splits returns the persisted split dictionary.
func (d *Dataset) Splits() *split.Dict { return d.dict }

// FileInstruction tells a reader to consume the masked rows of one
// shard file. Masks have exactly one entry per row of the shard.
type FileInstruction struct {
	Filepath string
	Mask     []bool
}

// ResolveRead maps an abstract split instruction onto concrete shard
// files and row masks. Results follow the instruction's declaration
// order; within a split, shards come in ascending index order. Shards
// whose mask selects no rows are dropped.
func (d *Dataset) ResolveRead(in split.Instruction) ([]FileInstruction, error) {
	sliced, err := in.Resolve(d.dict)
	if err != nil {
		return nil, err
	}

	var out []FileInstruction
	for _, s := range sliced {
		paths := naming.ShardFilepaths(d.dir, d.name, s.Info.Name, d.manifest.ShardSuffix, s.Info.ShardCount)
		for j, p := range paths {
			mask := s.Range.Mask(s.Info.ShardRowCount(j))
			if !maskAny(mask) {
				continue
			}
			out = append(out, FileInstruction{Filepath: p, Mask: mask})
		}
	}
	return out, nil
}

// Read returns an iterator over the decoded examples selected by the
// instruction.
func (d *Dataset) Read(in split.Instruction) (*Iterator, error) {
	instructions, err := d.ResolveRead(in)
	if err != nil {
		return nil, err
	}
	return &Iterator{dataset: d, instructions: instructions}, nil
}

// Iterator streams the examples of a resolved read, one shard at a
// time. It is not safe for concurrent use.
type Iterator struct {
	dataset      *Dataset
	instructions []FileInstruction
	next         int
	cur          *shard.Reader
}

// Next returns the next selected example. It returns io.EOF once
// every instruction is exhausted.
func (it *Iterator) Next(ctx context.Context) (Example, error) {
	for {
		if it.cur == nil {
			if it.next >= len(it.instructions) {
				return nil, io.EOF
			}
			fi := it.instructions[it.next]
			it.next++

			r, err := shard.NewReader(ctx, it.dataset.backend, fi.Filepath, it.dataset.compression)
			if err != nil {
				return nil, err
			}
			it.cur = r.WithMask(fi.Mask)
		}

		payload, err := it.cur.Next()
		if errors.Is(err, io.EOF) {
			if err := it.cur.Close(); err != nil {
				it.cur = nil
				return nil, err
			}
			it.cur = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		return it.dataset.encoder.Decode(payload)
	}
}

// Close releases the iterator's open shard, if any.
func (it *Iterator) Close() error {
	if it.cur == nil {
		return nil
	}
	cur := it.cur
	it.cur = nil
	return cur.Close()
}

func maskAny(mask []bool) bool {
	for _, ok := range mask {
		if ok {
			return true
		}
	}
	return false
}
