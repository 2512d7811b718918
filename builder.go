package shardset

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hupe1980/shardset/manifest"
	"github.com/hupe1980/shardset/naming"
	"github.com/hupe1980/shardset/shard"
	"github.com/hupe1980/shardset/split"
	"github.com/hupe1980/shardset/storage"
	"github.com/hupe1980/shardset/version"
)

// DefaultDataDir returns the default local dataset root,
// <home>/shardset. The working directory is used when the home
// directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "shardset"
	}
	return filepath.Join(home, "shardset")
}

// Builder materializes example generators into an immutable, versioned
// dataset directory.
//
// A Builder is cheap to construct; all I/O happens in Build. The
// produced directory is either complete (manifest plus every shard
// file) or absent, never partial: generation happens in a temp
// directory that is promoted with a single Rename.
type Builder struct {
	name    string
	config  string
	version version.Version
	opts    options
}

// NewBuilder creates a builder for one dataset version. Configuration
// problems surface here, before any I/O.
func NewBuilder(name string, v version.Version, optFns ...Option) (*Builder, error) {
	if name == "" {
		return nil, &ConfigError{Reason: "dataset must have a name"}
	}

	opts := applyOptions(optFns)
	if opts.backend == nil {
		opts.backend = storage.NewLocal(DefaultDataDir())
	}

	configName := ""
	if opts.configName != "" || len(opts.configs) > 0 {
		if err := validateConfigs(opts.configs); err != nil {
			return nil, err
		}
		found := false
		for _, cfg := range opts.configs {
			if cfg.Name == opts.configName {
				v = cfg.Version
				found = true
				break
			}
		}
		if !found {
			return nil, &ConfigError{Name: opts.configName, Reason: "config not declared"}
		}
		configName = opts.configName
	}
	if v.IsZero() {
		return nil, ErrMissingVersion
	}

	return &Builder{
		name:    name,
		config:  configName,
		version: v,
		opts:    opts,
	}, nil
}

// Name returns the dataset name.
func (b *Builder) Name() string { return b.name }

// Version returns the effective declared version (the selected
// config's version when configs are in play).
func (b *Builder) Version() version.Version { return b.version }

// DataDir returns the version directory this builder targets,
// relative to the backend root.
func (b *Builder) DataDir() string {
	return naming.VersionDir(b.name, b.config, b.version)
}

// Build runs the generation units and commits the dataset directory.
//
// When the directory already holds a complete dataset of the declared
// version, the persisted split dictionary is returned without any
// writes (ReuseIfExists) or an OverwriteError is raised (FailIfExists).
// A sibling directory holding a different version only logs a warning.
func (b *Builder) Build(ctx context.Context, units []SplitGenerator) (*split.Dict, error) {
	if err := b.validateUnits(units); err != nil {
		return nil, err
	}

	finalDir := b.DataDir()

	exists, err := b.opts.backend.Exists(ctx, finalDir)
	if err != nil {
		return nil, err
	}
	if exists {
		return b.handleExisting(ctx, finalDir)
	}

	b.warnSiblingVersions(ctx)

	if b.opts.lease != nil {
		if err := b.opts.lease.Acquire(ctx, finalDir); err != nil {
			return nil, err
		}
		defer func() {
			if err := b.opts.lease.Release(ctx, finalDir); err != nil {
				b.opts.logger.WarnContext(ctx, "failed to release build lease",
					"data_dir", finalDir, "error", err)
			}
		}()
	}

	tmpDir := finalDir + ".incomplete." + randomSuffix()

	dict, err := b.generate(ctx, tmpDir, units)
	if err != nil {
		b.opts.logger.LogBuildFailed(ctx, b.name, err)
		b.removePrefix(ctx, tmpDir)
		return nil, err
	}

	if err := b.finalize(ctx, tmpDir, dict); err != nil {
		b.opts.logger.LogBuildFailed(ctx, b.name, err)
		b.removePrefix(ctx, tmpDir)
		return nil, err
	}

	if err := b.opts.backend.Rename(ctx, tmpDir, finalDir); err != nil {
		b.opts.logger.LogBuildFailed(ctx, b.name, err)
		b.removePrefix(ctx, tmpDir)
		return nil, err
	}

	b.opts.logger.LogBuildCommitted(ctx, b.name, finalDir, dict.TotalNumExamples())

	return dict, nil
}

// validateUnits rejects malformed generation units before any I/O.
func (b *Builder) validateUnits(units []SplitGenerator) error {
	if len(units) == 0 {
		return &ConfigError{Name: b.name, Reason: "at least one generation unit is required"}
	}

	seen := make(map[string]struct{})
	for _, unit := range units {
		if unit.Generator == nil {
			return &ConfigError{Name: b.name, Reason: "generation unit has no generator"}
		}
		if len(unit.Targets) == 0 {
			return &ConfigError{Name: b.name, Reason: "generation unit has no targets"}
		}
		for _, t := range unit.Targets {
			if t.Name == "" {
				return &ConfigError{Name: b.name, Reason: "split must have a name"}
			}
			if t.Name == split.All {
				return fmt.Errorf("%w: cannot generate split %q", split.ErrReservedName, t.Name)
			}
			if t.ShardCount < 1 {
				return &ConfigError{Name: b.name, Reason: fmt.Sprintf("split %q needs at least one shard", t.Name)}
			}
			if _, dup := seen[t.Name]; dup {
				return &ConfigError{Name: b.name, Reason: fmt.Sprintf("split %q declared twice", t.Name)}
			}
			seen[t.Name] = struct{}{}
		}
	}
	return nil
}

// handleExisting resolves a Build against a version directory that is
// already populated.
func (b *Builder) handleExisting(ctx context.Context, finalDir string) (*split.Dict, error) {
	m, err := manifest.Load(ctx, b.opts.backend, finalDir)
	if err != nil {
		return nil, fmt.Errorf("existing dataset directory %s is unreadable: %w", finalDir, err)
	}

	onDisk, err := m.ParsedVersion()
	if err != nil {
		return nil, fmt.Errorf("existing dataset directory %s is unreadable: %w", finalDir, err)
	}

	if b.opts.mode == ReuseIfExists && onDisk.Equal(b.version) {
		b.opts.logger.LogReuse(ctx, b.name, finalDir)
		return m.SplitDict()
	}

	return nil, &OverwriteError{
		Name:     b.name,
		Dir:      finalDir,
		Declared: b.version,
		OnDisk:   onDisk,
	}
}

// warnSiblingVersions scans the dataset directory for sibling version
// directories and logs each one holding a different version. Entries
// whose name does not parse as a version are skipped silently.
func (b *Builder) warnSiblingVersions(ctx context.Context) {
	datasetDir := naming.DatasetDir(b.name, b.config)

	keys, err := b.opts.backend.List(ctx, datasetDir+"/")
	if err != nil {
		return
	}

	warned := make(map[string]struct{})
	for _, key := range keys {
		rest := strings.TrimPrefix(key, datasetDir+"/")
		dir, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		found, err := version.Parse(dir)
		if err != nil || found.Equal(b.version) {
			continue
		}
		if _, done := warned[dir]; done {
			continue
		}
		warned[dir] = struct{}{}
		b.opts.logger.LogVersionConflict(ctx, b.name, datasetDir, found.String(), b.version.String())
	}
}

// generate runs every unit, writing shards into tmpDir, and returns
// the finalized split dictionary.
func (b *Builder) generate(ctx context.Context, tmpDir string, units []SplitGenerator) (*split.Dict, error) {
	dict := split.NewDict()

	for _, unit := range units {
		for _, t := range unit.Targets {
			b.opts.logger.LogGenerateSplit(ctx, t.Name, t.ShardCount)
		}
		infos, err := b.generateUnit(ctx, tmpDir, unit)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			if err := dict.Add(info); err != nil {
				return nil, err
			}
		}
	}
	return dict, nil
}

// generateUnit drains one generator into the shard files of its
// targets. Examples are distributed round-robin over the concatenated
// shard list, so each target's share is proportional to its shard
// count and generator order is preserved within every target.
func (b *Builder) generateUnit(ctx context.Context, tmpDir string, unit SplitGenerator) (_ []split.Info, err error) {
	suffix := b.opts.compression.Suffix()

	writers := make([]*shard.Writer, 0, unit.totalShards())
	defer func() {
		if err != nil {
			for _, w := range writers {
				_ = w.Close()
			}
		}
	}()

	for _, t := range unit.Targets {
		for j := 0; j < t.ShardCount; j++ {
			name := path.Join(tmpDir, naming.ShardFilename(b.name, t.Name, suffix, j, t.ShardCount))
			blob, err := b.opts.backend.Create(ctx, name)
			if err != nil {
				return nil, err
			}
			w, err := shard.NewWriter(blob, func(o *shard.Options) {
				o.Compression = b.opts.compression
				o.IOLimitBytesPerSec = b.opts.ioLimitBytesPerSec
			})
			if err != nil {
				_ = blob.Close()
				return nil, err
			}
			writers = append(writers, w)
		}
	}

	total := len(writers)
	i := 0
	for {
		if b.opts.maxExamplesPerSplit > 0 && i >= b.opts.maxExamplesPerSplit {
			b.opts.logger.LogSplitsCapped(ctx, b.opts.maxExamplesPerSplit)
			break
		}
		example, err := unit.Generator.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		payload, err := b.opts.encoder.Encode(example)
		if err != nil {
			return nil, err
		}
		if err := writers[i%total].Append(ctx, payload); err != nil {
			return nil, err
		}
		i++
	}

	infos := make([]split.Info, 0, len(unit.Targets))
	offset := 0
	for _, t := range unit.Targets {
		rows := 0
		for j := 0; j < t.ShardCount; j++ {
			rows += writers[offset+j].Rows()
		}
		infos = append(infos, split.Info{
			Name:        t.Name,
			ShardCount:  t.ShardCount,
			NumExamples: rows,
		})
		offset += t.ShardCount
	}

	var closeErr error
	for _, w := range writers {
		if err := w.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	writers = nil
	if closeErr != nil {
		return nil, closeErr
	}

	return infos, nil
}

// finalize writes the manifest into the still-temporary directory.
func (b *Builder) finalize(ctx context.Context, tmpDir string, dict *split.Dict) error {
	m := &manifest.Manifest{
		Name:           b.name,
		Config:         b.config,
		Version:        b.version.String(),
		Splits:         dict.Infos(),
		SupervisedKeys: b.opts.supervisedKeys,
		ShardSuffix:    b.opts.compression.Suffix(),
		EncoderName:    b.opts.encoder.Name(),
	}
	if b.opts.fetcher != nil {
		m.DownloadSizeBytes = b.opts.fetcher.DownloadedBytes()
	}
	return m.Save(ctx, b.opts.backend, tmpDir)
}

// removePrefix deletes every blob under an abandoned temp directory.
// Best effort; a leftover ".incomplete" directory is inert because
// readers only ever open canonical version directories.
func (b *Builder) removePrefix(ctx context.Context, prefix string) {
	keys, err := b.opts.backend.List(ctx, prefix+"/")
	if err != nil {
		return
	}
	for _, key := range keys {
		_ = b.opts.backend.Delete(ctx, key)
	}
}

func randomSuffix() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
