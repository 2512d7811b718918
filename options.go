package shardset

import (
	"context"
	"log/slog"

	"github.com/hupe1980/shardset/shard"
	"github.com/hupe1980/shardset/storage"
)

// GenerateMode controls what Build does when the version directory
// already holds a complete dataset.
type GenerateMode int

const (
	// ReuseIfExists returns the persisted split dictionary without
	// writing anything. This is the default.
	ReuseIfExists GenerateMode = iota

	// FailIfExists fails with an OverwriteError. Bump the declared
	// version instead of overwriting.
	FailIfExists
)

// BuildLease serializes builds of one dataset directory across
// processes. Backends with atomic rename do not need one; object
// stores do (see storage/s3.DDBLease).
type BuildLease interface {
	Acquire(ctx context.Context, dataDir string) error
	Release(ctx context.Context, dataDir string) error
}

type options struct {
	backend             storage.Backend
	logger              *Logger
	encoder             Encoder
	compression         shard.Compression
	mode                GenerateMode
	fetcher             Fetcher
	lease               BuildLease
	configs             []BuilderConfig
	configName          string
	supervisedKeys      []string
	maxExamplesPerSplit int
	ioLimitBytesPerSec  int64
}

// Option configures a Builder.
type Option func(*options)

// WithBackend sets the storage backend holding the dataset root.
// Defaults to the local file system rooted at DefaultDataDir().
func WithBackend(b storage.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithDataDir is shorthand for a local backend rooted at dir.
func WithDataDir(dir string) Option {
	return func(o *options) { o.backend = storage.NewLocal(dir) }
}

// WithLogger configures structured logging. Pass nil to disable.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and
// sets it. Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) { o.logger = NewTextLogger(level) }
}

// WithEncoder sets the feature encoder used for every example.
// If nil is passed, the JSON encoder is used.
func WithEncoder(e Encoder) Option {
	return func(o *options) {
		if e == nil {
			e = JSONEncoder{}
		}
		o.encoder = e
	}
}

// WithCompression selects the shard record stream compression.
func WithCompression(c shard.Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithGenerateMode sets the behavior when a complete dataset of the
// declared version already exists.
func WithGenerateMode(m GenerateMode) Option {
	return func(o *options) { o.mode = m }
}

// WithFetcher attaches the download manager whose transfer total is
// recorded in the manifest.
func WithFetcher(f Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithBuildLease attaches a cross-process build lease.
func WithBuildLease(l BuildLease) Option {
	return func(o *options) { o.lease = l }
}

// WithConfigs declares the builder's named configurations and selects
// one by name. The selected config's version overrides the builder
// version.
func WithConfigs(name string, configs ...BuilderConfig) Option {
	return func(o *options) {
		o.configName = name
		o.configs = configs
	}
}

// WithSupervisedKeys records the (input, target) feature names for
// supervised consumers of the dataset.
func WithSupervisedKeys(input, target string) Option {
	return func(o *options) { o.supervisedKeys = []string{input, target} }
}

// WithMaxExamplesPerSplit caps how many examples are drawn from each
// generation unit. Use for smoke-testing a build; hitting the cap is
// logged.
func WithMaxExamplesPerSplit(max int) Option {
	return func(o *options) { o.maxExamplesPerSplit = max }
}

// WithWriteThrottle limits shard write throughput in bytes per
// second. If 0, unlimited.
func WithWriteThrottle(bytesPerSec int64) Option {
	return func(o *options) { o.ioLimitBytesPerSec = bytesPerSec }
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:      NoopLogger(),
		encoder:     JSONEncoder{},
		compression: shard.Default,
		mode:        ReuseIfExists,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
