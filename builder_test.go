package shardset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shardset/split"
	"github.com/hupe1980/shardset/storage"
	"github.com/hupe1980/shardset/version"
)

// idExamples returns n examples carrying their generation index.
func idExamples(n int) []Example {
	examples := make([]Example, n)
	for i := range examples {
		examples[i] = Example{"id": float64(i)}
	}
	return examples
}

func buildFixture(t *testing.T, backend storage.Backend, optFns ...Option) *split.Dict {
	t.Helper()

	b, err := NewBuilder("mnist", version.MustParse("1.0.0"),
		append([]Option{WithBackend(backend)}, optFns...)...)
	require.NoError(t, err)

	dict, err := b.Build(context.Background(), []SplitGenerator{
		{
			Targets: []Target{
				{Name: "train", ShardCount: 10},
				{Name: "test", ShardCount: 3},
			},
			Generator: SliceGenerator(idExamples(130)),
		},
	})
	require.NoError(t, err)
	return dict
}

func TestNewBuilder(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		_, err := NewBuilder("", version.MustParse("1.0.0"))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := NewBuilder("mnist", version.Version{})
		require.ErrorIs(t, err, ErrMissingVersion)
	})

	t.Run("config selects version and directory", func(t *testing.T) {
		b, err := NewBuilder("mnist", version.Version{},
			WithBackend(storage.NewMemory()),
			WithConfigs("letters",
				BuilderConfig{Name: "digits", Version: version.MustParse("1.0.0"), Description: "digit classes"},
				BuilderConfig{Name: "letters", Version: version.MustParse("2.0.0"), Description: "letter classes"},
			),
		)
		require.NoError(t, err)
		require.Equal(t, version.MustParse("2.0.0"), b.Version())
		require.Equal(t, "mnist/letters/2.0.0", b.DataDir())
	})

	t.Run("unknown config", func(t *testing.T) {
		_, err := NewBuilder("mnist", version.Version{},
			WithConfigs("nope",
				BuilderConfig{Name: "digits", Version: version.MustParse("1.0.0"), Description: "digit classes"},
			),
		)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewBuilder("mnist", version.Version{},
			WithConfigs("digits",
				BuilderConfig{Name: "digits", Description: "no version"},
			),
		)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestBuildProportionalDistribution(t *testing.T) {
	backend := storage.NewMemory()
	dict := buildFixture(t, backend)

	// One generator feeding (10, 3) shards splits 130 examples into
	// 100 train and 30 test.
	train, ok := dict.Get("train")
	require.True(t, ok)
	require.Equal(t, split.Info{Name: "train", ShardCount: 10, NumExamples: 100}, train)

	test, ok := dict.Get("test")
	require.True(t, ok)
	require.Equal(t, split.Info{Name: "test", ShardCount: 3, NumExamples: 30}, test)

	// The committed directory has the manifest plus every shard file.
	names, err := backend.List(context.Background(), "mnist/1.0.0/")
	require.NoError(t, err)
	require.Len(t, names, 1+10+3)

	// No temp directory survives the promote.
	names, err = backend.List(context.Background(), "")
	require.NoError(t, err)
	for _, name := range names {
		require.NotContains(t, name, ".incomplete")
	}
}

func TestBuildReuseIfExists(t *testing.T) {
	backend := storage.NewMemory()
	first := buildFixture(t, backend)

	writesAfterFirst := backend.WriteCount()

	// A second Build of the same version performs zero writes and
	// returns the persisted split dictionary.
	second := buildFixture(t, backend)
	require.True(t, first.Equal(second))
	require.Equal(t, writesAfterFirst, backend.WriteCount())
}

func TestBuildFailIfExists(t *testing.T) {
	backend := storage.NewMemory()
	buildFixture(t, backend)

	b, err := NewBuilder("mnist", version.MustParse("1.0.0"),
		WithBackend(backend), WithGenerateMode(FailIfExists))
	require.NoError(t, err)

	_, err = b.Build(context.Background(), []SplitGenerator{
		NewSplitGenerator("train", 1, SliceGenerator(idExamples(1))),
	})

	var owErr *OverwriteError
	require.ErrorAs(t, err, &owErr)
	require.Equal(t, "mnist", owErr.Name)
	require.Equal(t, version.MustParse("1.0.0"), owErr.Declared)
	require.Equal(t, version.MustParse("1.0.0"), owErr.OnDisk)
	require.ErrorContains(t, err, "update the version number")
}

func TestBuildNewVersionBesideOld(t *testing.T) {
	backend := storage.NewMemory()
	buildFixture(t, backend)

	// A different declared version builds beside the existing one.
	b, err := NewBuilder("mnist", version.MustParse("2.0.0"), WithBackend(backend))
	require.NoError(t, err)

	_, err = b.Build(context.Background(), []SplitGenerator{
		NewSplitGenerator("train", 2, SliceGenerator(idExamples(10))),
	})
	require.NoError(t, err)

	for _, dir := range []string{"mnist/1.0.0", "mnist/2.0.0"} {
		ok, err := backend.Exists(context.Background(), dir)
		require.NoError(t, err)
		require.True(t, ok, dir)
	}
}

func TestBuildValidatesUnitsBeforeIO(t *testing.T) {
	run := func(t *testing.T, units []SplitGenerator) error {
		t.Helper()
		backend := storage.NewMemory()
		b, err := NewBuilder("mnist", version.MustParse("1.0.0"), WithBackend(backend))
		require.NoError(t, err)

		_, err = b.Build(context.Background(), units)
		require.Error(t, err)
		require.Zero(t, backend.WriteCount(), "unit validation must happen before any write")
		return err
	}

	t.Run("no units", func(t *testing.T) {
		run(t, nil)
	})

	t.Run("reserved split name", func(t *testing.T) {
		err := run(t, []SplitGenerator{
			NewSplitGenerator(split.All, 1, SliceGenerator(idExamples(1))),
		})
		require.ErrorIs(t, err, split.ErrReservedName)
	})

	t.Run("nil generator", func(t *testing.T) {
		run(t, []SplitGenerator{{Targets: []Target{{Name: "train", ShardCount: 1}}}})
	})

	t.Run("zero shards", func(t *testing.T) {
		run(t, []SplitGenerator{
			NewSplitGenerator("train", 0, SliceGenerator(idExamples(1))),
		})
	})

	t.Run("duplicate target", func(t *testing.T) {
		run(t, []SplitGenerator{
			NewSplitGenerator("train", 1, SliceGenerator(idExamples(1))),
			NewSplitGenerator("train", 2, SliceGenerator(idExamples(1))),
		})
	})
}

func TestBuildGeneratorFailureLeavesNothing(t *testing.T) {
	backend := storage.NewMemory()
	b, err := NewBuilder("mnist", version.MustParse("1.0.0"), WithBackend(backend))
	require.NoError(t, err)

	boom := errors.New("source exploded")
	i := 0
	gen := GeneratorFunc(func(context.Context) (Example, error) {
		if i >= 5 {
			return nil, boom
		}
		i++
		return Example{"id": i}, nil
	})

	_, err = b.Build(context.Background(), []SplitGenerator{
		NewSplitGenerator("train", 2, gen),
	})
	require.ErrorIs(t, err, boom)

	// Neither the final directory nor any temp blob survives.
	names, err := backend.List(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestBuildMaxExamplesPerSplit(t *testing.T) {
	backend := storage.NewMemory()
	b, err := NewBuilder("mnist", version.MustParse("1.0.0"),
		WithBackend(backend), WithMaxExamplesPerSplit(7))
	require.NoError(t, err)

	dict, err := b.Build(context.Background(), []SplitGenerator{
		NewSplitGenerator("train", 2, SliceGenerator(idExamples(1000))),
	})
	require.NoError(t, err)

	info, ok := dict.Get("train")
	require.True(t, ok)
	require.Equal(t, 7, info.NumExamples)
}

func TestBuildWithLease(t *testing.T) {
	backend := storage.NewMemory()
	lease := &fakeLease{}

	b, err := NewBuilder("mnist", version.MustParse("1.0.0"),
		WithBackend(backend), WithBuildLease(lease))
	require.NoError(t, err)

	_, err = b.Build(context.Background(), []SplitGenerator{
		NewSplitGenerator("train", 1, SliceGenerator(idExamples(3))),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"acquire mnist/1.0.0", "release mnist/1.0.0"}, lease.calls)
}

func TestBuildLeaseHeld(t *testing.T) {
	backend := storage.NewMemory()
	held := errors.New("lease held elsewhere")

	b, err := NewBuilder("mnist", version.MustParse("1.0.0"),
		WithBackend(backend), WithBuildLease(&fakeLease{acquireErr: held}))
	require.NoError(t, err)

	_, err = b.Build(context.Background(), []SplitGenerator{
		NewSplitGenerator("train", 1, SliceGenerator(idExamples(3))),
	})
	require.ErrorIs(t, err, held)
	require.Zero(t, backend.WriteCount())
}

type fakeLease struct {
	acquireErr error
	calls      []string
}

func (l *fakeLease) Acquire(_ context.Context, dataDir string) error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.calls = append(l.calls, "acquire "+dataDir)
	return nil
}

func (l *fakeLease) Release(_ context.Context, dataDir string) error {
	l.calls = append(l.calls, "release "+dataDir)
	return nil
}
