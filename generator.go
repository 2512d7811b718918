package shardset

import (
	"context"
	"io"
)

// Generator is a sequential, finite, single-pass source of examples.
//
// Next returns io.EOF once the sequence is exhausted. A Generator
// cannot be rewound; consuming it twice without constructing a fresh
// instance is a programming error, not a retry case.
type Generator interface {
	Next(ctx context.Context) (Example, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context) (Example, error)

func (f GeneratorFunc) Next(ctx context.Context) (Example, error) { return f(ctx) }

// SliceGenerator returns a Generator over a fixed slice of examples.
// Useful for tests and small in-memory sources.
func SliceGenerator(examples []Example) Generator {
	i := 0
	return GeneratorFunc(func(context.Context) (Example, error) {
		if i >= len(examples) {
			return nil, io.EOF
		}
		ex := examples[i]
		i++
		return ex, nil
	})
}

// Target names one split a generation unit feeds, with its shard
// count.
type Target struct {
	Name       string
	ShardCount int
}

// SplitGenerator binds one example generator to the split(s) it
// populates.
//
// When one generator feeds multiple targets, its output is
// distributed round-robin over the concatenated shard list, so each
// target receives a share proportional to its shard count, in
// generator-yield order.
type SplitGenerator struct {
	Targets   []Target
	Generator Generator
}

// NewSplitGenerator binds a generator to a single split.
func NewSplitGenerator(name string, shardCount int, gen Generator) SplitGenerator {
	return SplitGenerator{
		Targets:   []Target{{Name: name, ShardCount: shardCount}},
		Generator: gen,
	}
}

// totalShards returns the summed shard count over all targets.
func (sg SplitGenerator) totalShards() int {
	total := 0
	for _, t := range sg.Targets {
		total += t.ShardCount
	}
	return total
}
