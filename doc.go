// Package shardset materializes example generators into a versioned,
// shard-based on-disk dataset format and resolves split expressions
// back into concrete shard files for reading.
//
// A Builder consumes one or more single-pass example generators,
// encodes every example through an injected Encoder, and writes
// fixed-count shard files per split under
// <dataset>[/<config>]/<version>/ on a storage.Backend. Builds are
// staged in a temporary sibling directory and promoted atomically;
// a partially written dataset is never observable.
//
// Reading starts from the dataset manifest: a split.Instruction
// (a name, a percentage slice, or an ordered sum of both) resolves to
// an ordered list of (shard file, inclusion mask) pairs that
// reconstruct the requested rows exactly once, in a deterministic
// order.
package shardset
