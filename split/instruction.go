package split

import (
	"errors"
	"fmt"
)

// ErrRangeInvalid is returned for a malformed percentage slice.
var ErrRangeInvalid = errors.New("invalid percent range")

// Range is a half-open percentage window [Lo, Hi) over a split,
// with 0 <= Lo < Hi <= 100.
type Range struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// FullRange covers an entire split.
var FullRange = Range{Lo: 0, Hi: 100}

// Validate checks the range bounds.
func (r Range) Validate() error {
	if r.Lo < 0 || r.Hi > 100 || r.Lo >= r.Hi {
		return fmt.Errorf("%w: [%d, %d)", ErrRangeInvalid, r.Lo, r.Hi)
	}
	return nil
}

// Mask returns the per-row inclusion mask for a shard of rowCount
// rows. Row i is included iff
//
//	floor(rowCount*Lo/100) <= i < floor(rowCount*Hi/100)
//
// The floor rule is half-open on both ends, so adjacent ranges
// partition a shard exactly for any rowCount. rowCount == 0 yields an
// empty mask.
func (r Range) Mask(rowCount int) []bool {
	mask := make([]bool, rowCount)
	lo := rowCount * r.Lo / 100
	hi := rowCount * r.Hi / 100
	for i := lo; i < hi; i++ {
		mask[i] = true
	}
	return mask
}

// term is one component of an instruction: a named split with a
// percentage window. A term naming the reserved All alias expands to
// every declared split at resolve time.
type term struct {
	name string
	r    Range
}

// Instruction is an abstract split expression: a split name, a sliced
// split name, or an ordered sum of such terms. Instructions are value
// types; combining them never mutates the operands.
type Instruction struct {
	terms []term
}

// Of returns an instruction covering the full range of one split.
func Of(name string) Instruction {
	return Instruction{terms: []term{{name: name, r: FullRange}}}
}

// Slice returns an instruction covering the [lo, hi) percent window
// of one split. Bounds are validated at resolve time.
func Slice(name string, lo, hi int) Instruction {
	return Instruction{terms: []term{{name: name, r: Range{Lo: lo, Hi: hi}}}}
}

// AllSplits returns an instruction covering the full range of every
// declared split, in sorted name order.
func AllSplits() Instruction {
	return Instruction{terms: []term{{name: All, r: FullRange}}}
}

// Add returns the ordered sum of two instructions. Declaration order
// is read order and is preserved through resolution.
func (in Instruction) Add(other Instruction) Instruction {
	terms := make([]term, 0, len(in.terms)+len(other.terms))
	terms = append(terms, in.terms...)
	terms = append(terms, other.terms...)
	return Instruction{terms: terms}
}

// Sliced is one resolved (split, range) pair.
type Sliced struct {
	Info  Info
	Range Range
}

// Resolve maps the instruction onto concrete splits. Each term is
// resolved independently; results concatenate in declaration order.
func (in Instruction) Resolve(d *Dict) ([]Sliced, error) {
	var out []Sliced
	for _, t := range in.terms {
		if err := t.r.Validate(); err != nil {
			return nil, err
		}
		if t.name == All {
			for _, info := range d.Infos() {
				out = append(out, Sliced{Info: info, Range: t.r})
			}
			continue
		}
		info, ok := d.Get(t.name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSplit, t.name)
		}
		out = append(out, Sliced{Info: info, Range: t.r})
	}
	return out, nil
}
