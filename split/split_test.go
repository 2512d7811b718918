package split

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDictAdd(t *testing.T) {
	t.Run("reserved alias", func(t *testing.T) {
		d := NewDict()
		err := d.Add(Info{Name: All, ShardCount: 1})
		require.ErrorIs(t, err, ErrReservedName)
		require.Zero(t, d.Len())
	})

	t.Run("last write wins", func(t *testing.T) {
		d := NewDict()
		require.NoError(t, d.Add(Info{Name: "train", ShardCount: 2, NumExamples: 10}))
		require.NoError(t, d.Add(Info{Name: "train", ShardCount: 4, NumExamples: 40}))

		info, ok := d.Get("train")
		require.True(t, ok)
		require.Equal(t, Info{Name: "train", ShardCount: 4, NumExamples: 40}, info)
		require.Equal(t, 1, d.Len())
	})
}

func TestDictNamesSorted(t *testing.T) {
	d := NewDict()
	require.NoError(t, d.Add(Info{Name: "validation", ShardCount: 1}))
	require.NoError(t, d.Add(Info{Name: "test", ShardCount: 1}))
	require.NoError(t, d.Add(Info{Name: "train", ShardCount: 1}))

	require.Equal(t, []string{"test", "train", "validation"}, d.Names())
}

func TestDictTotalNumExamples(t *testing.T) {
	d := NewDict()
	require.NoError(t, d.Add(Info{Name: "train", ShardCount: 2, NumExamples: 100}))
	require.NoError(t, d.Add(Info{Name: "test", ShardCount: 1, NumExamples: 30}))
	require.Equal(t, 130, d.TotalNumExamples())
}

func TestDictEqual(t *testing.T) {
	a := NewDict()
	require.NoError(t, a.Add(Info{Name: "train", ShardCount: 2, NumExamples: 10}))

	b, err := FromInfos(a.Infos())
	require.NoError(t, err)
	require.True(t, a.Equal(b))

	require.NoError(t, b.Add(Info{Name: "train", ShardCount: 2, NumExamples: 11}))
	require.False(t, a.Equal(b))
}

func TestShardRowCount(t *testing.T) {
	info := Info{Name: "train", ShardCount: 4, NumExamples: 10}

	// 10 rows over 4 shards: 3, 3, 2, 2.
	require.Equal(t, 3, info.ShardRowCount(0))
	require.Equal(t, 3, info.ShardRowCount(1))
	require.Equal(t, 2, info.ShardRowCount(2))
	require.Equal(t, 2, info.ShardRowCount(3))

	// Out of range.
	require.Equal(t, 0, info.ShardRowCount(-1))
	require.Equal(t, 0, info.ShardRowCount(4))

	// Row counts always sum to NumExamples.
	for n := 0; n <= 50; n++ {
		for s := 1; s <= 7; s++ {
			info := Info{Name: "x", ShardCount: s, NumExamples: n}
			sum := 0
			for j := 0; j < s; j++ {
				sum += info.ShardRowCount(j)
			}
			require.Equal(t, n, sum, "n=%d s=%d", n, s)
		}
	}
}
