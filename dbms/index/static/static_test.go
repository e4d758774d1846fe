package static

import (
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btree-query-bench/simplekv/dbms/create"
	"github.com/btree-query-bench/simplekv/dbms/layout"
)

func build(t *testing.T, cfg layout.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simplekv.db")
	_, err := create.CreateFile(path, cfg, create.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return path
}

func openDense(t *testing.T, layers int) *Image {
	t.Helper()
	cfg, err := layout.Dense(layers)
	require.NoError(t, err)
	im, err := Open(build(t, cfg), cfg, 256)
	require.NoError(t, err)
	t.Cleanup(func() { im.Close() })
	return im
}

func TestGetEveryKey(t *testing.T) {
	for _, layers := range []int{1, 2, 3} {
		im := openDense(t, layers)
		maxKey := im.Config().MaxKey
		step := uint64(1)
		if maxKey > 2000 {
			step = 7
		}
		for k := uint64(0); k < maxKey; k += step {
			v, ok, err := im.Get(k)
			require.NoError(t, err)
			require.True(t, ok, "layers=%d key=%d", layers, k)
			require.Equal(t, strconv.FormatUint(k, 10), string(v))
		}
		v, ok, err := im.Get(maxKey - 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, strconv.FormatUint(maxKey-1, 10), string(v))

		_, ok, err = im.Get(maxKey)
		require.NoError(t, err)
		require.False(t, ok, "keys at or past MaxKey are not indexed")
	}
}

func TestRange(t *testing.T) {
	im := openDense(t, 2)

	it, err := im.Range(25, 70)
	require.NoError(t, err)
	var keys []uint64
	for it.Next() {
		keys = append(keys, it.Key())
		require.Equal(t, strconv.FormatUint(it.Key(), 10), string(it.Value()))
	}
	require.NoError(t, it.Error())
	require.NoError(t, it.Close())

	require.Len(t, keys, 46, "range crosses leaves 0, 1 and 2")
	for i, k := range keys {
		require.Equal(t, uint64(25+i), k)
	}
}

func TestRangeEdges(t *testing.T) {
	im := openDense(t, 2)
	maxKey := im.Config().MaxKey

	count := func(start, end uint64) int {
		it, err := im.Range(start, end)
		require.NoError(t, err)
		defer it.Close()
		n := 0
		for it.Next() {
			n++
		}
		require.NoError(t, it.Error())
		return n
	}
	assert.Equal(t, int(maxKey), count(0, maxKey+1000))
	assert.Equal(t, 1, count(maxKey-1, maxKey-1))
	assert.Equal(t, 0, count(maxKey, maxKey+10))
	assert.Equal(t, 0, count(10, 5))
}

func TestWalkLevels(t *testing.T) {
	im := openDense(t, 3)
	for _, lv := range im.Levels() {
		var n uint64
		err := im.WalkLevel(lv.Level, func(off uint64, node layout.Node) error {
			require.Equal(t, layout.NodeOffset(lv.First+n), off)
			require.Equal(t, lv.Leaf, node.IsLeaf())
			n++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, lv.Nodes, n)
	}
	require.Error(t, im.WalkLevel(3, func(uint64, layout.Node) error { return nil }))
}

func TestCheck(t *testing.T) {
	require.NoError(t, openDense(t, 3).Check())

	// root slot 5 points at node 6, past the 5 nodes of level 1
	cfg := layout.NewConfig([]uint64{1, 5, 40}, 1000)
	im, err := Open(build(t, cfg), cfg, 0)
	require.NoError(t, err)
	defer im.Close()
	require.ErrorIs(t, im.Check(), ErrUnsearchable)
}

func TestUnbalancedImage(t *testing.T) {
	cfg := layout.NewConfig([]uint64{1, 3}, 100)
	require.False(t, cfg.Balanced())
	im, err := Open(build(t, cfg), cfg, 0)
	require.NoError(t, err)
	defer im.Close()

	for _, key := range []uint64{5, 10, 40} {
		_, ok, err := im.Get(key)
		require.ErrorIs(t, err, ErrUnsearchable, "key %d", key)
		require.False(t, ok)
	}
	_, err = im.Range(0, 10)
	require.ErrorIs(t, err, ErrUnsearchable)

	// the levels themselves are intact
	for _, lv := range im.Levels() {
		var n uint64
		require.NoError(t, im.WalkLevel(lv.Level, func(uint64, layout.Node) error {
			n++
			return nil
		}))
		require.Equal(t, lv.Nodes, n)
	}
	require.ErrorIs(t, im.Check(), ErrUnsearchable)
}

func TestStrayChildPointer(t *testing.T) {
	cfg, err := layout.Dense(2)
	require.NoError(t, err)
	path := build(t, cfg)

	// root slot 4 (keys 124..154) points back at the root
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(data[layout.OffPtrs+4*8:], uint64(layout.MustEncode(0)))
	require.NoError(t, os.WriteFile(path, data, 0644))

	im, err := Open(path, cfg, 0)
	require.NoError(t, err)
	defer im.Close()

	_, _, err = im.Get(130)
	require.ErrorIs(t, err, ErrCorrupt)
	v, ok, err := im.Get(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "7", string(v))
	require.ErrorIs(t, im.Check(), ErrCorrupt)
}

func TestCheckDetectsCorruption(t *testing.T) {
	cfg, err := layout.Dense(2)
	require.NoError(t, err)
	path := build(t, cfg)

	// second leaf, slot 3 pointer
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	off := layout.NodeOffset(2) + layout.OffPtrs + 3*8
	binary.LittleEndian.PutUint64(data[off:], uint64(layout.MustEncode(cfg.IndexSize())))
	require.NoError(t, os.WriteFile(path, data, 0644))

	im, err := Open(path, cfg, 0)
	require.NoError(t, err)
	defer im.Close()
	require.ErrorIs(t, im.Check(), ErrCorrupt)
}

func TestOpenSizeMismatch(t *testing.T) {
	cfg, err := layout.Dense(2)
	require.NoError(t, err)
	path := build(t, cfg)

	other, err := layout.Dense(3)
	require.NoError(t, err)
	_, err = Open(path, other, 0)
	require.ErrorIs(t, err, ErrSizeMismatch)

	_, err = Open(path, layout.Config{}, 0)
	require.ErrorIs(t, err, layout.ErrNoLevels)
}

func TestTree(t *testing.T) {
	im := openDense(t, 3)
	tree, err := im.Tree(2, 2)
	require.NoError(t, err)
	out := tree.String()
	assert.Contains(t, out, "@0 internal keys [0..28830]")
	assert.Contains(t, out, "@512 internal")
	assert.Contains(t, out, "@16384 leaf")
	assert.Contains(t, out, "... 29 more")
}
