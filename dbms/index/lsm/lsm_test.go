package lsm

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btree-query-bench/simplekv/dbms/layout"
)

func TestLoadMatchesImageValues(t *testing.T) {
	cfg, err := layout.Dense(2)
	require.NoError(t, err)

	l, err := Load(t.TempDir(), cfg)
	require.NoError(t, err)
	defer l.Close()

	for _, k := range []uint64{0, 1, 42, 500, cfg.MaxKey - 1} {
		v, ok, err := l.Get(k)
		require.NoError(t, err)
		require.True(t, ok, "key %d", k)
		require.Equal(t, strconv.FormatUint(k, 10), string(v))
	}

	_, ok, err := l.Get(cfg.MaxKey)
	require.NoError(t, err)
	require.False(t, ok, "the padding slots of the last record are not loaded")
}

func TestRange(t *testing.T) {
	cfg := layout.NewConfig([]uint64{1}, 20)
	l, err := Load(t.TempDir(), cfg)
	require.NoError(t, err)
	defer l.Close()

	it, err := l.Range(5, 9)
	require.NoError(t, err)
	var keys []uint64
	for it.Next() {
		keys = append(keys, it.Key())
		require.Equal(t, strconv.FormatUint(it.Key(), 10), string(it.Value()))
	}
	require.NoError(t, it.Error())
	require.NoError(t, it.Close())
	require.Equal(t, []uint64{5, 6, 7, 8, 9}, keys)
}
