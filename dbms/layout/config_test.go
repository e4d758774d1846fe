package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometry(t *testing.T) {
	assert.Equal(t, 31, Fanout)
	assert.Equal(t, 8, LogCapacity)
	assert.Equal(t, 512, OffPtrs+Fanout*8, "node fills one block")
	assert.Equal(t, 512, RecordSize)
}

func TestDense(t *testing.T) {
	cfg, err := Dense(3)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 31, 961}, cfg.NodeCounts)
	require.Equal(t, uint64(29791), cfg.MaxKey)
	require.Equal(t, uint64(993), cfg.TotalNodes())
	require.Equal(t, uint64(993*NodeSize), cfg.IndexSize())
	require.Equal(t, uint64(3724), cfg.LogRecords())
	require.Equal(t, cfg.IndexSize()+3724*RecordSize, cfg.FileSize())
	require.True(t, cfg.Balanced())

	_, err = Dense(0)
	require.ErrorIs(t, err, ErrNoLevels)

	_, err = Dense(20)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Config{}.Validate(), ErrNoLevels)
	require.ErrorIs(t, NewConfig([]uint64{1, 0, 3}, 12).Validate(), ErrEmptyLevel)
	require.ErrorIs(t, Config{NodeCounts: []uint64{1}, Fanout: -1}.Validate(), ErrFanout)
	require.ErrorIs(t, NewConfig([]uint64{1}, ^uint64(0)).Validate(), ErrTooLarge)
	require.NoError(t, NewConfig([]uint64{1, 3}, 12).Validate())
}

func TestNewConfigCopies(t *testing.T) {
	counts := []uint64{1, 3}
	cfg := NewConfig(counts, 12)
	counts[1] = 0
	require.Equal(t, uint64(3), cfg.NodeCounts[1])
}

func TestParseNodeCounts(t *testing.T) {
	counts, err := ParseNodeCounts("1, 31,961")
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 31, 961}, counts)

	_, err = ParseNodeCounts("")
	require.ErrorIs(t, err, ErrNoLevels)

	_, err = ParseNodeCounts("1,x")
	require.Error(t, err)
}

func TestValueOffset(t *testing.T) {
	cfg := NewConfig([]uint64{1, 3}, 12)
	for v := uint64(0); v < 20; v++ {
		want := cfg.IndexSize() + (v/LogCapacity)*RecordSize + (v%LogCapacity)*ValueSize
		require.Equal(t, want, cfg.ValueOffset(v))
		require.Equal(t, cfg.IndexSize()+v*ValueSize, cfg.ValueOffset(v))
	}
}

func TestBalanced(t *testing.T) {
	assert.False(t, NewConfig([]uint64{1, 3}, 12).Balanced())
	assert.True(t, NewConfig([]uint64{1, 31}, 961).Balanced())
	assert.False(t, NewConfig([]uint64{1, 31}, 1000).Balanced())
	assert.True(t, Config{NodeCounts: []uint64{1, 2}, MaxKey: 4, Fanout: 2}.Balanced())
}
