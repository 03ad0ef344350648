package recordstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRecords writes n records {"id": i} across shards of perShard records.
func writeRecords(t *testing.T, root string, n, perShard int) {
	t.Helper()
	records := make([]any, n)
	for i := range records {
		records[i] = map[string]any{"id": i, "name": fmt.Sprintf("rec-%d", i)}
	}
	if _, err := WriteShards(root, records, perShard); err != nil {
		t.Fatalf("failed to write shards: %v", err)
	}
}

func TestStore_ShardedIndexMapping(t *testing.T) {
	root := t.TempDir()
	writeRecords(t, root, 7, 3)

	s, err := Open(root, Options{})
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 7, s.Len())
	require.Equal(t, 3, s.NumShards())
	assert.Equal(t, 3, s.ShardLen(0))
	assert.Equal(t, 1, s.ShardLen(2))

	tests := []struct {
		index, shard, sub int
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 1, 0},
		{5, 1, 2},
		{6, 2, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("index %d", tt.index), func(t *testing.T) {
			shard, sub, err := s.IndexToKey(tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.shard, shard)
			assert.Equal(t, tt.sub, sub)

			rec, err := s.Decode(shard, sub)
			require.NoError(t, err)
			assert.Equal(t, json.Number(fmt.Sprint(tt.index)), rec["id"])
		})
	}

	_, _, err = s.IndexToKey(7)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, _, err = s.IndexToKey(-1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestStore_SingleDatabaseRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "single")
	w, err := NewWriter(dir)
	require.NoError(t, err)
	_, err = w.PutRaw([]byte(`{"x": 1.5}`))
	require.NoError(t, err)
	_, err = w.PutRaw([]byte(`not json`))
	require.Error(t, err)
	require.NoError(t, w.Close())

	s, err := Open(dir, Options{CacheSize: -1})
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 1, s.Len())
	raw, err := s.Get(0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x": 1.5}`, string(raw))

	_, err = s.DataFromKey(0, 5)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.DataFromKey(3, 0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestStore_CacheServesRepeatedReads(t *testing.T) {
	root := t.TempDir()
	writeRecords(t, root, 2, 0)

	s, err := Open(root, Options{CacheSize: 4})
	require.NoError(t, err)
	defer s.Close()

	first, err := s.DataFromKey(0, 1)
	require.NoError(t, err)
	second, err := s.DataFromKey(0, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.cache.Len())
}

func TestWriter_AppendsToExistingShard(t *testing.T) {
	dir := ShardPath(t.TempDir(), 0)
	for i := range 2 {
		w, err := NewWriter(dir)
		require.NoError(t, err)
		sub, err := w.Put(map[string]int{"round": i})
		require.NoError(t, err)
		assert.Equal(t, i, sub)
		require.NoError(t, w.Close())
	}

	s, err := Open(dir, Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 2, s.Len())
}

func TestOpen_NoShards(t *testing.T) {
	_, err := Open(t.TempDir(), Options{})
	require.ErrorIs(t, err, ErrNoShards)
}

func TestDecodeRecordKeepsIntegers(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"a": 3, "b": 3.0}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), rec["a"])
	assert.Equal(t, json.Number("3.0"), rec["b"])
}
