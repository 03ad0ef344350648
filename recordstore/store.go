// Package recordstore provides indexed, read-mostly access to raw records
// kept in one or more LevelDB shards.
//
// A store root is either a single LevelDB directory or a directory holding
// shard directories named data.0000, data.0001, ... Each shard maps an 8 byte
// big-endian subindex to a JSON encoded record and keeps its record count
// under the "length" key. Global indices run across shards in order, the
// same way a multi-file dataset maps a global row to (file, row).
package recordstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var (
	// ErrNotFound is returned when a key has no record.
	ErrNotFound = errors.New("record not found")
	// ErrIndexOutOfRange is returned for global indices outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrNoShards is returned when the root holds no LevelDB shard.
	ErrNoShards = errors.New("no shards found")
)

var lengthKey = []byte("length")

// ShardPattern is the glob used to discover shard directories under a root.
const ShardPattern = "data.*"

// DefaultCacheSize is the number of raw records kept in memory.
const DefaultCacheSize = 256

// Options tune how a store is opened.
type Options struct {
	// CacheSize bounds the raw record LRU; zero selects DefaultCacheSize and
	// a negative value disables caching.
	CacheSize int
}

// Store reads records from LevelDB shards.
type Store struct {
	Root string

	shardPaths []string
	dbs        []*leveldb.DB

	// Record count per shard
	rowCounts []int

	// Cumulative counts for fast index mapping
	cumCounts []int

	totalRecords int

	cache *lru.Cache
}

// Open opens every shard under root read-only.
func Open(root string, opts Options) (*Store, error) {
	paths, err := discoverShards(root)
	if err != nil {
		return nil, err
	}

	s := &Store{
		Root:       root,
		shardPaths: paths,
	}
	for _, p := range paths {
		db, err := leveldb.OpenFile(p, &opt.Options{
			ReadOnly:               true,
			OpenFilesCacheCapacity: 100,
		})
		if err != nil {
			s.Close()
			return nil, errors.Wrapf(err, "open shard %s", p)
		}
		s.dbs = append(s.dbs, db)
	}

	if err := s.buildIndex(); err != nil {
		s.Close()
		return nil, err
	}

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		if s.cache, err = lru.New(size); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "create record cache")
		}
	}

	log.WithFields(log.Fields{
		"root":    root,
		"shards":  len(paths),
		"records": s.totalRecords,
	}).Debug("opened record store")
	return s, nil
}

func discoverShards(root string) ([]string, error) {
	if isLevelDB(root) {
		return []string{root}, nil
	}
	matches, err := filepath.Glob(filepath.Join(root, ShardPattern))
	if err != nil {
		return nil, errors.Wrapf(err, "glob shards under %s", root)
	}
	var paths []string
	for _, m := range matches {
		if isLevelDB(m) {
			paths = append(paths, m)
		}
	}
	if len(paths) == 0 {
		return nil, errors.Wrapf(ErrNoShards, "root %s", root)
	}
	sort.Strings(paths)
	return paths, nil
}

func isLevelDB(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "CURRENT"))
	return err == nil
}

// buildIndex reads the length of every shard and builds cumulative counts.
func (s *Store) buildIndex() error {
	s.rowCounts = make([]int, len(s.dbs))
	s.cumCounts = make([]int, len(s.dbs)+1)

	for i, db := range s.dbs {
		count, err := shardLength(db)
		if err != nil {
			return errors.Wrapf(err, "read length of %s", s.shardPaths[i])
		}
		s.rowCounts[i] = count
		s.cumCounts[i+1] = s.cumCounts[i] + count
	}

	s.totalRecords = s.cumCounts[len(s.dbs)]
	return nil
}

func shardLength(db *leveldb.DB) (int, error) {
	raw, err := db.Get(lengthKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return countRecords(db)
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(raw))
}

// countRecords is the fallback for shards written without a length key.
func countRecords(db *leveldb.DB) (int, error) {
	it := db.NewIterator(nil, nil)
	defer it.Release()
	count := 0
	for it.Next() {
		if len(it.Key()) == 8 {
			count++
		}
	}
	return count, it.Error()
}

// Len returns the number of records across all shards.
func (s *Store) Len() int {
	return s.totalRecords
}

// NumShards returns the number of open shards.
func (s *Store) NumShards() int {
	return len(s.dbs)
}

// ShardLen returns the number of records in one shard.
func (s *Store) ShardLen(shard int) int {
	if shard < 0 || shard >= len(s.rowCounts) {
		return 0
	}
	return s.rowCounts[shard]
}

// IndexToKey maps a global index to (shard, subindex).
func (s *Store) IndexToKey(index int) (shard, subindex int, err error) {
	if index < 0 || index >= s.totalRecords {
		return 0, 0, errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0, %d)", index, s.totalRecords)
	}
	// cumCounts is sorted, so the first shard whose upper bound exceeds the
	// index holds it.
	shard = sort.Search(len(s.dbs), func(i int) bool {
		return index < s.cumCounts[i+1]
	})
	return shard, index - s.cumCounts[shard], nil
}

// DataFromKey returns the raw JSON record stored at (shard, subindex).
func (s *Store) DataFromKey(shard, subindex int) ([]byte, error) {
	if shard < 0 || shard >= len(s.dbs) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "shard %d not in [0, %d)", shard, len(s.dbs))
	}
	cacheKey := fmt.Sprintf("%d/%d", shard, subindex)
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			return v.([]byte), nil
		}
	}

	raw, err := s.dbs[shard].Get(EncodeKey(subindex), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "shard %d subindex %d", shard, subindex)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read shard %d subindex %d", shard, subindex)
	}
	if s.cache != nil {
		s.cache.Add(cacheKey, raw)
	}
	return raw, nil
}

// Get returns the raw record at a global index.
func (s *Store) Get(index int) ([]byte, error) {
	shard, sub, err := s.IndexToKey(index)
	if err != nil {
		return nil, err
	}
	return s.DataFromKey(shard, sub)
}

// Decode unmarshals the record at (shard, subindex) into a generic map with
// numbers kept as json.Number so integer values stay distinguishable.
func (s *Store) Decode(shard, subindex int) (map[string]any, error) {
	raw, err := s.DataFromKey(shard, subindex)
	if err != nil {
		return nil, err
	}
	return DecodeRecord(raw)
}

// DecodeRecord unmarshals a raw record, keeping numbers as json.Number.
func DecodeRecord(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode record")
	}
	return out, nil
}

// Close releases every shard.
func (s *Store) Close() error {
	var first error
	for _, db := range s.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.dbs = nil
	return first
}

// EncodeKey converts a subindex into its on-disk key.
func EncodeKey(subindex int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(subindex))
	return key
}
