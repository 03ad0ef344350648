package recordstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
)

// ShardPath returns the directory of shard i under root.
func ShardPath(root string, i int) string {
	return filepath.Join(root, fmt.Sprintf("data.%04d", i))
}

// Writer appends records to a single shard. Records are keyed by their
// insertion order.
type Writer struct {
	path  string
	db    *leveldb.DB
	count int
}

// NewWriter opens the shard at path, appending after any records it holds.
func NewWriter(path string) (*Writer, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open shard %s for writing", path)
	}
	count, err := shardLength(db)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "read length of %s", path)
	}
	return &Writer{path: path, db: db, count: count}, nil
}

// Put marshals record as JSON and appends it, returning its subindex.
func (w *Writer) Put(record any) (int, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return 0, errors.Wrap(err, "encode record")
	}
	return w.PutRaw(raw)
}

// PutRaw appends an already encoded JSON record.
func (w *Writer) PutRaw(raw []byte) (int, error) {
	if !json.Valid(raw) {
		return 0, errors.Errorf("record %d is not valid JSON", w.count)
	}
	sub := w.count
	if err := w.db.Put(EncodeKey(sub), raw, nil); err != nil {
		return 0, errors.Wrapf(err, "write subindex %d", sub)
	}
	w.count++
	return sub, nil
}

// Len returns the number of records in the shard.
func (w *Writer) Len() int {
	return w.count
}

// Close records the shard length and closes the database.
func (w *Writer) Close() error {
	if err := w.db.Put(lengthKey, []byte(strconv.Itoa(w.count)), nil); err != nil {
		w.db.Close()
		return errors.Wrap(err, "write length")
	}
	log.WithFields(log.Fields{
		"path":    w.path,
		"records": w.count,
	}).Debug("closed shard writer")
	return w.db.Close()
}

// WriteShards splits records across shards of at most perShard records under
// root. A non-positive perShard writes a single shard.
func WriteShards(root string, records []any, perShard int) (int, error) {
	if perShard <= 0 {
		perShard = len(records)
		if perShard == 0 {
			perShard = 1
		}
	}
	shards := 0
	for start := 0; start < len(records) || shards == 0; start += perShard {
		end := min(start+perShard, len(records))
		w, err := NewWriter(ShardPath(root, shards))
		if err != nil {
			return shards, err
		}
		for _, r := range records[start:end] {
			if _, err := w.Put(r); err != nil {
				w.Close()
				return shards, err
			}
		}
		if err := w.Close(); err != nil {
			return shards, err
		}
		shards++
	}
	return shards, nil
}
