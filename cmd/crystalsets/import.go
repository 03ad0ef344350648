package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/Noofbiz/crystalsets/recordstore"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// maxRecordBytes bounds a single JSON line.
const maxRecordBytes = 64 << 20

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Write JSON lines records into a record store",
	Long:  `Read one JSON record per line and append them to the record store as new LevelDB shards. OQMD stores keep every record in the first shard. Records without an entry_id get a random UUID.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := globalConfig
		cfg.Mode = "import"

		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}

		f, err := os.Open(cfg.Input)
		if err != nil {
			log.Fatalf("Error opening input: %v", err)
		}
		defer f.Close()

		var n int
		if cfg.Archive == "oqmd" {
			if cmd.Flags().Changed("per-shard") {
				log.Warn("oqmd stores are read from a single shard, ignoring --per-shard")
			}
			n, err = importSingleShard(f, cfg.Path)
		} else {
			n, err = importRecords(f, cfg.Path, cfg.PerShard)
		}
		if err != nil {
			log.Fatal(err)
		}
		log.WithFields(log.Fields{"records": n, "path": cfg.Path}).Info("import finished")
	},
}

func initImport() {
	rootCmd.AddCommand(importCmd)
	importCmd.PersistentFlags().StringVarP(&globalConfig.Input,
		"input", "i", "", "JSON lines file to import")
	importCmd.PersistentFlags().IntVar(&globalConfig.PerShard,
		"per-shard", 100000, "Records per shard (0 writes a single shard)")
}

// importRecords appends the records of r to the store at root, starting a new
// shard after the last existing one. It returns the number of records written.
func importRecords(r io.Reader, root string, perShard int) (int, error) {
	existing, err := filepath.Glob(filepath.Join(root, recordstore.ShardPattern))
	if err != nil {
		return 0, errors.Wrap(err, "list shards")
	}
	return writeRecords(r, root, len(existing), perShard)
}

// importSingleShard appends the records of r to the first shard at root, which
// is the only shard the oqmd reader opens.
func importSingleShard(r io.Reader, root string) (int, error) {
	return writeRecords(r, root, 0, 0)
}

func writeRecords(r io.Reader, root string, shard, perShard int) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), maxRecordBytes)

	var w *recordstore.Writer
	total := 0
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		record, err := withEntryID(raw)
		if err != nil {
			closeWriter(w)
			return total, errors.Wrapf(err, "line %d", line)
		}

		if w == nil || (perShard > 0 && w.Len() >= perShard) {
			if err := closeWriter(w); err != nil {
				return total, err
			}
			if w, err = recordstore.NewWriter(recordstore.ShardPath(root, shard)); err != nil {
				return total, err
			}
			shard++
		}
		if _, err := w.PutRaw(record); err != nil {
			closeWriter(w)
			return total, errors.Wrapf(err, "line %d", line)
		}
		total++
	}
	if err := scanner.Err(); err != nil {
		closeWriter(w)
		return total, errors.Wrap(err, "read input")
	}
	return total, closeWriter(w)
}

func closeWriter(w *recordstore.Writer) error {
	if w == nil {
		return nil
	}
	return w.Close()
}

// withEntryID assigns a UUID entry_id to records that have none.
func withEntryID(raw []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "record is not a JSON object")
	}
	if id, ok := fields["entry_id"]; ok && !bytes.Equal(id, []byte("null")) {
		return raw, nil
	}
	id, err := json.Marshal(uuid.NewString())
	if err != nil {
		return nil, err
	}
	fields["entry_id"] = id
	return json.Marshal(fields)
}
