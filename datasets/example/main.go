package main

// Example command that demonstrates opening an Alexandria record store,
// parsing a few samples, collating them into a batch and converting the batch
// into gomlx tensors.
//
// Usage:
//   go run ./datasets/example [record store root]
//
// Without an argument the example writes two small records into a temporary
// store first, so it runs anywhere.

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/Noofbiz/crystalsets/datasets"
	"github.com/Noofbiz/crystalsets/recordstore"
)

const exampleRecord = `{"entry_id": %q,
 "structure": {"lattice": {"matrix": [[%.2f, 0, 0], [0, %.2f, 0], [0, 0, %.2f]]},
  "sites": [{"species": [{"element": "Mg", "occu": 1}], "abc": [0, 0, 0]},
            {"species": [{"element": "O", "occu": 1}], "abc": [0.5, 0.5, 0.5]}]},
 "symmetry": {"number": 221, "symbol": "Pm-3m", "point_group": "m-3m"},
 "targets": {"regression": {"energy": %.3f, "band_gap": %.3f}, "classification": {}}}`

func writeExampleStore() (string, error) {
	root, err := os.MkdirTemp("", "crystalsets-example")
	if err != nil {
		return "", err
	}
	w, err := recordstore.NewWriter(recordstore.ShardPath(root, 0))
	if err != nil {
		return "", err
	}
	for i, a := range []float64{2.98, 3.05} {
		raw := fmt.Sprintf(exampleRecord, fmt.Sprintf("example-%d", i), a, a, a, -5.9+0.1*float64(i), 4.4)
		if _, err := w.PutRaw([]byte(raw)); err != nil {
			w.Close()
			return "", err
		}
	}
	return root, w.Close()
}

func main() {
	root := ""
	if len(os.Args) > 1 {
		root = os.Args[1]
	} else {
		var err error
		if root, err = writeExampleStore(); err != nil {
			log.Fatalf("failed to write example store: %v", err)
		}
		defer os.RemoveAll(root)
	}

	ds, err := datasets.NewAlexandriaDatasetFromPath(root)
	if err != nil {
		log.Fatalf("failed to open alexandria dataset: %v", err)
	}
	defer ds.Close()
	fmt.Printf("Total samples available: %d\n", ds.Len())

	keys, err := ds.TargetKeys()
	if err != nil {
		log.Fatalf("failed to read target keys: %v", err)
	}
	fmt.Printf("Regression targets: %v\n", keys.Regression)
	fmt.Printf("Classification targets: %v\n", keys.Classification)

	n := min(8, ds.Len())
	samples := make([]*datasets.Sample, n)
	for i := range n {
		if samples[i], err = ds.GetSample(i); err != nil {
			log.Fatalf("failed to parse sample %d: %v", i, err)
		}
	}

	batch, err := ds.Collate(samples)
	if err != nil {
		log.Fatalf("failed to collate samples: %v", err)
	}
	fmt.Printf("Collated %d samples with %d atoms\n", batch.BatchSize, batch.TotalAtoms)

	tensors := batch.Tensors()
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-22s %v\n", name, tensors[name].Shape())
	}
}
