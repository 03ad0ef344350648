package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Noofbiz/crystalsets/datasets"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print one parsed sample",
	Long:  `Parse the sample at --index and print a JSON summary of its fields, shapes and targets`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := globalConfig
		cfg.Mode = "inspect"

		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}

		ds, err := openDataset(cfg, nil)
		if err != nil {
			log.Fatal(err)
		}
		defer ds.Close()

		if err := inspectSample(os.Stdout, ds, cfg.Index); err != nil {
			log.Fatal(err)
		}
	},
}

func initInspect() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.PersistentFlags().IntVarP(&globalConfig.Index,
		"index", "n", 0, "Global index of the sample")
}

type targetSummary struct {
	Task    datasets.TaskType `json:"task"`
	Kind    string            `json:"kind"`
	Dims    []int             `json:"dims,omitempty"`
	Value   any               `json:"value,omitempty"`
	Missing bool              `json:"missing,omitempty"`
}

type sampleSummary struct {
	Dataset         string                    `json:"dataset"`
	Index           int                       `json:"index"`
	EntryID         string                    `json:"entry_id"`
	NumAtoms        int                       `json:"natoms"`
	AtomicNumbers   []int64                   `json:"atomic_numbers"`
	PCFeatures      []int                     `json:"pc_features"`
	DstNodes        []int                     `json:"dst_nodes"`
	LatticeFeatures *datasets.LatticeFeatures `json:"lattice_features,omitempty"`
	Symmetry        *datasets.Symmetry        `json:"symmetry,omitempty"`
	Targets         map[string]targetSummary  `json:"targets"`
	TargetTypes     map[string][]string       `json:"target_types"`
	GraphEdges      *int                      `json:"graph_edges,omitempty"`
}

func summarize(ds datasets.Dataset, index int, s *datasets.Sample) sampleSummary {
	out := sampleSummary{
		Dataset:         ds.Name(),
		Index:           index,
		EntryID:         s.EntryID,
		NumAtoms:        s.NumAtoms,
		AtomicNumbers:   s.AtomicNumbers,
		PCFeatures:      s.PCFeatures.Dims(),
		DstNodes:        s.DstNodes,
		LatticeFeatures: s.LatticeFeatures,
		Symmetry:        s.Symmetry,
		Targets:         make(map[string]targetSummary, len(s.Targets)),
		TargetTypes:     s.TargetTypes.Map(),
	}

	names := make([]string, 0, len(s.Targets))
	for name := range s.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := s.Targets[name]
		task, _ := s.TargetTypes.TypeOf(name)
		ts := targetSummary{Task: task, Kind: v.Kind.String(), Dims: v.Dims(), Missing: v.Missing}
		switch {
		case v.IsTensor():
		case v.IsInteger():
			ts.Value = v.Int()
		default:
			ts.Value = v.Float()
		}
		out.Targets[name] = ts
	}
	if s.Graph != nil {
		edges := s.Graph.NumEdges()
		out.GraphEdges = &edges
	}
	return out
}

func inspectSample(w io.Writer, ds datasets.Dataset, index int) error {
	s, err := ds.GetSample(index)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summarize(ds, index, s)); err != nil {
		return errors.Wrap(err, "encode summary")
	}
	fmt.Fprintf(w, "%d of %d samples\n", index+1, ds.Len())
	return nil
}
