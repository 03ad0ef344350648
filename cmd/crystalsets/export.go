package main

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Noofbiz/crystalsets/datasets"
	"github.com/Noofbiz/crystalsets/structure"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/weaviate/hdf5"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export collated samples to HDF5 or CSV",
	Long:  `Collate up to --limit samples and write them to --output. hdf5 writes the batch arrays, csv writes one summary row per sample.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := globalConfig
		cfg.Mode = "export"

		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}

		ds, err := openDataset(cfg, nil)
		if err != nil {
			log.Fatal(err)
		}
		defer ds.Close()

		var samples []*datasets.Sample
		err = eachSample(ds, cfg.Limit, func(_ int, s *datasets.Sample) error {
			samples = append(samples, s)
			return nil
		})
		if err != nil {
			log.Fatal(err)
		}

		switch cfg.Format {
		case "hdf5":
			var b *datasets.Batch
			if b, err = ds.Collate(samples); err == nil {
				err = exportHDF5(cfg.Output, b)
			}
		case "csv":
			var f *os.File
			if f, err = os.Create(cfg.Output); err == nil {
				err = exportCSV(f, samples)
				f.Close()
			}
		}
		if err != nil {
			log.Fatal(err)
		}
		log.WithFields(log.Fields{
			"samples": len(samples),
			"format":  cfg.Format,
			"output":  cfg.Output,
		}).Info("export finished")
	},
}

func initExport() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.PersistentFlags().StringVarP(&globalConfig.Format,
		"format", "f", "hdf5", "Output format, one of [hdf5, csv]")
	exportCmd.PersistentFlags().StringVarP(&globalConfig.Output,
		"output", "o", "", "Output file")
}

// sampleRow is the CSV layout of one sample.
type sampleRow struct {
	EntryID    string  `csv:"entry_id"`
	NumAtoms   int     `csv:"natoms"`
	Elements   string  `csv:"elements"`
	SpaceGroup string  `csv:"space_group"`
	A          float32 `csv:"a"`
	B          float32 `csv:"b"`
	C          float32 `csv:"c"`
	Alpha      float32 `csv:"alpha"`
	Beta       float32 `csv:"beta"`
	Gamma      float32 `csv:"gamma"`
	Energy     float64 `csv:"energy"`
	BandGap    float64 `csv:"band_gap"`
}

func newSampleRow(s *datasets.Sample) *sampleRow {
	row := &sampleRow{
		EntryID:  s.EntryID,
		NumAtoms: s.NumAtoms,
		Elements: elementList(s.AtomicNumbers),
	}
	if lf := s.LatticeFeatures; lf != nil {
		p := lf.LatticeParams
		row.A, row.B, row.C = p[0], p[1], p[2]
		row.Alpha, row.Beta, row.Gamma = p[3], p[4], p[5]
	}
	if sym := s.Symmetry; sym != nil {
		row.SpaceGroup = sym.Symbol
		if row.SpaceGroup == "" {
			row.SpaceGroup = sym.Name
		}
	}
	if v, ok := s.Targets["energy"]; ok && !v.IsTensor() {
		row.Energy = v.Float()
	}
	if v, ok := s.Targets["band_gap"]; ok && !v.IsTensor() {
		row.BandGap = v.Float()
	}
	return row
}

// elementList renders the distinct element symbols, sorted.
func elementList(atomicNumbers []int64) string {
	seen := make(map[string]bool)
	var symbols []string
	for _, z := range atomicNumbers {
		sym, err := structure.Symbol(int(z))
		if err != nil {
			sym = "?"
		}
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return strings.Join(symbols, " ")
}

func exportCSV(w io.Writer, samples []*datasets.Sample) error {
	rows := make([]*sampleRow, len(samples))
	for i, s := range samples {
		rows[i] = newSampleRow(s)
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return errors.Wrap(err, "write csv")
	}
	return nil
}

type hdf5Array struct {
	name string
	dims []int
	data any
}

// exportHDF5 writes the batch arrays as datasets of one file: pos,
// atomic_numbers, sizes, the lattice features when present and every target
// under the targets group.
func exportHDF5(path string, b *datasets.Batch) error {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	sizes := make([]int64, len(b.Sizes))
	for i, n := range b.Sizes {
		sizes[i] = int64(n)
	}
	atomicNumbers := b.FlatAtomicNumbers()

	writes := []hdf5Array{
		{"pos", []int{b.TotalAtoms, 3}, &b.Pos},
		{"atomic_numbers", []int{b.TotalAtoms}, &atomicNumbers},
		{"sizes", []int{b.BatchSize}, &sizes},
	}
	if b.SpaceGroups != nil {
		writes = append(writes,
			hdf5Array{"space_groups", []int{b.BatchSize}, &b.SpaceGroups},
			hdf5Array{"lattice_params", []int{b.BatchSize, 6}, &b.LatticeParams},
		)
	}
	for _, wr := range writes {
		if err := writeHDF5Dataset(&f.CommonFG, wr.name, wr.dims, wr.data); err != nil {
			return err
		}
	}

	targets, err := f.CreateGroup("targets")
	if err != nil {
		return errors.Wrap(err, "create targets group")
	}
	defer targets.Close()
	for name, v := range b.Targets {
		var data any
		if v.IsInteger() {
			ints := v.Ints()
			data = &ints
		} else {
			floats := v.Floats()
			data = &floats
		}
		if err := writeHDF5Dataset(&targets.CommonFG, name, v.Dims(), data); err != nil {
			return err
		}
	}
	return nil
}

func writeHDF5Dataset(parent *hdf5.CommonFG, name string, dims []int, data any) error {
	if len(dims) == 0 || dims[0] == 0 {
		log.WithField("dataset", name).Debug("skipping empty dataset")
		return nil
	}
	extent := make([]uint, len(dims))
	for i, d := range dims {
		extent[i] = uint(d)
	}
	space, err := hdf5.CreateSimpleDataspace(extent, extent)
	if err != nil {
		return errors.Wrapf(err, "dataspace of %s", name)
	}
	defer space.Close()

	dtype := hdf5.T_NATIVE_FLOAT
	if _, ok := data.(*[]int64); ok {
		dtype = hdf5.T_NATIVE_INT64
	}
	dset, err := parent.CreateDataset(name, dtype, space)
	if err != nil {
		return errors.Wrapf(err, "create dataset %s", name)
	}
	defer dset.Close()
	if err := dset.Write(data); err != nil {
		return errors.Wrapf(err, "write dataset %s", name)
	}
	return nil
}
