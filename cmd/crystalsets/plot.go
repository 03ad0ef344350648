package main

import (
	"os"
	"path/filepath"

	"github.com/Noofbiz/crystalsets/datasets"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot histograms of system sizes and lattice lengths",
	Long:  `Parse up to --limit samples and write natoms.png, and lattice_a.png when the archive carries lattices, into the --output directory`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := globalConfig
		cfg.Mode = "plot"

		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}

		ds, err := openDataset(cfg, nil)
		if err != nil {
			log.Fatal(err)
		}
		defer ds.Close()

		written, err := plotHistograms(ds, cfg.Limit, cfg.Bins, cfg.PlotDir)
		if err != nil {
			log.Fatal(err)
		}
		for _, path := range written {
			log.WithField("path", path).Info("wrote histogram")
		}
	},
}

func initPlot() {
	rootCmd.AddCommand(plotCmd)
	plotCmd.PersistentFlags().StringVarP(&globalConfig.PlotDir,
		"output", "o", "output", "Directory for the PNG files")
	plotCmd.PersistentFlags().IntVar(&globalConfig.Bins,
		"bins", 20, "Histogram bins")
}

// plotHistograms writes one histogram per collected column and returns the
// written paths.
func plotHistograms(ds datasets.Dataset, limit, bins int, outDir string) ([]string, error) {
	var natoms, latticeA plotter.Values
	err := eachSample(ds, limit, func(_ int, s *datasets.Sample) error {
		natoms = append(natoms, float64(s.NumAtoms))
		if s.LatticeFeatures != nil {
			latticeA = append(latticeA, float64(s.LatticeFeatures.LatticeParams[0]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	var written []string
	for _, h := range []struct {
		file, title, xlabel string
		values              plotter.Values
	}{
		{"natoms.png", ds.Name() + " system size", "atoms", natoms},
		{"lattice_a.png", ds.Name() + " lattice length a", "a (Å)", latticeA},
	} {
		if len(h.values) == 0 {
			continue
		}
		path := filepath.Join(outDir, h.file)
		if err := saveHistogram(path, h.title, h.xlabel, h.values, bins); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func saveHistogram(path, title, xlabel string, values plotter.Values, bins int) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "count"

	hist, err := plotter.NewHist(values, bins)
	if err != nil {
		return errors.Wrapf(err, "histogram %s", title)
	}
	p.Add(hist)
	p.Add(plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}
