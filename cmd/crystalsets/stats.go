package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/Noofbiz/crystalsets/datasets"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize system sizes and scalar targets",
	Long:  `Parse up to --limit samples and print count, mean, standard deviation, min, median and max of the system size and every scalar target`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := globalConfig
		cfg.Mode = "stats"

		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}

		reg := prometheus.NewRegistry()
		metrics := datasets.NewMetrics()
		if err := metrics.Register(reg); err != nil {
			log.Fatal(err)
		}
		ds, err := openDataset(cfg, metrics)
		if err != nil {
			log.Fatal(err)
		}
		defer ds.Close()

		columns, err := collectColumns(ds, cfg.Limit)
		if err != nil {
			log.Fatal(err)
		}
		if err := writeSummary(os.Stdout, columns); err != nil {
			log.Fatal(err)
		}
		if err := writeCounters(os.Stdout, reg); err != nil {
			log.Fatal(err)
		}
	},
}

func initStats() {
	rootCmd.AddCommand(statsCmd)
}

// collectColumns gathers natoms, lattice lengths and every scalar target,
// keyed by column name.
func collectColumns(ds datasets.Dataset, limit int) (map[string]stats.Float64Data, error) {
	columns := make(map[string]stats.Float64Data)
	err := eachSample(ds, limit, func(_ int, s *datasets.Sample) error {
		columns["natoms"] = append(columns["natoms"], float64(s.NumAtoms))
		if s.LatticeFeatures != nil {
			for k, name := range []string{"a", "b", "c"} {
				columns[name] = append(columns[name], float64(s.LatticeFeatures.LatticeParams[k]))
			}
		}
		for name, v := range s.Targets {
			if v.IsTensor() || v.Missing {
				continue
			}
			columns["targets."+name] = append(columns["targets."+name], v.Float())
		}
		return nil
	})
	return columns, err
}

type summaryRow struct {
	name                           string
	count                          int
	mean, std, min, median, maxVal float64
}

func summarizeColumn(name string, data stats.Float64Data) (summaryRow, error) {
	row := summaryRow{name: name, count: data.Len()}
	var err error
	if row.mean, err = stats.Mean(data); err != nil {
		return row, errors.Wrapf(err, "mean of %s", name)
	}
	if row.std, err = stats.StandardDeviation(data); err != nil {
		return row, errors.Wrapf(err, "standard deviation of %s", name)
	}
	if row.min, err = stats.Min(data); err != nil {
		return row, errors.Wrapf(err, "min of %s", name)
	}
	if row.median, err = stats.Median(data); err != nil {
		return row, errors.Wrapf(err, "median of %s", name)
	}
	if row.maxVal, err = stats.Max(data); err != nil {
		return row, errors.Wrapf(err, "max of %s", name)
	}
	return row, nil
}

func writeSummary(w io.Writer, columns map[string]stats.Float64Data) error {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "column\tcount\tmean\tstd\tmin\tmedian\tmax")
	for _, name := range names {
		row, err := summarizeColumn(name, columns[name])
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
			row.name, row.count, row.mean, row.std, row.min, row.median, row.maxVal)
	}
	return tw.Flush()
}

// writeCounters prints the families gathered from reg in the Prometheus text
// exposition format.
func writeCounters(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrapf(err, "write %s", mf.GetName())
		}
	}
	return nil
}
