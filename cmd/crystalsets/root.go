package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var globalConfig Config

func init() {
	log.SetLevel(logLevel(os.Getenv("LOG_LEVEL")))
	initRoot()
	initImport()
	initInspect()
	initStats()
	initExport()
	initPlot()
}

// logLevel parses a LOG_LEVEL value. Empty selects info, unknown values warn
// and fall back to info.
func logLevel(value string) log.Level {
	if value == "" {
		return log.InfoLevel
	}
	level, err := log.ParseLevel(value)
	if err != nil {
		log.WithField("LOG_LEVEL", value).Warn("unknown log level, using info")
		return log.InfoLevel
	}
	return level
}

var rootCmd = &cobra.Command{
	Use:   "crystalsets",
	Short: "Crystal structure dataset tools",
	Long:  `Import, inspect, summarize and export Alexandria and OQMD record stores`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("running the root command, see help or -h for available commands\n")
	},
}

func initRoot() {
	rootCmd.PersistentFlags().StringVar(&globalConfig.ConfigFile,
		"config", "", "Optional YAML file; its values override the flags")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.Archive,
		"archive", "a", "alexandria", "Record layout, one of [alexandria, oqmd]")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.Path,
		"path", "p", "", "Root directory of the record store")
	rootCmd.PersistentFlags().BoolVar(&globalConfig.FullPairwise,
		"full-pairwise", true, "Pair every atom with every atom")
	rootCmd.PersistentFlags().IntVar(&globalConfig.MaxNeighbors,
		"max-neighbors", 0, "Destination budget when full pairwise is off")
	rootCmd.PersistentFlags().BoolVar(&globalConfig.Graph,
		"graph", false, "Attach a periodic neighbor graph to Alexandria samples")
	rootCmd.PersistentFlags().Float64Var(&globalConfig.CutoffDist,
		"cutoff", 0, "Graph two-body cutoff in Angstrom (0 selects the default)")
	rootCmd.PersistentFlags().Float64Var(&globalConfig.ThreebodyCutoff,
		"threebody-cutoff", 0, "Graph three-body cutoff in Angstrom (0 selects the default)")
	rootCmd.PersistentFlags().IntVar(&globalConfig.CacheSize,
		"cache-size", 0, "Raw record cache entries")
	rootCmd.PersistentFlags().IntVarP(&globalConfig.Limit,
		"limit", "l", 0, "Maximum number of samples to visit (0 means all)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
