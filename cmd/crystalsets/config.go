package main

import (
	"os"

	"github.com/Noofbiz/crystalsets/datasets"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode       string `yaml:"-"`
	ConfigFile string `yaml:"-"`

	Archive         string  `yaml:"archive"`
	Path            string  `yaml:"path"`
	FullPairwise    bool    `yaml:"full_pairwise"`
	MaxNeighbors    int     `yaml:"max_neighbors"`
	Graph           bool    `yaml:"graph"`
	CutoffDist      float64 `yaml:"cutoff"`
	ThreebodyCutoff float64 `yaml:"threebody_cutoff"`
	CacheSize       int     `yaml:"cache_size"`
	Limit           int     `yaml:"limit"`

	Input    string `yaml:"input"`
	PerShard int    `yaml:"per_shard"`

	Index int `yaml:"index"`

	Format string `yaml:"format"`
	Output string `yaml:"output"`

	PlotDir string `yaml:"plot_dir"`
	Bins    int    `yaml:"bins"`

	TargetKeys     *datasets.TargetTypes `yaml:"target_keys"`
	TargetSchema   datasets.TargetSchema `yaml:"target_schema"`
	PerAtomTargets []string              `yaml:"per_atom_targets"`
}

// loadFile overlays the YAML file named by ConfigFile, if any.
func (c *Config) loadFile() error {
	if c.ConfigFile == "" {
		return nil
	}
	raw, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return errors.Wrapf(err, "parse config file %s", c.ConfigFile)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.loadFile(); err != nil {
		return err
	}
	if err := c.validateCommon(); err != nil {
		return err
	}

	// validate specific
	switch c.Mode {
	case "import":
		return c.validateImport()
	case "inspect":
		if c.Index < 0 {
			return errors.Errorf("index must be non-negative, got %d", c.Index)
		}
		return nil
	case "stats":
		return nil
	case "export":
		return c.validateExport()
	case "plot":
		return c.validatePlot()
	default:
		return errors.Errorf("unrecognized mode %q", c.Mode)
	}
}

func (c *Config) validateCommon() error {
	if c.Path == "" {
		return errors.Errorf("path must be set")
	}

	switch c.Archive {
	case "alexandria", "oqmd":
	default:
		return errors.Errorf("unsupported archive %q, must be one of [alexandria, oqmd]", c.Archive)
	}

	if c.Limit < 0 {
		return errors.Errorf("limit must be non-negative, got %d", c.Limit)
	}
	if c.MaxNeighbors < 0 {
		return errors.Errorf("max neighbors must be non-negative, got %d", c.MaxNeighbors)
	}
	if c.CutoffDist < 0 || c.ThreebodyCutoff < 0 {
		return errors.Errorf("cutoffs must be non-negative")
	}
	if c.Graph && c.Archive == "oqmd" {
		return errors.Errorf("graphs need a lattice, which oqmd records do not carry")
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.Input == "" {
		return errors.Errorf("input must be set")
	}
	if c.PerShard < 0 {
		return errors.Errorf("per shard must be non-negative, got %d", c.PerShard)
	}
	return nil
}

func (c *Config) validateExport() error {
	switch c.Format {
	case "hdf5", "csv":
	default:
		return errors.Errorf("unsupported export format %q, must be one of [hdf5, csv]", c.Format)
	}
	if c.Output == "" {
		return errors.Errorf("output must be set")
	}
	return nil
}

func (c *Config) validatePlot() error {
	if c.PlotDir == "" {
		return errors.Errorf("plot directory must be set")
	}
	if c.Bins <= 0 {
		return errors.Errorf("bins must be positive, got %d", c.Bins)
	}
	return nil
}

// datasetConfig translates the command line configuration.
func (c *Config) datasetConfig(metrics *datasets.Metrics) datasets.Config {
	cfg := datasets.DefaultConfig(c.Path)
	cfg.FullPairwise = c.FullPairwise
	cfg.MaxNeighbors = c.MaxNeighbors
	cfg.CacheSize = c.CacheSize
	cfg.TargetKeys = c.TargetKeys
	cfg.TargetSchema = c.TargetSchema
	cfg.PerAtomTargets = c.PerAtomTargets
	cfg.Metrics = metrics
	if c.Graph {
		cfg.Graph = &datasets.GraphConfig{
			CutoffDist:      c.CutoffDist,
			ThreebodyCutoff: c.ThreebodyCutoff,
		}
	}
	return cfg
}

// openDataset opens the configured archive.
func openDataset(c Config, metrics *datasets.Metrics) (datasets.Dataset, error) {
	cfg := c.datasetConfig(metrics)
	if c.Archive == "oqmd" {
		ds, err := datasets.NewOQMDDataset(cfg)
		if err != nil {
			return nil, err
		}
		return ds, nil
	}
	ds, err := datasets.NewAlexandriaDataset(cfg)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// eachSample visits the first Limit samples in index order.
func eachSample(ds datasets.Dataset, limit int, fn func(i int, s *datasets.Sample) error) error {
	n := ds.Len()
	if limit > 0 {
		n = min(n, limit)
	}
	for i := range n {
		s, err := ds.GetSample(i)
		if err != nil {
			return err
		}
		if err := fn(i, s); err != nil {
			return err
		}
	}
	return nil
}
