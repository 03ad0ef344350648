package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/crystalsets/datasets"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Archive:      "alexandria",
			Path:         "records",
			FullPairwise: true,
			Format:       "csv",
			Output:       "out.csv",
			PlotDir:      "plots",
			Bins:         10,
			Input:        "records.jsonl",
		}
	}

	tests := []struct {
		name    string
		mode    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"stats", "stats", func(c *Config) {}, false},
		{"inspect", "inspect", func(c *Config) { c.Index = 3 }, false},
		{"export", "export", func(c *Config) {}, false},
		{"plot", "plot", func(c *Config) {}, false},
		{"import", "import", func(c *Config) {}, false},
		{"oqmd", "stats", func(c *Config) { c.Archive = "oqmd" }, false},
		{"unknown mode", "train", func(c *Config) {}, true},
		{"no path", "stats", func(c *Config) { c.Path = "" }, true},
		{"unknown archive", "stats", func(c *Config) { c.Archive = "materials-project" }, true},
		{"negative limit", "stats", func(c *Config) { c.Limit = -1 }, true},
		{"negative cutoff", "stats", func(c *Config) { c.CutoffDist = -2 }, true},
		{"oqmd graph", "stats", func(c *Config) { c.Archive = "oqmd"; c.Graph = true }, true},
		{"negative index", "inspect", func(c *Config) { c.Index = -1 }, true},
		{"export format", "export", func(c *Config) { c.Format = "parquet" }, true},
		{"export output", "export", func(c *Config) { c.Output = "" }, true},
		{"plot bins", "plot", func(c *Config) { c.Bins = 0 }, true},
		{"import input", "import", func(c *Config) { c.Input = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			c.Mode = tt.mode
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfigFileOverridesFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crystalsets.yaml")
	yamlConfig := `archive: oqmd
path: /data/oqmd
full_pairwise: false
max_neighbors: 8
target_schema:
  - name: energy
    task: regression
  - name: stability
    task: classification
per_atom_targets: [forces]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o644))

	c := Config{Mode: "stats", ConfigFile: path, Archive: "alexandria", Path: "records", FullPairwise: true, Limit: 5}
	require.NoError(t, c.Validate())
	assert.Equal(t, "oqmd", c.Archive)
	assert.Equal(t, "/data/oqmd", c.Path)
	assert.False(t, c.FullPairwise)
	assert.Equal(t, 5, c.Limit)

	dc := c.datasetConfig(nil)
	assert.Equal(t, 8, dc.MaxNeighbors)
	assert.Equal(t, datasets.TargetSchema{
		{Name: "energy", Task: datasets.Regression},
		{Name: "stability", Task: datasets.Classification},
	}, dc.TargetSchema)
	assert.Equal(t, []string{"forces"}, dc.PerAtomTargets)
	assert.Nil(t, dc.Graph)
}

func TestConfigFileErrors(t *testing.T) {
	c := Config{Mode: "stats", ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")}
	require.Error(t, c.Validate())

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("archive: [oqmd"), 0o644))
	c = Config{Mode: "stats", ConfigFile: path}
	require.Error(t, c.Validate())
}

func TestDatasetConfigGraph(t *testing.T) {
	c := Config{Path: "records", Graph: true, CutoffDist: 4.5}
	dc := c.datasetConfig(datasets.NewMetrics())
	require.NotNil(t, dc.Graph)
	assert.Equal(t, 4.5, dc.Graph.CutoffDist)
	assert.Zero(t, dc.Graph.ThreebodyCutoff)
	assert.NotNil(t, dc.Metrics)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, log.InfoLevel, logLevel(""))
	assert.Equal(t, log.DebugLevel, logLevel("debug"))
	assert.Equal(t, log.WarnLevel, logLevel("WARN"))
	assert.Equal(t, log.InfoLevel, logLevel("loud"))
}
