package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Noofbiz/crystalsets/datasets"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alexandriaLines renders n JSON lines records; odd records have no entry_id.
func alexandriaLines(n int) string {
	var sb strings.Builder
	for i := range n {
		id := ""
		if i%2 == 0 {
			id = fmt.Sprintf(`"entry_id": "agm%03d", `, i)
		}
		a := 3.0 + 0.5*float64(i)
		fmt.Fprintf(&sb, `{%s"structure": {"lattice": {"matrix": [[%.1f, 0, 0], [0, %.1f, 0], [0, 0, %.1f]]},`+
			`"sites": [{"species": [{"element": "Li", "occu": 1}], "abc": [0, 0, 0]},`+
			`{"species": [{"element": "F", "occu": 1}], "abc": [0.5, 0.5, 0.5]}]},`+
			`"symmetry": {"number": 221, "symbol": "Pm-3m", "point_group": "m-3m"},`+
			`"targets": {"regression": {"energy": %.3f, "band_gap": %.3f, "forces": [[0.1, 0.0, 0.0], [-0.1, 0.0, 0.0]]}, "classification": {"is_metal": %d}}}`+"\n",
			id, a, a, a, -2.5-0.1*float64(i), 4.0+0.5*float64(i), i%2)
		if i == 1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func importedStore(t *testing.T, n, perShard int) string {
	t.Helper()
	root := t.TempDir()
	written, err := importRecords(strings.NewReader(alexandriaLines(n)), root, perShard)
	require.NoError(t, err)
	require.Equal(t, n, written)
	return root
}

func openImported(t *testing.T, root string) datasets.Dataset {
	t.Helper()
	ds, err := openDataset(Config{Archive: "alexandria", Path: root, FullPairwise: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestImportRecords(t *testing.T) {
	root := importedStore(t, 5, 2)
	shards, err := filepath.Glob(filepath.Join(root, "data.*"))
	require.NoError(t, err)
	assert.Len(t, shards, 3)

	ds := openImported(t, root)
	require.Equal(t, 5, ds.Len())

	s, err := ds.GetSample(0)
	require.NoError(t, err)
	assert.Equal(t, "agm000", s.EntryID)

	s, err = ds.GetSample(1)
	require.NoError(t, err)
	_, err = uuid.Parse(s.EntryID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"energy", "band_gap", "forces"}, s.TargetTypes.Regression)
	assert.Equal(t, []string{"is_metal"}, s.TargetTypes.Classification)
}

func TestImportRecordsAppendsShards(t *testing.T) {
	root := importedStore(t, 3, 0)
	written, err := importRecords(strings.NewReader(alexandriaLines(2)), root, 0)
	require.NoError(t, err)
	require.Equal(t, 2, written)

	ds := openImported(t, root)
	assert.Equal(t, 5, ds.Len())
}

// oqmdLines renders n OQMD JSON lines records with ids starting at first.
func oqmdLines(first, n int) string {
	var sb strings.Builder
	for i := first; i < first+n; i++ {
		fmt.Fprintf(&sb, `{"entry_id": %d, "name": "oqmd-%d", "cart_coords": [[0, 0, 0], [1.5, 1.5, 1.5]], `+
			`"atomic_numbers": [3, 9], "delta_e": %.3f, "stability": 0.01, "band_gap": 1.5, "spacegroup": "Fm-3m"}`+"\n",
			i, i, -0.5-0.1*float64(i))
	}
	return sb.String()
}

func TestImportSingleShardKeepsOQMDReadable(t *testing.T) {
	root := t.TempDir()
	written, err := importSingleShard(strings.NewReader(oqmdLines(0, 3)), root)
	require.NoError(t, err)
	require.Equal(t, 3, written)
	written, err = importSingleShard(strings.NewReader(oqmdLines(3, 4)), root)
	require.NoError(t, err)
	require.Equal(t, 4, written)

	shards, err := filepath.Glob(filepath.Join(root, "data.*"))
	require.NoError(t, err)
	assert.Len(t, shards, 1)

	ds, err := openDataset(Config{Archive: "oqmd", Path: root}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	require.Equal(t, 7, ds.Len())

	s, err := ds.GetSample(6)
	require.NoError(t, err)
	assert.Equal(t, "6", s.EntryID)
}

func TestImportRecordsRejectsBadLines(t *testing.T) {
	input := alexandriaLines(1) + "[1, 2, 3]\n"
	_, err := importRecords(strings.NewReader(input), t.TempDir(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWithEntryID(t *testing.T) {
	raw := []byte(`{"entry_id": 42, "x": 1}`)
	out, err := withEntryID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	out, err = withEntryID([]byte(`{"entry_id": null, "x": 1.50}`))
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &fields))
	var id string
	require.NoError(t, json.Unmarshal(fields["entry_id"], &id))
	_, err = uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "1.50", string(fields["x"]))
}

func TestInspectSample(t *testing.T) {
	ds := openImported(t, importedStore(t, 3, 0))

	var buf bytes.Buffer
	require.NoError(t, inspectSample(&buf, ds, 2))

	out := buf.String()
	dec := json.NewDecoder(strings.NewReader(out))
	var summary sampleSummary
	require.NoError(t, dec.Decode(&summary))
	assert.Equal(t, "AlexandriaDataset", summary.Dataset)
	assert.Equal(t, "agm002", summary.EntryID)
	assert.Equal(t, 2, summary.NumAtoms)
	assert.Equal(t, []int{2, 2, 2 * datasets.MaxAtomicNumber}, summary.PCFeatures)
	assert.Equal(t, "Pm-3m", summary.Symmetry.Symbol)
	assert.Equal(t, datasets.Regression, summary.Targets["energy"].Task)
	assert.Equal(t, datasets.Classification, summary.Targets["is_metal"].Task)
	assert.Equal(t, []int{2, 3}, summary.Targets["forces"].Dims)
	assert.Equal(t, []string{"is_metal"}, summary.TargetTypes["classification"])
	assert.Contains(t, out, "3 of 3 samples")

	require.Error(t, inspectSample(&buf, ds, 3))
}

func TestCollectColumnsAndSummary(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := datasets.NewMetrics()
	require.NoError(t, metrics.Register(reg))

	root := importedStore(t, 4, 0)
	ds, err := openDataset(Config{Archive: "alexandria", Path: root, FullPairwise: true}, metrics)
	require.NoError(t, err)
	defer ds.Close()

	columns, err := collectColumns(ds, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2}, []float64(columns["natoms"]))
	assert.InDeltaSlice(t, []float64{3, 3.5, 4}, []float64(columns["a"]), 1e-6)
	assert.Len(t, columns["targets.energy"], 3)
	assert.Len(t, columns["targets.is_metal"], 3)
	assert.NotContains(t, columns, "targets.forces")

	row, err := summarizeColumn("a", columns["a"])
	require.NoError(t, err)
	assert.InDelta(t, 3.5, row.mean, 1e-6)
	assert.InDelta(t, 3.0, row.min, 1e-6)
	assert.InDelta(t, 4.0, row.maxVal, 1e-6)

	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, columns))
	assert.Contains(t, buf.String(), "targets.band_gap")

	buf.Reset()
	require.NoError(t, writeCounters(&buf, reg))
	assert.Contains(t, buf.String(), `crystalsets_samples_parsed_total{dataset="AlexandriaDataset"} 3`)
}

func TestExportCSV(t *testing.T) {
	ds := openImported(t, importedStore(t, 4, 0))
	var samples []*datasets.Sample
	require.NoError(t, eachSample(ds, 0, func(_ int, s *datasets.Sample) error {
		samples = append(samples, s)
		return nil
	}))
	require.Len(t, samples, 4)

	path := filepath.Join(t.TempDir(), "samples.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, exportCSV(f, samples))
	require.NoError(t, f.Close())

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()
	var rows []*sampleRow
	require.NoError(t, gocsv.UnmarshalFile(in, &rows))
	require.Len(t, rows, 4)
	assert.Equal(t, "agm000", rows[0].EntryID)
	assert.Equal(t, "F Li", rows[0].Elements)
	assert.Equal(t, "Pm-3m", rows[0].SpaceGroup)
	assert.Equal(t, 2, rows[0].NumAtoms)
	assert.InDelta(t, 3.0, rows[0].A, 1e-6)
	assert.InDelta(t, -2.6, rows[1].Energy, 1e-9)
	assert.InDelta(t, 5.0, rows[2].BandGap, 1e-9)
}

func TestPlotHistograms(t *testing.T) {
	ds := openImported(t, importedStore(t, 6, 0))
	outDir := filepath.Join(t.TempDir(), "plots")

	written, err := plotHistograms(ds, 0, 5, outDir)
	require.NoError(t, err)
	require.Len(t, written, 2)
	for _, path := range written {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
