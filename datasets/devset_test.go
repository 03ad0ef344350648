package datasets

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/Noofbiz/crystalsets/recordstore"
)

var devsetRegression = []string{
	"energy", "e_form", "e_above_hull", "dos_ef", "forces",
	"magmoms", "stress", "total_magnetization", "band_gap",
}

var devsetElements = []string{"Na", "Cl", "Fe", "O"}

// devsetAtoms is the system size of devset record i.
func devsetAtoms(i int) int {
	return 1 + i%4
}

func floatList(n int, f func(k int) float64) string {
	parts := make([]string, n)
	for k := range parts {
		parts[k] = fmt.Sprintf("%.4f", f(k))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// alexandriaRecordJSON renders devset record i. Record 3 has no symmetry
// block and record 7 has a null dos_ef.
func alexandriaRecordJSON(i int) string {
	n := devsetAtoms(i)
	a := 4.0 + 0.1*float64(i)

	sites := make([]string, n)
	for k := range sites {
		el := devsetElements[k%len(devsetElements)]
		f := 0.2 * float64(k)
		sites[k] = fmt.Sprintf(`{"species": [{"element": %q, "occu": 1}], "abc": [%.2f, %.2f, %.2f], "label": %q}`, el, f, f, f, el)
	}
	structureJSON := fmt.Sprintf(`{"@module": "pymatgen.core.structure", "@class": "Structure",
		"lattice": {"matrix": [[%.2f, 0, 0], [0, %.2f, 0], [0, 0, %.2f]], "pbc": [true, true, true]},
		"sites": [%s]}`, a, a, a, strings.Join(sites, ", "))

	forces := make([]string, n)
	for k := range forces {
		forces[k] = floatList(3, func(c int) float64 { return 0.01*float64(k) - 0.02*float64(c) + 0.001 })
	}
	stress := make([]string, 3)
	for r := range stress {
		stress[r] = floatList(3, func(c int) float64 { return float64(r*3+c) + 0.5 })
	}
	dosEF := fmt.Sprintf("%.4f", 0.1*float64(i)+0.05)
	if i == 7 {
		dosEF = "null"
	}

	symmetry := `"symmetry": {"number": 225, "symbol": "Fm-3m", "point_group": "m-3m"},`
	if i == 3 {
		symmetry = ""
	}

	return fmt.Sprintf(`{"entry_id": "agm%06d", "structure": %s, %s
		"targets": {"regression": {
			"energy": %.4f, "e_form": %.4f, "e_above_hull": %.4f, "dos_ef": %s,
			"forces": [%s], "magmoms": %s, "stress": [%s],
			"total_magnetization": %.4f, "band_gap": %.4f},
		"classification": {}}}`,
		i, structureJSON, symmetry,
		-3.5-0.1*float64(i), -1.25+0.01*float64(i), 0.015*float64(i)+0.001, dosEF,
		strings.Join(forces, ", "), floatList(n, func(k int) float64 { return 0.5 + 0.1*float64(k) }),
		strings.Join(stress, ", "),
		0.25*float64(i)+0.01, 1.1+0.2*float64(i))
}

// oqmdRecordJSON renders devset record j. Odd records carry an integer
// band gap.
func oqmdRecordJSON(j int) string {
	n := 2 + j%3
	coords := make([]string, n)
	z := make([]string, n)
	for k := range coords {
		coords[k] = floatList(3, func(c int) float64 { return 1.5*float64(k) + 0.1*float64(c) })
		z[k] = fmt.Sprint(1 + (j+k)%20)
	}
	bandGap := fmt.Sprintf("%.4f", 0.3*float64(j)+0.1)
	if j%2 == 1 {
		bandGap = "0"
	}
	return fmt.Sprintf(`{"entry_id": %d, "name": "oqmd-%d", "cart_coords": [%s], "atomic_numbers": [%s],
		"delta_e": %.4f, "stability": %.4f, "band_gap": %s, "spacegroup": "Fm-3m"}`,
		j, j, strings.Join(coords, ", "), strings.Join(z, ", "),
		-0.5-0.05*float64(j), 0.02*float64(j)+0.001, bandGap)
}

func writeDevset(t *testing.T, n, perShard int, render func(int) string) string {
	t.Helper()
	root := t.TempDir()
	records := make([]any, n)
	for i := range records {
		raw := json.RawMessage(render(i))
		if !json.Valid(raw) {
			t.Fatalf("devset record %d is not valid JSON", i)
		}
		records[i] = raw
	}
	if _, err := recordstore.WriteShards(root, records, perShard); err != nil {
		t.Fatalf("failed to write devset: %v", err)
	}
	return root
}

// writeAlexandriaDevset writes eleven records across three shards.
func writeAlexandriaDevset(t *testing.T) string {
	t.Helper()
	return writeDevset(t, 11, 4, alexandriaRecordJSON)
}

// writeOQMDDevset writes ten records into a single shard.
func writeOQMDDevset(t *testing.T) string {
	t.Helper()
	return writeDevset(t, 10, 0, oqmdRecordJSON)
}

func openAlexandria(t *testing.T, cfg Config) *AlexandriaDataset {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = writeAlexandriaDevset(t)
	}
	ds, err := NewAlexandriaDataset(cfg)
	if err != nil {
		t.Fatalf("failed to open alexandria devset: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

func openOQMD(t *testing.T, cfg Config) *OQMDDataset {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = writeOQMDDevset(t)
	}
	ds, err := NewOQMDDataset(cfg)
	if err != nil {
		t.Fatalf("failed to open oqmd devset: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

func samplesOf(t *testing.T, ds Dataset, n int) []*Sample {
	t.Helper()
	out := make([]*Sample, n)
	for i := range out {
		s, err := ds.GetSample(i)
		if err != nil {
			t.Fatalf("failed to get sample %d: %v", i, err)
		}
		out[i] = s
	}
	return out
}
