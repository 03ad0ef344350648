package structure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const rockSalt = `{
  "@module": "pymatgen.core.structure",
  "@class": "Structure",
  "lattice": {"matrix": [[5.64, 0, 0], [0, 5.64, 0], [0, 0, 5.64]], "pbc": [true, true, true]},
  "properties": {"space_group": 225},
  "sites": [
    {"species": [{"element": "Na", "occu": 1}], "abc": [0, 0, 0], "label": "Na"},
    {"species": [{"element": "Cl", "occu": 1}], "abc": [0.5, 0.5, 0.5], "label": "Cl"},
    {"species": [{"element": "Na", "occu": 0.4}, {"element": "K", "occu": 0.6}], "xyz": [0.1, 5.5, 0], "label": "K"}
  ]
}`

func TestFromJSON(t *testing.T) {
	s, err := FromJSON([]byte(rockSalt))
	require.NoError(t, err)

	require.Equal(t, 3, s.NumSites())
	assert.Equal(t, []int{11, 17, 19}, s.AtomicNumbers())
	assert.Equal(t, 225, s.SpaceGroup)

	coords := s.CartCoords()
	assert.InDeltaSlice(t, []float64{2.82, 2.82, 2.82}, coords[1][:], 1e-9)
	assert.InDeltaSlice(t, []float64{0.1, 5.5, 0}, coords[2][:], 1e-9)

	abc := s.Lattice.ABC()
	assert.InDeltaSlice(t, []float64{5.64, 5.64, 5.64}, abc[:], 1e-9)
	angles := s.Lattice.Angles()
	assert.InDeltaSlice(t, []float64{90, 90, 90}, angles[:], 1e-9)
}

func TestFromDictMatchesFromJSON(t *testing.T) {
	d := map[string]any{
		"lattice": map[string]any{"matrix": [][]float64{{3, 0, 0}, {0, 3, 0}, {0, 0, 3}}},
		"sites": []any{
			map[string]any{"species": []any{map[string]any{"element": "Fe", "occu": 1.0}}, "abc": []float64{0, 0, 0}},
		},
	}
	s, err := FromDict(d)
	require.NoError(t, err)
	assert.Equal(t, []int{26}, s.AtomicNumbers())
	assert.Equal(t, 0, s.SpaceGroup)
}

func TestFromJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"no lattice", `{"sites": [{"species": [{"element": "H", "occu": 1}], "abc": [0,0,0]}]}`, ErrNoLattice},
		{"no sites", `{"lattice": {"matrix": [[1,0,0],[0,1,0],[0,0,1]]}, "sites": []}`, ErrNoSites},
		{"singular", `{"lattice": {"matrix": [[1,0,0],[2,0,0],[0,0,1]]}, "sites": [{"species": [{"element": "H", "occu": 1}], "abc": [0,0,0]}]}`, ErrSingularLattice},
		{"unknown element", `{"lattice": {"matrix": [[1,0,0],[0,1,0],[0,0,1]]}, "sites": [{"species": [{"element": "Qq", "occu": 1}], "abc": [0,0,0]}]}`, ErrUnknownElement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromJSON([]byte(tt.raw))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDistanceMatrixMinimumImage(t *testing.T) {
	s, err := FromJSON([]byte(rockSalt))
	require.NoError(t, err)

	dm := s.DistanceMatrix()
	n, _ := dm.Dims()
	require.Equal(t, 3, n)
	for i := range n {
		assert.Zero(t, dm.At(i, i))
		for j := range n {
			assert.Equal(t, dm.At(i, j), dm.At(j, i))
		}
	}
	// body diagonal half: sqrt(3)*2.82
	assert.InDelta(t, math.Sqrt(3)*2.82, dm.At(0, 1), 1e-9)
	// site 2 sits near the periodic image of site 0 along b
	assert.InDelta(t, math.Hypot(0.1, 0.14), dm.At(0, 2), 1e-9)
}

func TestLatticeFromParameters(t *testing.T) {
	l, err := NewLatticeFromParameters(3, 4, 5, 80, 95, 110)
	require.NoError(t, err)

	abc := l.ABC()
	assert.InDeltaSlice(t, []float64{3, 4, 5}, abc[:], 1e-9)
	angles := l.Angles()
	assert.InDeltaSlice(t, []float64{80, 95, 110}, angles[:], 1e-9)

	frac := [3]float64{0.25, 0.5, 0.75}
	back := l.Fractional(l.Cartesian(frac))
	assert.InDeltaSlice(t, frac[:], back[:], 1e-12)
	assert.InDelta(t, mat.Det(l.Matrix()), l.Volume(), 1e-9)
}

func TestLatticeCartesianUsesRows(t *testing.T) {
	l, err := NewLattice([3][3]float64{{2, 0, 0}, {1, 3, 0}, {0, 1, 4}})
	require.NoError(t, err)

	cart := l.Cartesian([3]float64{1, 1, 1})
	assert.InDeltaSlice(t, []float64{3, 4, 4}, cart[:], 1e-12)
	cart = l.Cartesian([3]float64{0, 1, 0})
	assert.InDeltaSlice(t, []float64{1, 3, 0}, cart[:], 1e-12)

	frac := l.Fractional([3]float64{3, 4, 4})
	assert.InDeltaSlice(t, []float64{1, 1, 1}, frac[:], 1e-12)
	assert.InDelta(t, 24.0, l.Volume(), 1e-12)

	spacing := l.InterplanarSpacings()
	assert.InDelta(t, 4.0, spacing[2], 1e-12)

	m := l.Matrix()
	m.Set(0, 0, 100)
	again := l.Cartesian([3]float64{1, 0, 0})
	assert.InDelta(t, 2.0, again[0], 1e-12)
}

func TestNewLatticeRejectsSingular(t *testing.T) {
	_, err := NewLattice([3][3]float64{{1, 0, 0}, {2, 0, 0}, {0, 0, 1}})
	require.ErrorIs(t, err, ErrSingularLattice)

	_, err = NewLatticeFromParameters(1, 1, 1, 10, 170, 90)
	require.ErrorIs(t, err, ErrSingularLattice)
}

func TestAtomicNumber(t *testing.T) {
	z, err := AtomicNumber("Fe2+")
	require.NoError(t, err)
	assert.Equal(t, 26, z)

	sym, err := Symbol(8)
	require.NoError(t, err)
	assert.Equal(t, "O", sym)

	_, err = Symbol(0)
	require.ErrorIs(t, err, ErrUnknownElement)

	types := ElementTypes()
	assert.Len(t, types, 100)
	assert.Equal(t, "H", types[0])
	assert.Equal(t, "Fm", types[99])
}
