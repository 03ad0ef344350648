package graph

import (
	"math"
	"testing"

	"github.com/Noofbiz/crystalsets/structure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simpleCubic returns a one-atom cubic cell with edge a.
func simpleCubic(t *testing.T, a float64, element string) *structure.Structure {
	t.Helper()
	lat, err := structure.NewLattice([3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}})
	require.NoError(t, err)
	z, err := structure.AtomicNumber(element)
	require.NoError(t, err)
	return &structure.Structure{
		Lattice: lat,
		Sites:   []structure.Site{{Symbol: element, AtomicNumber: z}},
	}
}

func TestFromStructure_SimpleCubicNeighbors(t *testing.T) {
	s := simpleCubic(t, 3.0, "Po")
	b, err := NewBuilder(3.1, 3.1, nil)
	require.NoError(t, err)

	g, err := b.FromStructure(s)
	require.NoError(t, err)

	// six face neighbors at 3.0, the next shell is at 3*sqrt(2)
	require.Equal(t, 1, g.NumNodes)
	require.Equal(t, 6, g.NumEdges())
	for _, d := range g.EdgeData[FieldBondDist].Floats {
		assert.InDelta(t, 3.0, d, 1e-5)
	}
	assert.Equal(t, []int{6}, g.InDegree())

	// 6 bonds give 6*5 ordered pairs, angles are 90 or 180 degrees
	require.Equal(t, 30, g.NumTriples())
	for _, c := range g.TripleCos {
		ok := math.Abs(float64(c)) < 1e-6 || math.Abs(float64(c)+1) < 1e-6
		assert.True(t, ok, "unexpected cosine %v", c)
	}

	assert.True(t, g.HasNodeField(FieldPos))
	assert.True(t, g.HasNodeField(FieldAtomicNumbers))
	assert.Equal(t, []string{FieldAtomicNumbers, FieldNodeType, FieldPos}, g.NodeFields())
	assert.Equal(t, []int64{83}, g.NodeData[FieldNodeType].Ints)
}

func TestFromStructure_ThreebodyCutoffLimitsTriples(t *testing.T) {
	s := simpleCubic(t, 3.0, "Po")
	b, err := NewBuilder(4.3, 3.1, nil)
	require.NoError(t, err)

	g, err := b.FromStructure(s)
	require.NoError(t, err)

	// 6 face + 12 edge neighbors, only the face bonds enter three-body pairs
	require.Equal(t, 18, g.NumEdges())
	assert.Equal(t, 30, g.NumTriples())
}

func TestFromPointCloud(t *testing.T) {
	b, err := NewBuilder(1.5, 1.5, nil)
	require.NoError(t, err)

	pos := []float32{0, 0, 0, 1, 0, 0, 5, 0, 0}
	g, err := b.FromPointCloud(pos, []int64{1, 8, 1})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, g.Src)
	assert.Equal(t, []int{1, 0}, g.Dst)
	assert.Empty(t, g.TripleBonds)
	assert.Equal(t, []int{3, 3}, g.NodeData[FieldPos].Dims)

	_, err = b.FromPointCloud(pos[:3], []int64{1, 8})
	require.Error(t, err)

	_, err = b.FromPointCloud([]float32{0, 0, 0}, []int64{150})
	require.ErrorIs(t, err, ErrUnknownElementType)
}

func TestNewBuilder_RejectsNegativeCutoff(t *testing.T) {
	_, err := NewBuilder(-1, 0, nil)
	require.ErrorIs(t, err, ErrBadCutoff)

	b, err := NewBuilder(0, 0, []string{"H", "O"})
	require.NoError(t, err)
	assert.Equal(t, DefaultCutoff, b.Cutoff)
	assert.Equal(t, DefaultThreebodyCutoff, b.ThreebodyCutoff)
}

func TestFromStructure_DefaultAndWideCutoffs(t *testing.T) {
	s := simpleCubic(t, 3.0, "Po")

	b, err := NewBuilder(0, 0, nil)
	require.NoError(t, err)
	g, err := b.FromStructure(s)
	require.NoError(t, err)
	// shells at 3 and 3*sqrt(2) fall inside 5 Å, 3*sqrt(3) does not
	assert.Equal(t, 18, g.NumEdges())
	assert.Equal(t, 30, g.NumTriples())

	b, err = NewBuilder(20, 3.1, nil)
	require.NoError(t, err)
	assert.Equal(t, 20.0, b.Cutoff)
	g, err = b.FromStructure(s)
	require.NoError(t, err)
	// lattice points of a 3 Å cubic lattice within 20 Å, origin excluded
	assert.Equal(t, 1236, g.NumEdges())
	assert.Equal(t, 30, g.NumTriples())
}

func TestNewBatch(t *testing.T) {
	b, err := NewBuilder(1.5, 1.5, nil)
	require.NoError(t, err)

	g1, err := b.FromPointCloud([]float32{0, 0, 0, 1, 0, 0}, []int64{1, 1})
	require.NoError(t, err)
	g2, err := b.FromPointCloud([]float32{0, 0, 0, 0, 1, 0, 0, 0, 1}, []int64{8, 1, 1})
	require.NoError(t, err)

	batch, err := NewBatch([]*Graph{g1, g2})
	require.NoError(t, err)

	assert.Equal(t, 2, batch.BatchSize)
	assert.Equal(t, 5, batch.TotalNodes())
	assert.Equal(t, []int{2, 3}, batch.NumNodes)
	assert.Equal(t, g1.NumEdges()+g2.NumEdges(), len(batch.Src))
	for e := g1.NumEdges(); e < len(batch.Src); e++ {
		assert.GreaterOrEqual(t, batch.Src[e], 2)
		assert.GreaterOrEqual(t, batch.Dst[e], 2)
	}
	for _, pair := range batch.TripleBonds[g1.NumTriples():] {
		assert.GreaterOrEqual(t, pair[0], g1.NumEdges())
	}

	assert.True(t, batch.HasNodeField(FieldPos))
	assert.Equal(t, []int{5, 3}, batch.NodeData[FieldPos].Dims)
	assert.Equal(t, []int64{1, 1, 8, 1, 1}, batch.NodeData[FieldAtomicNumbers].Ints)

	parts, err := batch.Unbatch(FieldAtomicNumbers)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, []int64{8, 1, 1}, parts[1].Ints)

	_, err = NewBatch(nil)
	require.Error(t, err)
}

func TestNewBatch_FieldMismatch(t *testing.T) {
	b, err := NewBuilder(1.5, 1.5, nil)
	require.NoError(t, err)
	g1, err := b.FromPointCloud([]float32{0, 0, 0}, []int64{1})
	require.NoError(t, err)
	g2, err := b.FromPointCloud([]float32{0, 0, 0}, []int64{1})
	require.NoError(t, err)
	delete(g2.NodeData, FieldPos)

	_, err = NewBatch([]*Graph{g1, g2})
	require.ErrorIs(t, err, ErrFieldMismatch)
}
