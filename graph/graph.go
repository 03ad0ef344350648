// Package graph builds neighbor graphs over atoms for message-passing models.
//
// A Graph is a directed edge list in the style of DGL: parallel Src/Dst
// slices, per-node and per-edge data fields, and the three-body bond pairs an
// M3GNet style line graph is built from. Periodic structures produce one edge
// per neighbor image inside the cutoff sphere.
package graph

import (
	"sort"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Node and edge field names.
const (
	FieldPos           = "pos"
	FieldAtomicNumbers = "atomic_numbers"
	FieldNodeType      = "node_type"
	FieldBondDist      = "bond_dist"
	FieldBondVec       = "bond_vec"
	FieldPBCOffset     = "pbc_offset"
)

// ErrFieldMismatch is returned when batched graphs disagree on their fields.
var ErrFieldMismatch = errors.New("graph field mismatch")

// Field is a row-major block of values whose first dimension indexes nodes or
// edges. Exactly one of Floats and Ints is populated.
type Field struct {
	Dims   []int
	Floats []float32
	Ints   []int64
}

// FloatField builds a float field of rows×width values.
func FloatField(values []float32, width int) Field {
	return Field{Dims: rowDims(len(values), width), Floats: values}
}

// IntField builds an integer field of rows×width values.
func IntField(values []int64, width int) Field {
	if values == nil {
		values = []int64{}
	}
	return Field{Dims: rowDims(len(values), width), Ints: values}
}

func rowDims(n, width int) []int {
	if width <= 1 {
		return []int{n}
	}
	return []int{n / width, width}
}

// Rows returns the size of the first dimension.
func (f Field) Rows() int {
	if len(f.Dims) == 0 {
		return 0
	}
	return f.Dims[0]
}

// IsInteger reports whether the field carries integer values.
func (f Field) IsInteger() bool {
	return f.Ints != nil
}

// Tensor converts the field into a GoMLX tensor.
func (f Field) Tensor() *tensors.Tensor {
	if f.IsInteger() {
		return tensors.FromFlatDataAndDimensions(f.Ints, f.Dims...)
	}
	return tensors.FromFlatDataAndDimensions(f.Floats, f.Dims...)
}

func (f Field) trailing() []int {
	if len(f.Dims) <= 1 {
		return nil
	}
	return f.Dims[1:]
}

// Graph is a directed neighbor graph.
type Graph struct {
	NumNodes int
	Src      []int
	Dst      []int

	NodeData map[string]Field
	EdgeData map[string]Field

	// TripleBonds holds pairs of edge indices (i→j, i→k), j and k distinct
	// images, both within the three-body cutoff.
	TripleBonds [][2]int
	// TripleCos is the cosine of the angle at the shared source atom.
	TripleCos []float32
}

// NumEdges returns the number of directed edges.
func (g *Graph) NumEdges() int {
	return len(g.Src)
}

// NumTriples returns the number of three-body bond pairs.
func (g *Graph) NumTriples() int {
	return len(g.TripleBonds)
}

// HasNodeField reports whether a node field is present.
func (g *Graph) HasNodeField(name string) bool {
	_, ok := g.NodeData[name]
	return ok
}

// NodeFields lists node field names in sorted order.
func (g *Graph) NodeFields() []string {
	return sortedKeys(g.NodeData)
}

// InDegree counts the edges arriving at each node.
func (g *Graph) InDegree() []int {
	deg := make([]int, g.NumNodes)
	for _, d := range g.Dst {
		deg[d]++
	}
	return deg
}

func sortedKeys(m map[string]Field) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
