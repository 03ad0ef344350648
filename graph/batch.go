package graph

import (
	"slices"

	"github.com/pkg/errors"
)

// Batch is a disjoint union of graphs. Node and edge indices of graph k are
// shifted by the node and edge counts of graphs 0..k-1.
type Batch struct {
	BatchSize int
	NumNodes  []int
	NumEdges  []int
	Src       []int
	Dst       []int

	NodeData map[string]Field
	EdgeData map[string]Field

	TripleBonds [][2]int
	TripleCos   []float32
}

// NewBatch merges graphs into one batch.
func NewBatch(graphs []*Graph) (*Batch, error) {
	if len(graphs) == 0 {
		return nil, errors.New("cannot batch zero graphs")
	}

	b := &Batch{
		BatchSize: len(graphs),
		NumNodes:  make([]int, len(graphs)),
		NumEdges:  make([]int, len(graphs)),
	}
	nodeOffset, edgeOffset := 0, 0
	for k, g := range graphs {
		if g == nil {
			return nil, errors.Errorf("graph %d is nil", k)
		}
		b.NumNodes[k] = g.NumNodes
		b.NumEdges[k] = g.NumEdges()
		for e := range g.Src {
			b.Src = append(b.Src, g.Src[e]+nodeOffset)
			b.Dst = append(b.Dst, g.Dst[e]+nodeOffset)
		}
		for t, pair := range g.TripleBonds {
			b.TripleBonds = append(b.TripleBonds, [2]int{pair[0] + edgeOffset, pair[1] + edgeOffset})
			b.TripleCos = append(b.TripleCos, g.TripleCos[t])
		}
		nodeOffset += g.NumNodes
		edgeOffset += g.NumEdges()
	}

	var err error
	if b.NodeData, err = concatFields(graphs, func(g *Graph) map[string]Field { return g.NodeData }); err != nil {
		return nil, errors.Wrap(err, "node data")
	}
	if b.EdgeData, err = concatFields(graphs, func(g *Graph) map[string]Field { return g.EdgeData }); err != nil {
		return nil, errors.Wrap(err, "edge data")
	}
	return b, nil
}

// TotalNodes returns the node count of the whole batch.
func (b *Batch) TotalNodes() int {
	total := 0
	for _, n := range b.NumNodes {
		total += n
	}
	return total
}

// HasNodeField reports whether every graph carried the node field.
func (b *Batch) HasNodeField(name string) bool {
	_, ok := b.NodeData[name]
	return ok
}

// Unbatch splits the node field back into per-graph fields.
func (b *Batch) Unbatch(name string) ([]Field, error) {
	f, ok := b.NodeData[name]
	if !ok {
		return nil, errors.Wrapf(ErrFieldMismatch, "no node field %q", name)
	}
	width := 1
	for _, d := range f.trailing() {
		width *= d
	}
	out := make([]Field, b.BatchSize)
	start := 0
	for k, n := range b.NumNodes {
		dims := append([]int{n}, f.trailing()...)
		lo, hi := start*width, (start+n)*width
		if f.IsInteger() {
			out[k] = Field{Dims: dims, Ints: f.Ints[lo:hi]}
		} else {
			out[k] = Field{Dims: dims, Floats: f.Floats[lo:hi]}
		}
		start += n
	}
	return out, nil
}

func concatFields(graphs []*Graph, pick func(*Graph) map[string]Field) (map[string]Field, error) {
	first := pick(graphs[0])
	out := make(map[string]Field, len(first))
	for _, name := range sortedKeys(first) {
		proto := first[name]
		merged := Field{}
		rows := 0
		if proto.IsInteger() {
			merged.Ints = []int64{}
		}
		for k, g := range graphs {
			f, ok := pick(g)[name]
			if !ok {
				return nil, errors.Wrapf(ErrFieldMismatch, "graph %d lacks field %q", k, name)
			}
			if f.IsInteger() != proto.IsInteger() || !slices.Equal(f.trailing(), proto.trailing()) {
				return nil, errors.Wrapf(ErrFieldMismatch, "graph %d field %q has dims %v, want trailing %v", k, name, f.Dims, proto.trailing())
			}
			merged.Floats = append(merged.Floats, f.Floats...)
			merged.Ints = append(merged.Ints, f.Ints...)
			rows += f.Rows()
		}
		if !proto.IsInteger() {
			merged.Ints = nil
		}
		merged.Dims = append([]int{rows}, proto.trailing()...)
		out[name] = merged
	}
	for k, g := range graphs[1:] {
		if len(pick(g)) != len(first) {
			return nil, errors.Wrapf(ErrFieldMismatch, "graph %d has %d fields, want %d", k+1, len(pick(g)), len(first))
		}
	}
	return out, nil
}
