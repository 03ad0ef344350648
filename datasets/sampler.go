package datasets

import (
	"github.com/pkg/errors"
)

// DefaultMaxNeighbors is the destination budget of subsampled point clouds.
const DefaultMaxNeighbors = 16

// NodeChoice selects the atoms that act as pair sources and destinations.
// The sampled pairs are the cross product SrcNodes × DstNodes.
type NodeChoice struct {
	SrcNodes []int
	DstNodes []int
}

// NumPairs returns the number of (src, dst) pairs.
func (c NodeChoice) NumPairs() int {
	return len(c.SrcNodes) * len(c.DstNodes)
}

// Pairs enumerates the pairs row-major, sources outermost.
func (c NodeChoice) Pairs() [][2]int {
	out := make([][2]int, 0, c.NumPairs())
	for _, s := range c.SrcNodes {
		for _, d := range c.DstNodes {
			out = append(out, [2]int{s, d})
		}
	}
	return out
}

// ChooseDstNodes picks the node pairs of a system of the given size.
//
// With fullPairwise every atom is a source and a destination, self pairs
// included, giving systemSize² pairs. Otherwise every atom is a source and the
// destinations are an evenly strided subset of min(maxNeighbors, systemSize-1)
// atoms (at least one). The choice depends only on its arguments.
func ChooseDstNodes(systemSize int, fullPairwise bool, maxNeighbors int) (NodeChoice, error) {
	if systemSize <= 0 {
		return NodeChoice{}, errors.Wrapf(ErrEmptyStructure, "system size %d", systemSize)
	}
	src := arange(systemSize)
	if fullPairwise {
		return NodeChoice{SrcNodes: src, DstNodes: arange(systemSize)}, nil
	}

	if maxNeighbors <= 0 {
		maxNeighbors = DefaultMaxNeighbors
	}
	k := min(maxNeighbors, systemSize-1)
	if k < 1 {
		k = 1
	}
	dst := make([]int, k)
	for i := range k {
		dst[i] = i * systemSize / k
	}
	return NodeChoice{SrcNodes: src, DstNodes: dst}, nil
}

func arange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
