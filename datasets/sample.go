package datasets

import (
	"math"

	"github.com/Noofbiz/crystalsets/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Sample keys, as reported by Sample.Has.
const (
	KeyPos             = "pos"
	KeyAtomicNumbers   = "atomic_numbers"
	KeyPCFeatures      = "pc_features"
	KeySizes           = "sizes"
	KeySrcNodes        = "src_nodes"
	KeyDstNodes        = "dst_nodes"
	KeyDistanceMatrix  = "distance_matrix"
	KeyLatticeFeatures = "lattice_features"
	KeySymmetry        = "symmetry"
	KeyTargets         = "targets"
	KeyTargetTypes     = "target_types"
	KeyGraph           = "graph"
)

// LatticeFeatures carries the space group and [a, b, c, alpha, beta, gamma]
// with angles in radians.
type LatticeFeatures struct {
	SpaceGroup    int
	LatticeParams [6]float32
}

// Symmetry is the symmetry block of a sample. Alexandria fills Number,
// Symbol and Group; OQMD only carries the space group Name.
type Symmetry struct {
	Number int    `json:"number,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Group  string `json:"group,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Sample is one parsed structure.
type Sample struct {
	EntryID string

	// Pos holds N×3 Cartesian coordinates row-major.
	Pos           []float32
	AtomicNumbers []int64
	PCFeatures    *PairFeatures
	Sizes         int
	NumAtoms      int
	SrcNodes      []int
	DstNodes      []int

	// DistanceMatrix holds N×N periodic distances row-major, nil when the
	// archive has no lattice.
	DistanceMatrix []float32

	LatticeFeatures *LatticeFeatures
	Symmetry        *Symmetry
	Targets         map[string]Value
	TargetTypes     TargetTypes
	Graph           *graph.Graph
}

// Has reports whether a key is populated.
func (s *Sample) Has(key string) bool {
	switch key {
	case KeyPos:
		return s.Pos != nil
	case KeyAtomicNumbers:
		return s.AtomicNumbers != nil
	case KeyPCFeatures:
		return s.PCFeatures != nil
	case KeySizes:
		return s.Sizes > 0
	case KeySrcNodes:
		return s.SrcNodes != nil
	case KeyDstNodes:
		return s.DstNodes != nil
	case KeyDistanceMatrix:
		return s.DistanceMatrix != nil
	case KeyLatticeFeatures:
		return s.LatticeFeatures != nil
	case KeySymmetry:
		return s.Symmetry != nil
	case KeyTargets:
		return s.Targets != nil
	case KeyTargetTypes:
		return len(s.TargetTypes.All()) > 0
	case KeyGraph:
		return s.Graph != nil
	}
	return false
}

// PosDims returns the position tensor dimensions.
func (s *Sample) PosDims() []int {
	return []int{len(s.Pos) / 3, 3}
}

// Tensors converts the array valued fields into gomlx tensors.
func (s *Sample) Tensors() map[string]*tensors.Tensor {
	out := map[string]*tensors.Tensor{
		KeyPos:           tensors.FromFlatDataAndDimensions(s.Pos, s.PosDims()...),
		KeyAtomicNumbers: tensors.FromFlatDataAndDimensions(s.AtomicNumbers, len(s.AtomicNumbers)),
	}
	if s.PCFeatures != nil {
		out[KeyPCFeatures] = s.PCFeatures.Tensor()
	}
	if s.DistanceMatrix != nil {
		out[KeyDistanceMatrix] = tensors.FromFlatDataAndDimensions(s.DistanceMatrix, s.Sizes, s.Sizes)
	}
	for name, v := range s.Targets {
		out[KeyTargets+"."+name] = v.Tensor()
	}
	return out
}

// buildPointCloud fills the point cloud fields shared by both archives:
// positions, atomic numbers, node choice and pair features.
func buildPointCloud(s *Sample, coords [][3]float64, atomicNumbers []int64, cfg *Config) error {
	if len(coords) != len(atomicNumbers) {
		return errors.Errorf("%d coordinates for %d atomic numbers", len(coords), len(atomicNumbers))
	}
	systemSize := len(coords)
	choice, err := ChooseDstNodes(systemSize, cfg.FullPairwise, cfg.MaxNeighbors)
	if err != nil {
		return err
	}
	feats, err := PointCloudFeaturization(
		gather(atomicNumbers, choice.SrcNodes),
		gather(atomicNumbers, choice.DstNodes),
		cfg.MaxAtomicNumber,
	)
	if err != nil {
		return err
	}

	s.Pos = make([]float32, 0, 3*systemSize)
	for _, c := range coords {
		s.Pos = append(s.Pos, float32(c[0]), float32(c[1]), float32(c[2]))
	}
	s.AtomicNumbers = atomicNumbers
	s.PCFeatures = feats
	s.Sizes = systemSize
	s.NumAtoms = systemSize
	s.SrcNodes = choice.SrcNodes
	s.DstNodes = choice.DstNodes
	return nil
}

func degreesToRadians(deg float64) float32 {
	return float32(deg * (math.Pi / 180.0))
}
