package datasets

import (
	"slices"

	"github.com/Noofbiz/crystalsets/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Batch tensor keys, as returned by Batch.Tensors, in addition to the sample
// keys.
const (
	KeyPCMask        = "pc_mask"
	KeySpaceGroups   = "space_groups"
	KeyLatticeParams = "lattice_params"
)

// Batch is a set of collated samples. Positions are concatenated along the
// atom axis, pair features are zero padded, node choices are kept per sample.
type Batch struct {
	BatchSize int
	EntryIDs  []string

	// Pos holds TotalAtoms×3 coordinates row-major.
	Pos           []float32
	TotalAtoms    int
	AtomicNumbers [][]int64

	// PCFeatures is padded to PCFeaturesDims = [B, maxSrc, maxDst, 2V]; PCMask
	// is 1 for real pairs and 0 for padding, dims [B, maxSrc, maxDst].
	PCFeatures     []float32
	PCFeaturesDims []int
	PCMask         []float32

	Sizes    []int
	SrcNodes [][]int
	DstNodes [][]int

	// SpaceGroups and LatticeParams (B×6) are set when every sample carries
	// lattice features.
	SpaceGroups   []int64
	LatticeParams []float32

	Symmetry    []*Symmetry
	Targets     map[string]Value
	TargetTypes TargetTypes
	Graph       *graph.Batch
}

// FlatAtomicNumbers concatenates the per sample atomic numbers.
func (b *Batch) FlatAtomicNumbers() []int64 {
	out := make([]int64, 0, b.TotalAtoms)
	for _, z := range b.AtomicNumbers {
		out = append(out, z...)
	}
	return out
}

// Tensors converts the array valued fields into gomlx tensors.
func (b *Batch) Tensors() map[string]*tensors.Tensor {
	out := map[string]*tensors.Tensor{
		KeyPos:           tensors.FromFlatDataAndDimensions(b.Pos, b.TotalAtoms, 3),
		KeyAtomicNumbers: tensors.FromFlatDataAndDimensions(b.FlatAtomicNumbers(), b.TotalAtoms),
		KeyPCFeatures:    tensors.FromFlatDataAndDimensions(b.PCFeatures, b.PCFeaturesDims...),
		KeyPCMask:        tensors.FromFlatDataAndDimensions(b.PCMask, b.PCFeaturesDims[:3]...),
	}
	if b.SpaceGroups != nil {
		out[KeySpaceGroups] = tensors.FromFlatDataAndDimensions(b.SpaceGroups, b.BatchSize)
		out[KeyLatticeParams] = tensors.FromFlatDataAndDimensions(b.LatticeParams, b.BatchSize, 6)
	}
	for name, v := range b.Targets {
		out[KeyTargets+"."+name] = v.Tensor()
	}
	return out
}

// DefaultPerAtomTargets lists the labels whose leading axis runs over the
// atoms of a structure.
var DefaultPerAtomTargets = []string{"forces", "magmoms"}

// Collate merges samples into a batch, treating DefaultPerAtomTargets as
// per-atom labels.
func Collate(samples []*Sample) (*Batch, error) {
	return CollateWith(samples, DefaultPerAtomTargets)
}

// CollateWith merges samples into a batch.
//
// Scalar targets become [B] vectors. Targets named in perAtom are
// concatenated along the atom axis into [TotalAtoms, ...]; their leading
// dimension must equal each sample's atom count. Every other tensor target is
// stacked into [B, ...] and must have the same shape in every sample. The
// layout of a label therefore never depends on which samples share a batch.
// Graphs are batched when every sample carries one.
func CollateWith(samples []*Sample, perAtom []string) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.Wrap(ErrCollate, "no samples")
	}
	for i, s := range samples {
		if s == nil || s.PCFeatures == nil {
			return nil, errors.Wrapf(ErrCollate, "sample %d has no point cloud", i)
		}
	}

	b := &Batch{
		BatchSize:   len(samples),
		EntryIDs:    make([]string, len(samples)),
		Sizes:       make([]int, len(samples)),
		SrcNodes:    make([][]int, len(samples)),
		DstNodes:    make([][]int, len(samples)),
		Symmetry:    make([]*Symmetry, len(samples)),
		TargetTypes: samples[0].TargetTypes.Clone(),
	}
	for i, s := range samples {
		b.EntryIDs[i] = s.EntryID
		b.Pos = append(b.Pos, s.Pos...)
		b.TotalAtoms += s.NumAtoms
		b.AtomicNumbers = append(b.AtomicNumbers, s.AtomicNumbers)
		b.Sizes[i] = s.Sizes
		b.SrcNodes[i] = s.SrcNodes
		b.DstNodes[i] = s.DstNodes
		b.Symmetry[i] = s.Symmetry
	}

	if err := b.padPairFeatures(samples); err != nil {
		return nil, err
	}
	b.stackLattice(samples)

	var err error
	if b.Targets, err = collateTargets(samples, perAtom); err != nil {
		return nil, err
	}
	if b.Graph, err = collateGraphs(samples); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Batch) padPairFeatures(samples []*Sample) error {
	maxSrc, maxDst := 0, 0
	channels := samples[0].PCFeatures.Channels()
	for i, s := range samples {
		if s.PCFeatures.Channels() != channels {
			return errors.Wrapf(ErrCollate, "sample %d has %d feature channels, want %d", i, s.PCFeatures.Channels(), channels)
		}
		maxSrc = max(maxSrc, s.PCFeatures.Src)
		maxDst = max(maxDst, s.PCFeatures.Dst)
	}

	b.PCFeaturesDims = []int{len(samples), maxSrc, maxDst, channels}
	b.PCFeatures = make([]float32, len(samples)*maxSrc*maxDst*channels)
	b.PCMask = make([]float32, len(samples)*maxSrc*maxDst)
	for k, s := range samples {
		p := s.PCFeatures
		for i := range p.Src {
			for j := range p.Dst {
				cell := (k*maxSrc+i)*maxDst + j
				copy(b.PCFeatures[cell*channels:(cell+1)*channels], p.At(i, j))
				b.PCMask[cell] = 1
			}
		}
	}
	return nil
}

func (b *Batch) stackLattice(samples []*Sample) {
	for _, s := range samples {
		if s.LatticeFeatures == nil {
			return
		}
	}
	b.SpaceGroups = make([]int64, len(samples))
	b.LatticeParams = make([]float32, 0, 6*len(samples))
	for i, s := range samples {
		b.SpaceGroups[i] = int64(s.LatticeFeatures.SpaceGroup)
		b.LatticeParams = append(b.LatticeParams, s.LatticeFeatures.LatticeParams[:]...)
	}
}

func collateTargets(samples []*Sample, perAtom []string) (map[string]Value, error) {
	first := samples[0]
	out := make(map[string]Value, len(first.Targets))
	for name := range first.Targets {
		values := make([]Value, len(samples))
		for i, s := range samples {
			v, ok := s.Targets[name]
			if !ok {
				return nil, errors.Wrapf(ErrCollate, "sample %d has no target %q", i, name)
			}
			values[i] = v
		}

		var (
			merged Value
			err    error
		)
		if slices.Contains(perAtom, name) {
			merged, err = concatAtoms(values, samples)
		} else {
			merged, err = mergeValues(values)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "target %q", name)
		}
		out[name] = merged
	}
	for i, s := range samples[1:] {
		if len(s.Targets) != len(first.Targets) {
			return nil, errors.Wrapf(ErrCollate, "sample %d has %d targets, want %d", i+1, len(s.Targets), len(first.Targets))
		}
	}
	return out, nil
}

// mergeValues stacks per-structure values: scalars into [B], tensors of a
// common shape into [B, ...].
func mergeValues(values []Value) (Value, error) {
	integer, err := checkKinds(values)
	if err != nil {
		return Value{}, err
	}

	if !values[0].IsTensor() {
		if integer {
			out := make([]int64, len(values))
			for i, v := range values {
				out[i] = v.Int()
			}
			return IntTensorValue(out, len(values)), nil
		}
		out := make([]float32, len(values))
		for i, v := range values {
			out[i] = float32(v.Float())
		}
		return FloatTensorValue(out, len(values)), nil
	}

	if !sameDims(values, func(v Value) []int { return v.Dims() }) {
		return Value{}, errors.Wrap(ErrCollate, "tensor shapes disagree")
	}
	return joinValues(values, integer, append([]int{len(values)}, values[0].Dims()...)), nil
}

// concatAtoms joins per-atom tensors along their leading axis.
func concatAtoms(values []Value, samples []*Sample) (Value, error) {
	integer, err := checkKinds(values)
	if err != nil {
		return Value{}, err
	}
	rows := 0
	for i, v := range values {
		if !v.IsTensor() || v.Dims()[0] != samples[i].NumAtoms {
			return Value{}, errors.Wrapf(ErrCollate, "sample %d: per-atom value of shape %v for %d atoms", i, v.Dims(), samples[i].NumAtoms)
		}
		rows += v.Dims()[0]
	}
	if !sameDims(values, trailingDims) {
		return Value{}, errors.Wrap(ErrCollate, "per-atom trailing shapes disagree")
	}
	return joinValues(values, integer, append([]int{rows}, trailingDims(values[0])...)), nil
}

// checkKinds reports whether every value is integer valued and rejects a mix
// of scalars and tensors.
func checkKinds(values []Value) (bool, error) {
	integer := true
	for _, v := range values {
		if v.IsTensor() != values[0].IsTensor() {
			return false, errors.Wrap(ErrCollate, "mixed scalar and tensor values")
		}
		integer = integer && v.IsInteger()
	}
	return integer, nil
}

func joinValues(values []Value, integer bool, dims []int) Value {
	if integer {
		var out []int64
		for _, v := range values {
			out = append(out, v.Ints()...)
		}
		return IntTensorValue(out, dims...)
	}
	var out []float32
	for _, v := range values {
		out = append(out, v.Floats()...)
	}
	return FloatTensorValue(out, dims...)
}

func trailingDims(v Value) []int {
	if len(v.Dims()) == 0 {
		return nil
	}
	return v.Dims()[1:]
}

func sameDims(values []Value, dimsOf func(Value) []int) bool {
	for _, v := range values[1:] {
		if len(v.Dims()) != len(values[0].Dims()) || !slices.Equal(dimsOf(v), dimsOf(values[0])) {
			return false
		}
	}
	return true
}

func collateGraphs(samples []*Sample) (*graph.Batch, error) {
	withGraph := 0
	for _, s := range samples {
		if s.Graph != nil {
			withGraph++
		}
	}
	switch withGraph {
	case 0:
		return nil, nil
	case len(samples):
	default:
		return nil, errors.Wrapf(ErrCollate, "%d of %d samples carry a graph", withGraph, len(samples))
	}

	graphs := make([]*graph.Graph, len(samples))
	for i, s := range samples {
		graphs[i] = s.Graph
	}
	gb, err := graph.NewBatch(graphs)
	if err != nil {
		return nil, errors.Wrapf(ErrCollate, "graphs: %v", err)
	}
	return gb, nil
}
