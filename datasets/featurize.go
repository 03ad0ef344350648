package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// PairFeatures is a dense [src, dst, 2*vocab] float32 block. Channels
// [0, vocab) one-hot the source atomic number and [vocab, 2*vocab) the
// destination atomic number.
type PairFeatures struct {
	Data  []float32
	Src   int
	Dst   int
	Vocab int
}

// Dims returns the tensor dimensions.
func (p *PairFeatures) Dims() []int {
	return []int{p.Src, p.Dst, 2 * p.Vocab}
}

// Channels is the feature width of one pair.
func (p *PairFeatures) Channels() int {
	return 2 * p.Vocab
}

// At returns the feature vector of pair (i, j).
func (p *PairFeatures) At(i, j int) []float32 {
	c := p.Channels()
	off := (i*p.Dst + j) * c
	return p.Data[off : off+c]
}

// Tensor converts the features into a gomlx tensor.
func (p *PairFeatures) Tensor() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(p.Data, p.Dims()...)
}

// PointCloudFeaturization one-hot encodes every (src, dst) pair of atomic
// numbers over a vocabulary of maxAtomicNumber entries.
func PointCloudFeaturization(srcTypes, dstTypes []int64, maxAtomicNumber int) (*PairFeatures, error) {
	if maxAtomicNumber <= 0 {
		return nil, errors.Errorf("vocabulary size must be positive, got %d", maxAtomicNumber)
	}
	for _, types := range [][]int64{srcTypes, dstTypes} {
		for _, z := range types {
			if z < 0 || z >= int64(maxAtomicNumber) {
				return nil, errors.Errorf("atomic number %d outside vocabulary [0, %d)", z, maxAtomicNumber)
			}
		}
	}

	p := &PairFeatures{
		Src:   len(srcTypes),
		Dst:   len(dstTypes),
		Vocab: maxAtomicNumber,
	}
	c := p.Channels()
	p.Data = make([]float32, p.Src*p.Dst*c)
	for i, zs := range srcTypes {
		for j, zd := range dstTypes {
			off := (i*p.Dst + j) * c
			p.Data[off+int(zs)] = 1
			p.Data[off+maxAtomicNumber+int(zd)] = 1
		}
	}
	return p, nil
}

// gather returns values[idx] for every index.
func gather(values []int64, idx []int) []int64 {
	out := make([]int64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
