package datasets

import (
	"github.com/Noofbiz/crystalsets/graph"
	"github.com/pkg/errors"
)

// Transform post-processes a parsed sample in place.
type Transform interface {
	Apply(s *Sample) error
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(s *Sample) error

func (f TransformFunc) Apply(s *Sample) error { return f(s) }

// PointCloudToGraphTransform builds a non-periodic radius graph over the
// sample positions. The graph node data carries pos and atomic_numbers.
type PointCloudToGraphTransform struct {
	builder *graph.Builder
}

// NewPointCloudToGraphTransform returns a transform with the given two-body
// cutoff in Angstrom.
func NewPointCloudToGraphTransform(cutoffDist float64) (*PointCloudToGraphTransform, error) {
	b, err := graph.NewBuilder(cutoffDist, cutoffDist, nil)
	if err != nil {
		return nil, err
	}
	return &PointCloudToGraphTransform{builder: b}, nil
}

func (t *PointCloudToGraphTransform) Apply(s *Sample) error {
	if s.Pos == nil || s.AtomicNumbers == nil {
		return errors.New("point cloud to graph: sample has no positions")
	}
	g, err := t.builder.FromPointCloud(s.Pos, s.AtomicNumbers)
	if err != nil {
		return errors.Wrap(err, "point cloud to graph")
	}
	s.Graph = g
	return nil
}

func applyTransforms(s *Sample, transforms []Transform) error {
	for i, t := range transforms {
		if err := t.Apply(s); err != nil {
			return errors.Wrapf(err, "transform %d", i)
		}
	}
	return nil
}
