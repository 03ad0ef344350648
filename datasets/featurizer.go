package datasets

import (
	"github.com/Noofbiz/crystalsets/graph"
	"github.com/Noofbiz/crystalsets/structure"
	"github.com/pkg/errors"
)

// StructureFeaturizer turns a deserialized crystal into the structural
// fields of a sample.
type StructureFeaturizer interface {
	Featurize(s *structure.Structure, sample *Sample) error
}

// NewStructureFeaturizer returns the point cloud featurizer, wrapped with
// graph construction when cfg.Graph is set.
func NewStructureFeaturizer(cfg Config) (StructureFeaturizer, error) {
	cfg.applyDefaults()
	pc := &PointCloudFeaturizer{cfg: cfg}
	if cfg.Graph == nil {
		return pc, nil
	}
	b, err := graph.NewBuilder(cfg.Graph.CutoffDist, cfg.Graph.ThreebodyCutoff, cfg.Graph.ElementTypes)
	if err != nil {
		return nil, errors.Wrap(err, "graph builder")
	}
	return &GraphFeaturizer{PointCloud: pc, Builder: b}, nil
}

// PointCloudFeaturizer extracts positions, pair features, the distance
// matrix and lattice features.
type PointCloudFeaturizer struct {
	cfg Config
}

func (f *PointCloudFeaturizer) Featurize(s *structure.Structure, sample *Sample) error {
	z := s.AtomicNumbers()
	atomicNumbers := make([]int64, len(z))
	for i, v := range z {
		atomicNumbers[i] = int64(v)
	}
	if err := buildPointCloud(sample, s.CartCoords(), atomicNumbers, &f.cfg); err != nil {
		return err
	}

	dm := s.DistanceMatrix()
	n, _ := dm.Dims()
	sample.DistanceMatrix = make([]float32, 0, n*n)
	for i := range n {
		for j := range n {
			sample.DistanceMatrix = append(sample.DistanceMatrix, float32(dm.At(i, j)))
		}
	}

	abc := s.Lattice.ABC()
	angles := s.Lattice.Angles()
	sample.LatticeFeatures = &LatticeFeatures{
		SpaceGroup: s.SpaceGroup,
		LatticeParams: [6]float32{
			float32(abc[0]), float32(abc[1]), float32(abc[2]),
			degreesToRadians(angles[0]), degreesToRadians(angles[1]), degreesToRadians(angles[2]),
		},
	}
	return nil
}

// GraphFeaturizer runs the point cloud featurizer and attaches a periodic
// neighbor graph built under the configured cutoffs.
type GraphFeaturizer struct {
	PointCloud *PointCloudFeaturizer
	Builder    *graph.Builder
}

func (f *GraphFeaturizer) Featurize(s *structure.Structure, sample *Sample) error {
	if err := f.PointCloud.Featurize(s, sample); err != nil {
		return err
	}
	g, err := f.Builder.FromStructure(s)
	if err != nil {
		return errors.Wrap(err, "build graph")
	}
	sample.Graph = g
	return nil
}
