package datasets

import (
	"github.com/Noofbiz/crystalsets/graph"
	"github.com/Noofbiz/crystalsets/recordstore"
	"github.com/pkg/errors"
)

// This file provides the dataset adapters that turn crystal structure records
// from the Alexandria and OQMD archives into point cloud samples suitable for
// model training.
//
// Both adapters read records lazily from a recordstore.Store - they keep the
// store open and only decode a record when a sample is requested.
//
// Layout and intended usage:
//
// AlexandriaDataset
//   - Nested records: a pymatgen structure dictionary, optional symmetry
//     block and a targets block split into regression and classification.
//   - Samples carry positions, atomic numbers, pair features, the periodic
//     distance matrix and lattice features, optionally a neighbor graph.
//
// OQMDDataset
//   - Flat records with cart_coords, atomic_numbers, delta_e, stability,
//     band_gap and spacegroup.
//   - Target task types come from a declared schema, not from the values.
//
// Samples are merged with Collate into a Batch and converted into gomlx
// tensors with Batch.Tensors, or streamed through a Loader that implements
// gomlx's train.Dataset.

// MaxAtomicNumber is the one-hot vocabulary width used by both adapters.
const MaxAtomicNumber = 100

var (
	// ErrStructureMissing is returned when a record has no structure payload.
	ErrStructureMissing = errors.New("structure not found in data - workflow needs a structure to use")
	// ErrMalformedValue is returned when a label value cannot be standardized.
	ErrMalformedValue = errors.New("malformed value")
	// ErrEmptyStructure is returned for systems without atoms.
	ErrEmptyStructure = errors.New("system size must be positive")
	// ErrCollate is returned when samples cannot be merged into a batch.
	ErrCollate = errors.New("cannot collate samples")
	// ErrDuplicateTarget is returned when a label is declared under two task types.
	ErrDuplicateTarget = errors.New("target declared under more than one task type")
	// ErrIndexOutOfRange is returned for sample indices outside [0, Len()).
	ErrIndexOutOfRange = recordstore.ErrIndexOutOfRange
)

// TaskType routes a label to a loss head.
type TaskType string

const (
	Regression     TaskType = "regression"
	Classification TaskType = "classification"
)

// TargetTypes lists label names per task type, in record order.
type TargetTypes struct {
	Regression     []string `json:"regression" yaml:"regression"`
	Classification []string `json:"classification" yaml:"classification"`
}

// All returns regression labels followed by classification labels.
func (t TargetTypes) All() []string {
	out := make([]string, 0, len(t.Regression)+len(t.Classification))
	out = append(out, t.Regression...)
	return append(out, t.Classification...)
}

// TypeOf returns the task type a label is declared under.
func (t TargetTypes) TypeOf(label string) (TaskType, bool) {
	for _, l := range t.Regression {
		if l == label {
			return Regression, true
		}
	}
	for _, l := range t.Classification {
		if l == label {
			return Classification, true
		}
	}
	return "", false
}

// Map returns the task type to label mapping keyed by task type name.
func (t TargetTypes) Map() map[string][]string {
	return map[string][]string{
		string(Regression):     append([]string{}, t.Regression...),
		string(Classification): append([]string{}, t.Classification...),
	}
}

// Clone returns a deep copy.
func (t TargetTypes) Clone() TargetTypes {
	return TargetTypes{
		Regression:     append([]string{}, t.Regression...),
		Classification: append([]string{}, t.Classification...),
	}
}

func (t TargetTypes) validate() error {
	seen := make(map[string]bool, len(t.Regression))
	for _, l := range t.Regression {
		seen[l] = true
	}
	for _, l := range t.Classification {
		if seen[l] {
			return errors.Wrapf(ErrDuplicateTarget, "label %q", l)
		}
	}
	return nil
}

// The datasets implement this interface in order to feed Collate, the Loader
// and the command line tools.
type Dataset interface {
	Name() string
	Len() int
	GetSample(index int) (*Sample, error)
	Collate(samples []*Sample) (*Batch, error)
	TargetKeys() (TargetTypes, error)
	Close() error
}

// GraphConfig enables graph construction for every sample.
type GraphConfig struct {
	CutoffDist      float64
	ThreebodyCutoff float64

	// ElementTypes is the node type vocabulary; nil selects H through Fm.
	ElementTypes []string
}

// Config holds the construction parameters shared by the adapters.
type Config struct {
	// Path is the record store root.
	Path string

	// FullPairwise pairs every atom with every atom. When false each atom is
	// paired with at most MaxNeighbors destinations.
	FullPairwise bool
	MaxNeighbors int

	// MaxAtomicNumber is the one-hot width; zero selects MaxAtomicNumber.
	MaxAtomicNumber int

	// Transforms run in order on every parsed sample.
	Transforms []Transform

	// Graph, when set, attaches a periodic neighbor graph to Alexandria samples.
	Graph *GraphConfig

	// TargetKeys declares the Alexandria task mapping up front instead of
	// discovering it from the first record.
	TargetKeys *TargetTypes

	// TargetSchema declares the OQMD task type of every label; nil selects
	// OQMDTargetSchema.
	TargetSchema TargetSchema

	// PerAtomTargets names the labels concatenated along the atom axis by
	// Collate; nil selects DefaultPerAtomTargets.
	PerAtomTargets []string

	// CacheSize bounds the raw record cache of the store.
	CacheSize int

	// Metrics, when set, counts parsed samples and failures.
	Metrics *Metrics
}

// DefaultConfig returns the devset configuration:
// full pairwise point clouds, no transforms and no graphs.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		FullPairwise: true,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxAtomicNumber == 0 {
		c.MaxAtomicNumber = MaxAtomicNumber
	}
	if c.MaxNeighbors == 0 {
		c.MaxNeighbors = DefaultMaxNeighbors
	}
	if c.PerAtomTargets == nil {
		c.PerAtomTargets = DefaultPerAtomTargets
	}
	if c.Graph != nil {
		g := *c.Graph
		c.Graph = &g
		if c.Graph.CutoffDist == 0 {
			c.Graph.CutoffDist = graph.DefaultCutoff
		}
		if c.Graph.ThreebodyCutoff == 0 {
			c.Graph.ThreebodyCutoff = graph.DefaultThreebodyCutoff
		}
	}
}
