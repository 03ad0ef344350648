package datasets

import (
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultBatchSize is the Loader batch size when none is set.
const DefaultBatchSize = 32

// Loader yields collated batches from a Dataset in the shape of gomlx's
// train.Dataset.
//
// Inputs are, in order: pos [atoms, 3], atomic_numbers [atoms],
// pc_features [B, maxSrc, maxDst, 2V] and pc_mask [B, maxSrc, maxDst].
// Labels follow the Labels field, one tensor per label.
type Loader struct {
	Dataset Dataset

	// BatchSize for yielding batches
	BatchSize int

	// Labels to emit, defaulting to every target key.
	Labels []string

	// DropLast skips a trailing batch smaller than BatchSize.
	DropLast bool

	order []int
	next  int
}

// NewLoader wraps ds, visiting records in index order.
func NewLoader(ds Dataset, batchSize int) (*Loader, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	keys, err := ds.TargetKeys()
	if err != nil {
		return nil, errors.Wrap(err, "loader labels")
	}
	return &Loader{
		Dataset:   ds,
		BatchSize: batchSize,
		Labels:    keys.All(),
		order:     arange(ds.Len()),
	}, nil
}

// Name returns the name of the dataset
func (l *Loader) Name() string {
	return l.Dataset.Name()
}

// Shuffle permutes the visiting order deterministically and restarts the
// epoch.
func (l *Loader) Shuffle(seed int64) {
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(l.order), func(i, j int) {
		l.order[i], l.order[j] = l.order[j], l.order[i]
	})
	l.next = 0
}

// Order returns the current visiting order.
func (l *Loader) Order() []int {
	return append([]int(nil), l.order...)
}

// Reset starts a new epoch.
func (l *Loader) Reset() {
	l.next = 0
}

// Restart resets the dataset for a new epoch
func (l *Loader) Restart() error {
	l.Reset()
	return nil
}

// NextBatch collates the next batch, returning io.EOF at the end of the epoch.
func (l *Loader) NextBatch() (*Batch, error) {
	remaining := len(l.order) - l.next
	if remaining <= 0 || (l.DropLast && remaining < l.BatchSize) {
		return nil, io.EOF
	}
	n := min(l.BatchSize, remaining)
	samples := make([]*Sample, n)
	for i := range n {
		s, err := l.Dataset.GetSample(l.order[l.next+i])
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	l.next += n

	log.WithFields(log.Fields{
		"dataset": l.Name(),
		"size":    n,
		"offset":  l.next - n,
	}).Debug("collating batch")
	return l.Dataset.Collate(samples)
}

// Yield returns the next batch of data for the gomlx Dataset interface. The
// spec is the collated *Batch.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	b, err := l.NextBatch()
	if err != nil {
		return nil, nil, nil, err
	}
	t := b.Tensors()
	inputs = []*tensors.Tensor{t[KeyPos], t[KeyAtomicNumbers], t[KeyPCFeatures], t[KeyPCMask]}
	for _, name := range l.Labels {
		v, ok := b.Targets[name]
		if !ok {
			return nil, nil, nil, errors.Errorf("batch has no target %q", name)
		}
		labels = append(labels, v.Tensor())
	}
	return b, inputs, labels, nil
}
