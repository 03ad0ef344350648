package datasets

import (
	"strconv"

	"github.com/Noofbiz/crystalsets/recordstore"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TargetSpec declares the task type of one label.
type TargetSpec struct {
	Name string   `json:"name" yaml:"name"`
	Task TaskType `json:"task" yaml:"task"`
}

// TargetSchema is an ordered label to task type declaration.
type TargetSchema []TargetSpec

// TargetTypes groups the schema labels by task type, keeping order.
func (ts TargetSchema) TargetTypes() TargetTypes {
	out := TargetTypes{Regression: []string{}, Classification: []string{}}
	for _, spec := range ts {
		switch spec.Task {
		case Classification:
			out.Classification = append(out.Classification, spec.Name)
		default:
			out.Regression = append(out.Regression, spec.Name)
		}
	}
	return out
}

// OQMDTargetSchema is the default OQMD label declaration. delta_e is exposed
// as energy.
var OQMDTargetSchema = TargetSchema{
	{Name: "energy", Task: Regression},
	{Name: "band_gap", Task: Regression},
	{Name: "stability", Task: Regression},
}

// OQMDDataset reads flat OQMD records from a single shard.
type OQMDDataset struct {
	cfg    Config
	store  *recordstore.Store
	schema TargetSchema
}

type oqmdRecord struct {
	EntryID       any         `json:"entry_id"`
	Name          string      `json:"name"`
	CartCoords    [][]float64 `json:"cart_coords"`
	AtomicNumbers []int64     `json:"atomic_numbers"`
	DeltaE        any         `json:"delta_e"`
	Stability     any         `json:"stability"`
	BandGap       any         `json:"band_gap"`
	Spacegroup    string      `json:"spacegroup"`
}

func (r *oqmdRecord) label(name string) (any, bool) {
	switch name {
	case "energy":
		return r.DeltaE, true
	case "stability":
		return r.Stability, true
	case "band_gap":
		return r.BandGap, true
	}
	return nil, false
}

// NewOQMDDataset opens the record store at cfg.Path.
func NewOQMDDataset(cfg Config) (*OQMDDataset, error) {
	cfg.applyDefaults()
	schema := cfg.TargetSchema
	if schema == nil {
		schema = OQMDTargetSchema
	}
	var empty oqmdRecord
	for _, spec := range schema {
		if _, ok := empty.label(spec.Name); !ok {
			return nil, errors.Errorf("oqmd has no label %q", spec.Name)
		}
		if spec.Task != Regression && spec.Task != Classification {
			return nil, errors.Errorf("label %q has unknown task type %q", spec.Name, spec.Task)
		}
	}
	if err := schema.TargetTypes().validate(); err != nil {
		return nil, err
	}

	store, err := recordstore.Open(cfg.Path, recordstore.Options{CacheSize: cfg.CacheSize})
	if err != nil {
		return nil, errors.Wrap(err, "open oqmd records")
	}
	if store.NumShards() > 1 {
		log.WithFields(log.Fields{
			"path":    cfg.Path,
			"shards":  store.NumShards(),
			"ignored": store.Len() - store.ShardLen(0),
		}).Warn("oqmd reads only the first shard, later shards are ignored")
	}
	return &OQMDDataset{cfg: cfg, store: store, schema: schema}, nil
}

// Name returns the name of the dataset
func (d *OQMDDataset) Name() string {
	return "OQMDDataset"
}

// Len returns the number of records in the first shard.
func (d *OQMDDataset) Len() int {
	return d.store.ShardLen(0)
}

// Close releases the record store.
func (d *OQMDDataset) Close() error {
	return d.store.Close()
}

// IndexToKey maps every index into the first shard.
func (d *OQMDDataset) IndexToKey(index int) (int, int) {
	return 0, index
}

// RawSample returns the undecoded record at an index.
func (d *OQMDDataset) RawSample(index int) ([]byte, error) {
	shard, sub := d.IndexToKey(index)
	return d.store.DataFromKey(shard, sub)
}

// TargetKeys returns the declared task mapping.
func (d *OQMDDataset) TargetKeys() (TargetTypes, error) {
	return d.schema.TargetTypes(), nil
}

// TargetKeyList flattens the declared labels in schema order.
func (d *OQMDDataset) TargetKeyList() []string {
	keys := make([]string, len(d.schema))
	for i, spec := range d.schema {
		keys[i] = spec.Name
	}
	return keys
}

// GetSample reads and parses the record at an index, then applies the
// configured transforms.
func (d *OQMDDataset) GetSample(index int) (*Sample, error) {
	if index < 0 || index >= d.Len() {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0, %d)", index, d.Len())
	}
	raw, err := d.RawSample(index)
	var s *Sample
	if err == nil {
		s, err = d.Parse(raw)
	}
	if err == nil {
		err = applyTransforms(s, d.cfg.Transforms)
	}
	d.cfg.Metrics.observe(d.Name(), s, err)
	if err != nil {
		return nil, errors.Wrapf(err, "oqmd sample %d", index)
	}
	return s, nil
}

// Parse converts a raw OQMD record into a sample.
func (d *OQMDDataset) Parse(raw []byte) (*Sample, error) {
	var rec oqmdRecord
	if err := decodeRecord(raw, &rec); err != nil {
		return nil, err
	}
	if len(rec.CartCoords) == 0 {
		return nil, errors.Wrapf(ErrEmptyStructure, "record %q has no coordinates", rec.Name)
	}

	coords := make([][3]float64, len(rec.CartCoords))
	for i, c := range rec.CartCoords {
		if len(c) != 3 {
			return nil, errors.Errorf("coordinate %d has %d components", i, len(c))
		}
		coords[i] = [3]float64{c[0], c[1], c[2]}
	}

	s := &Sample{EntryID: entryID(rec.EntryID, rec.Name)}
	if err := buildPointCloud(s, coords, rec.AtomicNumbers, &d.cfg); err != nil {
		return nil, err
	}

	s.Targets = make(map[string]Value, len(d.schema))
	for _, spec := range d.schema {
		raw, _ := rec.label(spec.Name)
		v, err := Standardize(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "target %q", spec.Name)
		}
		s.Targets[spec.Name] = v
	}
	s.TargetTypes = d.schema.TargetTypes()
	s.Symmetry = &Symmetry{Name: rec.Spacegroup}

	log.WithFields(log.Fields{
		"entry_id": s.EntryID,
		"atoms":    s.NumAtoms,
	}).Debug("parsed oqmd record")
	return s, nil
}

// Collate merges samples into a batch, padding pair features.
func (d *OQMDDataset) Collate(samples []*Sample) (*Batch, error) {
	return CollateWith(samples, d.cfg.PerAtomTargets)
}

func entryID(id any, name string) string {
	switch v := id.(type) {
	case nil:
		return name
	case string:
		return v
	default:
		v2, err := Standardize(v)
		if err != nil {
			return name
		}
		if v2.IsInteger() {
			return strconv.FormatInt(v2.Int(), 10)
		}
		return name
	}
}
