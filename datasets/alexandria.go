package datasets

import (
	"encoding/json"
	"sync"

	"github.com/Noofbiz/crystalsets/recordstore"
	"github.com/Noofbiz/crystalsets/structure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// AlexandriaDataset reads nested Alexandria records: a pymatgen structure
// dictionary, an optional symmetry block and regression/classification
// target blocks.
type AlexandriaDataset struct {
	cfg        Config
	store      *recordstore.Store
	featurizer StructureFeaturizer

	keysMu     sync.Mutex
	targetKeys *TargetTypes
}

type alexandriaSymmetry struct {
	Number     int    `json:"number"`
	Symbol     string `json:"symbol"`
	PointGroup string `json:"point_group"`
}

type alexandriaTargets struct {
	Regression     orderedObject `json:"regression"`
	Classification orderedObject `json:"classification"`
}

type alexandriaRecord struct {
	EntryID   string              `json:"entry_id"`
	Structure json.RawMessage     `json:"structure"`
	Symmetry  *alexandriaSymmetry `json:"symmetry"`
	Targets   alexandriaTargets   `json:"targets"`
}

// NewAlexandriaDataset opens the record store at cfg.Path.
func NewAlexandriaDataset(cfg Config) (*AlexandriaDataset, error) {
	cfg.applyDefaults()
	featurizer, err := NewStructureFeaturizer(cfg)
	if err != nil {
		return nil, err
	}
	d := &AlexandriaDataset{
		cfg:        cfg,
		featurizer: featurizer,
	}
	if cfg.TargetKeys != nil {
		if err := cfg.TargetKeys.validate(); err != nil {
			return nil, err
		}
		keys := cfg.TargetKeys.Clone()
		d.targetKeys = &keys
	}

	d.store, err = recordstore.Open(cfg.Path, recordstore.Options{CacheSize: cfg.CacheSize})
	if err != nil {
		return nil, errors.Wrap(err, "open alexandria records")
	}
	return d, nil
}

// NewAlexandriaDatasetFromPath opens a store with the default configuration.
func NewAlexandriaDatasetFromPath(path string) (*AlexandriaDataset, error) {
	return NewAlexandriaDataset(DefaultConfig(path))
}

// Name returns the name of the dataset
func (d *AlexandriaDataset) Name() string {
	return "AlexandriaDataset"
}

// Len returns the number of records.
func (d *AlexandriaDataset) Len() int {
	return d.store.Len()
}

// Close releases the record store.
func (d *AlexandriaDataset) Close() error {
	return d.store.Close()
}

// IndexToKey maps a global index to (shard, subindex).
func (d *AlexandriaDataset) IndexToKey(index int) (int, int, error) {
	return d.store.IndexToKey(index)
}

// GetSample reads and parses the record at a global index, then applies the
// configured transforms.
func (d *AlexandriaDataset) GetSample(index int) (*Sample, error) {
	shard, sub, err := d.IndexToKey(index)
	if err != nil {
		return nil, err
	}
	s, err := d.DataFromKey(shard, sub)
	if err == nil {
		err = applyTransforms(s, d.cfg.Transforms)
	}
	d.cfg.Metrics.observe(d.Name(), s, err)
	if err != nil {
		return nil, errors.Wrapf(err, "alexandria sample %d", index)
	}
	return s, nil
}

// DataFromKey parses the record stored at (shard, subindex).
func (d *AlexandriaDataset) DataFromKey(shard, subindex int) (*Sample, error) {
	raw, err := d.store.DataFromKey(shard, subindex)
	if err != nil {
		return nil, err
	}
	return d.Parse(raw)
}

// Parse converts a raw Alexandria record into a sample.
func (d *AlexandriaDataset) Parse(raw []byte) (*Sample, error) {
	var rec alexandriaRecord
	if err := decodeRecord(raw, &rec); err != nil {
		return nil, err
	}

	s := &Sample{EntryID: rec.EntryID}
	if err := d.parseStructure(&rec, s); err != nil {
		return nil, err
	}
	parseAlexandriaSymmetry(&rec, s)
	if err := parseAlexandriaTargets(&rec, s); err != nil {
		return nil, err
	}
	d.rememberTargetKeys(s.TargetTypes)

	log.WithFields(log.Fields{
		"entry_id": s.EntryID,
		"atoms":    s.NumAtoms,
		"targets":  len(s.Targets),
	}).Debug("parsed alexandria record")
	return s, nil
}

func (d *AlexandriaDataset) parseStructure(rec *alexandriaRecord, s *Sample) error {
	if isNullJSON(rec.Structure) {
		return ErrStructureMissing
	}
	st, err := structure.FromJSON(rec.Structure)
	if err != nil {
		return errors.Wrapf(err, "entry %q", rec.EntryID)
	}
	// the symmetry block is authoritative for the space group
	if rec.Symmetry != nil && rec.Symmetry.Number != 0 {
		st.SpaceGroup = rec.Symmetry.Number
	}
	return d.featurizer.Featurize(st, s)
}

func parseAlexandriaSymmetry(rec *alexandriaRecord, s *Sample) {
	if rec.Symmetry == nil {
		return
	}
	s.Symmetry = &Symmetry{
		Number: rec.Symmetry.Number,
		Symbol: rec.Symmetry.Symbol,
		Group:  rec.Symmetry.PointGroup,
	}
}

func parseAlexandriaTargets(rec *alexandriaRecord, s *Sample) error {
	reg, cls := rec.Targets.Regression, rec.Targets.Classification
	s.Targets = make(map[string]Value, len(reg.Keys)+len(cls.Keys))
	s.TargetTypes = TargetTypes{
		Regression:     append([]string{}, reg.Keys...),
		Classification: append([]string{}, cls.Keys...),
	}
	if err := s.TargetTypes.validate(); err != nil {
		return err
	}
	for _, block := range []orderedObject{reg, cls} {
		for _, key := range block.Keys {
			v, err := Standardize(block.Values[key])
			if err != nil {
				return errors.Wrapf(err, "target %q", key)
			}
			s.Targets[key] = v
		}
	}
	return nil
}

// rememberTargetKeys caches the task mapping of the first parsed record.
func (d *AlexandriaDataset) rememberTargetKeys(tt TargetTypes) {
	d.keysMu.Lock()
	defer d.keysMu.Unlock()
	if d.targetKeys == nil {
		keys := tt.Clone()
		d.targetKeys = &keys
	}
}

// TargetKeys returns the task type to label mapping. Unless it was declared
// in the configuration it is discovered from the first record and cached.
func (d *AlexandriaDataset) TargetKeys() (TargetTypes, error) {
	d.keysMu.Lock()
	keys := d.targetKeys
	d.keysMu.Unlock()
	if keys != nil {
		return keys.Clone(), nil
	}

	if _, err := d.GetSample(0); err != nil {
		return TargetTypes{}, errors.Wrap(err, "discover target keys")
	}
	d.keysMu.Lock()
	defer d.keysMu.Unlock()
	return d.targetKeys.Clone(), nil
}

// Collate merges samples into a batch, padding pair features.
func (d *AlexandriaDataset) Collate(samples []*Sample) (*Batch, error) {
	return CollateWith(samples, d.cfg.PerAtomTargets)
}
