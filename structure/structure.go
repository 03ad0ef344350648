// Package structure deserializes periodic crystal structures stored as
// pymatgen-style dictionaries and derives the geometric quantities the
// dataset adapters featurize: Cartesian coordinates, atomic numbers, lattice
// parameters and the periodic distance matrix.
package structure

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNoSites is returned for structures without any sites.
	ErrNoSites = errors.New("structure has no sites")
	// ErrNoLattice is returned when the lattice block is absent.
	ErrNoLattice = errors.New("structure has no lattice")
)

// Site is one atom of the structure.
type Site struct {
	Symbol       string
	AtomicNumber int
	Frac         [3]float64
	Cart         [3]float64
	Label        string
}

// Structure is an immutable periodic crystal.
type Structure struct {
	Lattice *Lattice
	Sites   []Site

	// SpaceGroup is the international space group number recorded alongside
	// the structure, or 0 when the dictionary carried none.
	SpaceGroup int
}

type species struct {
	Element string  `json:"element"`
	Occu    float64 `json:"occu"`
}

type siteDict struct {
	Species []species `json:"species"`
	ABC     []float64 `json:"abc"`
	XYZ     []float64 `json:"xyz"`
	Label   string    `json:"label"`
}

type latticeDict struct {
	Matrix [][]float64 `json:"matrix"`
	PBC    []bool      `json:"pbc"`
}

type propertiesDict struct {
	SpaceGroup int `json:"space_group"`
}

type structureDict struct {
	Lattice    *latticeDict   `json:"lattice"`
	Sites      []siteDict     `json:"sites"`
	SpaceGroup int            `json:"space_group"`
	Properties propertiesDict `json:"properties"`
}

// FromJSON decodes a structure dictionary.
func FromJSON(raw []byte) (*Structure, error) {
	var d structureDict
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "decode structure")
	}
	return fromDict(&d)
}

// FromDict converts an already decoded dictionary, as found inside a
// generic record map.
func FromDict(d map[string]any) (*Structure, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(err, "encode structure")
	}
	return FromJSON(raw)
}

func fromDict(d *structureDict) (*Structure, error) {
	if d.Lattice == nil || len(d.Lattice.Matrix) != 3 {
		return nil, ErrNoLattice
	}
	if len(d.Sites) == 0 {
		return nil, ErrNoSites
	}

	var m [3][3]float64
	for i, row := range d.Lattice.Matrix {
		if len(row) != 3 {
			return nil, errors.Errorf("lattice row %d has %d components", i, len(row))
		}
		copy(m[i][:], row)
	}
	lat, err := NewLattice(m)
	if err != nil {
		return nil, err
	}
	if len(d.Lattice.PBC) == 3 {
		copy(lat.PBC[:], d.Lattice.PBC)
	}

	s := &Structure{
		Lattice:    lat,
		Sites:      make([]Site, len(d.Sites)),
		SpaceGroup: d.SpaceGroup,
	}
	if s.SpaceGroup == 0 {
		s.SpaceGroup = d.Properties.SpaceGroup
	}

	for i, sd := range d.Sites {
		sym, err := dominantSpecies(sd.Species)
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", i)
		}
		z, err := AtomicNumber(sym)
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", i)
		}
		site := Site{Symbol: sym, AtomicNumber: z, Label: sd.Label}
		switch {
		case len(sd.XYZ) == 3:
			copy(site.Cart[:], sd.XYZ)
			site.Frac = lat.Fractional(site.Cart)
		case len(sd.ABC) == 3:
			copy(site.Frac[:], sd.ABC)
			site.Cart = lat.Cartesian(site.Frac)
		default:
			return nil, errors.Errorf("site %d has no coordinates", i)
		}
		s.Sites[i] = site
	}
	return s, nil
}

// dominantSpecies picks the highest occupancy species of a possibly
// disordered site.
func dominantSpecies(sp []species) (string, error) {
	if len(sp) == 0 {
		return "", errors.New("site has no species")
	}
	best := sp[0]
	for _, s := range sp[1:] {
		if s.Occu > best.Occu {
			best = s
		}
	}
	return best.Element, nil
}

// NumSites returns the number of atoms.
func (s *Structure) NumSites() int { return len(s.Sites) }

// CartCoords returns the Cartesian coordinates of every site.
func (s *Structure) CartCoords() [][3]float64 {
	out := make([][3]float64, len(s.Sites))
	for i, site := range s.Sites {
		out[i] = site.Cart
	}
	return out
}

// AtomicNumbers returns the atomic number of every site.
func (s *Structure) AtomicNumbers() []int {
	out := make([]int, len(s.Sites))
	for i, site := range s.Sites {
		out[i] = site.AtomicNumber
	}
	return out
}

// DistanceMatrix returns the N×N matrix of minimum-image distances between
// sites. Directions without periodic boundaries use the plain difference.
func (s *Structure) DistanceMatrix() *mat.SymDense {
	n := len(s.Sites)
	out := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i + 1; j < n; j++ {
			out.SetSym(i, j, s.minimumImageDistance(s.Sites[i].Frac, s.Sites[j].Frac))
		}
	}
	return out
}

func (s *Structure) minimumImageDistance(fi, fj [3]float64) float64 {
	var diff [3]float64
	for k := range 3 {
		diff[k] = fj[k] - fi[k]
		if s.Lattice.PBC[k] {
			diff[k] -= math.Round(diff[k])
		}
	}

	best := math.Inf(1)
	for a := -1; a <= 1; a++ {
		for b := -1; b <= 1; b++ {
			for c := -1; c <= 1; c++ {
				shift := [3]int{a, b, c}
				skip := false
				for k := range 3 {
					if !s.Lattice.PBC[k] && shift[k] != 0 {
						skip = true
					}
				}
				if skip {
					continue
				}
				img := [3]float64{diff[0] + float64(a), diff[1] + float64(b), diff[2] + float64(c)}
				cart := s.Lattice.Cartesian(img)
				if d := r3.Norm(r3.Vec{X: cart[0], Y: cart[1], Z: cart[2]}); d < best {
					best = d
				}
			}
		}
	}
	return best
}
