package structure

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrSingularLattice is returned when the lattice vectors are linearly dependent.
var ErrSingularLattice = errors.New("singular lattice matrix")

// Lattice holds the three lattice vectors as the rows of a 3×3 matrix, in
// Angstrom.
type Lattice struct {
	PBC [3]bool

	m   *mat.Dense
	inv *mat.Dense
}

// NewLattice builds a periodic lattice from row vectors.
func NewLattice(matrix [3][3]float64) (*Lattice, error) {
	m := mat.NewDense(3, 3, nil)
	for i, row := range matrix {
		m.SetRow(i, row[:])
	}
	if math.Abs(mat.Det(m)) < 1e-12 {
		return nil, ErrSingularLattice
	}

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, errors.Wrap(ErrSingularLattice, err.Error())
	}
	return &Lattice{PBC: [3]bool{true, true, true}, m: m, inv: &inv}, nil
}

// NewLatticeFromParameters builds a lattice from edge lengths and angles in
// degrees. The a vector lies along x and b in the xy plane.
func NewLatticeFromParameters(a, b, c, alpha, beta, gamma float64) (*Lattice, error) {
	ar, br, gr := alpha*math.Pi/180, beta*math.Pi/180, gamma*math.Pi/180
	cx := c * math.Cos(br)
	cy := c * (math.Cos(ar) - math.Cos(br)*math.Cos(gr)) / math.Sin(gr)
	cz2 := c*c - cx*cx - cy*cy
	if cz2 <= 0 {
		return nil, errors.Wrapf(ErrSingularLattice, "angles (%g, %g, %g)", alpha, beta, gamma)
	}
	return NewLattice([3][3]float64{
		{a, 0, 0},
		{b * math.Cos(gr), b * math.Sin(gr), 0},
		{cx, cy, math.Sqrt(cz2)},
	})
}

// Matrix returns a copy of the lattice matrix.
func (l *Lattice) Matrix() *mat.Dense {
	return mat.DenseCopyOf(l.m)
}

func (l *Lattice) vector(i int) r3.Vec {
	return r3.Vec{X: l.m.At(i, 0), Y: l.m.At(i, 1), Z: l.m.At(i, 2)}
}

// ABC returns the three lattice vector lengths.
func (l *Lattice) ABC() [3]float64 {
	return [3]float64{r3.Norm(l.vector(0)), r3.Norm(l.vector(1)), r3.Norm(l.vector(2))}
}

// Angles returns alpha, beta and gamma in degrees.
func (l *Lattice) Angles() [3]float64 {
	a, b, c := l.vector(0), l.vector(1), l.vector(2)
	return [3]float64{angle(b, c), angle(a, c), angle(a, b)}
}

// Volume is the absolute cell volume.
func (l *Lattice) Volume() float64 {
	return math.Abs(mat.Det(l.m))
}

// InterplanarSpacings returns the distance between lattice planes normal to
// each of the reciprocal directions.
func (l *Lattice) InterplanarSpacings() [3]float64 {
	a, b, c := l.vector(0), l.vector(1), l.vector(2)
	v := l.Volume()
	return [3]float64{
		v / r3.Norm(r3.Cross(b, c)),
		v / r3.Norm(r3.Cross(a, c)),
		v / r3.Norm(r3.Cross(a, b)),
	}
}

// Cartesian converts fractional to Cartesian coordinates.
func (l *Lattice) Cartesian(frac [3]float64) [3]float64 {
	return rowTimes(frac, l.m)
}

// Fractional converts Cartesian to fractional coordinates.
func (l *Lattice) Fractional(cart [3]float64) [3]float64 {
	return rowTimes(cart, l.inv)
}

// rowTimes returns the row vector v multiplied by m.
func rowTimes(v [3]float64, m *mat.Dense) [3]float64 {
	var out mat.VecDense
	out.MulVec(m.T(), mat.NewVecDense(3, v[:]))
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

func angle(a, b r3.Vec) float64 {
	c := r3.Dot(a, b) / (r3.Norm(a) * r3.Norm(b))
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}
