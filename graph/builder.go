package graph

import (
	"math"

	"github.com/Noofbiz/crystalsets/structure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// DefaultCutoff is the two-body neighbor radius in Angstrom, as in M3GNet.
	// The matsciml M3G Alexandria dataset defaults to 20; pass 20 to
	// NewBuilder for that setting.
	DefaultCutoff = 5.0
	// DefaultThreebodyCutoff is the bond length limit for three-body pairs,
	// 4 Å as in M3GNet (matsciml defaults to 20 Å).
	DefaultThreebodyCutoff = 4.0

	minBondLength = 1e-8
)

var (
	// ErrBadCutoff is returned for non-positive cutoffs.
	ErrBadCutoff = errors.New("cutoff must be positive")
	// ErrUnknownElementType is returned when an atom is not in the vocabulary.
	ErrUnknownElementType = errors.New("element not in vocabulary")
)

// Builder converts atoms into neighbor graphs.
type Builder struct {
	Cutoff          float64
	ThreebodyCutoff float64
	ElementTypes    []string

	typeIndex map[int]int
}

// NewBuilder returns a builder. Zero cutoffs select the defaults and a nil
// vocabulary selects structure.ElementTypes.
func NewBuilder(cutoff, threebodyCutoff float64, elementTypes []string) (*Builder, error) {
	if cutoff == 0 {
		cutoff = DefaultCutoff
	}
	if threebodyCutoff == 0 {
		threebodyCutoff = DefaultThreebodyCutoff
	}
	if cutoff < 0 || threebodyCutoff < 0 {
		return nil, errors.Wrapf(ErrBadCutoff, "cutoff %g, three-body cutoff %g", cutoff, threebodyCutoff)
	}
	if elementTypes == nil {
		elementTypes = structure.ElementTypes()
	}

	b := &Builder{
		Cutoff:          cutoff,
		ThreebodyCutoff: threebodyCutoff,
		ElementTypes:    elementTypes,
		typeIndex:       make(map[int]int, len(elementTypes)),
	}
	for i, sym := range elementTypes {
		z, err := structure.AtomicNumber(sym)
		if err != nil {
			return nil, errors.Wrap(err, "element vocabulary")
		}
		b.typeIndex[z] = i
	}
	return b, nil
}

// FromStructure builds a periodic graph. Every neighbor image within the
// cutoff contributes one edge.
func (b *Builder) FromStructure(s *structure.Structure) (*Graph, error) {
	if s.NumSites() == 0 {
		return nil, structure.ErrNoSites
	}
	lat := s.Lattice

	// wrap sites into the home cell so a symmetric image range suffices
	n := s.NumSites()
	frac := make([][3]float64, n)
	cart := make([][3]float64, n)
	for i, site := range s.Sites {
		f := site.Frac
		for k := range 3 {
			if lat.PBC[k] {
				f[k] -= math.Floor(f[k])
			}
		}
		frac[i] = f
		cart[i] = lat.Cartesian(f)
	}

	var reach [3]int
	spacing := lat.InterplanarSpacings()
	for k := range 3 {
		if lat.PBC[k] {
			reach[k] = int(math.Ceil(b.Cutoff / spacing[k]))
		}
	}

	e := newEdgeList()
	for ia := -reach[0]; ia <= reach[0]; ia++ {
		for ib := -reach[1]; ib <= reach[1]; ib++ {
			for ic := -reach[2]; ic <= reach[2]; ic++ {
				shift := lat.Cartesian([3]float64{float64(ia), float64(ib), float64(ic)})
				for i := range n {
					for j := range n {
						vec := r3.Sub(r3.Add(toVec(cart[j]), toVec(shift)), toVec(cart[i]))
						d := r3.Norm(vec)
						if d < minBondLength || d > b.Cutoff {
							continue
						}
						e.add(i, j, vec, d, [3]int{ia, ib, ic})
					}
				}
			}
		}
	}

	pos := make([]float32, 0, 3*n)
	for _, c := range cart {
		pos = append(pos, float32(c[0]), float32(c[1]), float32(c[2]))
	}
	z := s.AtomicNumbers()
	atomicNumbers := make([]int64, n)
	for i, v := range z {
		atomicNumbers[i] = int64(v)
	}
	return b.assemble(n, pos, atomicNumbers, e)
}

// FromPointCloud builds a non-periodic radius graph over positions.
func (b *Builder) FromPointCloud(pos []float32, atomicNumbers []int64) (*Graph, error) {
	n := len(atomicNumbers)
	if n == 0 {
		return nil, structure.ErrNoSites
	}
	if len(pos) != 3*n {
		return nil, errors.Errorf("got %d position values for %d atoms", len(pos), n)
	}

	e := newEdgeList()
	for i := range n {
		for j := range n {
			if i == j {
				continue
			}
			vec := r3.Vec{
				X: float64(pos[3*j] - pos[3*i]),
				Y: float64(pos[3*j+1] - pos[3*i+1]),
				Z: float64(pos[3*j+2] - pos[3*i+2]),
			}
			d := r3.Norm(vec)
			if d < minBondLength || d > b.Cutoff {
				continue
			}
			e.add(i, j, vec, d, [3]int{})
		}
	}
	return b.assemble(n, append([]float32(nil), pos...), append([]int64(nil), atomicNumbers...), e)
}

func (b *Builder) assemble(n int, pos []float32, atomicNumbers []int64, e *edgeList) (*Graph, error) {
	nodeType := make([]int64, n)
	for i, z := range atomicNumbers {
		t, ok := b.typeIndex[int(z)]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownElementType, "atomic number %d", z)
		}
		nodeType[i] = int64(t)
	}

	g := &Graph{
		NumNodes: n,
		Src:      e.src,
		Dst:      e.dst,
		NodeData: map[string]Field{
			FieldPos:           FloatField(pos, 3),
			FieldAtomicNumbers: IntField(atomicNumbers, 1),
			FieldNodeType:      IntField(nodeType, 1),
		},
		EdgeData: map[string]Field{
			FieldBondDist:  FloatField(e.dist, 1),
			FieldBondVec:   FloatField(e.vec, 3),
			FieldPBCOffset: IntField(e.offset, 3),
		},
	}
	b.threeBody(g, e)

	log.WithFields(log.Fields{
		"nodes":   g.NumNodes,
		"edges":   g.NumEdges(),
		"triples": g.NumTriples(),
	}).Debug("built graph")
	return g, nil
}

// threeBody pairs every two distinct bonds leaving the same atom that are
// both shorter than the three-body cutoff.
func (b *Builder) threeBody(g *Graph, e *edgeList) {
	bySrc := make([][]int, g.NumNodes)
	for idx, src := range e.src {
		if float64(e.dist[idx]) <= b.ThreebodyCutoff {
			bySrc[src] = append(bySrc[src], idx)
		}
	}
	for _, bonds := range bySrc {
		for _, ij := range bonds {
			for _, ik := range bonds {
				if ij == ik {
					continue
				}
				g.TripleBonds = append(g.TripleBonds, [2]int{ij, ik})
				g.TripleCos = append(g.TripleCos, e.cos(ij, ik))
			}
		}
	}
}

type edgeList struct {
	src, dst []int
	dist     []float32
	vec      []float32
	offset   []int64
}

func newEdgeList() *edgeList {
	return &edgeList{}
}

func toVec(v [3]float64) r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func (e *edgeList) add(i, j int, vec r3.Vec, d float64, image [3]int) {
	e.src = append(e.src, i)
	e.dst = append(e.dst, j)
	e.dist = append(e.dist, float32(d))
	e.vec = append(e.vec, float32(vec.X), float32(vec.Y), float32(vec.Z))
	e.offset = append(e.offset, int64(image[0]), int64(image[1]), int64(image[2]))
}

func (e *edgeList) cos(a, b int) float32 {
	var dot float32
	for k := range 3 {
		dot += e.vec[3*a+k] * e.vec[3*b+k]
	}
	c := dot / (e.dist[a] * e.dist[b])
	return float32(math.Max(-1, math.Min(1, float64(c))))
}
