package structure

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownElement is returned when a species symbol is not in the periodic table.
var ErrUnknownElement = errors.New("unknown element")

// symbols is indexed by atomic number; index 0 is a placeholder.
var symbols = [...]string{
	"X",
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd",
	"In", "Sn", "Sb", "Te", "I", "Xe",
	"Cs", "Ba", "La", "Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy",
	"Ho", "Er", "Tm", "Yb", "Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt",
	"Au", "Hg", "Tl", "Pb", "Bi", "Po", "At", "Rn",
	"Fr", "Ra", "Ac", "Th", "Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf",
	"Es", "Fm", "Md", "No", "Lr", "Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds",
	"Rg", "Cn", "Nh", "Fl", "Mc", "Lv", "Ts", "Og",
}

var numbers = func() map[string]int {
	m := make(map[string]int, len(symbols))
	for z, s := range symbols[1:] {
		m[s] = z + 1
	}
	return m
}()

// AtomicNumber returns the atomic number of an element symbol. Charge
// suffixes such as "Fe2+" or "O2-" are ignored.
func AtomicNumber(symbol string) (int, error) {
	s := strings.TrimRight(strings.TrimSpace(symbol), "0123456789+-")
	if z, ok := numbers[s]; ok {
		return z, nil
	}
	return 0, errors.Wrapf(ErrUnknownElement, "symbol %q", symbol)
}

// Symbol returns the element symbol for an atomic number.
func Symbol(z int) (string, error) {
	if z <= 0 || z >= len(symbols) {
		return "", errors.Wrapf(ErrUnknownElement, "atomic number %d", z)
	}
	return symbols[z], nil
}

// ElementTypes is the element vocabulary used by graph featurization,
// H through Fm (atomic numbers 1 to 100).
func ElementTypes() []string {
	out := make([]string, 100)
	copy(out, symbols[1:101])
	return out
}
