// Package equity provides showdown equities between two lists of private
// hands on a board. The solver treats an Engine as a pure function and
// caches its results; it never evaluates hand strength itself.
package equity

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/timpalpant/go-postflop/cards"
)

// Engine computes showdown equity matrices.
type Engine interface {
	// Equities returns the matrix whose entry (i, j) is the probability that
	// a[i] beats b[j] on the given board, counting ties as one half and
	// averaging over all runouts if the board has fewer than five cards.
	// Entries for overlapping hands, or hands that overlap the board,
	// must be zero.
	Equities(board []cards.Card, a, b []cards.Hand) (*Matrix, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(board []cards.Card, a, b []cards.Hand) (*Matrix, error)

// Equities implements Engine.
func (f EngineFunc) Equities(board []cards.Card, a, b []cards.Hand) (*Matrix, error) {
	return f(board, a, b)
}

// Matrix is a dense row-major matrix of player 0 equities.
type Matrix struct {
	Rows, Cols int
	Eq         []float32
}

func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Eq:   make([]float32, rows*cols),
	}
}

func (m *Matrix) At(i, j int) float32 {
	return m.Eq[i*m.Cols+j]
}

func (m *Matrix) Set(i, j int, eq float32) {
	m.Eq[i*m.Cols+j] = eq
}

// Row returns the equities of hand i against every opponent hand.
func (m *Matrix) Row(i int) []float32 {
	return m.Eq[i*m.Cols : (i+1)*m.Cols]
}

// Bytes returns the memory used by the matrix entries.
func (m *Matrix) Bytes() int64 {
	return 4 * int64(len(m.Eq))
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *Matrix) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+4*len(m.Eq))
	binary.LittleEndian.PutUint32(buf[0:], uint32(m.Rows))
	binary.LittleEndian.PutUint32(buf[4:], uint32(m.Cols))
	for i, x := range m.Eq {
		binary.LittleEndian.PutUint32(buf[8+4*i:], math.Float32bits(x))
	}

	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Matrix) UnmarshalBinary(buf []byte) error {
	if len(buf) < 8 {
		return errors.Errorf("matrix record too short: %d bytes", len(buf))
	}

	rows := int(binary.LittleEndian.Uint32(buf[0:]))
	cols := int(binary.LittleEndian.Uint32(buf[4:]))
	if len(buf) != 8+4*rows*cols {
		return errors.Errorf("matrix record of %d bytes does not hold %dx%d entries",
			len(buf), rows, cols)
	}

	m.Rows, m.Cols = rows, cols
	m.Eq = make([]float32, rows*cols)
	for i := range m.Eq {
		m.Eq[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[8+4*i:]))
	}

	return nil
}
