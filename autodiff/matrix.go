package autodiff

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/shape"
)

// Matrix is a dense column-major matrix. Column-major storage matches the R
// convention, so flattening a matrix walks down the first column first.
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// NewMatrix returns a zero-filled matrix
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// Fill returns a matrix with every element set to v
func Fill(rows, cols int, v float64) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

// ScalarMatrix is a 1x1 matrix holding v
func ScalarMatrix(v float64) *Matrix {
	return &Matrix{1, 1, []float64{v}}
}

// Column returns a column vector holding a copy of vals
func Column(vals []float64) *Matrix {
	m := NewMatrix(len(vals), 1)
	copy(m.Data, vals)
	return m
}

// FromRows builds a matrix from row slices. Every row must have the same
// length.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) < 1 || len(rows[0]) < 1 {
		return nil, errors.Errorf("Matrix needs at least one row and column")
	}
	cols := len(rows[0])
	m := NewMatrix(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Errorf("Row %d has %d values, expected %d", i, len(row), cols)
		}
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// FromData wraps column-major data in a matrix of the given size
func FromData(rows, cols int, data []float64) (*Matrix, error) {
	if rows*cols != len(data) {
		return nil, errors.Errorf("Data length %d does not match %dx%d", len(data), rows, cols)
	}
	m := NewMatrix(rows, cols)
	copy(m.Data, data)
	return m, nil
}

// At returns element (i, j)
func (m *Matrix) At(i, j int) float64 {
	return m.Data[j*m.Rows+i]
}

// Set assigns element (i, j)
func (m *Matrix) Set(i, j int, v float64) {
	m.Data[j*m.Rows+i] = v
}

// Shape returns the matrix dimensions as a shape
func (m *Matrix) Shape() shape.Shape {
	return shape.Shape{Rows: m.Rows, Cols: m.Cols}
}

// Clone returns a deep copy
func (m *Matrix) Clone() *Matrix {
	cp := NewMatrix(m.Rows, m.Cols)
	copy(cp.Data, m.Data)
	return cp
}

// Sum of all elements
func (m *Matrix) Sum() float64 {
	var s float64
	for _, v := range m.Data {
		s += v
	}
	return s
}

// AllFinite is true if no element is NaN or infinite
func (m *Matrix) AllFinite() bool {
	for _, v := range m.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Broadcast returns m recycled up to the requested shape. The result shares
// no storage with m.
func (m *Matrix) Broadcast(s shape.Shape) (*Matrix, error) {
	target, err := shape.Broadcast(m.Shape(), s)
	if err != nil {
		return nil, err
	}
	if target != s {
		return nil, errors.Wrapf(shape.ErrShape, "Cannot broadcast %v up to %v", m.Shape(), s)
	}
	out := NewMatrix(s.Rows, s.Cols)
	for j := 0; j < s.Cols; j++ {
		for i := 0; i < s.Rows; i++ {
			out.Set(i, j, m.at(i, j))
		}
	}
	return out, nil
}

// at reads with R-style recycling of unit dimensions
func (m *Matrix) at(i, j int) float64 {
	return m.Data[m.offset(i, j)]
}

func (m *Matrix) offset(i, j int) int {
	if m.Rows == 1 {
		i = 0
	}
	if m.Cols == 1 {
		j = 0
	}
	return j*m.Rows + i
}
