package model

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/CraigKelly/greta/autodiff"
)

// fieldReader walks the whitespace separated tokens of a data file
type fieldReader struct {
	pos    int
	fields []string
}

func newFieldReader(data string) *fieldReader {
	return &fieldReader{0, strings.Fields(data)}
}

// next returns the next token or io.EOF
func (fr *fieldReader) next() (string, error) {
	if fr.pos >= len(fr.fields) {
		return "", io.EOF
	}
	p := fr.pos
	fr.pos++
	return fr.fields[p], nil
}

func (fr *fieldReader) remaining() int {
	return len(fr.fields) - fr.pos
}

// readDim reads a positive matrix dimension
func (fr *fieldReader) readDim() (int, error) {
	s, err := fr.next()
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 1 {
		return 0, errors.Wrapf(ErrDataValidation, "Dimension %d is not positive", i)
	}
	return i, nil
}

// readValue reads a finite number. NA marks a missing value, which data
// nodes cannot hold.
func (fr *fieldReader) readValue() (float64, error) {
	s, err := fr.next()
	if err != nil {
		return 0, err
	}
	if s == "NA" {
		return 0, errors.Wrapf(ErrDataValidation, "Missing value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrDataValidation, "Non-finite value %s", s)
	}
	return v, nil
}

// ReadMatrix parses whitespace separated data: the row count, the column
// count, then the values row by row
func ReadMatrix(data string) (*autodiff.Matrix, error) {
	fr := newFieldReader(data)

	rows, err := fr.readDim()
	if err != nil {
		return nil, errors.Wrapf(err, "Could not read row count")
	}
	cols, err := fr.readDim()
	if err != nil {
		return nil, errors.Wrapf(err, "Could not read column count")
	}

	m := autodiff.NewMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v, err := fr.readValue()
			if err != nil {
				return nil, errors.Wrapf(err, "Could not read value [%d,%d]", i+1, j+1)
			}
			m.Set(i, j, v)
		}
	}
	if n := fr.remaining(); n > 0 {
		return nil, errors.Wrapf(ErrDataValidation, "%d unexpected values after the %dx%d matrix", n, rows, cols)
	}
	return m, nil
}
