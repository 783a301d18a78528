package synchrony

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// TextOption configures the delimited text representation of matrices.
type TextOption func(*textFormat)

type textFormat struct {
	delimiter string
	precision int
}

// WithDelimiter sets the field delimiter. The default is ", ".
func WithDelimiter(d string) TextOption {
	return func(f *textFormat) { f.delimiter = d }
}

// WithPrecision sets the number of decimals written per value. The default is 8.
func WithPrecision(p int) TextOption {
	return func(f *textFormat) { f.precision = p }
}

func newTextFormat(opts []TextOption) (textFormat, error) {
	f := textFormat{delimiter: DefaultDelimiter, precision: DefaultPrecision}
	for _, opt := range opts {
		opt(&f)
	}
	if f.delimiter == "" {
		return f, fmt.Errorf("%w: empty delimiter", ErrInvalidParameters)
	}
	if f.precision < 0 {
		return f, fmt.Errorf("%w: negative precision %d", ErrInvalidParameters, f.precision)
	}
	return f, nil
}

func (f textFormat) appendValue(b []byte, v float64) []byte {
	if math.IsNaN(v) {
		return append(b, "nan"...)
	}
	return strconv.AppendFloat(b, v, 'f', f.precision, 64)
}

// WriteMatrix writes m as delimited text, one row per line, with a fixed
// number of decimals. NaN cells are written as "nan".
func WriteMatrix(w io.Writer, m mat.Matrix, opts ...TextOption) error {
	f, err := newTextFormat(opts)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	rows, cols := m.Dims()
	var line []byte
	for i := range rows {
		line = line[:0]
		for j := range cols {
			if j > 0 {
				line = append(line, f.delimiter...)
			}
			line = f.appendValue(line, m.At(i, j))
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("failed to write matrix row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteVector writes one value per line.
func WriteVector(w io.Writer, v []float64, opts ...TextOption) error {
	if len(v) == 0 {
		return nil
	}
	return WriteMatrix(w, mat.NewVecDense(len(v), append([]float64(nil), v...)), opts...)
}

// ReadMatrix parses delimited text written by WriteMatrix. Blank lines are
// skipped and every row must have the same number of fields.
func ReadMatrix(r io.Reader, opts ...TextOption) (*mat.Dense, error) {
	f, err := newTextFormat(opts)
	if err != nil {
		return nil, err
	}
	sep := strings.TrimSpace(f.delimiter)

	var data []float64
	rows, cols := 0, 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var fields []string
		if sep == "" {
			fields = strings.Fields(line)
		} else {
			fields = strings.Split(line, sep)
		}
		if rows == 0 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, fmt.Errorf("row %d has %d fields, want %d", rows+1, len(fields), cols)
		}
		for _, field := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", rows+1, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidParameters)
	}
	return mat.NewDense(rows, cols, data), nil
}

// SubMatrix returns the rows and columns of a square matrix selected by
// idx, in that order.
func SubMatrix(m mat.Matrix, idx []int) (*mat.Dense, error) {
	rows, cols := m.Dims()
	if rows != cols {
		return nil, fmt.Errorf("%w: matrix is %dx%d, not square", ErrInvalidParameters, rows, cols)
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: empty selection", ErrInvalidParameters)
	}
	for _, i := range idx {
		if i < 0 || i >= rows {
			return nil, fmt.Errorf("%w: index %d not in [0, %d)", ErrIndexOutOfRange, i, rows)
		}
	}
	out := mat.NewDense(len(idx), len(idx), nil)
	for a, i := range idx {
		for b, j := range idx {
			out.Set(a, b, m.At(i, j))
		}
	}
	return out, nil
}
