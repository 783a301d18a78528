package synchrony

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestWriteMatrix(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{0.5, 0.3, math.NaN(), 1})

	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, m, WithPrecision(3)))
	assert.Equal(t, "0.500, 0.300\nnan, 1.000\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteMatrix(&buf, m, WithPrecision(1), WithDelimiter("\t")))
	assert.Equal(t, "0.5\t0.3\nnan\t1.0\n", buf.String())
}

func TestWriteVector(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVector(&buf, []float64{1, 2}, WithPrecision(2)))
	assert.Equal(t, "1.00\n2.00\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteVector(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestTextOptionsValidated(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorIs(t, WriteMatrix(&buf, mat.NewDense(1, 1, nil), WithDelimiter("")), ErrInvalidParameters)
	require.ErrorIs(t, WriteMatrix(&buf, mat.NewDense(1, 1, nil), WithPrecision(-1)), ErrInvalidParameters)
}

func TestReadMatrixRoundTrip(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{
		0.91, 0.12, 0.05,
		0.12, 0.93, math.NaN(),
		0.05, 0.04, 0.95,
	})
	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, m))

	got, err := ReadMatrix(&buf)
	require.NoError(t, err)
	rows, cols := got.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 3, cols)
	assert.True(t, math.IsNaN(got.At(1, 2)))
	assert.InDelta(t, 0.93, got.At(1, 1), 1e-12)
}

func TestReadMatrixWhitespace(t *testing.T) {
	got, err := ReadMatrix(strings.NewReader("1 2\n\n3 4\n"), WithDelimiter(" "))
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), got))
}

func TestReadMatrixErrors(t *testing.T) {
	_, err := ReadMatrix(strings.NewReader("1, 2\n3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")

	_, err = ReadMatrix(strings.NewReader("1, x\n"))
	require.Error(t, err)

	_, err = ReadMatrix(strings.NewReader("\n\n"))
	require.ErrorIs(t, err, ErrInvalidParameters)
}

func TestSubMatrix(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	got, err := SubMatrix(m, []int{2, 0})
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{9, 7, 3, 1}), got))

	_, err = SubMatrix(m, []int{3})
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = SubMatrix(mat.NewDense(2, 3, nil), []int{0})
	require.ErrorIs(t, err, ErrInvalidParameters)
}
