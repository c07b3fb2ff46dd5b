package datasource

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetacore/internal/infra/blob/memory"
	"thetacore/pkg/domain"
)

const dataCSV = `date,all__CDC__inc,all__google__inc
2012-07-26,0,0
2012-08-02,4,null
2012-08-09, 6 ,NA
`

func TestParseDataFoldsT0Row(t *testing.T) {
	series, err := Parse(strings.NewReader(dataCSV), KindData)
	require.NoError(t, err)
	require.Len(t, series, 2)

	cdc := series["all__CDC__inc"]
	assert.Equal(t, "2012-07-26", cdc.T0)
	assert.Equal(t, []string{"2012-08-02", "2012-08-09"}, cdc.Dates())
	assert.Equal(t, 6.0, cdc.Value[1].First())
	assert.True(t, math.IsNaN(series["all__google__inc"].Value[0].First()))
}

func TestParseMetadataKeepsEveryRow(t *testing.T) {
	series, err := Parse(strings.NewReader("date,city1__all\n2012-07-26,100\n2012-08-02,110\n"), KindMetadata)
	require.NoError(t, err)
	assert.Empty(t, series["city1__all"].T0)
	assert.Len(t, series["city1__all"].Value, 2)
}

func TestParseRejectsMalformedFiles(t *testing.T) {
	for name, input := range map[string]string{
		"no series":    "date\n2012-07-26\n",
		"empty":        "",
		"not a number": "date,a\n2012-07-26,0\n2012-08-02,many\n",
		"ragged":       "date,a,b\n2012-07-26,0\n",
	} {
		_, err := Parse(strings.NewReader(input), KindData)
		assert.Error(t, err, name)
	}
	_, err := Parse(strings.NewReader("date,a\n"), KindData)
	assert.ErrorContains(t, err, "no t0 row")
}

func TestRecordsAndRowAt(t *testing.T) {
	const trace = "index,r0:all,logLik\n0,20,-10\n1,21,NA\n2,22,-8\n"
	rows, err := Records(strings.NewReader(trace))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Has("r0:all"))
	assert.False(t, rows[1].Has("logLik"))
	assert.False(t, rows[1].Has("missing"))

	last, err := RowAt(strings.NewReader(trace), -1)
	require.NoError(t, err)
	assert.Equal(t, 22.0, last["r0:all"])

	first, err := RowAt(strings.NewReader(trace), 0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, first["r0:all"])

	_, err = RowAt(strings.NewReader(trace), 3)
	assert.ErrorContains(t, err, "out of range")
	_, err = RowAt(strings.NewReader("index\n"), 0)
	assert.ErrorContains(t, err, "no rows")
}

func TestRecordsRejectInfiniteCells(t *testing.T) {
	for _, cell := range []string{"inf", "-Inf", "+infinity"} {
		_, err := Records(strings.NewReader("index,r0:all\n0," + cell + "\n"))
		assert.ErrorContains(t, err, "not a finite number", cell)
	}
	rows, err := Records(strings.NewReader("index,r0:all\n0,nan\n"))
	require.NoError(t, err)
	assert.False(t, rows[0].Has("r0:all"))
}

func TestMatrix(t *testing.T) {
	m, err := Matrix(strings.NewReader("1, 2\n3, 4\n5, 6\n"))
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 6.0, m.At(2, 1))

	_, err = Matrix(strings.NewReader(""))
	assert.Error(t, err)
	_, err = Matrix(strings.NewReader("1,x\n"))
	assert.Error(t, err)
	_, err = Matrix(strings.NewReader("1,Inf\n"))
	assert.ErrorContains(t, err, "not a finite number")
	_, err = Matrix(strings.NewReader("NaN,1\n"))
	assert.ErrorContains(t, err, "not a finite number")
}

func TestLoaderReadsThroughStore(t *testing.T) {
	store := memory.New()
	store.PutString("data/data.csv", dataCSV)
	l := New(store)
	assert.Same(t, store, l.Store())

	series, err := l.ParseFile(context.Background(), "data/data.csv", KindData)
	require.NoError(t, err)
	assert.Contains(t, series, "all__CDC__inc")

	series, err = l.ParseSync("data/data.csv", KindMetadata)
	require.NoError(t, err)
	assert.Len(t, series["all__CDC__inc"].Value, 3)

	_, err = l.Open(context.Background(), "data/missing.csv")
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "data/missing.csv", nf.Path)

	store.PutString("bad.csv", "date,a\n2012-07-26,x\n")
	_, err = l.ParseFile(context.Background(), "bad.csv", KindMetadata)
	assert.ErrorContains(t, err, "parse bad.csv")
}
