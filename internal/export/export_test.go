package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

func sampleTable() indicator.Table {
	return indicator.NewTable(
		indicator.Observation{Entity: "USA", EntityLabel: "United States", Indicator: "NGDP_RPCH", Year: 2020, Value: indicator.Float(-3.4)},
		indicator.Observation{Entity: "USA", EntityLabel: "United States", Indicator: "NGDP_RPCH", Year: 2021, Value: indicator.Float(5.7)},
		indicator.Observation{Entity: "USA", EntityLabel: "United States", Indicator: "NGDP_RPCH", Year: 2022},
		indicator.Observation{Entity: "FRA", EntityLabel: "France", Indicator: "NGDP_RPCH", Year: 2020, Value: indicator.Float(1.0 / 3.0)},
	)
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "entity,indicator,year,value", lines[0])
	assert.Equal(t, "USA,NGDP_RPCH,2022,", lines[3])

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	want := sampleTable()
	require.Equal(t, want.Len(), got.Len())
	for i, o := range got.Observations {
		w := want.Observations[i]
		assert.Equal(t, w.Entity, o.Entity)
		assert.Equal(t, w.Indicator, o.Indicator)
		assert.Equal(t, w.Year, o.Year)
		if w.Value == nil {
			assert.Nil(t, o.Value)
			continue
		}
		require.NotNil(t, o.Value)
		assert.InDelta(t, *w.Value, *o.Value, 1e-9)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("country,indicator,year,value\n"))
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = ReadCSV(strings.NewReader("entity,indicator,year,value\nUSA,X,2020Q1,1\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("entity,indicator,year,value\nUSA,X,2020,abc\n"))
	assert.Error(t, err)

	tbl, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, tbl.IsEmpty())
}

func TestBuildSeries_OnePerEntity(t *testing.T) {
	var obs []indicator.Observation
	for _, e := range []struct{ code, label string }{{"DEU", "Germany"}, {"FRA", "France"}, {"USA", "United States"}} {
		for year := 2000; year <= 2002; year++ {
			obs = append(obs, indicator.Observation{
				Entity: e.code, EntityLabel: e.label, Indicator: "NGDP", Year: year, Value: indicator.Float(float64(year)),
			})
		}
	}

	series := BuildSeries(indicator.NewTable(obs...))
	require.Len(t, series, 3)
	assert.Equal(t, []string{"Germany", "France", "United States"}, []string{series[0].Label, series[1].Label, series[2].Label})
	for _, s := range series {
		require.Len(t, s.Points, 3)
		assert.Equal(t, 2000, s.Points[0].Year)
		assert.Equal(t, 2002, s.Points[2].Year)
	}
}

func TestBuildSeries_SkipsAbsentAndSorts(t *testing.T) {
	tbl := indicator.NewTable(
		indicator.Observation{Entity: "USA", Indicator: "X", Year: 2002, Value: indicator.Float(2)},
		indicator.Observation{Entity: "USA", Indicator: "X", Year: 2001},
		indicator.Observation{Entity: "USA", Indicator: "X", Year: 2000, Value: indicator.Float(0)},
	)
	series := BuildSeries(tbl)
	require.Len(t, series, 1)
	assert.Equal(t, "USA", series[0].Label)
	assert.Equal(t, []Point{{Year: 2000, Value: 0}, {Year: 2002, Value: 2}}, series[0].Points)
}

func TestRenderText_AlignsWideLabels(t *testing.T) {
	tbl := indicator.NewTable(
		indicator.Observation{Entity: "JPN", EntityLabel: "日本", Indicator: "X", Year: 2020, Value: indicator.Float(1.5)},
		indicator.Observation{Entity: "CIV", EntityLabel: "Côte d'Ivoire", Indicator: "X", Year: 2020},
	)
	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, tbl))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	width := runewidth.StringWidth(lines[0])
	for _, l := range lines[1:] {
		assert.Equal(t, width, runewidth.StringWidth(l), "line %q", l)
	}
	assert.Contains(t, lines[3], missingCell)
}
