package render

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcharczuk/go-chart/v2"

	"fxstory/config"
	"fxstory/internal/testutil"
	"fxstory/models"
)

func testRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	log, _ := testutil.CaptureLogger(t)
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	return NewRenderer(cfg, log), cfg.Output.Dir
}

// eraRecords returns n daily records from start with both rolling means set.
func eraRecords(start time.Time, n int, base float64) models.Series {
	out := make(models.Series, n)
	for i := range out {
		v := base + float64(i)*0.01
		out[i] = models.Record{
			Time:             start.AddDate(0, 0, i),
			QuoteRate:        v * 1.1,
			CrossSource:      1.1,
			CrossRate:        v,
			CrossRollingMean: models.Some(v),
			QuoteRollingMean: models.Some(v * 1.1),
		}
	}
	return out
}

func fivePeriods() []models.Period {
	eras := models.DefaultEras()
	starts := []time.Time{
		testutil.Date(2000, time.March, 1),
		testutil.Date(2004, time.March, 1),
		testutil.Date(2012, time.March, 1),
		testutil.Date(2017, time.October, 1),
		testutil.Date(2020, time.March, 1),
	}
	periods := make([]models.Period, len(eras))
	for i, era := range eras {
		periods[i] = models.Period{Era: era, Records: eraRecords(starts[i], 40, 1.8+float64(i)*0.6)}
	}
	return periods
}

func TestRenderAllWritesBothFigures(t *testing.T) {
	r, dir := testRenderer(t)

	paths, err := r.RenderAll(fivePeriods())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "dollar_real_storytelling.png"),
		filepath.Join(dir, "euro_real_storytelling.png"),
	}, paths)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))

		f, err := os.Open(p)
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 1200, cfg.Width)
		assert.Equal(t, 800, cfg.Height)
	}
}

func TestRenderEmptyErasDrawBlankPanels(t *testing.T) {
	log, buf := testutil.CaptureLogger(t)
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	r := NewRenderer(cfg, log)

	periods := fivePeriods()
	periods[2].Records = nil
	// Only missing means: nothing to plot either.
	for i := range periods[3].Records {
		periods[3].Records[i].CrossRollingMean = models.Missing()
	}

	fig, err := FigureByKey("dollar")
	require.NoError(t, err)
	require.NoError(t, r.Render(fig, periods))
	assert.FileExists(t, r.Path(fig))
	assert.Contains(t, buf.String(), "era=DILMA")
	assert.Contains(t, buf.String(), "era=TEMER")
}

func TestRenderWithoutAnyData(t *testing.T) {
	r, _ := testRenderer(t)

	periods := make([]models.Period, 0, 5)
	for _, era := range models.DefaultEras() {
		periods = append(periods, models.Period{Era: era})
	}
	paths, err := r.RenderAll(periods)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestRenderSinglePointEra(t *testing.T) {
	r, _ := testRenderer(t)
	periods := fivePeriods()
	periods[0].Records = periods[0].Records[:1]

	fig, err := FigureByKey("euro")
	require.NoError(t, err)
	assert.NoError(t, r.Render(fig, periods))
}

func TestFigures(t *testing.T) {
	figs := Figures()
	require.Len(t, figs, 2)

	assert.Equal(t, 6.0, figs[0].YMax())
	assert.Equal(t, 7.0, figs[1].YMax())
	assert.Len(t, figs[0].YTicks, 10)
	assert.Len(t, figs[1].YTicks, 12)

	rec := models.Record{CrossRollingMean: models.Some(4), QuoteRollingMean: models.Some(5)}
	assert.Equal(t, models.Some(4), figs[0].Value(rec))
	assert.Equal(t, models.Some(5), figs[1].Value(rec))

	_, err := FigureByKey("yen")
	assert.Error(t, err)
}

func TestYearTicksThinOut(t *testing.T) {
	first, last := testutil.Date(2002, time.January, 2), testutil.Date(2009, time.December, 31)
	ticks := yearTicks(first, last)

	var labels []string
	for _, tick := range ticks {
		if tick.Label != "" {
			labels = append(labels, tick.Label)
		}
	}
	assert.Equal(t, []string{"2002", "2004", "2006", "2008"}, labels)
	assertSpans(t, ticks, first, last)
}

func TestYearTicksSpanTheData(t *testing.T) {
	cases := []struct {
		name        string
		first, last time.Time
	}{
		{"inside one year", testutil.Date(2000, time.January, 3), testutil.Date(2000, time.March, 1)},
		{"across a new year", testutil.Date(2016, time.September, 1), testutil.Date(2017, time.February, 28)},
		{"whole era", testutil.Date(2003, time.January, 1), testutil.Date(2010, time.December, 31)},
		{"single day", testutil.Date(2019, time.May, 6), testutil.Date(2019, time.May, 6)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ticks := yearTicks(tc.first, tc.last)
			require.GreaterOrEqual(t, len(ticks), 2)
			last := tc.last
			if !last.After(tc.first) {
				last = tc.first.Add(24 * time.Hour)
			}
			assertSpans(t, ticks, tc.first, last)
		})
	}
}

func assertSpans(t *testing.T, ticks []chart.Tick, first, last time.Time) {
	t.Helper()
	require.NotEmpty(t, ticks)
	assert.Equal(t, chart.TimeToFloat64(first), ticks[0].Value)
	assert.Equal(t, chart.TimeToFloat64(last), ticks[len(ticks)-1].Value)
	for i := 1; i < len(ticks); i++ {
		assert.Less(t, ticks[i-1].Value, ticks[i].Value)
	}
}

func TestYAxisStartsAtFloor(t *testing.T) {
	fig, err := FigureByKey("dollar")
	require.NoError(t, err)

	axis := yAxis(fig)
	require.Len(t, axis.Ticks, len(fig.YTicks)+1)
	assert.Equal(t, 0.8, axis.Ticks[0].Value)
	assert.Empty(t, axis.Ticks[0].Label)
	assert.Equal(t, 6.0, axis.Ticks[len(axis.Ticks)-1].Value)
}

func TestRenderEraInsideOneYear(t *testing.T) {
	r, _ := testRenderer(t)
	periods := fivePeriods()
	periods[0].Records = eraRecords(testutil.Date(2000, time.January, 3), 12, 1.8)
	for i := 1; i < len(periods); i++ {
		periods[i].Records = nil
	}

	paths, err := r.RenderAll(periods)
	require.NoError(t, err)
	for _, p := range paths {
		assert.FileExists(t, p)
	}
}
