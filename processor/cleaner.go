package processor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fxstory/config"
	"fxstory/logger"
	"fxstory/models"
)

// Column names as published by the ECB and the canonical names they are
// renamed to.
const (
	SourceTimeColumn   = `Period\Unit:`
	SourceDollarColumn = "[US dollar ]"
	SourceRealColumn   = "[Brazilian real ]"

	TimeColumn   = "Time"
	DollarColumn = "US_dollar"
	RealColumn   = "BRL_real"
)

// ErrMissingColumn is returned when a non-empty input lacks a required column.
var ErrMissingColumn = errors.New("required column missing")

var timeLayouts = []string{"2006-01-02", time.RFC3339, "2006/01/02"}

// Cleaner turns the raw ECB table into the BRL series.
type Cleaner struct {
	config *config.Config
	log    *logger.Log
}

// NewCleaner creates a Cleaner using the cleaning settings of cfg.
func NewCleaner(cfg *config.Config, log *logger.Log) *Cleaner {
	log.WithComponent("cleaner").WithFields(logger.Fields{
		"rolling_window": cfg.Cleaning.RollingWindow,
		"start_year":     cfg.Cleaning.StartYear,
		"end_year":       cfg.Cleaning.EndYear,
	}).Debug("cleaner initialized")
	return &Cleaner{config: cfg, log: log}
}

type rawRow struct {
	time   time.Time
	dollar string
	real   string
}

type dollarRow struct {
	time   time.Time
	dollar float64
	real   string
}

// Clean renames, sorts, filters and derives the series. A table without
// any column (the input was missing) cleans to an empty series.
func (c *Cleaner) Clean(raw *models.RawTable) (models.Series, error) {
	start := time.Now()
	log := c.log.WithComponent("cleaner")

	if raw.Width() == 0 {
		log.Warn("raw table is empty; producing an empty series")
		return models.Series{}, nil
	}

	// 1. canonical names for the dollar and time columns
	if err := raw.Rename(SourceDollarColumn, DollarColumn); err != nil {
		return nil, err
	}
	if err := raw.Rename(SourceTimeColumn, TimeColumn); err != nil {
		return nil, err
	}

	// 2. parse and sort by time
	rows, err := c.sortedRows(raw)
	if err != nil {
		return nil, err
	}
	log.WithFields(logger.Fields{"rows": len(rows)}).Debug("rows sorted by time")

	// 3. canonical name for the real column
	if err := raw.Rename(SourceRealColumn, RealColumn); err != nil {
		return nil, err
	}
	reals, err := column(raw, RealColumn)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].real = reals[rows[i].index]
	}

	// 4. dollar projection
	dollars, err := dollarProjection(rows)
	if err != nil {
		return nil, err
	}
	log.WithFields(logger.Fields{
		"rows":    len(dollars),
		"dropped": len(rows) - len(dollars),
	}).Debug("dollar projection built")

	// 5-6. combined projection and the cross rate
	series, err := combinedProjection(dollars)
	if err != nil {
		return nil, err
	}
	log.WithFields(logger.Fields{
		"rows":    len(series),
		"dropped": len(dollars) - len(series),
	}).Debug("combined projection built")

	// 7. rolling means
	window := c.config.Cleaning.RollingWindow
	crossMeans := RollingMean(crossRates(series), window)
	quoteMeans := RollingMean(quoteRates(series), window)
	for i := range series {
		series[i].CrossRollingMean = crossMeans[i]
		series[i].QuoteRollingMean = quoteMeans[i]
	}

	logger.LogDataFlowEntry(log, "raw_table", "series", len(series), "records")
	logger.LogPerformanceEntry(log, "cleaner", "clean", time.Since(start), nil)
	return series, nil
}

type indexedRow struct {
	rawRow
	index int
}

func (c *Cleaner) sortedRows(raw *models.RawTable) ([]indexedRow, error) {
	times, err := column(raw, TimeColumn)
	if err != nil {
		return nil, err
	}
	dollars, err := column(raw, DollarColumn)
	if err != nil {
		return nil, err
	}
	if !raw.HasColumn(SourceRealColumn) && !raw.HasColumn(RealColumn) {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, SourceRealColumn)
	}

	rows := make([]indexedRow, len(times))
	for i, cell := range times {
		ts, err := parseTime(cell)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = indexedRow{rawRow: rawRow{time: ts, dollar: dollars[i]}, index: i}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].time.Before(rows[j].time) })
	return rows, nil
}

func column(raw *models.RawTable, name string) ([]string, error) {
	cells, err := raw.Column(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return cells, nil
}

func parseTime(cell string) (time.Time, error) {
	s := strings.TrimSpace(cell)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unsupported format", cell)
}

func dollarProjection(rows []indexedRow) ([]dollarRow, error) {
	out := make([]dollarRow, 0, len(rows))
	for _, r := range rows {
		rate, err := models.ParseRate(r.dollar)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", DollarColumn, r.time.Format("2006-01-02"), err)
		}
		if !rate.Valid {
			continue
		}
		out = append(out, dollarRow{time: r.time, dollar: rate.Value, real: r.real})
	}
	return out, nil
}

func combinedProjection(rows []dollarRow) (models.Series, error) {
	out := make(models.Series, 0, len(rows))
	for _, r := range rows {
		rate, err := models.ParseRate(r.real)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", RealColumn, r.time.Format("2006-01-02"), err)
		}
		if !rate.Valid {
			continue
		}
		out = append(out, models.Record{
			Time:        r.time,
			QuoteRate:   rate.Value,
			CrossSource: r.dollar,
			CrossRate:   rate.Value / r.dollar,
		})
	}
	return out, nil
}

func crossRates(s models.Series) []float64 {
	out := make([]float64, len(s))
	for i, r := range s {
		out[i] = r.CrossRate
	}
	return out
}

func quoteRates(s models.Series) []float64 {
	out := make([]float64, len(s))
	for i, r := range s {
		out[i] = r.QuoteRate
	}
	return out
}
