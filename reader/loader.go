package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"fxstory/logger"
	"fxstory/models"
)

// ErrFileNotFound is returned by Load when the input file does not exist.
// It is the only load failure the pipeline recovers from.
var ErrFileNotFound = errors.New("input file not found")

// Loader reads the ECB daily history CSV into a RawTable.
type Loader struct {
	log *logger.Log
}

// NewLoader creates a Loader that logs through log.
func NewLoader(log *logger.Log) *Loader {
	log.WithComponent("loader").Debug("loader initialized")
	return &Loader{log: log}
}

// Load reads path. A missing file yields an empty table together with an
// error wrapping ErrFileNotFound, so callers may log it and carry on.
func (l *Loader) Load(path string) (*models.RawTable, error) {
	log := l.log.WithComponent("loader").WithFields(logger.Fields{"path": path})

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).Error("could not find the input file")
			return models.EmptyRawTable(), fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		log.WithError(err).Error("could not open the input file")
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return l.LoadFrom(f, path)
}

// LoadFrom reads CSV from r. source only labels log lines.
func (l *Loader) LoadFrom(r io.Reader, source string) (*models.RawTable, error) {
	start := time.Now()
	log := l.log.WithComponent("loader").WithFields(logger.Fields{"path": source})

	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		log.WithError(err).Error("could not parse the input file")
		return nil, fmt.Errorf("read csv %s: %w", source, err)
	}
	if len(records) == 1 {
		log.WithFields(logger.Fields{"columns": len(records[0])}).Warn("input has a header but no rows")
		table, err := models.HeaderOnlyRawTable(records[0])
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", source, err)
		}
		return table, nil
	}

	// Every column stays text: the missing-quote marker must survive until
	// the cleaner decides what to do with it.
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		log.WithError(df.Err).Error("could not parse the input file")
		return nil, fmt.Errorf("read csv %s: %w", source, df.Err)
	}

	table := models.NewRawTable(df)
	log.WithFields(logger.Fields{
		"rows":    table.Len(),
		"columns": table.Width(),
	}).Info("input loaded")
	logger.LogPerformanceEntry(log, "loader", "load", time.Since(start), nil)

	return table, nil
}
