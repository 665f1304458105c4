package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "fxstory/config"
	"fxstory/logger"
	"fxstory/models"
)

// rateRecord defines the parquet schema of the cleaned series. Rolling
// means are OPTIONAL and null until the window is full.
type rateRecord struct {
	Date              string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Time              int64    `parquet:"name=time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	EuroRate          float64  `parquet:"name=euro_rate, type=DOUBLE"`
	USDollar          float64  `parquet:"name=us_dollar, type=DOUBLE"`
	DollarRate        float64  `parquet:"name=dollar_rate, type=DOUBLE"`
	DollarRollingMean *float64 `parquet:"name=dollar_rolling_mean, type=DOUBLE, repetitiontype=OPTIONAL"`
	EuroRollingMean   *float64 `parquet:"name=euro_rolling_mean, type=DOUBLE, repetitiontype=OPTIONAL"`
	Era               string   `parquet:"name=era, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ParquetExporter writes the cleaned series to a local parquet file.
type ParquetExporter struct {
	cfg  *appconfig.Config
	eras []models.Era
	log  *logger.Log
}

// NewParquetExporter creates an exporter. Each row inside the configured
// years is tagged with the first era in eras that contains it; every other
// row is left blank.
func NewParquetExporter(cfg *appconfig.Config, eras []models.Era, log *logger.Log) *ParquetExporter {
	return &ParquetExporter{cfg: cfg, eras: eras, log: log}
}

// Path returns the configured export path, relative to the output dir
// unless absolute.
func (e *ParquetExporter) Path() string {
	p := e.cfg.Export.Parquet.Path
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.cfg.Output.Dir, p)
}

// Export writes series to path and returns the file size in bytes.
func (e *ParquetExporter) Export(path string, series models.Series) (int64, error) {
	start := time.Now()
	log := e.log.WithComponent("parquet_exporter").WithFields(logger.Fields{"path": path})

	codec, err := compressionCodec(e.cfg.Export.Parquet.Compression)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create export dir: %w", err)
		}
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(rateRecord), 1)
	if err != nil {
		fw.Close()
		return 0, fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for _, r := range series {
		if err := pw.Write(e.toRecord(r)); err != nil {
			fw.Close()
			return 0, fmt.Errorf("write row %s: %w", r.Time.Format("2006-01-02"), err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return 0, fmt.Errorf("finish parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	duration := time.Since(start)
	fields := logger.Fields{
		"records":     len(series),
		"bytes":       info.Size(),
		"compression": e.cfg.Export.Parquet.Compression,
		"duration_ms": float64(duration.Nanoseconds()) / 1e6,
	}
	if duration > 0 {
		fields["throughput_bytes_per_sec"] = float64(info.Size()) / duration.Seconds()
	}
	log.WithFields(fields).Info("series exported")
	return info.Size(), nil
}

func (e *ParquetExporter) toRecord(r models.Record) rateRecord {
	rec := rateRecord{
		Date:              r.Time.Format("2006-01-02"),
		Time:              r.Time.UnixMilli(),
		EuroRate:          r.QuoteRate,
		USDollar:          r.CrossSource,
		DollarRate:        r.CrossRate,
		DollarRollingMean: r.CrossRollingMean.Ptr(),
		EuroRollingMean:   r.QuoteRollingMean.Ptr(),
	}
	// Rows outside the plotted years belong to no period.
	if y := r.Time.Year(); y < e.cfg.Cleaning.StartYear || y >= e.cfg.Cleaning.EndYear {
		return rec
	}
	for _, era := range e.eras {
		if era.Contains(r.Time) {
			rec.Era = era.Name
			break
		}
	}
	return rec
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return parquet.CompressionCodec_SNAPPY, nil
	case "gzip":
		return parquet.CompressionCodec_GZIP, nil
	case "uncompressed":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	}
	return 0, fmt.Errorf("unsupported parquet compression %q", name)
}
