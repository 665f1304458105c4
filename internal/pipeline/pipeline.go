// Package pipeline runs one pass of the FX story: load, clean, segment,
// render and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fxstory/config"
	"fxstory/internal/metadata"
	"fxstory/internal/metrics"
	"fxstory/logger"
	"fxstory/models"
	"fxstory/processor"
	"fxstory/reader"
	"fxstory/render"
	"fxstory/writer"
)

// Report summarises a finished run.
type Report struct {
	RunID        string
	InputFound   bool
	RowsLoaded   int
	RowsCleaned  int
	RowsInWindow int
	EraCounts    map[string]int
	Artifacts    []string
	Uploaded     []string
	Duration     time.Duration
}

// Pipeline owns the collaborators of a run. Build it with New.
type Pipeline struct {
	cfg       *config.Config
	log       *logger.Log
	console   io.Writer
	eras      []models.Era
	loader    *reader.Loader
	cleaner   *processor.Cleaner
	renderer  *render.Renderer
	exporter  *writer.ParquetExporter
	uploader  *writer.S3Uploader
	publisher *metrics.Publisher
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithConsole sets where user-facing messages are printed. Defaults to stdout.
func WithConsole(w io.Writer) Option {
	return func(p *Pipeline) { p.console = w }
}

// WithEras replaces the era table.
func WithEras(eras []models.Era) Option {
	return func(p *Pipeline) { p.eras = eras }
}

// WithUploader sets the S3 uploader used when storage is enabled.
func WithUploader(u *writer.S3Uploader) Option {
	return func(p *Pipeline) { p.uploader = u }
}

// WithPublisher sets the metrics publisher.
func WithPublisher(pub *metrics.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// New wires a pipeline from cfg. AWS clients are only created when their
// section is enabled and no override was given; an uploader that cannot be
// built leaves the run local.
func New(ctx context.Context, cfg *config.Config, log *logger.Log, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:     cfg,
		log:     log,
		console: os.Stdout,
		eras:    models.DefaultEras(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.loader = reader.NewLoader(log)
	p.cleaner = processor.NewCleaner(cfg, log)
	p.renderer = render.NewRenderer(cfg, log)
	if cfg.Export.Parquet.Enabled {
		p.exporter = writer.NewParquetExporter(cfg, p.eras, log)
	}
	if cfg.Storage.S3.Enabled && p.uploader == nil {
		u, err := writer.NewS3Uploader(ctx, cfg, log)
		if err != nil {
			log.WithComponent("pipeline").WithError(err).Warn("s3 uploader unavailable; artifacts stay local")
		} else {
			p.uploader = u
		}
	}
	if p.publisher == nil {
		p.publisher = metrics.NewPublisher(ctx, cfg, log)
	}
	if err := p.publisher.PutDashboard(ctx, cfg.FXStory.Name); err != nil {
		log.WithComponent("pipeline").WithError(err).Warn("failed to create CloudWatch dashboard")
	}
	return p, nil
}

// Run executes the pipeline once. A missing input file is reported and the
// run continues on empty data; every other failure is returned.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	log := p.log.WithComponent("pipeline")

	manifest := metadata.NewManifest(p.cfg.FXStory.Name, p.cfg.FXStory.Version, p.cfg.Input.Path)
	report := Report{RunID: manifest.RunID, InputFound: true, EraCounts: map[string]int{}}
	log.WithFields(logger.Fields{
		"run_id": report.RunID,
		"input":  p.cfg.Input.Path,
	}).Info("run started")

	raw, err := p.loader.Load(p.cfg.Input.Path)
	if err != nil {
		if !errors.Is(err, reader.ErrFileNotFound) {
			return report, fmt.Errorf("load input: %w", err)
		}
		report.InputFound = false
		fmt.Fprintf(p.console, "the file %s does not exist\n", p.cfg.Input.Path)
	}
	report.RowsLoaded = raw.Len()

	series, err := p.cleaner.Clean(raw)
	if err != nil {
		return report, fmt.Errorf("clean input: %w", err)
	}
	report.RowsCleaned = series.Len()

	window, periods := p.cleaner.Segment(series, p.eras)
	report.RowsInWindow = window.Len()
	for _, period := range periods {
		report.EraCounts[period.Era.Name] = period.Records.Len()
	}

	if err := p.render(manifest, periods); err != nil {
		return report, err
	}
	if p.exporter != nil {
		if err := p.export(manifest, series); err != nil {
			return report, err
		}
	}

	manifest.SetCount("rows_loaded", report.RowsLoaded)
	manifest.SetCount("rows_cleaned", report.RowsCleaned)
	manifest.SetCount("rows_in_window", report.RowsInWindow)
	for name, n := range report.EraCounts {
		manifest.SetCount("era_"+name, n)
	}
	report.Artifacts = manifest.Paths()

	manifestPath := p.manifestPath()
	if manifestPath != "" {
		if p.uploader != nil {
			report.Uploaded = p.upload(ctx, manifest, start)
		}
		if err := manifest.Write(manifestPath); err != nil {
			return report, fmt.Errorf("write manifest: %w", err)
		}
		report.Artifacts = append(report.Artifacts, manifestPath)
		if p.uploader != nil {
			key := p.uploader.Key(start, report.RunID, manifestPath)
			if err := p.uploader.Upload(ctx, key, manifestPath); err != nil {
				log.WithError(err).Warn("manifest upload failed")
			} else {
				report.Uploaded = append(report.Uploaded, key)
			}
		}
	} else if p.uploader != nil {
		report.Uploaded = p.upload(ctx, manifest, start)
	}

	report.Duration = time.Since(start)
	if err := p.publisher.PublishRun(ctx, metrics.Run{
		RunID:        report.RunID,
		RowsLoaded:   report.RowsLoaded,
		RowsCleaned:  report.RowsCleaned,
		RowsInWindow: report.RowsInWindow,
		EraCounts:    report.EraCounts,
		Artifacts:    len(report.Artifacts),
		Duration:     report.Duration,
	}); err != nil {
		log.WithError(err).Warn("failed to publish run metrics")
	}

	logger.LogRunReport(p.log, logger.Fields{
		"run_id":         report.RunID,
		"input_found":    report.InputFound,
		"rows_loaded":    report.RowsLoaded,
		"rows_cleaned":   report.RowsCleaned,
		"rows_in_window": report.RowsInWindow,
		"artifacts":      len(report.Artifacts),
		"duration_ms":    float64(report.Duration.Nanoseconds()) / 1e6,
	})
	return report, nil
}

func (p *Pipeline) render(manifest *metadata.Manifest, periods []models.Period) error {
	points := 0
	for _, period := range periods {
		points += period.Records.Len()
	}
	for _, fig := range render.Figures() {
		if err := p.renderer.Render(fig, periods); err != nil {
			return fmt.Errorf("render %s: %w", fig.Key, err)
		}
		path := p.renderer.Path(fig)
		manifest.AddFile(metadata.DataFile{
			Path:        path,
			Kind:        "figure",
			FileSize:    fileSize(path),
			RecordCount: int64(points),
			Partition:   map[string]any{"figure": fig.Key},
		})
	}
	return nil
}

func (p *Pipeline) export(manifest *metadata.Manifest, series models.Series) error {
	path := p.exporter.Path()
	size, err := p.exporter.Export(path, series)
	if err != nil {
		return fmt.Errorf("export parquet: %w", err)
	}
	manifest.AddFile(metadata.DataFile{
		Path:        path,
		Kind:        "parquet",
		FileSize:    size,
		RecordCount: int64(series.Len()),
	})
	return nil
}

// upload pushes every artifact recorded so far. Failures are logged and
// skipped; the returned keys are the ones that made it.
func (p *Pipeline) upload(ctx context.Context, manifest *metadata.Manifest, runDate time.Time) []string {
	log := p.log.WithComponent("pipeline")
	var keys []string
	for _, path := range manifest.Paths() {
		key := p.uploader.Key(runDate, manifest.RunID, path)
		if err := p.uploader.Upload(ctx, key, path); err != nil {
			log.WithError(err).WithFields(logger.Fields{"path": path}).Warn("artifact upload failed")
			continue
		}
		manifest.SetRemote(path, key)
		keys = append(keys, key)
	}
	return keys
}

func (p *Pipeline) manifestPath() string {
	name := p.cfg.Output.Manifest
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.cfg.Output.Dir, name)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
