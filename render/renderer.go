package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"fxstory/config"
	"fxstory/logger"
	"fxstory/models"
)

// Canvas layout in pixels, top to bottom.
const (
	canvasWidth  = 1200
	canvasHeight = 800

	headerHeight = 90
	labelHeight  = 45
	panelHeight  = 265
	wideHeight   = 360
	footerHeight = 40
)

const (
	creditText = "Luiz Alves & Jonatas Santos"
	sourceText = "Source: European Central Bank"
)

var (
	backgroundColor = drawing.ColorFromHex("f0f0f0")
	footerColor     = drawing.ColorFromHex("4d4d4d")
	titleColor      = drawing.ColorFromHex("1a1a1a")
	mutedColor      = drawing.ColorFromHex("8c8c8c")
	frameColor      = drawing.ColorFromHex("c8c8c8")
)

// Renderer draws the era figures as PNG files into the output directory.
type Renderer struct {
	dir string
	log *logger.Log
}

// NewRenderer creates a Renderer writing into cfg.Output.Dir.
func NewRenderer(cfg *config.Config, log *logger.Log) *Renderer {
	log.WithComponent("renderer").WithFields(logger.Fields{
		"dir": cfg.Output.Dir,
	}).Debug("renderer initialized")
	return &Renderer{dir: cfg.Output.Dir, log: log}
}

// Path returns where fig is written.
func (r *Renderer) Path(fig Figure) string {
	return filepath.Join(r.dir, fig.Filename)
}

// RenderAll renders every figure and returns the written paths in order.
func (r *Renderer) RenderAll(periods []models.Period) ([]string, error) {
	figures := Figures()
	paths := make([]string, 0, len(figures))
	for _, fig := range figures {
		if err := r.Render(fig, periods); err != nil {
			return paths, err
		}
		paths = append(paths, r.Path(fig))
	}
	return paths, nil
}

// Render composes fig from the periods and writes it. Each period gets a
// panel in the top row, in order; the bottom panel overlays all of them.
func (r *Renderer) Render(fig Figure, periods []models.Period) error {
	start := time.Now()
	log := r.log.WithComponent("renderer").WithFields(logger.Fields{"figure": fig.Key})

	canvas := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	fill(canvas, canvas.Bounds(), backgroundColor)

	drawText(canvas, fig.Title, 20, 38, 2, titleColor, alignLeft)
	drawText(canvas, fig.Subtitle, 20, 70, 1, mutedColor, alignLeft)

	if len(periods) > 0 {
		pw := canvasWidth / len(periods)
		for i, p := range periods {
			x := i * pw
			era := drawing.ColorFromHex(p.Era.Color)
			drawText(canvas, p.Era.Name, x+pw/2, headerHeight+22, 2, era, alignCenter)
			drawText(canvas, p.Era.Label, x+pw/2, headerHeight+labelHeight-6, 1, mutedColor, alignCenter)

			rect := image.Rect(x, headerHeight+labelHeight, x+pw, headerHeight+labelHeight+panelHeight)
			img, err := eraPanel(fig, p, rect.Dx(), rect.Dy())
			if err != nil {
				return fmt.Errorf("render %s panel %s: %w", fig.Key, p.Era.Name, err)
			}
			if img == nil {
				log.WithFields(logger.Fields{"era": p.Era.Name}).Warn("no points to plot; drawing an empty panel")
				blank(canvas, rect)
				continue
			}
			draw.Draw(canvas, rect, img, img.Bounds().Min, draw.Src)
		}
	}

	top := headerHeight + labelHeight + panelHeight
	wide := image.Rect(0, top, canvasWidth, top+wideHeight)
	img, err := overlayPanel(fig, periods, wide.Dx(), wide.Dy())
	if err != nil {
		return fmt.Errorf("render %s overlay: %w", fig.Key, err)
	}
	if img == nil {
		blank(canvas, wide)
	} else {
		draw.Draw(canvas, wide, img, img.Bounds().Min, draw.Src)
	}

	footer := image.Rect(0, canvasHeight-footerHeight, canvasWidth, canvasHeight)
	fill(canvas, footer, footerColor)
	baseline := footer.Min.Y + footerHeight/2 + 6
	drawText(canvas, creditText, 20, baseline, 1, backgroundColor, alignLeft)
	drawText(canvas, sourceText, canvasWidth-20, baseline, 1, backgroundColor, alignRight)

	path := r.Path(fig)
	if err := writePNG(path, canvas); err != nil {
		return err
	}

	log.WithFields(logger.Fields{"path": path}).Info("figure written")
	logger.LogPerformanceEntry(log, "renderer", "render_"+fig.Key, time.Since(start), nil)
	return nil
}

func writePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func blank(dst draw.Image, r image.Rectangle) {
	inner := r.Inset(6)
	fill(dst, inner, color.White)
	frame(dst, inner, frameColor)
}

// points returns the plottable values of fig in s. Missing and non-finite
// values are skipped.
func points(fig Figure, s models.Series) ([]time.Time, []float64) {
	var xs []time.Time
	var ys []float64
	for _, rec := range s {
		v := fig.Value(rec)
		if !v.Valid || math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			continue
		}
		xs = append(xs, rec.Time)
		ys = append(ys, v.Value)
	}
	// A single point has no x extent; stretch it over a day.
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(24*time.Hour))
		ys = append(ys, ys[0])
	}
	return xs, ys
}

func lineStyle(hex string) chart.Style {
	return chart.Style{
		StrokeColor: drawing.ColorFromHex(hex),
		StrokeWidth: 2,
	}
}

func yAxis(fig Figure) chart.YAxis {
	// The range comes from the ticks, so the floor gets an unlabeled one.
	ticks := make([]chart.Tick, 0, len(fig.YTicks)+1)
	if len(fig.YTicks) == 0 || fig.YMin < fig.YTicks[0] {
		ticks = append(ticks, chart.Tick{Value: fig.YMin})
	}
	for _, v := range fig.YTicks {
		ticks = append(ticks, chart.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', 1, 64)})
	}
	if len(fig.YTicks) == 0 {
		ticks = append(ticks, chart.Tick{Value: fig.YMax()})
	}
	return chart.YAxis{
		Range: &chart.ContinuousRange{Min: fig.YMin, Max: fig.YMax()},
		Ticks: ticks,
	}
}

// yearTicks labels January 1st of the years inside [first, last], thinned so
// the labels fit a narrow panel. go-chart takes the x range from the ticks,
// so the set always starts at first and ends at last.
func yearTicks(first, last time.Time) []chart.Tick {
	if !last.After(first) {
		last = first.Add(24 * time.Hour)
	}
	years := last.Year() - first.Year() + 1
	step := (years + 3) / 4
	if step < 1 {
		step = 1
	}
	ticks := []chart.Tick{{Value: chart.TimeToFloat64(first), Label: strconv.Itoa(first.Year())}}
	for y := first.Year() + step; y <= last.Year(); y += step {
		t := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		if !t.Before(last) {
			break
		}
		ticks = append(ticks, chart.Tick{Value: chart.TimeToFloat64(t), Label: strconv.Itoa(y)})
	}
	return append(ticks, chart.Tick{Value: chart.TimeToFloat64(last)})
}

func eraPanel(fig Figure, p models.Period, w, h int) (image.Image, error) {
	xs, ys := points(fig, p.Records)
	if len(xs) == 0 {
		return nil, nil
	}
	first, last := xs[0], xs[len(xs)-1]
	xAxis := chart.XAxis{
		Range: &chart.ContinuousRange{Min: chart.TimeToFloat64(first), Max: chart.TimeToFloat64(last)},
		Ticks: yearTicks(first, last),
	}
	series := []chart.Series{chart.TimeSeries{
		Name:    p.Era.Name,
		XValues: xs,
		YValues: ys,
		Style:   lineStyle(p.Era.Color),
	}}
	return renderPanel(series, xAxis, yAxis(fig), w, h)
}

func overlayPanel(fig Figure, periods []models.Period, w, h int) (image.Image, error) {
	var series []chart.Series
	var first, last time.Time
	for _, p := range periods {
		xs, ys := points(fig, p.Records)
		if len(xs) == 0 {
			continue
		}
		if first.IsZero() || xs[0].Before(first) {
			first = xs[0]
		}
		if xs[len(xs)-1].After(last) {
			last = xs[len(xs)-1]
		}
		series = append(series, chart.TimeSeries{
			Name:    p.Era.Name,
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(p.Era.Color),
		})
	}
	if len(series) == 0 {
		return nil, nil
	}
	if !last.After(first) {
		last = first.Add(24 * time.Hour)
	}
	xAxis := chart.XAxis{
		Style: chart.Style{Hidden: true},
		Range: &chart.ContinuousRange{Min: chart.TimeToFloat64(first), Max: chart.TimeToFloat64(last)},
	}
	return renderPanel(series, xAxis, yAxis(fig), w, h)
}

func renderPanel(series []chart.Series, xAxis chart.XAxis, yAxis chart.YAxis, w, h int) (image.Image, error) {
	ch := chart.Chart{
		Width:      w,
		Height:     h,
		Background: chart.Style{FillColor: backgroundColor, Padding: chart.Box{Top: 12, Left: 8, Right: 8, Bottom: 8}},
		Canvas:     chart.Style{FillColor: drawing.ColorWhite},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series:     series,
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return png.Decode(&buf)
}
