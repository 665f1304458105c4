package render

import (
	"fmt"

	"fxstory/models"
)

// Figure describes one output image. Both figures share the layout and the
// era table; they differ in the plotted value and the y axis.
type Figure struct {
	Key      string
	Filename string
	Title    string
	Subtitle string
	// YMin is the bottom of the shared y range; the top is the last tick.
	YMin   float64
	YTicks []float64
	Value  func(models.Record) models.Rate
}

// YMax returns the top of the y range.
func (f Figure) YMax() float64 {
	if len(f.YTicks) == 0 {
		return f.YMin + 1
	}
	return f.YTicks[len(f.YTicks)-1]
}

// Figures returns the dollar and euro figures.
func Figures() []Figure {
	return []Figure{
		{
			Key:      "dollar",
			Filename: "dollar_real_storytelling.png",
			Title:    "BRL-USD rate under the last 5 Brazilian presidents",
			Subtitle: "Taxa de câmbio real-dolar entre os anos 2000 e 2020",
			YMin:     0.8,
			YTicks:   ticks(1.5, 6.0, 0.5),
			Value:    func(r models.Record) models.Rate { return r.CrossRollingMean },
		},
		{
			Key:      "euro",
			Filename: "euro_real_storytelling.png",
			Title:    "BRL-EUR rate under the last 5 Brazilian presidents",
			Subtitle: "Taxa de câmbio real-euro entre os anos 2000 e 2020",
			YMin:     0.8,
			YTicks:   ticks(1.5, 7.0, 0.5),
			Value:    func(r models.Record) models.Rate { return r.QuoteRollingMean },
		},
	}
}

// FigureByKey looks a figure up by key.
func FigureByKey(key string) (Figure, error) {
	for _, f := range Figures() {
		if f.Key == key {
			return f, nil
		}
	}
	return Figure{}, fmt.Errorf("unknown figure %q", key)
}

func ticks(from, to, step float64) []float64 {
	var out []float64
	n := int((to-from)/step + 0.5)
	for i := 0; i <= n; i++ {
		out = append(out, from+float64(i)*step)
	}
	return out
}
