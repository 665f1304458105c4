package processor

import (
	"strings"

	"fxstory/logger"
	"fxstory/models"
)

// Restrict keeps records with fromYear <= year < toYear.
func Restrict(s models.Series, fromYear, toYear int) models.Series {
	return s.Filter(func(r models.Record) bool {
		y := r.Time.Year()
		return y >= fromYear && y < toYear
	})
}

// Segment applies every era rule to s independently. A record may land in
// zero, one or several periods; order inside each period follows s.
func Segment(s models.Series, eras []models.Era) []models.Period {
	periods := make([]models.Period, len(eras))
	for i, era := range eras {
		periods[i] = models.Period{
			Era:     era,
			Records: s.Filter(func(r models.Record) bool { return era.Contains(r.Time) }),
		}
	}
	return periods
}

// Unassigned returns the records no era selected.
func Unassigned(s models.Series, eras []models.Era) models.Series {
	return s.Filter(func(r models.Record) bool {
		for _, era := range eras {
			if era.Contains(r.Time) {
				return false
			}
		}
		return true
	})
}

// Segment restricts the series to the configured year window and splits it
// into eras, logging how the rows were distributed.
func (c *Cleaner) Segment(s models.Series, eras []models.Era) (models.Series, []models.Period) {
	log := c.log.WithComponent("segmenter")

	window := Restrict(s, c.config.Cleaning.StartYear, c.config.Cleaning.EndYear)
	periods := Segment(window, eras)

	fields := logger.Fields{
		"rows_in_window": len(window),
		"unassigned":     len(Unassigned(window, eras)),
	}
	for _, p := range periods {
		fields["era_"+strings.ToLower(p.Era.Key)] = len(p.Records)
		if len(p.Records) == 0 {
			log.WithFields(logger.Fields{"era": p.Era.Name}).Warn("era has no records")
		}
	}
	log.WithFields(fields).Info("series segmented")
	return window, periods
}
