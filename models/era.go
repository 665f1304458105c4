package models

import "time"

// Era is one presidential term used to segment the chart. Membership is a
// plain year/month predicate; the predicates are kept exactly as the story
// was first charted, so adjacent eras are not guaranteed to tile the
// calendar (see DefaultEras).
type Era struct {
	Key   string
	Name  string
	Label string
	// Color is a hex RGB string without the leading '#'.
	Color string
	Panel int
	Rule  func(year int, month time.Month) bool
}

// Contains reports whether t falls inside the era.
func (e Era) Contains(t time.Time) bool {
	if e.Rule == nil {
		return false
	}
	return e.Rule(t.Year(), t.Month())
}

// Period is an era together with the records it selected.
type Period struct {
	Era     Era
	Records Series
}

// DefaultEras returns the five Brazilian presidencies between 2000 and 2021.
//
// The DILMA and TEMER rules compare year and month independently: DILMA
// keeps only January-August of 2010-2016 and TEMER only September-December
// of 2016-2018. Days in September-December 2010-2015 and January-August
// 2017-2018 belong to no era.
func DefaultEras() []Era {
	return []Era{
		{
			Key: "fhc", Name: "FHC", Label: "(2000-2002)", Color: "BF5FFF", Panel: 0,
			Rule: func(y int, _ time.Month) bool { return y < 2002 },
		},
		{
			Key: "lula", Name: "LULA", Label: "(2003-2010)", Color: "FFA500", Panel: 1,
			Rule: func(y int, _ time.Month) bool { return y >= 2002 && y < 2010 },
		},
		{
			Key: "dilma", Name: "DILMA", Label: "(2011-2016)", Color: "00B2EE", Panel: 2,
			Rule: func(y int, m time.Month) bool { return y >= 2010 && (y < 2017 && m < time.September) },
		},
		{
			Key: "temer", Name: "TEMER", Label: "(2016-2018)", Color: "B83333", Panel: 3,
			Rule: func(y int, m time.Month) bool { return (y >= 2016 && m >= time.September) && y < 2019 },
		},
		{
			Key: "bolso", Name: "BOLSO", Label: "(2019-2021)", Color: "664710", Panel: 4,
			Rule: func(y int, _ time.Month) bool { return y >= 2019 && y < 2022 },
		},
	}
}
