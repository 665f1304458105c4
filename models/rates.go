package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MissingQuote is the placeholder the ECB publishes for a day without a quote.
const MissingQuote = "-"

// Rate is an exchange rate that may be absent. The zero value is a missing
// rate.
type Rate struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Some returns a present rate.
func Some(v float64) Rate {
	return Rate{Value: v, Valid: true}
}

// Missing returns an absent rate.
func Missing() Rate {
	return Rate{}
}

// Ptr returns nil for a missing rate, which is how optional columns are
// written by the exporters.
func (r Rate) Ptr() *float64 {
	if !r.Valid {
		return nil
	}
	v := r.Value
	return &v
}

func (r Rate) String() string {
	if !r.Valid {
		return MissingQuote
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// ParseRate converts a raw CSV cell into a Rate. The missing-quote marker
// yields a missing rate; blank and NaN cells are kept as present NaN values
// so they propagate through arithmetic the same way the source data does.
func ParseRate(cell string) (Rate, error) {
	s := strings.TrimSpace(cell)
	switch s {
	case MissingQuote:
		return Missing(), nil
	case "", "NaN", "NA", "<nil>":
		return Some(math.NaN()), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Rate{}, fmt.Errorf("parse rate %q: %w", cell, err)
	}
	return Some(v), nil
}

// Record is one cleaned trading day.
type Record struct {
	Time time.Time `json:"time"`
	// QuoteRate is the Brazilian real quoted against the euro (BRL per EUR).
	QuoteRate float64 `json:"euro_rate"`
	// CrossSource is the US dollar quoted against the euro (USD per EUR).
	CrossSource float64 `json:"us_dollar"`
	// CrossRate is QuoteRate / CrossSource (BRL per USD).
	CrossRate        float64 `json:"dollar_rate"`
	CrossRollingMean Rate    `json:"dollar_rolling_mean"`
	QuoteRollingMean Rate    `json:"euro_rolling_mean"`
}

// Series is an ordered run of records, ascending by time.
type Series []Record

// Len returns the number of records.
func (s Series) Len() int {
	return len(s)
}

// Times returns the record timestamps.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s))
	for i, r := range s {
		out[i] = r.Time
	}
	return out
}

// Filter returns the records accepted by keep, preserving order.
func (s Series) Filter(keep func(Record) bool) Series {
	out := make(Series, 0, len(s))
	for _, r := range s {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Bounds returns the first and last timestamps. ok is false for an empty
// series.
func (s Series) Bounds() (first, last time.Time, ok bool) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s[0].Time, s[len(s)-1].Time, true
}
