// Package testutil builds ECB-shaped fixtures and captured loggers for tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fxstory/logger"
)

// Header is the first line of the ECB euro daily history file, trimmed to
// the columns the pipeline cares about plus one it ignores.
const Header = `Period\Unit:,[Australian dollar ],[Brazilian real ],[US dollar ]`

// Quote is one day of the fixture. Dollar and Real are raw cells so tests
// can inject the missing-quote marker.
type Quote struct {
	Day    time.Time
	Dollar string
	Real   string
}

// Date is a UTC midnight shorthand.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailyQuotes returns n consecutive days starting at from. The dollar
// quote climbs by 0.001 a day from 1.0, the real by 0.01 from 2.0.
func DailyQuotes(from time.Time, n int) []Quote {
	out := make([]Quote, n)
	for i := 0; i < n; i++ {
		out[i] = Quote{
			Day:    from.AddDate(0, 0, i),
			Dollar: fmt.Sprintf("%.4f", 1.0+float64(i)*0.001),
			Real:   fmt.Sprintf("%.4f", 2.0+float64(i)*0.01),
		}
	}
	return out
}

// MonthlyQuotes returns one quote per month from from through to inclusive.
func MonthlyQuotes(from, to time.Time) []Quote {
	var out []Quote
	i := 0
	for d := from; !d.After(to); d = d.AddDate(0, 1, 0) {
		out = append(out, Quote{
			Day:    d,
			Dollar: fmt.Sprintf("%.4f", 1.1+float64(i%12)*0.01),
			Real:   fmt.Sprintf("%.4f", 2.5+float64(i)*0.015),
		})
		i++
	}
	return out
}

// CSV renders quotes newest first, the way the ECB publishes them.
func CSV(quotes []Quote) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n")
	for i := len(quotes) - 1; i >= 0; i-- {
		q := quotes[i]
		fmt.Fprintf(&b, "%s,1.6000,%s,%s\n", q.Day.Format("2006-01-02"), q.Real, q.Dollar)
	}
	return b.String()
}

// WriteECBFile writes quotes to dir and returns the file path.
func WriteECBFile(t *testing.T, dir string, quotes []Quote) string {
	t.Helper()
	path := filepath.Join(dir, "euro-daily-hist_1999_2020.csv")
	if err := os.WriteFile(path, []byte(CSV(quotes)), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// CaptureLogger returns a debug-level logger writing into the returned buffer.
func CaptureLogger(t *testing.T) (*logger.Log, *bytes.Buffer) {
	t.Helper()
	log := logger.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	if err := log.Configure("debug", "text", "", 0); err != nil {
		t.Fatalf("configure logger: %v", err)
	}
	log.SetOutput(buf)
	return log, buf
}
