package parse

import (
	"sort"
	"strings"
	"time"
)

// SeriesKeyword maps a lowercase phrase onto a series identifier.
type SeriesKeyword struct {
	Keyword  string `yaml:"keyword"`
	SeriesID string `yaml:"series_id"`
}

// Tables holds the lookup data the parser matches against. All phrases are
// lowercase.
type Tables struct {
	Series     []SeriesKeyword
	Months     map[string]time.Month
	MaxWords   []string
	MinWords   []string
	YoYPhrases []string
	MoMPhrases []string
}

// DefaultTables returns the tables for the shipped series catalog.
func DefaultTables() Tables {
	return Tables{
		Series: []SeriesKeyword{
			{"unemployment rate", "UNRATE"},
			{"unemployment", "UNRATE"},
			{"jobless", "UNRATE"},
			{"cpi", "CPIAUCSL"},
			{"inflation", "CPIAUCSL"},
			{"consumer price", "CPIAUCSL"},
			{"fed funds", "FEDFUNDS"},
			{"federal funds", "FEDFUNDS"},
			{"interest rate", "FEDFUNDS"},
			{"pce inflation", "PCEPI"},
			{"pcepi", "PCEPI"},
			{"personal consumption", "PCEPI"},
			{"real gdp", "GDPC1"},
			{"gdp", "GDPC1"},
		},
		Months:     DefaultMonths(),
		MaxWords:   []string{"highest", "maximum", "max", "peak"},
		MinWords:   []string{"lowest", "minimum", "min", "trough"},
		YoYPhrases: []string{"year-over-year", "year over year", "year-on-year", "year on year", "yoy", "annual change"},
		MoMPhrases: []string{"month-over-month", "month over month", "month-on-month", "month on month", "mom", "monthly change"},
	}
}

// DefaultMonths returns full month names plus common abbreviations,
// including the irregular "sept".
func DefaultMonths() map[string]time.Month {
	m := make(map[string]time.Month, 24)
	for mo := time.January; mo <= time.December; mo++ {
		full := strings.ToLower(mo.String())
		m[full] = mo
		m[full[:3]] = mo
	}
	m["sept"] = time.September
	return m
}

// orderedSeries returns the keyword table with longer phrases first. Equal
// lengths keep table order.
func orderedSeries(in []SeriesKeyword) []SeriesKeyword {
	out := make([]SeriesKeyword, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Keyword) > len(out[j].Keyword)
	})
	return out
}
