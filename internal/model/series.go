package model

import (
	"strings"
	"time"
)

// Frequency is the reporting cadence of a series. It drives the calendar
// arithmetic used by the change transforms.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyUnknown   Frequency = "unknown"
)

// ParseFrequency maps a free-form frequency label ("Monthly", "Daily, 7-Day",
// "Q") onto a Frequency. Weekly, annual and empty labels are Unknown.
func ParseFrequency(raw string) Frequency {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return FrequencyUnknown
	case s == "d" || s == "day" || strings.HasPrefix(s, "daily"):
		return FrequencyDaily
	case s == "q" || strings.Contains(s, "quarter"):
		return FrequencyQuarterly
	case s == "m" || strings.Contains(s, "month"):
		return FrequencyMonthly
	default:
		return FrequencyUnknown
	}
}

// Observation is a single (series, date) data point. A nil Value means no
// data was collected for the period; it must never be read as zero.
type Observation struct {
	SeriesID string    `json:"series_id"`
	Date     time.Time `json:"date"`
	Value    *float64  `json:"value"`
}

// Series holds the metadata of an ingested time series.
type Series struct {
	SeriesID           string `json:"series_id"`
	Title              string `json:"title"`
	Units              string `json:"units"`
	Frequency          string `json:"frequency"`
	SeasonalAdjustment string `json:"seasonal_adjustment,omitempty"`
	Notes              string `json:"notes,omitempty"`
	LastUpdated        string `json:"last_updated,omitempty"`
}

// Freq returns the parsed reporting frequency.
func (s Series) Freq() Frequency {
	return ParseFrequency(s.Frequency)
}

// DocID returns the retrieval document id of the series card ("series_UNRATE").
func DocID(seriesID string) string {
	return "series_" + seriesID
}

// SeriesIDFromDocID reverses DocID. Unprefixed ids are upper-cased as-is.
func SeriesIDFromDocID(docID string) string {
	return strings.ToUpper(strings.TrimPrefix(docID, "series_"))
}
