package model

import (
	"time"
)

// Transform is the computation requested over a series.
type Transform string

const (
	TransformPoint Transform = "point"
	TransformYoY   Transform = "yoy"
	TransformMoM   Transform = "mom"
	TransformMA    Transform = "ma"
	TransformMax   Transform = "max"
	TransformMin   Transform = "min"
)

// Transforms lists the closed transform vocabulary in canonical order.
var Transforms = []Transform{
	TransformPoint, TransformYoY, TransformMoM, TransformMA, TransformMax, TransformMin,
}

// Valid reports whether t is part of the transform vocabulary.
func (t Transform) Valid() bool {
	for _, v := range Transforms {
		if t == v {
			return true
		}
	}
	return false
}

// Windowed reports whether t operates over a [start, end] window.
func (t Transform) Windowed() bool {
	return t == TransformMax || t == TransformMin
}

// PointLike reports whether t is anchored on a single date.
func (t Transform) PointLike() bool {
	switch t {
	case TransformPoint, TransformYoY, TransformMoM, TransformMA:
		return true
	default:
		return false
	}
}

// Percent reports whether t yields a percent change (already multiplied by 100).
func (t Transform) Percent() bool {
	return t == TransformYoY || t == TransformMoM
}

// ParsedQuery is the structured form of a question. Date is operative for
// point-like transforms, WindowStart/WindowEnd for windowed ones, and
// Periods only for ma.
type ParsedQuery struct {
	Question      string     `json:"question"`
	SeriesID      string     `json:"series_id,omitempty"`
	Transform     Transform  `json:"transform"`
	Date          *time.Time `json:"date,omitempty"`
	WindowStart   *time.Time `json:"window_start,omitempty"`
	WindowEnd     *time.Time `json:"window_end,omitempty"`
	Periods       int        `json:"periods,omitempty"`
	Errors        []string   `json:"errors"`
	MissingSeries bool       `json:"missing_series"`
}

// Complete reports whether the query can be answered without clarification.
func (q ParsedQuery) Complete() bool {
	return len(q.Errors) == 0
}

// DefaultMAPeriods is the moving-average length assumed when a question does
// not state one.
const DefaultMAPeriods = 3
