package truth

import (
	"time"

	"github.com/sells-group/fredqa/internal/model"
)

// ShiftMonths moves date by n calendar months, clamping the day to the last
// day of the target month (2020-03-31 minus one month is 2020-02-29).
func ShiftMonths(date time.Time, n int) time.Time {
	idx := int(date.Month()) - 1 + n
	year := date.Year() + floorDiv(idx, 12)
	month := time.Month(idx - floorDiv(idx, 12)*12 + 1)
	day := min(date.Day(), daysIn(year, month))
	return model.Date(year, month, day)
}

// ShiftForYoY returns the comparison date for a year-over-year change.
func ShiftForYoY(date time.Time, freq model.Frequency) time.Time {
	if freq == model.FrequencyDaily {
		return date.AddDate(0, 0, -365)
	}
	return ShiftMonths(date, -12)
}

// ShiftForMoM returns the comparison date for a one-period change.
func ShiftForMoM(date time.Time, freq model.Frequency) time.Time {
	switch freq {
	case model.FrequencyQuarterly:
		return ShiftMonths(date, -3)
	case model.FrequencyDaily:
		return date.AddDate(0, 0, -1)
	default:
		return ShiftMonths(date, -1)
	}
}

func daysIn(year int, month time.Month) int {
	return model.Date(year, month+1, 0).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
