package answer

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/fredqa/internal/cards"
	"github.com/sells-group/fredqa/internal/model"
)

// FormatDisplay renders a computed value for the answer text. Percent
// changes and percent-unit series get a trailing %; levels follow
// cards.FormatValue.
func FormatDisplay(t model.Transform, v float64, units string) string {
	if t.Percent() || isPercentUnit(units) {
		return fmt.Sprintf("%.2f%%", v)
	}
	return cards.FormatValue(v)
}

// DisplayFunc returns FormatDisplay bound to a transform and units, for
// Response.BackfillDisplay.
func DisplayFunc(t model.Transform, units string) func(float64) string {
	return func(v float64) string { return FormatDisplay(t, v, units) }
}

func isPercentUnit(units string) bool {
	return strings.Contains(strings.ToLower(units), "percent")
}

func unitSuffix(units string) string {
	if units == "" || isPercentUnit(units) {
		return ""
	}
	return " " + units
}

func pointText(title, display string, date time.Time, units string) string {
	return fmt.Sprintf("In %s, %s was %s%s.", model.HumanizeDate(date), title, display, unitSuffix(units))
}

func changeText(t model.Transform, title, display string, date time.Time) string {
	label := "year-over-year change"
	if t == model.TransformMoM {
		label = "month-over-month change"
	}
	return fmt.Sprintf("In %s, the %s for %s was %s.", model.HumanizeDate(date), label, title, display)
}

func maText(title, display string, date time.Time, units string, periods int) string {
	return fmt.Sprintf("The %d-period moving average of %s on %s was %s%s.",
		periods, title, model.HumanizeDate(date), display, unitSuffix(units))
}

func extremeText(t model.Transform, title, display string, start, end, at time.Time) string {
	adjective := "maximum"
	if t == model.TransformMin {
		adjective = "minimum"
	}
	return fmt.Sprintf("The %s value of %s between %s and %s was %s on %s.",
		adjective, title, model.FormatDate(start), model.FormatDate(end), display, model.HumanizeDate(at))
}
