// Package parse maps free-text questions onto structured queries using
// keyword tables and date patterns.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/fredqa/internal/model"
)

// User-facing clarification messages appended to ParsedQuery.Errors.
const (
	MissingSeriesError  = "Please specify which series to use (unemployment, CPI, fed funds, PCE, or GDP)."
	DateRequiredError   = "Please specify a date (e.g., April 2020 or 2020-04)."
	WindowRequiredError = "Please provide a date window (e.g., between 2006-01 and 2008-12)."
	PeriodsError        = "Please specify the moving-average length (e.g., 3-period or 6-period)."
)

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	isoMonthRe  = regexp.MustCompile(`\b(\d{4})-(\d{2})\b`)
	dayTailRe   = regexp.MustCompile(`^-\d{2}`)
	compactRe   = regexp.MustCompile(`\b(\d{4})(\d{2})\b`)
	monthNameRe = regexp.MustCompile(`\b([a-z]+)\s+(?:(\d{1,2})\s+)?(\d{4})\b`)
	betweenRe   = regexp.MustCompile(`\bbetween\s+(.+?)\s+and\s+(.+)$`)
	fromToRe    = regexp.MustCompile(`\bfrom\s+(.+?)\s+to\s+(.+)$`)
	betweenWord = regexp.MustCompile(`\bbetween\b`)
	fromWord    = regexp.MustCompile(`\bfrom\b`)
	toWord      = regexp.MustCompile(`\bto\b`)
	maRe        = regexp.MustCompile(`moving\s+average|\bma\b`)
	periodsRe   = regexp.MustCompile(`(-?\d+)\s*[- ]?\s*(?:periods?|months?|points?|quarters?|days?)\s+(?:moving\s+average|ma)\b`)
	periodsOfRe = regexp.MustCompile(`(?:moving\s+average|\bma\b)\s+(?:of|over)\s+(-?\d+)\s*(?:periods?|months?|points?|quarters?|days?)\b`)
)

type seriesMatcher struct {
	re       *regexp.Regexp
	seriesID string
}

// Parser extracts slots from questions. It holds only immutable compiled
// tables and is safe for concurrent use.
type Parser struct {
	tables Tables
	series []seriesMatcher
	months map[string]string
	maxRe  *regexp.Regexp
	minRe  *regexp.Regexp
	yoyRe  *regexp.Regexp
	momRe  *regexp.Regexp
}

// New compiles a Parser from tables.
func New(tables Tables) *Parser {
	p := &Parser{tables: tables, months: fullMonthNames(tables)}
	for _, kw := range orderedSeries(tables.Series) {
		phrase := strings.ToLower(strings.TrimSpace(kw.Keyword))
		if phrase == "" {
			continue
		}
		p.series = append(p.series, seriesMatcher{
			re:       regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`),
			seriesID: kw.SeriesID,
		})
	}
	p.maxRe = wordsRe(tables.MaxWords)
	p.minRe = wordsRe(tables.MinWords)
	p.yoyRe = wordsRe(tables.YoYPhrases)
	p.momRe = wordsRe(tables.MoMPhrases)
	return p
}

// Default returns a Parser over DefaultTables.
func Default() *Parser {
	return New(DefaultTables())
}

// wordsRe compiles a word-bounded alternation. An empty list never matches.
func wordsRe(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return regexp.MustCompile(`$^`)
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(w))
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Normalize applies the parser's text normalization.
func (p *Parser) Normalize(question string) string {
	return Normalize(question, p.months)
}

// Parse converts a question into a ParsedQuery. It never fails; incomplete
// results carry clarification messages in Errors.
func (p *Parser) Parse(question string) model.ParsedQuery {
	text := p.Normalize(question)

	q := model.ParsedQuery{
		Question:  question,
		Transform: p.DetectTransform(text),
		Errors:    []string{},
	}
	q.SeriesID = p.DetectSeries(text)
	q.MissingSeries = q.SeriesID == ""

	if q.Transform.Windowed() {
		q.WindowStart, q.WindowEnd = p.ExtractWindow(text)
	} else if !p.hasWindowDates(text) {
		q.Date = p.ScanDate(text)
	}

	if q.Transform == model.TransformMA {
		q.Periods = p.DetectPeriods(text)
	}

	Validate(&q)
	return q
}

// Validate rebuilds q.Errors from the slots, in the order date or window,
// periods, series. Refinement steps call it after filling slots.
func Validate(q *model.ParsedQuery) {
	errs := []string{}
	if q.Transform.Windowed() {
		if q.WindowStart == nil || q.WindowEnd == nil {
			errs = append(errs, WindowRequiredError)
		}
	} else if q.Date == nil {
		errs = append(errs, DateRequiredError)
	}
	if q.Transform == model.TransformMA && q.Periods <= 0 {
		errs = append(errs, PeriodsError)
	}
	if q.SeriesID == "" {
		errs = append(errs, MissingSeriesError)
	}
	q.Errors = errs
}

// DetectSeries returns the series of the highest-priority keyword present in
// normalized text, or "".
func (p *Parser) DetectSeries(text string) string {
	for _, m := range p.series {
		if m.re.MatchString(text) {
			return m.seriesID
		}
	}
	return ""
}

// DetectTransform classifies normalized text. Superlatives only select
// max/min alongside window phrasing.
func (p *Parser) DetectTransform(text string) model.Transform {
	if hasWindowPhrase(text) {
		if p.maxRe.MatchString(text) {
			return model.TransformMax
		}
		if p.minRe.MatchString(text) {
			return model.TransformMin
		}
	}
	switch {
	case p.yoyRe.MatchString(text):
		return model.TransformYoY
	case p.momRe.MatchString(text):
		return model.TransformMoM
	case maRe.MatchString(text):
		return model.TransformMA
	default:
		return model.TransformPoint
	}
}

func hasWindowPhrase(text string) bool {
	return betweenWord.MatchString(text) || (fromWord.MatchString(text) && toWord.MatchString(text))
}

// ExtractWindow parses the two sides of a "between A and B" or "from A to B"
// phrase. A side that does not parse is left nil.
func (p *Parser) ExtractWindow(text string) (start, end *time.Time) {
	m := betweenRe.FindStringSubmatch(text)
	if m == nil {
		m = fromToRe.FindStringSubmatch(text)
	}
	if m == nil {
		return nil, nil
	}
	return p.ScanDate(m[1]), p.ScanDate(m[2])
}

func (p *Parser) hasWindowDates(text string) bool {
	start, end := p.ExtractWindow(text)
	return start != nil || end != nil
}

// ScanDate returns the first date in text, trying ISO dates, ISO year-months,
// compact YYYYMM tokens and then "<month> [day] <year>" phrases.
func (p *Parser) ScanDate(text string) *time.Time {
	for _, m := range isoDateRe.FindAllStringSubmatch(text, -1) {
		if d, ok := ymd(m[1], m[2], m[3]); ok {
			return &d
		}
	}
	for _, loc := range isoMonthRe.FindAllStringSubmatchIndex(text, -1) {
		// A year-month prefix of a full date that failed to parse is not a month.
		if dayTailRe.MatchString(text[loc[1]:]) {
			continue
		}
		if d, ok := ymd(text[loc[2]:loc[3]], text[loc[4]:loc[5]], "1"); ok {
			return &d
		}
	}
	for _, m := range compactRe.FindAllStringSubmatch(text, -1) {
		if d, ok := ymd(m[1], m[2], "1"); ok {
			return &d
		}
	}
	for _, m := range monthNameRe.FindAllStringSubmatch(text, -1) {
		month, ok := p.tables.Months[m[1]]
		if !ok {
			continue
		}
		day := m[2]
		if day == "" {
			day = "1"
		}
		if d, ok := ymd(m[3], strconv.Itoa(int(month)), day); ok {
			return &d
		}
	}
	return nil
}

// DetectPeriods returns the stated moving-average length, or
// model.DefaultMAPeriods when none is stated. Non-positive lengths are
// returned as 0.
func (p *Parser) DetectPeriods(text string) int {
	m := periodsRe.FindStringSubmatch(text)
	if m == nil {
		m = periodsOfRe.FindStringSubmatch(text)
	}
	if m == nil {
		return model.DefaultMAPeriods
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func ymd(y, m, d string) (time.Time, bool) {
	year, err := strconv.Atoi(y)
	if err != nil || year < 1000 {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(d)
	if err != nil || day < 1 {
		return time.Time{}, false
	}
	t := model.Date(year, time.Month(month), day)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
