package parse

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	abbrevRe     = regexp.MustCompile(`\b(jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\b\.?`)
	monthDashRe  = regexp.MustCompile(`\b([a-z]+)-(\d{4})\b`)
	slashMonthRe = regexp.MustCompile(`\b(\d{4})/(\d{1,2})\b`)
	sentenceRe   = regexp.MustCompile(`[?!;:"()]|\.(\s|$)`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// foldDashes maps every Unicode dash (and the minus sign) to '-'.
func foldDashes(r rune) rune {
	if r == '−' || unicode.Is(unicode.Pd, r) {
		return '-'
	}
	return r
}

// Normalize canonicalizes a question for matching: NFKC, plain hyphens,
// lowercase, no commas or sentence punctuation, month abbreviations expanded,
// "aug-2018" and "2018/08" rewritten to "august 2018" and "2018-08".
func Normalize(question string, months map[string]string) string {
	t := transform.Chain(norm.NFKC, runes.Map(foldDashes))
	s, _, err := transform.String(t, question)
	if err != nil {
		s = question
	}
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ",", " ")

	s = abbrevRe.ReplaceAllStringFunc(s, func(tok string) string {
		if full, ok := months[strings.TrimSuffix(tok, ".")]; ok {
			return full
		}
		return tok
	})
	s = monthDashRe.ReplaceAllStringFunc(s, func(tok string) string {
		m := monthDashRe.FindStringSubmatch(tok)
		if _, ok := months[m[1]]; !ok {
			return tok
		}
		return m[1] + " " + m[2]
	})
	s = slashMonthRe.ReplaceAllStringFunc(s, func(tok string) string {
		m := slashMonthRe.FindStringSubmatch(tok)
		if len(m[2]) == 1 {
			return m[1] + "-0" + m[2]
		}
		return m[1] + "-" + m[2]
	})
	s = sentenceRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// fullMonthNames maps every month key onto its full lowercase name.
func fullMonthNames(tables Tables) map[string]string {
	out := make(map[string]string, len(tables.Months))
	for k, m := range tables.Months {
		out[k] = strings.ToLower(m.String())
	}
	return out
}
