// Package cards renders Markdown series cards used as retrieval documents
// and as the source of answer definitions.
package cards

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/fredqa/internal/model"
)

// DefaultRecent is the number of recent observations listed on a card.
const DefaultRecent = 12

const (
	definitionHeading = "## Definition"
	notSpecified      = "Not specified"
)

// Doc is a rendered card keyed by its document id ("series_UNRATE").
type Doc struct {
	ID   string
	Text string
}

// Render builds the Markdown card for a series. recent may be in any order;
// the newest lastN observations are listed, newest first.
func Render(meta model.Series, recent []model.Observation, lastN int) string {
	if lastN <= 0 {
		lastN = DefaultRecent
	}
	obs := make([]model.Observation, len(recent))
	copy(obs, recent)
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.After(obs[j].Date) })
	if len(obs) > lastN {
		obs = obs[:lastN]
	}

	id := or(meta.SeriesID, "UNKNOWN")
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", id, or(meta.Title, "Unknown Series"))
	fmt.Fprintf(&b, "- **Units:** %s\n", or(meta.Units, notSpecified))
	fmt.Fprintf(&b, "- **Frequency:** %s\n", or(meta.Frequency, notSpecified))
	fmt.Fprintf(&b, "- **Seasonal Adjustment:** %s\n", or(meta.SeasonalAdjustment, notSpecified))
	fmt.Fprintf(&b, "- **Last Updated:** %s\n\n", or(meta.LastUpdated, "unknown"))
	b.WriteString(definitionHeading + "\n")
	b.WriteString(definition(meta) + "\n\n")
	b.WriteString("## Recent observations\n")
	if len(obs) == 0 {
		b.WriteString("_No observations available._\n")
	} else {
		b.WriteString("| Date | Value |\n| --- | --- |\n")
		for _, o := range obs {
			v := "N/A"
			if o.Value != nil {
				v = FormatValue(*o.Value)
			}
			fmt.Fprintf(&b, "| %s | %s |\n", model.FormatDate(o.Date), v)
		}
	}
	fmt.Fprintf(&b, "\nSource: FRED series_id=%s (cached in fredqa)\n", id)
	return b.String()
}

func definition(meta model.Series) string {
	var parts []string
	for _, line := range strings.Split(meta.Notes, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	title := "this indicator"
	if meta.Title != "" {
		title = strings.ToLower(meta.Title)
	}
	return fmt.Sprintf("This FRED series measures %s as published by the St. Louis Fed.", title)
}

// FormatValue renders a level with thousands separators at or above 1000,
// two decimals at or above 1 and four decimals below.
func FormatValue(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1000:
		return commas(fmt.Sprintf("%.2f", v))
	case abs >= 1:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.4f", v)
	}
}

// commas inserts thousands separators into a formatted decimal.
func commas(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}

var (
	urlRe       = regexp.MustCompile(`https?://\S+`)
	sentenceEnd = regexp.MustCompile(`[.!?]\s+`)
	yearRangeRe = regexp.MustCompile(`\b\d{4}\s*-\s*\d{4}\b`)
)

// DefinitionSnippet extracts the first informative sentence of a card's
// Definition section: URLs removed, at least six words, no year ranges,
// truncated to maxChars runes.
func DefinitionSnippet(card string, maxChars int) (string, bool) {
	_, after, ok := strings.Cut(card, definitionHeading)
	if !ok {
		return "", false
	}
	if i := strings.Index(after, "## "); i >= 0 {
		after = after[:i]
	}
	cleaned := strings.Join(strings.Fields(after), " ")
	cleaned = strings.Join(strings.Fields(urlRe.ReplaceAllString(cleaned, "")), " ")
	if cleaned == "" {
		return "", false
	}

	for _, candidate := range splitSentences(cleaned) {
		if len(strings.Fields(candidate)) < 6 || yearRangeRe.MatchString(candidate) {
			continue
		}
		if !strings.HasSuffix(candidate, ".") {
			candidate += "."
		}
		if maxChars > 0 && utf8.RuneCountInString(candidate) > maxChars {
			candidate = strings.TrimRight(string([]rune(candidate)[:maxChars]), " ") + "…"
		}
		return candidate, true
	}
	return "", false
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(s, -1) {
		out = append(out, strings.TrimSpace(s[start:loc[0]+1]))
		start = loc[1]
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func or(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
