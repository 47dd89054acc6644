// Package hints asks a language model for slot hints when the lexical parser
// cannot fully resolve a question. Hints only ever fill missing slots.
package hints

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/parse"
	"github.com/sells-group/fredqa/pkg/anthropic"
)

// Defaults for the hint model call.
const (
	DefaultModel         = "claude-haiku-4-5-20251001"
	DefaultMaxTokens     = 256
	DefaultMinConfidence = 0.5
)

const systemPrompt = "You extract structured slots for an economic time-series question answering tool. " +
	"Return STRICT JSON with keys: series_guess (FRED series id or null), transform (one of " +
	`["point","yoy","mom","ma","max","min"]), date (YYYY-MM or YYYY-MM-DD), ` +
	"window_start, window_end, periods (integer), should_refuse (boolean), confidence (0-1). " +
	"If the question lacks enough detail, set should_refuse=true and explain in a short 'reason'."

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// Hints are the slots suggested by the model.
type Hints struct {
	SeriesGuess  string  `json:"series_guess"`
	Transform    string  `json:"transform"`
	Date         string  `json:"date"`
	WindowStart  string  `json:"window_start"`
	WindowEnd    string  `json:"window_end"`
	Periods      int     `json:"periods"`
	ShouldRefuse bool    `json:"should_refuse"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
}

// Empty reports whether the hints carry no usable slot.
func (h Hints) Empty() bool {
	return h.SeriesGuess == "" && h.Transform == "" && h.Date == "" &&
		h.WindowStart == "" && h.WindowEnd == "" && h.Periods == 0 && !h.ShouldRefuse
}

// Decode extracts the first JSON object from model output. Loosely typed
// numbers ("3", 3.0) are accepted for periods and confidence.
func Decode(text string) (*Hints, error) {
	raw := jsonObjectRe.FindString(text)
	if raw == "" {
		return nil, eris.New("hints: no JSON object in model output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, eris.Wrap(err, "hints: decode model output")
	}
	h := &Hints{
		SeriesGuess:  strings.ToUpper(strings.TrimSpace(str(payload["series_guess"]))),
		Transform:    strings.ToLower(strings.TrimSpace(str(payload["transform"]))),
		Date:         str(payload["date"]),
		WindowStart:  str(payload["window_start"]),
		WindowEnd:    str(payload["window_end"]),
		Reason:       str(payload["reason"]),
		ShouldRefuse: payload["should_refuse"] == true,
	}
	if n, ok := number(payload["periods"]); ok {
		h.Periods = int(n)
	}
	if c, ok := number(payload["confidence"]); ok {
		h.Confidence = c
	}
	return h, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Apply fills the missing slots of q from h and re-validates it. Hints are
// ignored when the model asked to refuse or is below minConfidence. known,
// when non-nil, restricts series guesses to catalogued ids. It reports
// whether any slot changed.
func Apply(q *model.ParsedQuery, h *Hints, minConfidence float64, known func(string) bool) bool {
	if h == nil || h.ShouldRefuse || h.Confidence < minConfidence {
		return false
	}
	changed, switched := false, false

	if q.SeriesID == "" && h.SeriesGuess != "" && (known == nil || known(h.SeriesGuess)) {
		q.SeriesID = h.SeriesGuess
		q.MissingSeries = false
		changed = true
	}

	// A defaulted point transform with no date may really be another transform.
	if t := model.Transform(h.Transform); t.Valid() && t != q.Transform &&
		q.Transform == model.TransformPoint && q.Date == nil {
		q.Transform = t
		changed, switched = true, true
	}

	if q.Transform.Windowed() {
		if q.WindowStart == nil {
			if d, ok := model.ParseDate(h.WindowStart); ok {
				q.WindowStart = &d
				changed = true
			}
		}
		if q.WindowEnd == nil {
			if d, ok := model.ParseDate(h.WindowEnd); ok {
				q.WindowEnd = &d
				changed = true
			}
		}
	} else if q.Date == nil {
		if d, ok := model.ParseDate(h.Date); ok {
			q.Date = &d
			changed = true
		}
	}

	if q.Transform == model.TransformMA && q.Periods <= 0 {
		switch {
		case h.Periods > 0:
			q.Periods = h.Periods
			changed = true
		case switched:
			q.Periods = model.DefaultMAPeriods
		}
	}

	if changed {
		parse.Validate(q)
	}
	return changed
}

// Hinter calls the model and memoizes hints per question.
type Hinter struct {
	client        anthropic.Client
	model         string
	maxTokens     int64
	minConfidence float64
	known         func(string) bool

	mu    sync.Mutex
	cache map[string]*Hints
}

// Option configures a Hinter.
type Option func(*Hinter)

// WithModel sets the model id.
func WithModel(m string) Option {
	return func(h *Hinter) {
		if m != "" {
			h.model = m
		}
	}
}

// WithMaxTokens sets the response token budget.
func WithMaxTokens(n int64) Option {
	return func(h *Hinter) {
		if n > 0 {
			h.maxTokens = n
		}
	}
}

// WithMinConfidence sets the confidence below which hints are ignored.
func WithMinConfidence(c float64) Option {
	return func(h *Hinter) { h.minConfidence = c }
}

// WithKnownSeries restricts series guesses to ids.
func WithKnownSeries(ids []string) Option {
	return func(h *Hinter) {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[strings.ToUpper(id)] = struct{}{}
		}
		h.known = func(id string) bool {
			_, ok := set[id]
			return ok
		}
	}
}

// New returns a Hinter backed by client.
func New(client anthropic.Client, opts ...Option) *Hinter {
	h := &Hinter{
		client:        client,
		model:         DefaultModel,
		maxTokens:     DefaultMaxTokens,
		minConfidence: DefaultMinConfidence,
		cache:         make(map[string]*Hints),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func cacheKey(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:])
}

// Infer returns hints for question, consulting the cache first. A blank
// question yields nil hints.
func (h *Hinter) Infer(ctx context.Context, question string) (*Hints, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil
	}
	key := cacheKey(question)

	h.mu.Lock()
	cached, ok := h.cache[key]
	h.mu.Unlock()
	if ok {
		return cached, nil
	}

	resp, err := h.client.CreateMessage(ctx, anthropic.ExtractionRequest(h.model, h.maxTokens, systemPrompt, question))
	if err != nil {
		return nil, eris.Wrap(err, "hints: infer")
	}
	resp.Usage.Log(h.model, "hints")
	if resp.Truncated() {
		zap.L().Warn("hints: reply truncated at max_tokens",
			zap.String("model", h.model),
			zap.Int64("max_tokens", h.maxTokens),
		)
	}

	hints, err := Decode(resp.Text())
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.cache[key] = hints
	h.mu.Unlock()
	return hints, nil
}

// Refine fills missing slots of an incomplete query. Complete queries are
// left untouched and the model is not called.
func (h *Hinter) Refine(ctx context.Context, q *model.ParsedQuery) error {
	if q.Complete() {
		return nil
	}
	hints, err := h.Infer(ctx, q.Question)
	if err != nil {
		return err
	}
	if Apply(q, hints, h.minConfidence, h.known) {
		zap.L().Debug("hints: applied",
			zap.String("question", q.Question),
			zap.String("series", q.SeriesID),
			zap.String("transform", string(q.Transform)),
			zap.Int("remaining_errors", len(q.Errors)),
		)
	}
	return nil
}
