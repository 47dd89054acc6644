package model

// Window carries the window slots of a response. Start/End are set for
// max/min, Periods for ma.
type Window struct {
	Start   *string `json:"start"`
	End     *string `json:"end"`
	Periods *int    `json:"periods"`
}

// Citation points at the series card backing an answer.
type Citation struct {
	DocID    string   `json:"doc_id"`
	SeriesID string   `json:"series_id,omitempty"`
	Dates    []string `json:"dates"`
	Source   string   `json:"source,omitempty"`
}

// RetrievedDoc is a document surfaced by retrieval for the question.
type RetrievedDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Response is the structured answer contract consumed by the verifiers.
// Field names are matched literally by report consumers.
type Response struct {
	Question      string         `json:"question"`
	SeriesID      *string        `json:"series_id"`
	Transform     Transform      `json:"transform"`
	Date          *string        `json:"date"`
	Window        Window         `json:"window"`
	Value         *float64       `json:"value"`
	ValueDisplay  *string        `json:"value_display"`
	Unit          *string        `json:"unit"`
	Answer        string         `json:"answer"`
	Citations     []Citation     `json:"citations"`
	Confidence    float64        `json:"confidence"`
	Errors        []string       `json:"errors"`
	RetrievedDocs []RetrievedDoc `json:"retrieved_docs"`
}

// NewResponse returns a response whose list fields serialize as [] rather than null.
func NewResponse(question string, transform Transform) *Response {
	return &Response{
		Question:      question,
		Transform:     transform,
		Citations:     []Citation{},
		Errors:        []string{},
		RetrievedDocs: []RetrievedDoc{},
	}
}

// BackfillDisplay sets ValueDisplay from Value when an answer was produced
// without one.
func (r *Response) BackfillDisplay(format func(float64) string) {
	if r.Value == nil || (r.ValueDisplay != nil && *r.ValueDisplay != "") {
		return
	}
	s := format(*r.Value)
	r.ValueDisplay = &s
}

// HasRetrieved reports whether docID is in the retrieved document list.
func (r *Response) HasRetrieved(docID string) bool {
	for _, d := range r.RetrievedDocs {
		if d.DocID == docID {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
