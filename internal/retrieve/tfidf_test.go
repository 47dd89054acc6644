package retrieve

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fredqa/internal/cards"
)

func corpus() []cards.Doc {
	return []cards.Doc{
		{ID: "series_CPIAUCSL", Text: "# CPIAUCSL: Consumer Price Index for All Urban Consumers\nConsumer prices inflation index of goods."},
		{ID: "series_FEDFUNDS", Text: "# FEDFUNDS: Federal Funds Effective Rate\nThe interest rate at which banks lend reserves overnight."},
		{ID: "series_UNRATE", Text: "# UNRATE: Unemployment Rate\nThe unemployment rate is the share of the labor force that is jobless."},
	}
}

func TestRetrieve_RanksRelevantCardFirst(t *testing.T) {
	idx := NewIndex(corpus())

	res := idx.Retrieve("What was the jobless rate in 2020?", DefaultK)
	require.NotEmpty(t, res)
	assert.Equal(t, "series_UNRATE", res[0].DocID)
	assert.LessOrEqual(t, res[0].Score, 1.0+1e-9)

	res = idx.Retrieve("consumer prices", DefaultK)
	require.NotEmpty(t, res)
	assert.Equal(t, "series_CPIAUCSL", res[0].DocID)
}

func TestRetrieve_OrderedAndBounded(t *testing.T) {
	idx := NewIndex(corpus())

	res := idx.Retrieve("rate", 2)
	require.Len(t, res, 2)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
	for _, r := range res {
		assert.Greater(t, r.Score, 0.0)
	}
}

func TestRetrieve_NoMatches(t *testing.T) {
	idx := NewIndex(corpus())

	assert.Empty(t, idx.Retrieve("zebra giraffe", DefaultK))
	assert.Empty(t, idx.Retrieve("   ", DefaultK))
	assert.Empty(t, idx.Retrieve("the of and", DefaultK), "stop words only")
	assert.Empty(t, NewIndex(nil).Retrieve("unemployment", DefaultK))
}

func TestRetrieve_Deterministic(t *testing.T) {
	idx := NewIndex(corpus())
	first := idx.Retrieve("interest rate banks", 3)
	require.NotEmpty(t, first)
	for range 200 {
		assert.Equal(t, first, NewIndex(corpus()).Retrieve("interest rate banks", 3))
	}
}

func TestWeigh_SortedTerms(t *testing.T) {
	idx := NewIndex(corpus())
	v := idx.weigh(termCounts("interest rate banks unemployment rate"))
	require.NotEmpty(t, v.terms)
	assert.True(t, slices.IsSorted(v.terms))
	assert.Len(t, v.weights, len(v.terms))
}

func TestTermCounts_Bigrams(t *testing.T) {
	counts := termCounts("The unemployment rate, unemployment rate!")
	assert.Equal(t, 2, counts["unemployment rate"])
	assert.Equal(t, 1, counts["rate unemployment"])
	assert.NotContains(t, counts, "the")
}
