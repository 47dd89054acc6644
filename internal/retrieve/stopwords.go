package retrieve

var stopWords = toSet(
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and", "any", "are",
	"as", "at", "be", "because", "been", "before", "being", "below", "between", "both", "but", "by",
	"can", "could", "did", "do", "does", "doing", "down", "during", "each", "either", "else", "etc",
	"few", "for", "from", "further", "had", "has", "have", "having", "he", "her", "here", "hers",
	"him", "his", "how", "however", "i", "if", "in", "into", "is", "it", "its", "itself", "just",
	"may", "me", "might", "more", "most", "much", "must", "my", "no", "nor", "not", "now", "of",
	"off", "on", "once", "only", "or", "other", "our", "ours", "out", "over", "own", "per", "same",
	"she", "should", "so", "some", "such", "than", "that", "the", "their", "theirs", "them", "then",
	"there", "these", "they", "this", "those", "through", "to", "too", "under", "until", "up", "upon",
	"us", "very", "via", "was", "we", "were", "what", "when", "where", "which", "while", "who", "whom",
	"why", "will", "with", "within", "would", "yet", "you", "your", "yours",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
