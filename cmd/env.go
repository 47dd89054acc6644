package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/answer"
	"github.com/sells-group/fredqa/internal/cards"
	"github.com/sells-group/fredqa/internal/config"
	"github.com/sells-group/fredqa/internal/hints"
	"github.com/sells-group/fredqa/internal/metrics"
	"github.com/sells-group/fredqa/internal/parse"
	"github.com/sells-group/fredqa/internal/retrieve"
	"github.com/sells-group/fredqa/internal/store"
	"github.com/sells-group/fredqa/internal/truth"
	"github.com/sells-group/fredqa/internal/verify"
	"github.com/sells-group/fredqa/pkg/anthropic"
)

// appEnv holds the components shared by the answering commands.
type appEnv struct {
	Store    store.Store
	Catalog  *config.Catalog
	Engine   *truth.Engine
	Metrics  *metrics.Metrics
	Answerer *answer.Answerer
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store == nil {
		return
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// openStore opens and migrates the configured observation store.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: c.Store.MaxConns,
		MinConns: c.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newEngine(r store.Reader) *truth.Engine {
	return truth.New(r, truth.NewFrequencyCache())
}

// initEnv wires store, truth engine, cards and the answerer from c.
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	catalog, err := config.LoadCatalog(c.Catalog.Path)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	env := &appEnv{
		Store:   st,
		Catalog: catalog,
		Engine:  newEngine(st),
		Metrics: metrics.New(),
	}

	opts := []answer.Option{
		answer.WithMetrics(env.Metrics),
		answer.WithMinRetrievalScore(c.Answer.MinRetrievalScore),
		answer.WithSnippetChars(c.Answer.SnippetChars),
	}
	opts = append(opts, cardOptions(c)...)
	if h := initHinter(c, catalog); h != nil {
		opts = append(opts, answer.WithHinter(h))
	}

	env.Answerer = answer.New(parse.New(catalog.Tables()), env.Engine, st, opts...)
	return env, nil
}

// cardOptions loads series cards for retrieval. Missing or unreadable cards
// only disable retrieval.
func cardOptions(c *config.Config) []answer.Option {
	docs, err := cards.LoadDir(c.Cards.Dir)
	if err != nil {
		zap.L().Warn("load cards", zap.String("dir", c.Cards.Dir), zap.Error(err))
		return nil
	}
	if len(docs) == 0 {
		zap.L().Info("no series cards found; retrieval disabled", zap.String("dir", c.Cards.Dir))
		return nil
	}
	zap.L().Debug("loaded cards", zap.Int("count", len(docs)))
	return []answer.Option{
		answer.WithRetrieval(retrieve.NewIndex(docs), c.Answer.RetrievalK),
		answer.WithLibrary(cards.NewLibrary(docs)),
	}
}

// initHinter returns the Anthropic-backed hinter, or nil when hinting is off
// or no key is configured.
func initHinter(c *config.Config, catalog *config.Catalog) *hints.Hinter {
	if !c.Answer.Hints {
		return nil
	}
	if c.Anthropic.Key == "" {
		zap.L().Warn("answer.hints enabled but anthropic.key is empty (FREDQA_ANTHROPIC_KEY); hinting disabled")
		return nil
	}
	client := anthropic.NewClient(c.Anthropic.Key,
		anthropic.WithMaxRetries(c.Anthropic.MaxRetries),
		anthropic.WithTimeout(time.Duration(c.Anthropic.TimeoutSecs)*time.Second),
	)
	return hints.New(client,
		hints.WithModel(c.Anthropic.Model),
		hints.WithMaxTokens(c.Anthropic.MaxTokens),
		hints.WithMinConfidence(c.Anthropic.MinConfidence),
		hints.WithKnownSeries(catalog.IDs()),
	)
}

// initSuite builds the verifier suite from the configured map.
func initSuite(c *config.Config, src verify.TruthSource, m *metrics.Metrics) (*verify.Suite, error) {
	vm := verify.DefaultMap()
	if c.Eval.VerifierMap != "" {
		loaded, err := verify.LoadMap(c.Eval.VerifierMap)
		if err != nil {
			return nil, err
		}
		vm = loaded
	}
	return verify.NewSuite(vm, src, verify.WithMetrics(m))
}
