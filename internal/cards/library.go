package cards

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/store"
)

// Library is an in-memory set of cards keyed by document id.
type Library struct {
	mu   sync.RWMutex
	docs map[string]Doc
	ids  []string
}

// NewLibrary returns a library holding docs. Later duplicates replace earlier ones.
func NewLibrary(docs []Doc) *Library {
	l := &Library{docs: make(map[string]Doc, len(docs))}
	for _, d := range docs {
		l.Put(d)
	}
	return l
}

// Put adds or replaces a card.
func (l *Library) Put(d Doc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.docs[d.ID]; !ok {
		l.ids = append(l.ids, d.ID)
		sort.Strings(l.ids)
	}
	l.docs[d.ID] = d
}

// Get returns the card with the given document id.
func (l *Library) Get(id string) (Doc, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.docs[id]
	return d, ok
}

// Docs returns all cards ordered by id.
func (l *Library) Docs() []Doc {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Doc, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.docs[id])
	}
	return out
}

// Len returns the number of cards.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// Build renders a card for every series in the store.
func Build(ctx context.Context, st store.Store, lastN int) ([]Doc, error) {
	if lastN <= 0 {
		lastN = DefaultRecent
	}
	series, err := st.ListSeries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "cards: list series")
	}

	docs := make([]Doc, 0, len(series))
	for _, s := range series {
		recent, err := st.Trailing(ctx, s.SeriesID, model.Date(9999, 12, 31), lastN)
		if err != nil {
			return nil, eris.Wrapf(err, "cards: recent observations %s", s.SeriesID)
		}
		docs = append(docs, Doc{ID: model.DocID(s.SeriesID), Text: Render(s, recent, lastN)})
	}
	return docs, nil
}

// WriteDir writes each card to dir/<id>.md, creating dir if needed.
func WriteDir(dir string, docs []Doc) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "cards: mkdir %s", dir)
	}
	for _, d := range docs {
		path := filepath.Join(dir, d.ID+".md")
		if err := os.WriteFile(path, []byte(d.Text), 0o644); err != nil {
			return eris.Wrapf(err, "cards: write %s", path)
		}
		zap.L().Debug("cards: wrote card", zap.String("doc_id", d.ID), zap.String("path", path))
	}
	return nil
}

// LoadDir reads every *.md file in dir, sorted by name. The file stem is the
// document id.
func LoadDir(dir string) ([]Doc, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, eris.Wrapf(err, "cards: glob %s", dir)
	}
	sort.Strings(paths)

	docs := make([]Doc, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "cards: read %s", p)
		}
		docs = append(docs, Doc{
			ID:   strings.TrimSuffix(filepath.Base(p), ".md"),
			Text: string(data),
		})
	}
	return docs, nil
}
