package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fredqa/internal/parse"
)

// CatalogEntry is one supported series and the phrases that name it.
type CatalogEntry struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Keywords []string `yaml:"keywords"`
}

// Catalog lists the series fredqa ingests, cards and answers for.
type Catalog struct {
	Series []CatalogEntry `yaml:"series"`
}

// DefaultCatalog returns the shipped five-series catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{Series: []CatalogEntry{
		{ID: "UNRATE", Title: "Unemployment Rate", Keywords: []string{"unemployment rate", "unemployment", "jobless"}},
		{ID: "CPIAUCSL", Title: "Consumer Price Index", Keywords: []string{"cpi", "inflation", "consumer price"}},
		{ID: "FEDFUNDS", Title: "Federal Funds Rate", Keywords: []string{"fed funds", "federal funds", "interest rate"}},
		{ID: "PCEPI", Title: "Personal Consumption Expenditures Price Index", Keywords: []string{"pce inflation", "pcepi", "personal consumption"}},
		{ID: "GDPC1", Title: "Real GDP", Keywords: []string{"real gdp", "gdp"}},
	}}
}

// LoadCatalog reads a YAML catalog. An empty path returns DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "config: parse catalog")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate requires unique ids, at least one keyword per series, and no
// keyword claimed by two series.
func (c *Catalog) Validate() error {
	if len(c.Series) == 0 {
		return eris.New("config: catalog has no series")
	}
	ids := make(map[string]bool, len(c.Series))
	owner := make(map[string]string)
	for i, e := range c.Series {
		if e.ID == "" {
			return eris.Errorf("config: catalog entry %d has no id", i)
		}
		if ids[e.ID] {
			return eris.Errorf("config: duplicate series %s", e.ID)
		}
		ids[e.ID] = true
		if len(e.Keywords) == 0 {
			return eris.Errorf("config: series %s has no keywords", e.ID)
		}
		for _, kw := range e.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return eris.Errorf("config: series %s has an empty keyword", e.ID)
			}
			if prev, ok := owner[kw]; ok && prev != e.ID {
				return eris.Errorf("config: keyword %q used by %s and %s", kw, prev, e.ID)
			}
			owner[kw] = e.ID
		}
	}
	return nil
}

// IDs returns series ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.Series))
	for i, e := range c.Series {
		out[i] = e.ID
	}
	return out
}

// Names maps series id to the title used in generated questions.
func (c *Catalog) Names() map[string]string {
	out := make(map[string]string, len(c.Series))
	for _, e := range c.Series {
		if e.Title != "" {
			out[e.ID] = e.Title
		}
	}
	return out
}

// Tables builds parser tables with this catalog's keywords and the default
// month, extremum and change vocabularies.
func (c *Catalog) Tables() parse.Tables {
	t := parse.DefaultTables()
	t.Series = nil
	for _, e := range c.Series {
		for _, kw := range e.Keywords {
			t.Series = append(t.Series, parse.SeriesKeyword{
				Keyword:  strings.ToLower(strings.TrimSpace(kw)),
				SeriesID: e.ID,
			})
		}
	}
	return t
}
