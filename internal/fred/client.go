// Package fred reads series metadata and observations from the FRED API and
// loads them into the observation store.
package fred

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fredqa/internal/fetcher"
	"github.com/sells-group/fredqa/internal/model"
)

// DefaultBaseURL is the FRED API root.
const DefaultBaseURL = "https://api.stlouisfed.org/fred"

// pageLimit is the maximum page size FRED allows for observations.
const pageLimit = 100000

// missingValue is FRED's marker for an absent observation.
const missingValue = "."

// ErrSeriesNotFound is returned when FRED has no metadata for a series.
var ErrSeriesNotFound = eris.New("fred: series not found")

// Client calls the FRED API through a Fetcher.
type Client struct {
	f       fetcher.Fetcher
	apiKey  string
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// NewClient returns a FRED client.
func NewClient(f fetcher.Fetcher, apiKey string, opts ...Option) *Client {
	c := &Client{f: f, apiKey: apiKey, baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(c)
	}
	return c
}

type seriesResponse struct {
	Seriess []struct {
		ID                 string `json:"id"`
		Title              string `json:"title"`
		Units              string `json:"units"`
		Frequency          string `json:"frequency"`
		SeasonalAdjustment string `json:"seasonal_adjustment"`
		Notes              string `json:"notes"`
		LastUpdated        string `json:"last_updated"`
	} `json:"seriess"`
}

type observationsResponse struct {
	Count        int `json:"count"`
	Offset       int `json:"offset"`
	Limit        int `json:"limit"`
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

func (c *Client) endpoint(path string, params url.Values) string {
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	return c.baseURL + path + "?" + params.Encode()
}

// Series returns metadata for seriesID.
func (c *Client) Series(ctx context.Context, seriesID string) (*model.Series, error) {
	resp, err := fetcher.GetJSON[seriesResponse](ctx, c.f, c.endpoint("/series", url.Values{"series_id": {seriesID}}))
	if err != nil {
		return nil, eris.Wrapf(err, "fred: series %s", seriesID)
	}
	if len(resp.Seriess) == 0 {
		return nil, eris.Wrapf(ErrSeriesNotFound, "fred: series %s", seriesID)
	}
	s := resp.Seriess[0]
	lastUpdated := s.LastUpdated
	if len(lastUpdated) > len(model.DateLayout) {
		lastUpdated = lastUpdated[:len(model.DateLayout)]
	}
	return &model.Series{
		SeriesID:           s.ID,
		Title:              s.Title,
		Units:              s.Units,
		Frequency:          s.Frequency,
		SeasonalAdjustment: s.SeasonalAdjustment,
		Notes:              s.Notes,
		LastUpdated:        lastUpdated,
	}, nil
}

// Observations returns observations between start and end (YYYY-MM-DD,
// either may be empty) in ascending date order, paging as needed. Missing
// values come back with a nil Value.
func (c *Client) Observations(ctx context.Context, seriesID, start, end string) ([]model.Observation, error) {
	var out []model.Observation
	for offset := 0; ; {
		params := url.Values{
			"series_id":  {seriesID},
			"sort_order": {"asc"},
			"limit":      {strconv.Itoa(pageLimit)},
			"offset":     {strconv.Itoa(offset)},
		}
		if start != "" {
			params.Set("observation_start", start)
		}
		if end != "" {
			params.Set("observation_end", end)
		}

		resp, err := fetcher.GetJSON[observationsResponse](ctx, c.f, c.endpoint("/series/observations", params))
		if err != nil {
			return nil, eris.Wrapf(err, "fred: observations %s", seriesID)
		}
		for _, o := range resp.Observations {
			obs, err := parseObservation(seriesID, o.Date, o.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, obs)
		}

		offset += len(resp.Observations)
		if len(resp.Observations) == 0 || offset >= resp.Count {
			return out, nil
		}
	}
}

func parseObservation(seriesID, date, value string) (model.Observation, error) {
	d, ok := model.ParseDate(date)
	if !ok {
		return model.Observation{}, eris.Errorf("fred: %s bad date %q", seriesID, date)
	}
	obs := model.Observation{SeriesID: seriesID, Date: d}
	value = strings.TrimSpace(value)
	if value == missingValue || value == "" {
		return obs, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return model.Observation{}, eris.Wrapf(err, "fred: %s bad value %q on %s", seriesID, value, date)
	}
	obs.Value = &v
	return obs, nil
}
