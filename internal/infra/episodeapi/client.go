// Package episodeapi provides a client for the episode REST API.
package episodeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podcastr/internal/domain/episode"
	"github.com/osa030/podcastr/internal/infra/metrics"
)

// ErrNotFound is returned when the API has no episode with the requested ID.
var ErrNotFound = errors.New("episode not found")

const (
	endpointList   = "list"
	endpointDetail = "detail"
)

// Config represents episode API client configuration.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	ListRevalidate   time.Duration // how long a list response is served from cache
	DetailRevalidate time.Duration // how long a detail response is served from cache
}

// ListOptions selects and orders the episodes returned by ListEpisodes.
type ListOptions struct {
	Limit int
	Sort  string
	Order string // "asc" or "desc"
}

// LatestFirst lists the newest episodes first.
func LatestFirst(limit int) ListOptions {
	return ListOptions{Limit: limit, Sort: "published_at", Order: "desc"}
}

func (o ListOptions) query() url.Values {
	params := url.Values{}
	if o.Limit > 0 {
		params.Set("_limit", strconv.Itoa(o.Limit))
	}
	if o.Sort != "" {
		params.Set("_sort", o.Sort)
	}
	if o.Order != "" {
		params.Set("_order", o.Order)
	}
	return params
}

type listCacheEntry struct {
	episodes []episode.Episode
	expires  time.Time
}

type detailCacheEntry struct {
	episode episode.Episode
	expires time.Time
}

// Client is an episode API client with a small revalidating cache.
type Client struct {
	baseURL          string
	httpClient       *http.Client
	listRevalidate   time.Duration
	detailRevalidate time.Duration

	// Cache for list responses, keyed by query string
	listCache map[string]*listCacheEntry
	// Cache for single episodes, keyed by ID
	detailCache map[string]*detailCacheEntry

	cacheMu sync.RWMutex
	now     func() time.Time
}

// New creates a new episode API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("episode API base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrapf(err, "invalid episode API base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:       &http.Client{Timeout: timeout},
		listRevalidate:   cfg.ListRevalidate,
		detailRevalidate: cfg.DetailRevalidate,
		listCache:        make(map[string]*listCacheEntry),
		detailCache:      make(map[string]*detailCacheEntry),
		now:              time.Now,
	}, nil
}

// ListEpisodes retrieves episodes from GET {base}/episodes.
func (c *Client) ListEpisodes(ctx context.Context, opts ListOptions) ([]episode.Episode, error) {
	params := opts.query()
	cacheKey := params.Encode()

	c.cacheMu.RLock()
	if entry, ok := c.listCache[cacheKey]; ok && c.now().Before(entry.expires) {
		c.cacheMu.RUnlock()
		metrics.ObserveAPICache(endpointList, true)
		zlog.Debug().Msgf("using cached episode list: %s", cacheKey)
		return cloneEpisodes(entry.episodes), nil
	}
	c.cacheMu.RUnlock()
	metrics.ObserveAPICache(endpointList, false)

	reqURL := c.baseURL + "/episodes"
	if cacheKey != "" {
		reqURL += "?" + cacheKey
	}

	var raw []map[string]any
	if err := c.fetch(ctx, endpointList, reqURL, &raw); err != nil {
		return nil, err
	}

	episodes := make([]episode.Episode, 0, len(raw))
	for i, item := range raw {
		ep, err := decodeEpisode(item)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode episode at position %d", i)
		}
		episodes = append(episodes, ep)
	}

	if c.listRevalidate > 0 {
		c.cacheMu.Lock()
		c.listCache[cacheKey] = &listCacheEntry{
			episodes: cloneEpisodes(episodes),
			expires:  c.now().Add(c.listRevalidate),
		}
		c.cacheMu.Unlock()
	}

	return episodes, nil
}

// GetEpisode retrieves a single episode from GET {base}/episodes/{id}.
// A 404 from the API is reported as ErrNotFound.
func (c *Client) GetEpisode(ctx context.Context, id string) (episode.Episode, error) {
	if id == "" {
		return episode.Episode{}, errors.New("episode ID is required")
	}

	c.cacheMu.RLock()
	if entry, ok := c.detailCache[id]; ok && c.now().Before(entry.expires) {
		c.cacheMu.RUnlock()
		metrics.ObserveAPICache(endpointDetail, true)
		zlog.Debug().Msgf("using cached episode: %s", id)
		return entry.episode, nil
	}
	c.cacheMu.RUnlock()
	metrics.ObserveAPICache(endpointDetail, false)

	var raw map[string]any
	if err := c.fetch(ctx, endpointDetail, c.baseURL+"/episodes/"+url.PathEscape(id), &raw); err != nil {
		return episode.Episode{}, err
	}

	ep, err := decodeEpisode(raw)
	if err != nil {
		return episode.Episode{}, errors.Wrapf(err, "failed to decode episode %s", id)
	}

	if c.detailRevalidate > 0 {
		c.cacheMu.Lock()
		c.detailCache[id] = &detailCacheEntry{
			episode: ep,
			expires: c.now().Add(c.detailRevalidate),
		}
		c.cacheMu.Unlock()
	}

	return ep, nil
}

// Invalidate drops every cached response.
func (c *Client) Invalidate() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.listCache = make(map[string]*listCacheEntry)
	c.detailCache = make(map[string]*detailCacheEntry)
}

func (c *Client) fetch(ctx context.Context, endpoint, reqURL string, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveAPIFetch(endpoint, err, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.WithStack(ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.Newf("episode API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// apiEpisode is the wire shape of an episode.
type apiEpisode struct {
	ID          string    `mapstructure:"id"`
	Title       string    `mapstructure:"title"`
	Members     string    `mapstructure:"members"`
	Thumbnail   string    `mapstructure:"thumbnail"`
	Description string    `mapstructure:"description"`
	PublishedAt time.Time `mapstructure:"published_at"`
	File        struct {
		URL      string `mapstructure:"url"`
		Duration int    `mapstructure:"duration"`
	} `mapstructure:"file"`
}

// decodeEpisode converts a loosely typed API object into an Episode.
// IDs and durations may arrive as numbers or strings.
func decodeEpisode(raw map[string]any) (episode.Episode, error) {
	var a apiEpisode
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &a,
		WeaklyTypedInput: true,
		DecodeHook:       timestampHook,
	})
	if err != nil {
		return episode.Episode{}, errors.Wrap(err, "failed to create decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return episode.Episode{}, errors.Wrap(err, "failed to decode episode")
	}
	if a.ID == "" {
		return episode.Episode{}, errors.New("episode has no id")
	}

	return episode.Episode{
		ID:          a.ID,
		Title:       a.Title,
		Members:     a.Members,
		Thumbnail:   a.Thumbnail,
		Description: a.Description,
		PublishedAt: a.PublishedAt,
		Duration:    a.File.Duration,
		URL:         a.File.URL,
	}, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func timestampHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) || from.Kind() != reflect.String {
		return data, nil
	}
	s, _ := data.(string)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, errors.Newf("unrecognized timestamp %q", s)
}

func cloneEpisodes(in []episode.Episode) []episode.Episode {
	out := make([]episode.Episode, len(in))
	copy(out, in)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
