package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

const feedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// feedResponse mirrors the upstream API envelope.
type feedResponse struct {
	Items []FeedItem `json:"items"`
}

// FeedClient fetches candidate items from the upstream news API.
type FeedClient struct {
	client    *http.Client
	apiURL    string
	params    map[string]string
	language  string
	converter *md.Converter
}

// NewFeedClient creates a feed client for the configured endpoint. The
// language selects which localized variant makes an item eligible.
func NewFeedClient(apiURL string, params map[string]string, language string) *FeedClient {
	return &FeedClient{
		client:    &http.Client{Timeout: 20 * time.Second},
		apiURL:    apiURL,
		params:    params,
		language:  language,
		converter: md.NewConverter("", true, nil),
	}
}

// FetchBatch returns up to limit items that carry a usable localized variant,
// newest-first as returned by the API. Network or decode failures are logged
// and yield an empty batch; they are never fatal to the caller.
func (f *FeedClient) FetchBatch(ctx context.Context, limit int) []FeedItem {
	if f.apiURL == "" {
		log.Printf("[api] no feed endpoint configured (set feed.api_url or FEED_API_URL)")
		return nil
	}

	items, err := f.fetch(ctx, limit)
	if err != nil {
		log.Printf("[api] fetch failed: %v", err)
		return nil
	}
	if len(items) == 0 {
		debugLog("feed returned no items")
		return nil
	}

	valid := make([]FeedItem, 0, len(items))
	for _, item := range items {
		f.normalize(&item)
		if lc, ok := item.Localized(f.language); ok && lc.Title != "" && lc.Summary.Render() != "" {
			valid = append(valid, item)
		} else {
			debugLog("skipping item %s: no usable %s content", item.ID, f.language)
		}
	}

	log.Printf("[api] fetched %d items, %d with %s content", len(items), len(valid), f.language)
	return valid
}

func (f *FeedClient) fetch(ctx context.Context, limit int) ([]FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	q := req.URL.Query()
	for k, v := range f.params {
		q.Set(k, v)
	}
	q.Set("limit", strconv.Itoa(limit))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", feedUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding feed response: %w", err)
	}

	return payload.Items, nil
}

var htmlTagPattern = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)

// normalize strips HTML markup out of summaries; some upstream sources ship
// them as HTML fragments rather than plain text.
func (f *FeedClient) normalize(item *FeedItem) {
	item.Summary = f.cleanParagraphs(item.Summary)
	for lang, lc := range item.Multilingual {
		lc.Summary = f.cleanParagraphs(lc.Summary)
		item.Multilingual[lang] = lc
	}
}

func (f *FeedClient) cleanParagraphs(ps Paragraphs) Paragraphs {
	out := make(Paragraphs, len(ps))
	for i, s := range ps {
		out[i] = f.cleanText(s)
	}
	return out
}

func (f *FeedClient) cleanText(s string) string {
	if !htmlTagPattern.MatchString(s) {
		return s
	}
	plain, err := f.converter.ConvertString(s)
	if err != nil {
		debugLog("html cleanup failed, keeping raw text: %v", err)
		return s
	}
	return plain
}
