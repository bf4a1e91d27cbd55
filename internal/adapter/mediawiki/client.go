// Package mediawiki implements tiered audio discovery against a MediaWiki
// Action API: list the files attached to a page, batch-resolve their URL and
// MIME metadata, and fall back to a generator query enumerating embedded media
// when the first two stages come up empty. All stage failures are absorbed;
// discovery degrades to "no candidates found".
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"wikiaudio/internal/domain"
	"wikiaudio/internal/infrastructure/logger"
	"wikiaudio/internal/port"
)

const (
	// batchSize is the maximum number of file titles per metadata request
	// (MediaWiki caps titles= at 50 for anonymous clients).
	batchSize = 50

	userAgent = "wikiaudio/1.0"
)

type Client struct {
	apiURL string
	http   *http.Client
}

// NewClient builds a resolver against the given Action API endpoint
// (e.g. https://en.wiktionary.org/w/api.php). A nil httpClient gets a
// 30 second default timeout.
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{apiURL: apiURL, http: httpClient}
}

// Resolve walks the discovery tiers in order and stops at the first one that
// yields candidates.
func (c *Client) Resolve(ctx context.Context, pageTitle string) ([]domain.AudioCandidate, error) {
	titles, err := c.listAudioTitles(ctx, pageTitle)
	if err != nil {
		logger.Warn.Printf("list stage failed for %q: %v", logger.SanitizeForLog(pageTitle), err)
		titles = nil
	}

	if len(titles) > 0 {
		candidates, err := c.resolveTitles(ctx, titles)
		if err != nil {
			logger.Warn.Printf("resolve stage failed for %q: %v", logger.SanitizeForLog(pageTitle), err)
		} else if len(candidates) > 0 {
			return candidates, nil
		}
	}

	candidates, err := c.embeddedMedia(ctx, pageTitle)
	if err != nil {
		logger.Warn.Printf("fallback stage failed for %q: %v", logger.SanitizeForLog(pageTitle), err)
		return nil, nil
	}
	return candidates, nil
}

// queryResponse covers the slices of the Action API response the resolver
// reads (formatversion=2).
type queryResponse struct {
	Query struct {
		Pages []struct {
			Title  string `json:"title"`
			Images []struct {
				Title string `json:"title"`
			} `json:"images"`
			ImageInfo []imageInfo `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

type imageInfo struct {
	URL         string                 `json:"url"`
	Mime        string                 `json:"mime"`
	ExtMetadata map[string]extMetaItem `json:"extmetadata"`
}

type extMetaItem struct {
	Value json.RawMessage `json:"value"`
}

// listAudioTitles queries the page's attached file list and keeps the titles
// that look like audio. This stage yields bare titles, not URLs.
func (c *Client) listAudioTitles(ctx context.Context, pageTitle string) ([]string, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"prop":          {"images"},
		"imlimit":       {"500"},
		"titles":        {pageTitle},
	}

	var resp queryResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	var titles []string
	seen := make(map[string]bool)
	for _, page := range resp.Query.Pages {
		for _, img := range page.Images {
			if seen[img.Title] || !domain.HasAudioExtension(img.Title) {
				continue
			}
			seen[img.Title] = true
			titles = append(titles, img.Title)
		}
	}
	return titles, nil
}

// resolveTitles batch-resolves direct URL, MIME type and extended metadata for
// the listed titles and keeps entries passing the audio filter.
func (c *Client) resolveTitles(ctx context.Context, titles []string) ([]domain.AudioCandidate, error) {
	var candidates []domain.AudioCandidate
	seen := make(map[string]bool)

	for start := 0; start < len(titles); start += batchSize {
		end := min(start+batchSize, len(titles))

		params := url.Values{
			"action":        {"query"},
			"format":        {"json"},
			"formatversion": {"2"},
			"prop":          {"imageinfo"},
			"iiprop":        {"url|mime|extmetadata"},
			"titles":        {strings.Join(titles[start:end], "|")},
		}

		var resp queryResponse
		if err := c.get(ctx, params, &resp); err != nil {
			return nil, err
		}
		candidates = appendCandidates(candidates, seen, resp)
	}
	return candidates, nil
}

// embeddedMedia is the fallback stage: one generator query enumerating every
// file embedded in the page, metadata attached, with the same filter applied.
func (c *Client) embeddedMedia(ctx context.Context, pageTitle string) ([]domain.AudioCandidate, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"generator":     {"images"},
		"gimlimit":      {"500"},
		"prop":          {"imageinfo"},
		"iiprop":        {"url|mime|extmetadata"},
		"titles":        {pageTitle},
	}

	var resp queryResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	return appendCandidates(nil, make(map[string]bool), resp), nil
}

// appendCandidates applies the MIME/extension filter and dedupes by title.
func appendCandidates(candidates []domain.AudioCandidate, seen map[string]bool, resp queryResponse) []domain.AudioCandidate {
	for _, page := range resp.Query.Pages {
		if len(page.ImageInfo) == 0 || seen[page.Title] {
			continue
		}
		info := page.ImageInfo[0]
		if info.URL == "" || !domain.AcceptAudio(info.Mime, info.URL) {
			continue
		}
		seen[page.Title] = true
		candidates = append(candidates, domain.AudioCandidate{
			Title:           page.Title,
			URL:             info.URL,
			Filename:        filenameFromURL(info.URL, page.Title),
			LicenseMetadata: flattenMetadata(info.ExtMetadata),
		})
	}
	return candidates
}

// filenameFromURL extracts the decoded last path segment; the title (minus
// its namespace prefix) covers URLs that fail to parse.
func filenameFromURL(raw, title string) string {
	if u, err := url.Parse(raw); err == nil {
		if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
			return name
		}
	}
	if _, after, found := strings.Cut(title, ":"); found {
		return after
	}
	return title
}

// flattenMetadata reduces extmetadata items to plain strings. Values arrive as
// strings, numbers or booleans depending on the wiki; non-strings keep their
// JSON rendering.
func flattenMetadata(meta map[string]extMetaItem) map[string]string {
	out := make(map[string]string, len(meta))
	for key, item := range meta {
		var s string
		if err := json.Unmarshal(item.Value, &s); err != nil {
			s = string(item.Value)
		}
		out[key] = s
	}
	return out
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.E(domain.KindDiscovery, "mediawiki.get", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.E(domain.KindDiscovery, "mediawiki.get", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.Errorf(domain.KindDiscovery, "mediawiki.get", "unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return domain.E(domain.KindDiscovery, "mediawiki.get", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.E(domain.KindDiscovery, "mediawiki.get", fmt.Errorf("parse response: %w", err))
	}
	return nil
}

var _ port.AudioResolver = (*Client)(nil)
