package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const semanticScholarURL = "https://api.semanticscholar.org/graph/v1/paper/search"

// Semantic Scholar's search endpoint returns at most this many results.
const semanticMaxLimit = 100

// SemanticScholarClient searches the Semantic Scholar Graph API.
type SemanticScholarClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewSemanticScholarClient creates a client. apiKey is optional.
func NewSemanticScholarClient(apiKey string, timeout time.Duration) *SemanticScholarClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SemanticScholarClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: semanticScholarURL,
		apiKey:  apiKey,
	}
}

// Name implements PaperFetcher.
func (c *SemanticScholarClient) Name() PaperSource { return SourceSemanticScholar }

// Fetch returns papers matching any keyword.
func (c *SemanticScholarClient) Fetch(ctx context.Context, keywords []string, limit int) ([]Candidate, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	limit = min(limit, semanticMaxLimit)

	params := url.Values{}
	params.Set("query", semanticQuery(keywords))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", "title,abstract,url,authors,year,publicationDate,externalIds")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var result s2SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	var out []Candidate
	for _, p := range result.Data {
		if p.PaperID == "" || strings.TrimSpace(p.Title) == "" {
			continue
		}
		out = append(out, p.candidate())
	}
	return out, nil
}

func semanticQuery(keywords []string) string {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			kw = `"` + kw + `"`
		}
		parts = append(parts, kw)
	}
	return strings.Join(parts, " OR ")
}

// JSON structures for the Graph API search response

type s2SearchResponse struct {
	Total int       `json:"total"`
	Data  []s2Paper `json:"data"`
}

type s2Paper struct {
	PaperID         string         `json:"paperId"`
	Title           string         `json:"title"`
	Abstract        string         `json:"abstract"`
	URL             string         `json:"url"`
	Year            int            `json:"year"`
	PublicationDate string         `json:"publicationDate"`
	Authors         []s2Author     `json:"authors"`
	ExternalIDs     map[string]any `json:"externalIds"`
}

type s2Author struct {
	Name string `json:"name"`
}

func (p s2Paper) candidate() Candidate {
	var authors []string
	for _, a := range p.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	c := Candidate{
		Source:     SourceSemanticScholar,
		ExternalID: p.PaperID,
		Title:      collapseSpace(p.Title),
		Abstract:   collapseSpace(p.Abstract),
		URL:        p.URL,
		Authors:    strings.Join(authors, ", "),
	}
	if t, err := time.Parse(time.DateOnly, p.PublicationDate); err == nil {
		c.PublishedAt = &t
	} else if p.Year > 0 {
		t := time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		c.PublishedAt = &t
	}
	if c.URL == "" {
		if doi, ok := p.ExternalIDs["DOI"].(string); ok && doi != "" {
			c.URL = "https://doi.org/" + doi
		}
	}
	return c
}
