package assistant

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const arxivAPIURL = "https://export.arxiv.org/api/query"

const userAgent = "research-assistant/1.0"

// ArxivClient searches the arXiv Atom API.
type ArxivClient struct {
	client  *http.Client
	baseURL string
}

// NewArxivClient creates an arXiv search client.
func NewArxivClient(timeout time.Duration) *ArxivClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ArxivClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: arxivAPIURL,
	}
}

// Name implements PaperFetcher.
func (c *ArxivClient) Name() PaperSource { return SourceArxiv }

// Fetch returns the newest papers matching any keyword.
func (c *ArxivClient) Fetch(ctx context.Context, keywords []string, limit int) ([]Candidate, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("search_query", arxivQuery(keywords))
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}

	var out []Candidate
	for _, entry := range feed.Entries {
		c := parseAtomEntry(entry)
		if c.ExternalID == "" || c.Title == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// arxivQuery ORs the keywords over all fields, quoting phrases.
func arxivQuery(keywords []string) string {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			kw = `"` + kw + `"`
		}
		parts = append(parts, "all:"+kw)
	}
	return strings.Join(parts, " OR ")
}

// Atom feed structures for arXiv API

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Authors   []atomAuthor `xml:"author"`
	Published string       `xml:"published"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// parseAtomEntry converts an atom entry to a Candidate.
func parseAtomEntry(entry atomEntry) Candidate {
	var authors []string
	for _, a := range entry.Authors {
		authors = append(authors, strings.TrimSpace(a.Name))
	}

	c := Candidate{
		Source:     SourceArxiv,
		ExternalID: normalizeArxivID(entry.ID),
		Title:      collapseSpace(entry.Title),
		Abstract:   collapseSpace(entry.Summary),
		Authors:    strings.Join(authors, ", "),
	}
	for _, l := range entry.Links {
		if l.Rel == "alternate" || (l.Rel == "" && l.Type == "text/html") {
			c.URL = l.Href
			break
		}
	}
	if c.URL == "" && c.ExternalID != "" {
		c.URL = "https://arxiv.org/abs/" + c.ExternalID
	}
	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		c.PublishedAt = &t
	}
	return c
}

// normalizeArxivID extracts the id from an abs URL and strips the version,
// e.g. http://arxiv.org/abs/2301.00001v2 -> 2301.00001.
func normalizeArxivID(id string) string {
	id = strings.TrimSpace(id)
	if idx := strings.LastIndex(id, "/abs/"); idx >= 0 {
		id = id[idx+5:]
	}
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
