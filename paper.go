package assistant

import (
	"fmt"
	"strings"
	"time"
)

// PaperSource identifies the external repository a paper came from.
type PaperSource string

const (
	SourceArxiv           PaperSource = "arxiv"
	SourceSemanticScholar PaperSource = "semantic_scholar"
)

// Label returns the human-readable source name.
func (s PaperSource) Label() string {
	switch s {
	case SourceArxiv:
		return "arXiv"
	case SourceSemanticScholar:
		return "Semantic Scholar"
	}
	return string(s)
}

// AuthorList returns the authors as a slice.
func (p *Paper) AuthorList() []string {
	var authors []string
	for _, a := range strings.Split(p.Authors, ",") {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	return authors
}

// TagList returns the model-generated tags as a slice.
func (p *Paper) TagList() []string {
	var tags []string
	for _, t := range strings.Split(p.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Link returns the best URL for the paper.
func (p *Paper) Link() string {
	if p.URL != "" {
		return p.URL
	}
	switch p.Source {
	case SourceArxiv:
		return "https://arxiv.org/abs/" + p.ExternalID
	case SourceSemanticScholar:
		return "https://www.semanticscholar.org/paper/" + p.ExternalID
	}
	return ""
}

// PDFURL returns the arXiv PDF download URL, or "" for other sources.
func (p *Paper) PDFURL() string {
	if p.Source != SourceArxiv {
		return ""
	}
	return "https://arxiv.org/pdf/" + p.ExternalID + ".pdf"
}

// ScoreLabel formats the relevance score, e.g. "82/100".
func (p *Paper) ScoreLabel() string {
	return fmt.Sprintf("%.0f/100", p.Score)
}

// Year returns the publication year, falling back to the discovery year.
func (p *Paper) Year() int {
	if p.PublishedAt != nil && !p.PublishedAt.IsZero() {
		return p.PublishedAt.Year()
	}
	return p.DiscoveredAt.Year()
}

// Candidate is a paper returned by a PaperFetcher before scoring.
type Candidate struct {
	Source      PaperSource
	ExternalID  string
	Title       string
	Abstract    string
	URL         string
	Authors     string
	PublishedAt *time.Time
}

func (c Candidate) key() string {
	return string(c.Source) + "\x00" + c.ExternalID
}
