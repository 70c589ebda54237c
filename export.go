package assistant

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// BibTeXEntry represents a BibTeX entry for a paper
type BibTeXEntry struct {
	Type   string            // @article, @misc, etc.
	Key    string            // Citation key
	Fields map[string]string // BibTeX fields
}

var bibtexFieldOrder = []string{"title", "author", "year", "month", "eprint", "archivePrefix", "url", "abstract", "keywords", "note"}

// ToBibTeX converts a Paper to BibTeX format
func (p *Paper) ToBibTeX() string {
	entry := BibTeXEntry{
		Type:   "misc",
		Key:    p.BibTeXKey(),
		Fields: make(map[string]string),
	}

	entry.Fields["title"] = p.Title
	entry.Fields["author"] = p.formatAuthorsBibTeX()
	if p.PublishedAt != nil && !p.PublishedAt.IsZero() {
		entry.Fields["year"] = strconv.Itoa(p.PublishedAt.Year())
		entry.Fields["month"] = p.PublishedAt.Format("January")
	} else if y := p.Year(); y > 1 {
		entry.Fields["year"] = strconv.Itoa(y)
	}

	if p.Source == SourceArxiv {
		entry.Fields["eprint"] = p.ExternalID
		entry.Fields["archivePrefix"] = "arXiv"
	}
	entry.Fields["url"] = p.Link()
	entry.Fields["abstract"] = p.Abstract
	entry.Fields["keywords"] = strings.Join(p.TagList(), ", ")
	entry.Fields["note"] = fmt.Sprintf("Relevance %s via %s", p.ScoreLabel(), p.Source.Label())

	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s{%s,\n", entry.Type, entry.Key)
	for _, field := range bibtexFieldOrder {
		if value := entry.Fields[field]; value != "" {
			fmt.Fprintf(&sb, "  %s = {%s},\n", field, escapeBibTeX(value))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

// BibTeXKey generates a citation key: first author's last name, year and
// the first word of the title.
func (p *Paper) BibTeXKey() string {
	var key string
	if authors := p.AuthorList(); len(authors) > 0 {
		words := strings.Fields(authors[0])
		if len(words) > 0 {
			key = keyWord(words[len(words)-1])
		}
	}
	if y := p.Year(); y > 1 {
		key += strconv.Itoa(y)
	}
	for _, w := range strings.Fields(p.Title) {
		if w = keyWord(w); w != "" {
			key += w[:min(len(w), 5)]
			break
		}
	}

	if key == "" {
		key = fmt.Sprintf("%s%d", p.Source, p.ID)
	}
	return key
}

// keyWord lower-cases w and keeps ASCII letters and digits only.
func keyWord(w string) string {
	return strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, w)
}

// formatAuthorsBibTeX formats authors for BibTeX (Last, First and Last, First)
func (p *Paper) formatAuthorsBibTeX() string {
	var formatted []string
	for _, author := range p.AuthorList() {
		words := strings.Fields(author)
		if len(words) >= 2 {
			last := words[len(words)-1]
			first := strings.Join(words[:len(words)-1], " ")
			formatted = append(formatted, last+", "+first)
		} else {
			formatted = append(formatted, author)
		}
	}
	return strings.Join(formatted, " and ")
}

var bibtexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	"{", `\{`,
	"}", `\}`,
	"&", `\&`,
	"%", `\%`,
	"$", `\$`,
	"#", `\#`,
	"^", `\textasciicircum{}`,
	"_", `\_`,
	"~", `\textasciitilde{}`,
)

// escapeBibTeX escapes special characters in BibTeX strings
func escapeBibTeX(s string) string {
	return bibtexReplacer.Replace(s)
}

// ToRIS converts a Paper to RIS format
func (p *Paper) ToRIS() string {
	var sb strings.Builder
	if p.Source == SourceArxiv {
		sb.WriteString("TY  - UNPB\n")
	} else {
		sb.WriteString("TY  - JOUR\n")
	}
	fmt.Fprintf(&sb, "TI  - %s\n", p.Title)
	for _, author := range p.AuthorList() {
		fmt.Fprintf(&sb, "AU  - %s\n", author)
	}
	if p.PublishedAt != nil && !p.PublishedAt.IsZero() {
		fmt.Fprintf(&sb, "PY  - %d\n", p.PublishedAt.Year())
		fmt.Fprintf(&sb, "DA  - %s\n", p.PublishedAt.Format("2006/01/02"))
	}
	if p.Abstract != "" {
		fmt.Fprintf(&sb, "AB  - %s\n", p.Abstract)
	}
	if link := p.Link(); link != "" {
		fmt.Fprintf(&sb, "UR  - %s\n", link)
	}
	if p.Source == SourceArxiv {
		fmt.Fprintf(&sb, "M3  - arXiv:%s\n", p.ExternalID)
	}
	for _, tag := range p.TagList() {
		fmt.Fprintf(&sb, "KW  - %s\n", tag)
	}
	if p.Summary != "" {
		fmt.Fprintf(&sb, "N1  - %s\n", p.Summary)
	}
	sb.WriteString("ER  - \n")
	return sb.String()
}
