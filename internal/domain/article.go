// Package domain contains the core types shared across the citation alert service.
package domain

import "strings"

// Article holds the metadata fetched from PubMed for a single publication.
// PublishedDate is in YYYY-MM-DD form, or "N/A" when PubMed provides no
// usable date. Abstract is empty when the record carries none.
type Article struct {
	PMID          string
	DOI           string
	Title         string
	Journal       string
	PublishedDate string
	Abstract      string
}

// HasDOI reports whether the article carries a usable DOI. Articles without
// one cannot be checked against the citation index and are skipped.
func (a *Article) HasDOI() bool {
	return strings.TrimSpace(a.DOI) != ""
}

// PubMedURL returns the canonical PubMed page for the article.
func (a *Article) PubMedURL() string {
	return "https://pubmed.ncbi.nlm.nih.gov/" + a.PMID + "/"
}
