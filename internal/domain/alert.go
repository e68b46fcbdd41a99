package domain

// AlertRecord is a row in the alert ledger: an article that exceeded the
// citation threshold during a detection period.
//
// The pair (PMID, DetectionPeriod) is unique. Notified starts false and
// transitions to true exactly once, after the digest containing the record
// has been delivered. Records are never deleted.
type AlertRecord struct {
	ID              int64
	PMID            string
	DOI             string
	Title           string
	Journal         string
	PublishedDate   string
	CitationCount   int
	DetectionPeriod string
	Notified        bool
}

// PubMedURL returns the canonical PubMed page for the alerted article.
func (r *AlertRecord) PubMedURL() string {
	return "https://pubmed.ncbi.nlm.nih.gov/" + r.PMID + "/"
}
