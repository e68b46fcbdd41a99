// Package dictionary holds the static lookup tables the alert run depends
// on: the keyword to MeSH query mapping and the journal impact factor table.
// Both ship with built-in defaults and accept overrides from configuration.
package dictionary

import (
	"fmt"
	"strings"

	"github.com/retinalab/citation-alert-service/internal/domain"
)

// defaultMeSHQueries maps the alerting keywords to their PubMed MeSH queries.
var defaultMeSHQueries = map[string]string{
	"ophthalmology":        `"Ophthalmology"[Mesh] OR "Eye Diseases"[Mesh]`,
	"retina":               `"Retina"[Mesh] OR "Retinal Diseases"[Mesh]`,
	"glaucoma":             `"Glaucoma"[Mesh]`,
	"cornea":               `"Cornea"[Mesh] OR "Corneal Diseases"[Mesh]`,
	"cataract":             `"Cataract"[Mesh] OR "Cataract Extraction"[Mesh]`,
	"macular degeneration": `"Macular Degeneration"[Mesh]`,
	"diabetic retinopathy": `"Diabetic Retinopathy"[Mesh]`,
	"uveitis":              `"Uveitis"[Mesh]`,
}

// MeSHQueries resolves alerting keywords to PubMed search queries.
type MeSHQueries struct {
	queries map[string]string
}

// NewMeSHQueries builds the mapping from the built-in defaults with the given
// overrides applied on top. Override keys are matched case-insensitively.
func NewMeSHQueries(overrides map[string]string) *MeSHQueries {
	queries := make(map[string]string, len(defaultMeSHQueries)+len(overrides))
	for k, v := range defaultMeSHQueries {
		queries[k] = v
	}
	for k, v := range overrides {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || strings.TrimSpace(v) == "" {
			continue
		}
		queries[k] = v
	}
	return &MeSHQueries{queries: queries}
}

// Query returns the MeSH query for a keyword. Unknown keywords return an
// error so the caller can log and move on to the next keyword.
func (m *MeSHQueries) Query(keyword string) (string, error) {
	q, ok := m.queries[strings.ToLower(strings.TrimSpace(keyword))]
	if !ok {
		return "", fmt.Errorf("%w: no MeSH query for keyword %q", domain.ErrNotFound, keyword)
	}
	return q, nil
}

// Keywords returns the known keywords. Order is not defined.
func (m *MeSHQueries) Keywords() []string {
	keys := make([]string, 0, len(m.queries))
	for k := range m.queries {
		keys = append(keys, k)
	}
	return keys
}
