package dictionary

import (
	"strconv"
	"strings"
)

// UnknownImpactFactor is shown in the digest for journals with no entry.
const UnknownImpactFactor = "N/A"

// defaultImpactFactors holds the journal impact factor table, keyed by the
// journal name as PubMed reports it.
var defaultImpactFactors = map[string]float64{
	"Ophthalmology":                                13.2,
	"JAMA Ophthalmology":                           7.8,
	"American Journal of Ophthalmology":            4.2,
	"British Journal of Ophthalmology":             4.1,
	"Retina":                                       3.3,
	"Investigative Ophthalmology & Visual Science": 5.0,
	"Progress in Retinal and Eye Research":         18.6,
	"Acta Ophthalmologica":                         3.0,
	"Eye":                                          2.8,
	"Cornea":                                       2.2,
	"Journal of Glaucoma":                          2.1,
	"Ophthalmology Retina":                         4.4,
}

// ImpactFactors resolves journal names to impact factors.
type ImpactFactors struct {
	factors map[string]float64
}

// NewImpactFactors builds the table from the built-in defaults with the given
// overrides applied on top.
func NewImpactFactors(overrides map[string]float64) *ImpactFactors {
	factors := make(map[string]float64, len(defaultImpactFactors)+len(overrides))
	for k, v := range defaultImpactFactors {
		factors[k] = v
	}
	for k, v := range overrides {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		factors[k] = v
	}
	return &ImpactFactors{factors: factors}
}

// Lookup returns the impact factor for a journal. It tries an exact match
// first, then a case-insensitive substring match in either direction, so
// "Retina (Philadelphia, Pa.)" still resolves to the "Retina" entry despite
// PubMed's punctuation variants.
func (f *ImpactFactors) Lookup(journal string) (float64, bool) {
	journal = strings.TrimSpace(journal)
	if journal == "" {
		return 0, false
	}

	if v, ok := f.factors[journal]; ok {
		return v, true
	}

	lower := strings.ToLower(journal)
	var (
		best    float64
		bestLen int
		found   bool
	)
	for name, v := range f.factors {
		nameLower := strings.ToLower(name)
		if strings.Contains(lower, nameLower) || strings.Contains(nameLower, lower) {
			// Prefer the longest matching name to keep "JAMA Ophthalmology"
			// from resolving to the bare "Ophthalmology" entry.
			if len(name) > bestLen {
				best = v
				bestLen = len(name)
				found = true
			}
		}
	}
	return best, found
}

// Display returns the impact factor formatted for the digest, or "N/A" when
// the journal has no entry.
func (f *ImpactFactors) Display(journal string) string {
	v, ok := f.Lookup(journal)
	if !ok {
		return UnknownImpactFactor
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
