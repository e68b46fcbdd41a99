package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retinalab/citation-alert-service/internal/domain"
)

func TestMeSHQueryDefaults(t *testing.T) {
	m := NewMeSHQueries(nil)

	q, err := m.Query("glaucoma")
	require.NoError(t, err)
	assert.Equal(t, `"Glaucoma"[Mesh]`, q)

	// Keywords are matched case-insensitively with surrounding space ignored.
	q, err = m.Query("  Glaucoma ")
	require.NoError(t, err)
	assert.Equal(t, `"Glaucoma"[Mesh]`, q)
}

func TestMeSHQueryUnknownKeyword(t *testing.T) {
	m := NewMeSHQueries(nil)

	_, err := m.Query("astrophysics")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "astrophysics")
}

func TestMeSHQueryOverrides(t *testing.T) {
	m := NewMeSHQueries(map[string]string{
		"Glaucoma":     `"Glaucoma, Open-Angle"[Mesh]`,
		"dry eye":      `"Dry Eye Syndromes"[Mesh]`,
		"  ":           `ignored`,
		"blank-target": "  ",
	})

	q, err := m.Query("glaucoma")
	require.NoError(t, err)
	assert.Equal(t, `"Glaucoma, Open-Angle"[Mesh]`, q)

	q, err = m.Query("dry eye")
	require.NoError(t, err)
	assert.Equal(t, `"Dry Eye Syndromes"[Mesh]`, q)

	_, err = m.Query("blank-target")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Contains(t, m.Keywords(), "dry eye")
}

func TestImpactFactorExactMatch(t *testing.T) {
	f := NewImpactFactors(nil)

	v, ok := f.Lookup("Ophthalmology")
	require.True(t, ok)
	assert.InDelta(t, 13.2, v, 0.001)
}

func TestImpactFactorSubstringMatch(t *testing.T) {
	f := NewImpactFactors(nil)

	// Table name contained in the reported name.
	v, ok := f.Lookup("Retina (Philadelphia, Pa.)")
	require.True(t, ok)
	assert.InDelta(t, 3.3, v, 0.001)

	// Reported name contained in the table name, case-insensitively.
	v, ok = f.Lookup("investigative ophthalmology")
	require.True(t, ok)
	assert.InDelta(t, 5.0, v, 0.001)
}

func TestImpactFactorPrefersLongestMatch(t *testing.T) {
	f := NewImpactFactors(nil)

	// Case variant skips the exact match and falls through to the substring
	// path, which must pick the longer "JAMA Ophthalmology" entry over the
	// bare "Ophthalmology" one.
	v, ok := f.Lookup("JAMA ophthalmology")
	require.True(t, ok)
	assert.InDelta(t, 7.8, v, 0.001)
}

func TestImpactFactorMiss(t *testing.T) {
	f := NewImpactFactors(nil)

	_, ok := f.Lookup("Journal of Irreproducible Results")
	assert.False(t, ok)

	_, ok = f.Lookup("")
	assert.False(t, ok)

	assert.Equal(t, "N/A", f.Display("Journal of Irreproducible Results"))
	assert.Equal(t, "13.2", f.Display("Ophthalmology"))
}

func TestImpactFactorOverrides(t *testing.T) {
	f := NewImpactFactors(map[string]float64{
		"Ophthalmology":   14.1,
		"Niche Eye Annal": 1.5,
	})

	v, ok := f.Lookup("Ophthalmology")
	require.True(t, ok)
	assert.InDelta(t, 14.1, v, 0.001)

	assert.Equal(t, "1.5", f.Display("Niche Eye Annal"))
}
