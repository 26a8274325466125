package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountriesReturnsACopy(t *testing.T) {
	first := Countries()
	first["zz"] = "Nowhere"

	second := Countries()
	assert.NotContains(t, second, "zz")
}

func TestCountryCodesMatchTable(t *testing.T) {
	codes := CountryCodes()
	table := Countries()

	require.Len(t, codes, len(table))
	for _, code := range codes {
		assert.Contains(t, table, code)
	}
}

func TestIsCountry(t *testing.T) {
	assert.True(t, IsCountry("se"))
	assert.True(t, IsCountry("fr"))
	assert.False(t, IsCountry("zz"))
	assert.False(t, IsCountry(""))
	assert.False(t, IsCountry("SE"))
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "Sweden", CountryName("se"))
	assert.Equal(t, "", CountryName("zz"))
}

func TestPerformerRosterIsKnownCountries(t *testing.T) {
	roster := PerformerRoster()
	require.NotEmpty(t, roster)

	seen := make(map[string]struct{})
	for _, code := range roster {
		assert.True(t, IsCountry(code), "roster entry %q must be in the country table", code)
		_, dup := seen[code]
		assert.False(t, dup, "roster entry %q appears twice", code)
		seen[code] = struct{}{}
	}
}
