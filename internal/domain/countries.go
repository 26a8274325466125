package domain

// Static country data for the session. Loaded once per process as immutable
// configuration; callers receive copies so nothing here can be mutated.

var countryNames = map[string]string{
	"al": "Albania",
	"am": "Armenia",
	"at": "Austria",
	"au": "Australia",
	"az": "Azerbaijan",
	"be": "Belgium",
	"ch": "Switzerland",
	"cy": "Cyprus",
	"cz": "Czechia",
	"de": "Germany",
	"dk": "Denmark",
	"ee": "Estonia",
	"es": "Spain",
	"fi": "Finland",
	"fr": "France",
	"gb": "United Kingdom",
	"ge": "Georgia",
	"gr": "Greece",
	"hr": "Croatia",
	"ie": "Ireland",
	"il": "Israel",
	"is": "Iceland",
	"it": "Italy",
	"lt": "Lithuania",
	"lu": "Luxembourg",
	"lv": "Latvia",
	"md": "Moldova",
	"mt": "Malta",
	"nl": "Netherlands",
	"no": "Norway",
	"pl": "Poland",
	"pt": "Portugal",
	"rs": "Serbia",
	"se": "Sweden",
	"si": "Slovenia",
	"sm": "San Marino",
	"ua": "Ukraine",
}

// performerRoster is the fixed running order of countries performing in the
// show. A subset of the full table, in broadcast order.
var performerRoster = []string{
	"se", "ua", "de", "lu", "nl", "il", "lt", "es", "ie", "lv",
	"gr", "gb", "no", "it", "rs", "fi", "pt", "am", "cy", "ch",
	"si", "hr", "ge", "fr", "at", "ee",
}

// Countries returns the full country-name table keyed by country code.
func Countries() map[string]string {
	table := make(map[string]string, len(countryNames))
	for code, name := range countryNames {
		table[code] = name
	}
	return table
}

// CountryCodes returns every claimable country code. Order is unspecified;
// the allocator shuffles its own copy.
func CountryCodes() []string {
	codes := make([]string, 0, len(countryNames))
	for code := range countryNames {
		codes = append(codes, code)
	}
	return codes
}

// CountryName resolves a code to its display name. Unknown codes resolve to
// the empty string.
func CountryName(code string) string {
	return countryNames[code]
}

// IsCountry reports whether code is part of the static country table.
func IsCountry(code string) bool {
	_, ok := countryNames[code]
	return ok
}

// PerformerRoster returns the fixed running order of performing countries.
func PerformerRoster() []string {
	roster := make([]string, len(performerRoster))
	copy(roster, performerRoster)
	return roster
}
