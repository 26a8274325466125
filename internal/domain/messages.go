package domain

// Outbound event tags. Every broadcast payload carries exactly one of these
// in its "event" field.
const (
	EventNoCountries         = "noCountries"
	EventCountry             = "country"
	EventAllCountries        = "allCountries"
	EventPerformedCountries  = "performedCountries"
	EventScores              = "scores"
	EventVotingEnabled       = "votingEnabled"
	EventMadeAdmin           = "madeAdmin"
	EventPerformingCountries = "performingCountries"
	EventVotingPanels        = "votingPanels"
)

// Inbound action tags.
const (
	ActionInit               = "init"
	ActionRefresh            = "refresh"
	ActionVote               = "vote"
	ActionMakeAdmin          = "makeAdmin"
	ActionEnableVoting       = "enableVoting"
	ActionCountryPerformance = "countryPerformance"
)

// Message is an outbound broadcast payload. Only the fields relevant to the
// tagged event are populated; the rest are omitted from the wire format.
type Message struct {
	Event               string            `json:"event"`
	Country             string            `json:"country,omitempty"`
	Countries           map[string]string `json:"countries,omitempty"`
	PerformedCountries  []string          `json:"performedCountries,omitempty"`
	Scores              map[string]int    `json:"scores,omitempty"`
	PerformingCountries []string          `json:"performingCountries,omitempty"`
	VotingPanels        []string          `json:"votingPanels,omitempty"`
}

// Inbound is a viewer request received over the transport. Connect and
// disconnect are transport-level and never appear here.
type Inbound struct {
	Action  string         `json:"action"`
	Country string         `json:"country,omitempty"`
	Scores  map[string]int `json:"scores,omitempty"`
}

func NoCountriesMessage() Message {
	return Message{Event: EventNoCountries}
}

func CountryMessage(countryCode string) Message {
	return Message{Event: EventCountry, Country: countryCode}
}

func AllCountriesMessage(countries map[string]string) Message {
	return Message{Event: EventAllCountries, Countries: countries}
}

func PerformedCountriesMessage(countryCodes []string) Message {
	return Message{Event: EventPerformedCountries, PerformedCountries: countryCodes}
}

func ScoresMessage(totals map[string]int) Message {
	return Message{Event: EventScores, Scores: totals}
}

func VotingEnabledMessage() Message {
	return Message{Event: EventVotingEnabled}
}

func MadeAdminMessage() Message {
	return Message{Event: EventMadeAdmin}
}

func PerformingCountriesMessage(countryCodes []string) Message {
	return Message{Event: EventPerformingCountries, PerformingCountries: countryCodes}
}

func VotingPanelsMessage(countryCodes []string) Message {
	return Message{Event: EventVotingPanels, VotingPanels: countryCodes}
}
