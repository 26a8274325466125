package domain

// Field names used in ledger row images. The redis ledger stores slot rows
// as hashes with these fields and the change feed carries them verbatim.
const (
	FieldOwner         = "owner"
	FieldAdmin         = "admin"
	FieldVotingEnabled = "votingEnabled"

	// FlagSet is the stored value of a boolean field that is set. Absent
	// fields read as false.
	FlagSet = "1"
)

// SlotImage encodes a slot as a row image.
func SlotImage(slot CountrySlot) map[string]string {
	image := map[string]string{FieldOwner: slot.Owner}
	if slot.Admin {
		image[FieldAdmin] = FlagSet
	}
	if slot.VotingEnabled {
		image[FieldVotingEnabled] = FlagSet
	}
	return image
}

// SlotFromImage decodes a slot from a row image keyed by country code.
func SlotFromImage(countryCode string, image map[string]string) CountrySlot {
	return CountrySlot{
		CountryCode:   countryCode,
		Owner:         image[FieldOwner],
		Admin:         image[FieldAdmin] == FlagSet,
		VotingEnabled: image[FieldVotingEnabled] == FlagSet,
	}
}
