package game

type AbilityID string

const (
	AbilityScorchedExplosion       AbilityID = "ScorchedExplosion"
	AbilityPlagueMassHeal          AbilityID = "PlagueMassHeal"
	AbilityRedShoesBerserk         AbilityID = "RedShoesBerserk"
	AbilityFragmentOfUniverseNova  AbilityID = "FragmentOfUniverseNova"
	AbilityFairyFestivalBlessing   AbilityID = "FairyFestivalBlessing"
	AbilityUnknownDistortionStrike AbilityID = "UnknownDistortionStrike"
)

// BuffID is the 64-bit FNV-1a hash of a buff name.
type BuffID uint64

func BuffIDFromName(name string) BuffID {
	const (
		offsetBasis uint64 = 14695981039346656037
		prime       uint64 = 1099511628211
	)
	h := offsetBasis
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= prime
	}
	return BuffID(h)
}
