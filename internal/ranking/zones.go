// Package ranking talks to the external performance-ranking service:
// duty-to-zone mapping, OAuth2 credentials, rate budgeting, and batched
// character lookups.
package ranking

// Difficulty identifiers used by the ranking service.
const (
	DifficultyNormal = 100
	DifficultySavage = 101
)

// Encounter is the ranking service's identifier for a duty: the zone (raid
// tier) plus the individual boss within it. SecondaryEncounterID is set for
// fights the service splits into two logged encounters.
type Encounter struct {
	ZoneID               uint32
	EncounterID          uint32
	SecondaryEncounterID uint32
	Difficulty           uint32
	Partition            uint32
	Name                 string
}

func savage(zone, enc uint32, name string) Encounter {
	return Encounter{ZoneID: zone, EncounterID: enc, Difficulty: DifficultySavage, Partition: 1, Name: name}
}

func savageSplit(zone, enc, secondary uint32, name string) Encounter {
	e := savage(zone, enc, name)
	e.SecondaryEncounterID = secondary
	return e
}

func ultimate(zone, enc uint32, name string) Encounter {
	return Encounter{ZoneID: zone, EncounterID: enc, Difficulty: DifficultyNormal, Partition: 1, Name: name}
}

func extreme(zone, enc uint32, name string) Encounter {
	return Encounter{ZoneID: zone, EncounterID: enc, Difficulty: DifficultyNormal, Partition: 1, Name: name}
}

// dutyEncounters maps in-game duty ids to ranking-service encounters.
// Only high-end content (Savage, Ultimate, Extreme) is ranked; everything
// else is intentionally absent.
var dutyEncounters = map[int]Encounter{
	// AAC Heavyweight tier (Savage), zone 73
	1069: savage(73, 101, "AAC Heavyweight M1 (Savage)"),
	1071: savage(73, 102, "AAC Heavyweight M2 (Savage)"),
	1073: savage(73, 103, "AAC Heavyweight M3 (Savage)"),
	1075: savageSplit(73, 104, 105, "AAC Heavyweight M4 (Savage)"),

	// Extreme trials, zone 72
	1077: extreme(72, 1083, "Hell on Rails (Extreme)"),

	// Ultimates, legacy zone 59 plus zone 65
	280:  ultimate(59, 1073, "The Unending Coil of Bahamut (Ultimate)"),
	539:  ultimate(59, 1074, "The Weapon's Refrain (Ultimate)"),
	694:  ultimate(59, 1075, "The Epic of Alexander (Ultimate)"),
	788:  ultimate(59, 1076, "Dragonsong's Reprise (Ultimate)"),
	908:  ultimate(59, 1077, "The Omega Protocol (Ultimate)"),
	1006: ultimate(65, 1079, "Futures Rewritten (Ultimate)"),
}

// MapDuty translates an in-game duty id into the ranking service's
// encounter. ok is false for duties the service does not rank; callers
// skip parse resolution for those listings rather than treating it as an
// error.
func MapDuty(dutyID int) (Encounter, bool) {
	enc, ok := dutyEncounters[dutyID]
	return enc, ok
}

// Supported reports whether a duty has a ranking-service mapping.
func Supported(dutyID int) bool {
	_, ok := dutyEncounters[dutyID]
	return ok
}
