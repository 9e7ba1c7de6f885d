package ranking

import "strings"

// Home world to region slug, as the ranking service expects in character
// queries. Grouped by data center.
var worldRegions = map[string]string{
	// Elemental
	"aegis": "JP", "atomos": "JP", "carbuncle": "JP", "garuda": "JP",
	"gungnir": "JP", "kujata": "JP", "tonberry": "JP", "typhon": "JP",
	// Gaia
	"alexander": "JP", "bahamut": "JP", "durandal": "JP", "fenrir": "JP",
	"ifrit": "JP", "ridill": "JP", "tiamat": "JP", "ultima": "JP",
	// Mana
	"anima": "JP", "asura": "JP", "chocobo": "JP", "hades": "JP",
	"ixion": "JP", "masamune": "JP", "pandaemonium": "JP", "titan": "JP",
	// Meteor
	"belias": "JP", "mandragora": "JP", "ramuh": "JP", "shinryu": "JP",
	"unicorn": "JP", "valefor": "JP", "yojimbo": "JP", "zeromus": "JP",

	// Aether
	"adamantoise": "NA", "cactuar": "NA", "faerie": "NA", "gilgamesh": "NA",
	"jenova": "NA", "midgardsormr": "NA", "sargatanas": "NA", "siren": "NA",
	// Primal
	"behemoth": "NA", "excalibur": "NA", "exodus": "NA", "famfrit": "NA",
	"hyperion": "NA", "lamia": "NA", "leviathan": "NA", "ultros": "NA",
	// Crystal
	"balmung": "NA", "brynhildr": "NA", "coeurl": "NA", "diabolos": "NA",
	"goblin": "NA", "malboro": "NA", "mateus": "NA", "zalera": "NA",
	// Dynamis
	"halicarnassus": "NA", "maduin": "NA", "marilith": "NA", "seraph": "NA",
	"cuchulainn": "NA", "golem": "NA", "kraken": "NA", "rafflesia": "NA",

	// Chaos
	"cerberus": "EU", "louisoix": "EU", "moogle": "EU", "omega": "EU",
	"phantom": "EU", "ragnarok": "EU", "sagittarius": "EU", "spriggan": "EU",
	// Light
	"alpha": "EU", "lich": "EU", "odin": "EU", "phoenix": "EU",
	"raiden": "EU", "shiva": "EU", "twintania": "EU", "zodiark": "EU",

	// Materia
	"bismarck": "OC", "ravana": "OC", "sephirot": "OC", "sophia": "OC", "zurvan": "OC",
}

// RegionForWorld returns the ranking-service region slug for a home world.
// Unknown worlds fall back to NA, the service's largest region.
func RegionForWorld(world string) string {
	if region, ok := worldRegions[strings.ToLower(strings.TrimSpace(world))]; ok {
		return region
	}
	return "NA"
}
