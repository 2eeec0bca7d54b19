package world

// Biome classifies a site from its elevation and moisture.
type Biome uint8

const (
	BiomeOcean    Biome = iota // Below sea level
	BiomeBeach                 // Thin band just above sea level
	BiomePlains                // Moderate moisture lowland
	BiomeForest                // Wet upland
	BiomeMountain              // Above the mountain line
	BiomeDesert                // Dry lowland
	BiomeSwamp                 // Waterlogged lowland
	BiomeTundra                // Dry highland below the mountain line
)

// beachBand is how far above sea level a site still counts as beach.
const beachBand = 0.03

var biomeNames = [...]string{
	BiomeOcean:    "ocean",
	BiomeBeach:    "beach",
	BiomePlains:   "plains",
	BiomeForest:   "forest",
	BiomeMountain: "mountain",
	BiomeDesert:   "desert",
	BiomeSwamp:    "swamp",
	BiomeTundra:   "tundra",
}

// String returns the lower-case biome name.
func (b Biome) String() string {
	if int(b) < len(biomeNames) {
		return biomeNames[b]
	}
	return "unknown"
}

func (b Biome) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Classify derives the biome from clamped elevation and moisture, using the
// sea and mountain thresholds of cfg.
func Classify(elev, moist float64, cfg GenConfig) Biome {
	if elev < cfg.SeaLevel {
		return BiomeOcean
	}
	if elev < cfg.SeaLevel+beachBand {
		return BiomeBeach
	}
	if elev > cfg.MountainLevel {
		return BiomeMountain
	}
	if elev > cfg.MountainLevel-0.12 && moist < 0.3 {
		return BiomeTundra
	}
	if moist < 0.25 {
		return BiomeDesert
	}
	if moist > 0.7 && elev < 0.45 {
		return BiomeSwamp
	}
	if moist > 0.45 && elev > 0.45 {
		return BiomeForest
	}
	return BiomePlains
}

// BiomeCounts returns how many sites fall in each biome.
func BiomeCounts(m *Map) map[Biome]int {
	counts := make(map[Biome]int)
	for _, s := range m.Sites {
		counts[s.Biome]++
	}
	return counts
}
