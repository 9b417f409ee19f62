package customerms

// Singapore city center, used when a postal code is not in the lookup table.
const (
	defaultLatitude  = 1.3521
	defaultLongitude = 103.8198
)

// postalCoords maps known postal codes to coordinates. A stand-in for a real
// geocoding provider; unknown codes fall back to the city center so a record
// always carries usable coordinates.
var postalCoords = map[string][2]float64{
	// Central
	"238123": {1.3048, 103.8198}, // Orchard
	"179103": {1.2966, 103.8520}, // Marina Bay
	// East
	"560123": {1.3701, 103.8454}, // Ang Mo Kio
	"520123": {1.3521, 103.9448}, // Tampines
	// West
	"259012": {1.3387, 103.7890}, // Bukit Timah
	"640123": {1.3329, 103.7436}, // Jurong
	// North
	"730123": {1.4491, 103.8198}, // Yishun
	"760123": {1.4304, 103.8318}, // Woodlands
}

// Geocode resolves a postal code to latitude and longitude.
func Geocode(postalCode string) (float64, float64) {
	if c, ok := postalCoords[postalCode]; ok {
		return c[0], c[1]
	}
	return defaultLatitude, defaultLongitude
}
