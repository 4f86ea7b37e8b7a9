package geo

import (
	"errors"
	"fmt"

	"github.com/biter777/countries"
	"github.com/hervehildenbrand/attack-radar/pkg/models"
)

// ErrTooFewLocations is returned when a catalog cannot yield two distinct
// locations. The generator's source/target rejection loop would never end.
var ErrTooFewLocations = errors.New("catalog needs at least 2 locations")

// Location is a named point with a positive sampling weight.
type Location struct {
	Name    string
	Lat     float64
	Lon     float64
	Weight  float64
	Country countries.CountryCode
}

// Point returns a snapshot of the location for embedding in an event.
func (l Location) Point() models.GeoPoint {
	p := models.GeoPoint{Name: l.Name, Lat: l.Lat, Lon: l.Lon}
	if l.Country != countries.Unknown {
		p.Country = l.Country.Alpha2()
	}
	return p
}

// CyberHubs is the built-in catalog of attack sources and targets.
// Weights bias how often a hub shows up; they are not normalized.
var CyberHubs = []Location{
	{Name: "Washington D.C.", Lat: 38.9072, Lon: -77.0369, Weight: 15, Country: countries.US},
	{Name: "New York", Lat: 40.7128, Lon: -74.006, Weight: 12, Country: countries.US},
	{Name: "San Francisco", Lat: 37.7749, Lon: -122.4194, Weight: 10, Country: countries.US},
	{Name: "London", Lat: 51.5074, Lon: -0.1278, Weight: 12, Country: countries.GB},
	{Name: "Berlin", Lat: 52.52, Lon: 13.405, Weight: 8, Country: countries.DE},
	{Name: "Paris", Lat: 48.8566, Lon: 2.3522, Weight: 8, Country: countries.FR},
	{Name: "Moscow", Lat: 55.7558, Lon: 37.6173, Weight: 14, Country: countries.RU},
	{Name: "Beijing", Lat: 39.9042, Lon: 116.4074, Weight: 15, Country: countries.CN},
	{Name: "Shanghai", Lat: 31.2304, Lon: 121.4737, Weight: 10, Country: countries.CN},
	{Name: "Tokyo", Lat: 35.6762, Lon: 139.6503, Weight: 10, Country: countries.JP},
	{Name: "Seoul", Lat: 37.5665, Lon: 126.978, Weight: 8, Country: countries.KR},
	{Name: "Mumbai", Lat: 19.076, Lon: 72.8777, Weight: 10, Country: countries.IN},
	{Name: "Tel Aviv", Lat: 32.0853, Lon: 34.7818, Weight: 8, Country: countries.IL},
	{Name: "São Paulo", Lat: -23.5505, Lon: -46.6333, Weight: 6, Country: countries.BR},
	{Name: "Singapore", Lat: 1.3521, Lon: 103.8198, Weight: 8, Country: countries.SG},
	{Name: "Sydney", Lat: -33.8688, Lon: 151.2093, Weight: 5, Country: countries.AU},
	{Name: "Dubai", Lat: 25.2048, Lon: 55.2708, Weight: 5, Country: countries.AE},
	{Name: "Taipei", Lat: 25.033, Lon: 121.5654, Weight: 7, Country: countries.TW},
	{Name: "Stockholm", Lat: 59.3293, Lon: 18.0686, Weight: 4, Country: countries.SE},
	{Name: "Amsterdam", Lat: 52.3676, Lon: 4.9041, Weight: 6, Country: countries.NL},
}

// Catalog is an immutable weighted set of locations.
type Catalog struct {
	locations   []Location
	totalWeight float64
}

var defaultCatalog *Catalog

func init() {
	c, err := NewCatalog(CyberHubs)
	if err != nil {
		panic(fmt.Sprintf("geo: built-in catalog is invalid: %v", err))
	}
	defaultCatalog = c
}

// Default returns the built-in catalog.
func Default() *Catalog { return defaultCatalog }

// NewCatalog validates locations and returns a catalog over a private copy.
func NewCatalog(locations []Location) (*Catalog, error) {
	if len(locations) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewLocations, len(locations))
	}

	seen := make(map[string]bool, len(locations))
	var total float64
	for _, l := range locations {
		if l.Name == "" {
			return nil, errors.New("location with empty name")
		}
		if seen[l.Name] {
			return nil, fmt.Errorf("duplicate location %q", l.Name)
		}
		seen[l.Name] = true
		if !(l.Weight > 0) {
			return nil, fmt.Errorf("location %q: weight must be positive, got %v", l.Name, l.Weight)
		}
		if l.Lat < -90 || l.Lat > 90 {
			return nil, fmt.Errorf("location %q: latitude %v out of range", l.Name, l.Lat)
		}
		if l.Lon < -180 || l.Lon > 180 {
			return nil, fmt.Errorf("location %q: longitude %v out of range", l.Name, l.Lon)
		}
		total += l.Weight
	}

	return &Catalog{
		locations:   append([]Location(nil), locations...),
		totalWeight: total,
	}, nil
}

// PickWeighted returns a location chosen with probability weight/total.
func (c *Catalog) PickWeighted(rng Rand) Location {
	return Pick(rng, c.locations, func(l Location) float64 { return l.Weight })
}

// Len returns the number of locations.
func (c *Catalog) Len() int { return len(c.locations) }

// TotalWeight returns the sum of all weights.
func (c *Catalog) TotalWeight() float64 { return c.totalWeight }

// Locations returns a copy of the table in sampling order.
func (c *Catalog) Locations() []Location {
	return append([]Location(nil), c.locations...)
}
