package enrichment

import (
	"net"

	geoip2 "github.com/oschwald/geoip2-golang"
)

// StubLocation is what StubLocator reports for every known client address.
const StubLocation = "Your Location"

// Locator resolves a client IP to a display location. An empty result means unknown.
type Locator interface {
	Locate(ip string) string
}

// StubLocator reports StubLocation whenever an IP is present.
type StubLocator struct{}

func (StubLocator) Locate(ip string) string {
	if ip == "" {
		return ""
	}
	return StubLocation
}

// GeoIPLocator resolves IPs to ISO country codes from a MaxMind database.
type GeoIPLocator struct {
	db *geoip2.Reader
}

// NewGeoIPLocator opens the GeoIP2/GeoLite2 database at dbPath.
func NewGeoIPLocator(dbPath string) (*GeoIPLocator, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &GeoIPLocator{db: db}, nil
}

func (g *GeoIPLocator) Close() error {
	return g.db.Close()
}

// Locate returns "" for unparsable or private addresses and lookup failures.
func (g *GeoIPLocator) Locate(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	record, err := g.db.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}
