package relay

import (
	"net"
	"net/netip"
	"strings"

	E "github.com/sagernet/sing-relay/common/exceptions"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oschwald/geoip2-golang"
)

const countryCacheSize = 4096

// CountryLookup resolves the ISO country code of an address.
type CountryLookup func(addr netip.Addr) (string, error)

// AccessControl decides which peers may use a relay: only trusted proxies
// may connect when PROXY lines are expected, and clients from denied
// countries are dropped once their real address is known.
type AccessControl struct {
	trusted []netip.Prefix
	deny    map[string]struct{}
	lookup  CountryLookup
	cache   *lru.Cache[netip.Addr, string]
	reader  *geoip2.Reader
}

func NewAccessControl(options Options) (*AccessControl, error) {
	access := &AccessControl{
		trusted: options.TrustedProxies,
	}
	if len(options.DenyCountries) == 0 {
		return access, nil
	}
	reader, err := geoip2.Open(options.GeoIPDatabase)
	if err != nil {
		return nil, E.Cause(err, "open GeoIP database")
	}
	access.reader = reader
	err = access.setDenyList(options.DenyCountries, func(addr netip.Addr) (string, error) {
		country, err := reader.Country(net.IP(addr.AsSlice()))
		if err != nil {
			return "", err
		}
		return country.Country.IsoCode, nil
	})
	if err != nil {
		reader.Close()
		return nil, err
	}
	return access, nil
}

func (a *AccessControl) setDenyList(countries []string, lookup CountryLookup) error {
	cache, err := lru.New[netip.Addr, string](countryCacheSize)
	if err != nil {
		return err
	}
	a.deny = make(map[string]struct{}, len(countries))
	for _, country := range countries {
		a.deny[strings.ToUpper(country)] = struct{}{}
	}
	a.lookup = lookup
	a.cache = cache
	return nil
}

// Trusted reports whether peer may send a PROXY line.
func (a *AccessControl) Trusted(peer netip.Addr) bool {
	if len(a.trusted) == 0 {
		return true
	}
	peer = peer.Unmap()
	for _, prefix := range a.trusted {
		if prefix.Contains(peer) {
			return true
		}
	}
	return false
}

// Allowed reports whether client passes the country deny list, along with
// the country it resolved to. Addresses that cannot be resolved are allowed.
func (a *AccessControl) Allowed(client netip.Addr) (string, bool) {
	if a.lookup == nil || !client.IsValid() {
		return "", true
	}
	client = client.Unmap()
	country, cached := a.cache.Get(client)
	if !cached {
		var err error
		country, err = a.lookup(client)
		if err != nil {
			return "", true
		}
		a.cache.Add(client, country)
	}
	_, denied := a.deny[strings.ToUpper(country)]
	return country, !denied
}

func (a *AccessControl) Close() error {
	if a.reader == nil {
		return nil
	}
	return a.reader.Close()
}
