package conf

import (
	"net/netip"
	"os"
	"strconv"
	"strings"

	E "github.com/sagernet/sing-relay/common/exceptions"
	M "github.com/sagernet/sing-relay/common/metadata"
	"github.com/sagernet/sing-relay/transport/relay"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LogLevel string        `toml:"log_level"`
	Metrics  MetricsConfig `toml:"metrics"`
	Relays   []RelayConfig `toml:"relay"`
}

type MetricsConfig struct {
	Listen string `toml:"listen"`
	Path   string `toml:"path"`
}

type RelayConfig struct {
	Name           string   `toml:"name"`
	Listen         string   `toml:"listen"`
	Upstream       string   `toml:"upstream"`
	AcceptProxy    bool     `toml:"accept_proxy"`
	SendProxy      bool     `toml:"send_proxy"`
	TrustedProxies []string `toml:"trusted_proxies"`
	GeoIPDatabase  string   `toml:"geoip_database"`
	DenyCountries  []string `toml:"deny_countries"`
	BufferSize     int      `toml:"buffer_size"`
}

func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, E.Cause(err, "read config file")
	}
	config, err := Decode(string(content))
	if err != nil {
		return nil, E.Cause(err, path)
	}
	return config, nil
}

// Decode parses a TOML document. Unknown keys are rejected.
func Decode(content string) (*Config, error) {
	var config Config
	metadata, err := toml.Decode(content, &config)
	if err != nil {
		return nil, E.Cause(err, "decode config")
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, E.New("unknown config keys: ", strings.Join(keys, ", "))
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if len(c.Relays) == 0 {
		return E.New("no relay configured")
	}
	names := make(map[string]bool)
	for i := range c.Relays {
		name := c.Relays[i].name(i)
		if names[name] {
			return E.New("duplicate relay name: ", name)
		}
		names[name] = true
		_, err := c.Relays[i].Build()
		if err != nil {
			return E.Cause(err, "relay ", name)
		}
	}
	return nil
}

// Options builds the options of every relay, naming unnamed ones by index.
func (c *Config) Options() ([]relay.Options, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}
	options := make([]relay.Options, 0, len(c.Relays))
	for i := range c.Relays {
		relayOptions, _ := c.Relays[i].Build()
		relayOptions.Name = c.Relays[i].name(i)
		options = append(options, relayOptions)
	}
	return options, nil
}

func (c RelayConfig) name(index int) string {
	if c.Name != "" {
		return c.Name
	}
	if index == 0 {
		return "relay"
	}
	return "relay-" + strconv.Itoa(index)
}

func (c RelayConfig) Build() (relay.Options, error) {
	options := relay.Options{
		Name:          c.Name,
		AcceptProxy:   c.AcceptProxy,
		SendProxy:     c.SendProxy,
		GeoIPDatabase: c.GeoIPDatabase,
		BufferSize:    c.BufferSize,
	}
	var err error
	options.Listen, err = parseAddrPort(c.Listen)
	if err != nil {
		return relay.Options{}, E.Cause(err, "parse listen address")
	}
	options.Upstream, err = parseAddrPort(c.Upstream)
	if err != nil {
		return relay.Options{}, E.Cause(err, "parse upstream address")
	}
	for _, trusted := range c.TrustedProxies {
		prefix, err := parsePrefix(trusted)
		if err != nil {
			return relay.Options{}, E.Cause(err, "parse trusted proxy")
		}
		options.TrustedProxies = append(options.TrustedProxies, prefix)
	}
	for _, country := range c.DenyCountries {
		options.DenyCountries = append(options.DenyCountries, strings.ToUpper(strings.TrimSpace(country)))
	}
	err = options.Validate()
	if err != nil {
		return relay.Options{}, err
	}
	return options, nil
}

// parseAddrPort accepts host:port where host is an IP literal.
func parseAddrPort(value string) (netip.AddrPort, error) {
	addr := M.ParseSocksaddr(value)
	if !addr.IsValid() {
		return netip.AddrPort{}, E.New("invalid address: ", value)
	}
	if addr.IsFqdn() {
		return netip.AddrPort{}, E.New("not an IP address: ", addr.Fqdn)
	}
	return addr.AddrPort(), nil
}

// parsePrefix accepts a CIDR or a bare address.
func parsePrefix(value string) (netip.Prefix, error) {
	if strings.Contains(value, "/") {
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
