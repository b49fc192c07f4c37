package conf

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const exampleConfig = `
log_level = "debug"

[metrics]
listen = "127.0.0.1:9100"

[[relay]]
name = "edge"
listen = "0.0.0.0:8443"
upstream = "10.0.0.2:443"
accept_proxy = true
send_proxy = true
trusted_proxies = ["10.1.0.0/16", "192.168.1.1"]
buffer_size = 4096

[[relay]]
listen = "[::]:8080"
upstream = "[2001:db8::1]:80"
`

func TestDecode(t *testing.T) {
	t.Parallel()
	config, err := Decode(exampleConfig)
	require.NoError(t, err)
	require.Equal(t, "debug", config.LogLevel)
	require.Equal(t, "127.0.0.1:9100", config.Metrics.Listen)
	require.Len(t, config.Relays, 2)

	options, err := config.Options()
	require.NoError(t, err)
	require.Len(t, options, 2)

	edge := options[0]
	require.Equal(t, "edge", edge.Name)
	require.Equal(t, netip.MustParseAddrPort("0.0.0.0:8443"), edge.Listen)
	require.Equal(t, netip.MustParseAddrPort("10.0.0.2:443"), edge.Upstream)
	require.True(t, edge.AcceptProxy)
	require.True(t, edge.SendProxy)
	require.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.1.0.0/16"),
		netip.MustParsePrefix("192.168.1.1/32"),
	}, edge.TrustedProxies)
	require.Equal(t, 4096, edge.BufferSize)

	require.Equal(t, "relay-1", options[1].Name)
	require.Equal(t, netip.MustParseAddrPort("[2001:db8::1]:80"), options[1].Upstream)
	require.False(t, options[1].AcceptProxy)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	_, err := Decode(`
[[relay]]
listen = "127.0.0.1:1"
upstream = "127.0.0.1:2"
send_prxy = true
`)
	require.ErrorContains(t, err, "send_prxy")
}

func TestDecodeSyntaxError(t *testing.T) {
	t.Parallel()
	_, err := Decode(`[[relay]`)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	for _, testCase := range []struct {
		name   string
		config string
		err    string
	}{
		{"empty", ``, "no relay configured"},
		{"bad listen", `
[[relay]]
listen = "localhost:80"
upstream = "127.0.0.1:2"
`, "not an IP address: localhost"},
		{"bad port", `
[[relay]]
listen = "127.0.0.1:http"
upstream = "127.0.0.1:2"
`, "parse listen address: invalid address"},
		{"bad upstream", `
[[relay]]
listen = "127.0.0.1:1"
upstream = "127.0.0.1"
`, "parse upstream address"},
		{"port out of range", `
[[relay]]
listen = "127.0.0.1:1"
upstream = "127.0.0.1:65536"
`, "parse upstream address"},
		{"zero upstream port", `
[[relay]]
listen = "127.0.0.1:1"
upstream = "127.0.0.1:0"
`, "missing upstream address"},
		{"bad trusted proxy", `
[[relay]]
listen = "127.0.0.1:1"
upstream = "127.0.0.1:2"
accept_proxy = true
trusted_proxies = ["10.0.0.0/33"]
`, "parse trusted proxy"},
		{"trusted without accept", `
[[relay]]
listen = "127.0.0.1:1"
upstream = "127.0.0.1:2"
trusted_proxies = ["10.0.0.1"]
`, "trusted proxies require accept proxy"},
		{"deny without database", `
[[relay]]
listen = "127.0.0.1:1"
upstream = "127.0.0.1:2"
deny_countries = ["cn"]
`, "GeoIP database"},
		{"buffer too large", `
[[relay]]
listen = "127.0.0.1:1"
upstream = "127.0.0.1:2"
buffer_size = 1048576
`, "invalid buffer size"},
		{"duplicate name", `
[[relay]]
name = "a"
listen = "127.0.0.1:1"
upstream = "127.0.0.1:2"

[[relay]]
name = "a"
listen = "127.0.0.1:3"
upstream = "127.0.0.1:2"
`, "duplicate relay name: a"},
	} {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			config, err := Decode(testCase.config)
			require.NoError(t, err)
			require.ErrorContains(t, config.Validate(), testCase.err)
		})
	}
}

func TestBuildNormalizesCountries(t *testing.T) {
	t.Parallel()
	options, err := RelayConfig{
		Listen:        "127.0.0.1:1",
		Upstream:      "127.0.0.1:2",
		GeoIPDatabase: "/nonexistent.mmdb",
		DenyCountries: []string{" cn", "ru "},
	}.Build()
	require.NoError(t, err)
	require.Equal(t, []string{"CN", "RU"}, options.DenyCountries)
}

func TestBuildUnwrapsMappedAddresses(t *testing.T) {
	t.Parallel()
	options, err := RelayConfig{
		Listen:   "[::]:8080",
		Upstream: "[::ffff:10.0.0.2]:80",
	}.Build()
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddrPort("[::]:8080"), options.Listen)
	require.Equal(t, netip.MustParseAddrPort("10.0.0.2:80"), options.Upstream)
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0o600))
	config, err := Load(path)
	require.NoError(t, err)
	require.Len(t, config.Relays, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorContains(t, err, "read config file")
}
