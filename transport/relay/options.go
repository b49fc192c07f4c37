package relay

import (
	"net/netip"

	E "github.com/sagernet/sing-relay/common/exceptions"
)

const (
	DefaultBufferSize = 16 * 1024
	MaxBufferSize     = 64 * 1024
)

type Options struct {
	Name     string
	Listen   netip.AddrPort
	Upstream netip.AddrPort
	// AcceptProxy expects every client to start with a PROXY line.
	AcceptProxy bool
	// SendProxy announces the client addresses to the upstream.
	SendProxy bool
	// TrustedProxies restricts who may send a PROXY line. Empty trusts
	// every peer.
	TrustedProxies []netip.Prefix
	GeoIPDatabase  string
	DenyCountries  []string
	BufferSize     int
}

func (o Options) Validate() error {
	if !o.Listen.IsValid() {
		return E.New("missing listen address")
	}
	if !o.Upstream.IsValid() || o.Upstream.Port() == 0 {
		return E.New("missing upstream address")
	}
	if len(o.DenyCountries) > 0 && o.GeoIPDatabase == "" {
		return E.New("deny countries requires a GeoIP database")
	}
	if len(o.TrustedProxies) > 0 && !o.AcceptProxy {
		return E.New("trusted proxies require accept proxy")
	}
	if o.BufferSize < 0 || o.BufferSize > MaxBufferSize {
		return E.New("invalid buffer size ", o.BufferSize)
	}
	return nil
}

func (o Options) bufferSize() int {
	if o.BufferSize == 0 {
		return DefaultBufferSize
	}
	return o.BufferSize
}
