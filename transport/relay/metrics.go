package relay

import (
	"github.com/sagernet/sing-relay/connection"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	directionUpload   = "upload"
	directionDownload = "download"

	rejectUntrustedProxy = "untrusted_proxy"
	rejectCountry        = "country"
	rejectUpstream       = "upstream"
)

type Metrics struct {
	sessions          *prometheus.CounterVec
	activeSessions    *prometheus.GaugeVec
	handshakeFailures *prometheus.CounterVec
	rejected          *prometheus.CounterVec
	bytes             *prometheus.CounterVec
}

// NewMetrics creates the relay collectors and registers them with
// registerer unless it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sing_relay_sessions_total",
			Help: "Total number of relayed sessions",
		}, []string{"relay"}),
		activeSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sing_relay_active_sessions",
			Help: "Number of sessions currently relayed",
		}, []string{"relay"}),
		handshakeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sing_relay_handshake_failures_total",
			Help: "Total number of connections closed during a handshake",
		}, []string{"relay", "reason"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sing_relay_rejected_total",
			Help: "Total number of connections refused by access control or upstream",
		}, []string{"relay", "reason"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sing_relay_bytes_total",
			Help: "Total number of bytes relayed",
		}, []string{"relay", "direction"}),
	}
	if registerer != nil {
		registerer.MustRegister(
			metrics.sessions,
			metrics.activeSessions,
			metrics.handshakeFailures,
			metrics.rejected,
			metrics.bytes,
		)
	}
	return metrics
}

func (m *Metrics) sessionOpened(relay string) {
	m.sessions.WithLabelValues(relay).Inc()
	m.activeSessions.WithLabelValues(relay).Inc()
}

func (m *Metrics) sessionClosed(relay string) {
	m.activeSessions.WithLabelValues(relay).Dec()
}

func (m *Metrics) handshakeFailed(relay string, code connection.ErrorCode) {
	m.handshakeFailures.WithLabelValues(relay, failureReason(code)).Inc()
}

func (m *Metrics) reject(relay string, reason string) {
	m.rejected.WithLabelValues(relay, reason).Inc()
}

func (m *Metrics) transferred(relay string, direction string, n int) {
	m.bytes.WithLabelValues(relay, direction).Add(float64(n))
}

func failureReason(code connection.ErrorCode) string {
	switch code {
	case connection.ErrorCodeProxyAbort:
		return "proxy_abort"
	case connection.ErrorCodeProxyEmpty:
		return "proxy_empty"
	case connection.ErrorCodeProxyTruncated:
		return "proxy_truncated"
	case connection.ErrorCodeProxyNotHeader:
		return "proxy_not_header"
	case connection.ErrorCodeProxyBadHeader:
		return "proxy_bad_header"
	case connection.ErrorCodeProxyBadProtocol:
		return "proxy_bad_protocol"
	case connection.ErrorCodeSendProxy:
		return "send_proxy"
	case connection.ErrorCodeConnect:
		return "connect"
	case connection.ErrorCodeTransport:
		return "transport"
	default:
		return "unknown"
	}
}
