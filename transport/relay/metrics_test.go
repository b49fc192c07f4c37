package relay

import (
	"testing"

	"github.com/sagernet/sing-relay/connection"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.sessionOpened("test")
	metrics.sessionOpened("test")
	metrics.sessionClosed("test")
	metrics.handshakeFailed("test", connection.ErrorCodeProxyNotHeader)
	metrics.reject("test", rejectCountry)
	metrics.transferred("test", directionUpload, 10)
	metrics.transferred("test", directionUpload, 5)

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.sessions.WithLabelValues("test")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.activeSessions.WithLabelValues("test")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.handshakeFailures.WithLabelValues("test", "proxy_not_header")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.rejected.WithLabelValues("test", rejectCountry)))
	require.Equal(t, 15.0, testutil.ToFloat64(metrics.bytes.WithLabelValues("test", directionUpload)))

	count, err := testutil.GatherAndCount(registry)
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

func TestFailureReason(t *testing.T) {
	t.Parallel()
	require.Equal(t, "proxy_truncated", failureReason(connection.ErrorCodeProxyTruncated))
	require.Equal(t, "connect", failureReason(connection.ErrorCodeConnect))
	require.Equal(t, "unknown", failureReason(connection.ErrorCodeNone))
}
