package connection

import (
	"testing"

	M "github.com/sagernet/sing-relay/common/metadata"
	"github.com/sagernet/sing-relay/common/poll"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const tcp4Header = "PROXY TCP4 192.168.0.1 192.168.0.11 56324 443\r\n"

func TestDispatchHandshakeThenTransferInSameRound(t *testing.T) {
	t.Parallel()
	conn, poller, socket, data := newTestConn(tcp4Header + "hello")
	poller.recvReady = true
	conn.EnableAcceptProxy()
	conn.SetPolicy(PolicyInitData | PolicyWakeData)
	data.onInit = func(conn *Conn) {
		conn.DataWantRecv()
	}
	data.onRecv = func(conn *Conn) {
		require.Equal(t, "hello", string(socket.input))
	}

	conn.handleEvent()
	require.False(t, conn.Error())
	require.Equal(t, Handshake(0), conn.Handshake())
	require.Equal(t, 1, data.inits)
	require.Equal(t, 1, data.recvs)
	require.Equal(t, 1, data.wakes)
	require.False(t, conn.HasPolicy(PolicyInitData))
	require.True(t, conn.HasPolicy(PolicyAddrFromSet|PolicyAddrToSet))
	require.Equal(t, M.ParseSocksaddr("192.168.0.1:56324"), conn.Source())
	require.Equal(t, M.ParseSocksaddr("192.168.0.11:443"), conn.Destination())
	require.True(t, conn.Connected())
	require.Equal(t, Polling{Read: true}, conn.ArmedPolling())
	require.Equal(t, Polling{}, conn.SockPolling())
}

func TestDispatchAfterErrorOnlyWakesAndStops(t *testing.T) {
	t.Parallel()
	conn, poller, socket, data := newTestConn(tcp4Header)
	prober := &fakeProber{}
	conn.SetProber(prober)
	poller.recvReady = true
	poller.sendReady = true
	conn.EnableAcceptProxy()
	conn.WaitL4Connect()
	conn.SetPolicy(PolicyInitData | PolicyWakeData)
	conn.DataWantRecv()
	conn.DataWantSend()
	conn.UpdateDataPolling()
	conn.SetError(ErrorCodeNone)

	for i := 0; i < 2; i++ {
		conn.handleEvent()
	}
	require.Zero(t, socket.peeks)
	require.Zero(t, socket.recvs)
	require.Zero(t, data.inits)
	require.Zero(t, data.recvs)
	require.Zero(t, data.sends)
	require.Zero(t, prober.probes)
	require.Equal(t, 2, data.wakes)
	require.Equal(t, Polling{}, conn.ArmedPolling())
	require.False(t, poller.recvActive)
	require.False(t, poller.sendActive)
	require.False(t, conn.Progress().Has(ProgressConnected))
}

func TestDispatchInitDestroyed(t *testing.T) {
	t.Parallel()
	conn, poller, _, data := newTestConn("")
	conn.SetPolicy(PolicyInitData | PolicyWakeData)
	data.initErr = ErrDestroyed

	conn.handleEvent()
	require.Equal(t, 1, data.inits)
	require.Zero(t, data.wakes)
	require.Empty(t, poller.calls)
	require.False(t, conn.Progress().Has(ProgressConnected))
}

func TestDispatchWakeDestroyed(t *testing.T) {
	t.Parallel()
	conn, poller, _, data := newTestConn("")
	conn.SetPolicy(PolicyWakeData)
	conn.SetError(ErrorCodeNone)
	conn.DataWantRecv()
	conn.UpdatePolling()
	data.wakeErr = ErrDestroyed

	conn.handleEvent()
	require.Equal(t, 1, data.wakes)
	require.Empty(t, poller.calls)
}

func TestDispatchWakesOnlyOnStateChange(t *testing.T) {
	t.Parallel()
	conn, poller, _, data := newTestConn("")
	conn.SetPolicy(PolicyWakeData)

	conn.handleEvent()
	conn.handleEvent()
	require.Zero(t, data.wakes)
	require.True(t, conn.Connected())

	conn.WaitL4Connect()
	conn.handleEvent()
	require.Zero(t, data.wakes, "connect still pending")
	require.Equal(t, Polling{Write: true}, conn.ArmedPolling())

	poller.sendReady = true
	conn.handleEvent()
	require.Equal(t, 1, data.wakes)
	require.True(t, conn.Connected())
}

func TestDispatchSkipsTransferWithoutTransport(t *testing.T) {
	t.Parallel()
	conn, poller, _, data := newTestConn("")
	conn.SetTransport(nil)
	poller.recvReady = true
	poller.sendReady = true
	conn.DataWantRecv()
	conn.DataWantSend()

	conn.handleEvent()
	require.Zero(t, data.recvs)
	require.Zero(t, data.sends)
}

func TestDispatchHonorsWaitFlags(t *testing.T) {
	t.Parallel()
	conn, poller, _, data := newTestConn("")
	poller.recvReady = true
	poller.sendReady = true
	conn.DataWantRecv()
	conn.DataWantSend()
	data.onRecv = func(conn *Conn) {
		conn.SetWaitRoom()
	}

	conn.handleEvent()
	require.Equal(t, 1, data.recvs)
	require.Equal(t, 1, data.sends)

	conn.EnableTransportHandshake()
	transport := &fakeTransport{}
	conn.SetTransport(transport)
	conn.handleEvent()
	require.Equal(t, 1, transport.handshakes)
	require.Equal(t, 1, data.recvs)
	require.Equal(t, 1, data.sends)
	require.Equal(t, Polling{Read: true}, conn.ArmedPolling())
}

func TestDispatchReentersHandshakeAfterTransfer(t *testing.T) {
	t.Parallel()
	conn, poller, _, data := newTestConn("")
	transport := &fakeTransport{complete: true}
	conn.SetTransport(transport)
	poller.recvReady = true
	conn.DataWantRecv()
	data.onRecv = func(conn *Conn) {
		if data.recvs == 1 {
			conn.EnableTransportHandshake()
		}
	}

	conn.handleEvent()
	require.Equal(t, 1, transport.handshakes)
	require.Equal(t, 2, data.recvs)
	require.False(t, conn.Error())
}

func TestTransportHandshakeWithoutTransport(t *testing.T) {
	t.Parallel()
	conn, _, _, _ := newTestConn("")
	conn.SetTransport(nil)
	conn.EnableTransportHandshake()

	conn.handleEvent()
	require.True(t, conn.Error())
	require.Equal(t, ErrorCodeTransport, conn.ErrorCode())
}

func TestDispatchClearsNonStickyEvents(t *testing.T) {
	t.Parallel()
	conn, poller, _, _ := newTestConn("")
	poller.events = poll.EventIn | poll.EventOut | poll.EventHup

	conn.handleEvent()
	require.Equal(t, poll.EventHup, poller.events)
}

func TestTableDispatch(t *testing.T) {
	t.Parallel()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	table := NewTable(logger)

	table.Dispatch(testFD)
	table.HandleFDEvent(testFD)
	require.Zero(t, table.Len())

	conn, poller, _, _ := newTestConn("GET / HTTP/1.1\r\n\r\n")
	poller.recvReady = true
	conn.EnableAcceptProxy()
	table.Attach(conn)
	require.Equal(t, 1, table.Len())
	require.Same(t, conn, table.Lookup(testFD))

	table.HandleFDEvent(testFD)
	require.True(t, conn.Error())
	require.Len(t, hook.Entries, 1)
	require.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	require.Equal(t, ErrorCodeProxyNotHeader.String(), hook.LastEntry().Message)

	table.Dispatch(testFD)
	require.Len(t, hook.Entries, 1)

	table.Detach(testFD)
	require.Nil(t, table.Lookup(testFD))
	require.Zero(t, table.Len())
}

func TestFlagStrings(t *testing.T) {
	t.Parallel()
	require.Equal(t, "none", Handshake(0).String())
	require.Equal(t, "accept-proxy|transport", (HandshakeAcceptProxy | HandshakeTransport).String())
	require.Equal(t, "wait-l4|connected", (ProgressWaitL4 | ProgressConnected).String())
	require.Equal(t, "init-data|wake-data", (PolicyInitData | PolicyWakeData).String())
	require.Equal(t, "read|write", ShutBoth.String())
}
