package connection

// runHandshakes runs every pending phase in order: accept-side PROXY,
// send-side PROXY, then the transport. It stops at the first phase that
// is not complete.
func (c *Conn) runHandshakes() bool {
	if c.handshake.Has(HandshakeAcceptProxy) && !c.recvProxy(HandshakeAcceptProxy) {
		return false
	}
	if c.handshake.Has(HandshakeSendProxy) && !c.sendProxy(HandshakeSendProxy) {
		return false
	}
	if c.handshake.Has(HandshakeTransport) {
		if c.transport == nil {
			c.fail(ErrorCodeTransport, 0)
			return false
		}
		if !c.transport.Handshake(c, HandshakeTransport) {
			return false
		}
		if c.handshake.Has(HandshakeTransport) && !c.err {
			c.fail(ErrorCodeTransport, 0)
			return false
		}
	}
	return true
}
