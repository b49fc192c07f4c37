package connection

import E "github.com/sagernet/sing-relay/common/exceptions"

// ErrorCode explains why the error marker was set.
type ErrorCode uint8

const (
	ErrorCodeNone ErrorCode = iota
	ErrorCodeProxyAbort
	ErrorCodeProxyEmpty
	ErrorCodeProxyTruncated
	ErrorCodeProxyNotHeader
	ErrorCodeProxyBadHeader
	ErrorCodeProxyBadProtocol
	ErrorCodeSendProxy
	ErrorCodeConnect
	ErrorCodeTransport
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeNone:
		return "no error"
	case ErrorCodeProxyAbort:
		return "connection error while waiting for PROXY protocol header"
	case ErrorCodeProxyEmpty:
		return "connection closed while waiting for PROXY protocol header"
	case ErrorCodeProxyTruncated:
		return "truncated PROXY protocol header received"
	case ErrorCodeProxyNotHeader:
		return "received something which does not look like a PROXY protocol header"
	case ErrorCodeProxyBadHeader:
		return "received an invalid PROXY protocol header"
	case ErrorCodeProxyBadProtocol:
		return "received an unhandled protocol in the PROXY protocol header"
	case ErrorCodeSendProxy:
		return "connection error while sending PROXY protocol header"
	case ErrorCodeConnect:
		return "connection to the server failed"
	case ErrorCodeTransport:
		return "transport handshake failed"
	default:
		return "unknown error"
	}
}

// ErrDestroyed is returned by data handlers that released the connection.
var ErrDestroyed = E.New("connection destroyed")
