package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the socket could not be opened or died
	// underneath the stream. Fatal; reconnection policy belongs to the
	// caller.
	ErrConnectionFailed = errors.New("transport: connection failed")

	// ErrConnectTimeout indicates the connect-phase timeout elapsed before
	// the socket was established.
	ErrConnectTimeout = errors.New("transport: connect timeout")

	// ErrHandshakeFailed indicates the version exchange or initial key
	// exchange did not complete.
	ErrHandshakeFailed = errors.New("transport: handshake failed")

	// ErrKeyExchangeFailed indicates algorithm negotiation or a key
	// exchange cycle failed. Fatal to the session.
	ErrKeyExchangeFailed = errors.New("transport: key exchange failed")

	// ErrHostKeyMismatch indicates the verifier rejected the server's host
	// key. The session must not proceed.
	ErrHostKeyMismatch = errors.New("transport: host key verification failed")

	// ErrCorruptPacket indicates framing, MAC or decompression failure.
	// The stream is no longer trustworthy.
	ErrCorruptPacket = errors.New("transport: corrupt packet")

	// ErrInvalidArgument indicates a bad construction-time option. No
	// session is created.
	ErrInvalidArgument = errors.New("transport: invalid argument")

	// ErrSessionClosed indicates an operation on a closed session.
	ErrSessionClosed = errors.New("transport: session closed")
)

// DisconnectError is a remote-initiated teardown: fatal, but an expected
// shutdown path. It carries the peer's reason code and description.
type DisconnectError struct {
	Reason      uint32
	Description string
}

// Error implements the error interface.
func (e *DisconnectError) Error() string {
	return fmt.Sprintf("transport: disconnected by peer (reason %d): %s", e.Reason, e.Description)
}
