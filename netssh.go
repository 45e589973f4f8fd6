// Package netssh implements the client side of the SSH transport
// protocol: connection establishment, binary packet framing with
// encryption and integrity, algorithm negotiation with transparent
// rekeying, and pluggable host key verification.
//
// Example:
//
//	session, err := netssh.Connect("example.com", &netssh.Options{
//	    HostKeyVerification: netssh.VerifyVery,
//	    KnownHostsPath:      "/home/user/.ssh/known_hosts",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	fmt.Println(session.HostKeyFingerprint())
//
//	for {
//	    msg, err := session.NextMessage()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    handle(msg)
//	}
//
// The heavy lifting lives in the subpackages: transport owns the
// session, packet stream and negotiation, wire the message codec, crypto
// the cipher, key exchange and key derivation primitives, and knownhosts
// the trust file. This package re-exports the surface most callers need.
package netssh

import (
	"github.com/flux-johnm/net-ssh/transport"
)

// Connect dials an SSH server and completes the transport handshake.
func Connect(host string, opts *Options) (*Session, error) {
	return transport.Open(host, opts)
}

// Session is an established transport connection.
type Session = transport.Session

// Options configures a session; the zero value selects every default.
type Options = transport.Options

// AlgorithmPreferences holds the per-category algorithm preference lists.
type AlgorithmPreferences = transport.AlgorithmPreferences

// AlgorithmSet is the outcome of a negotiation cycle.
type AlgorithmSet = transport.AlgorithmSet

// PeerIdentity describes the remote endpoint for verification purposes.
type PeerIdentity = transport.PeerIdentity

// HostKeyVerifier is the pluggable host key trust policy.
type HostKeyVerifier = transport.HostKeyVerifier

// DisconnectError is a remote-initiated teardown.
type DisconnectError = transport.DisconnectError

// VerifyVery selects the strict host key verification policy.
const VerifyVery = transport.VerifyVery

// DefaultPort is the standard SSH port.
const DefaultPort = transport.DefaultPort

// Sentinel errors surfaced by Connect and session operations.
var (
	ErrConnectionFailed = transport.ErrConnectionFailed
	ErrConnectTimeout   = transport.ErrConnectTimeout
	ErrHandshakeFailed  = transport.ErrHandshakeFailed
	ErrHostKeyMismatch  = transport.ErrHostKeyMismatch
	ErrInvalidArgument  = transport.ErrInvalidArgument
	ErrSessionClosed    = transport.ErrSessionClosed
)
