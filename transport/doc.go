// Package transport implements the client side of the SSH transport
// layer: connection establishment, the version exchange, binary packet
// framing with encryption and integrity, algorithm negotiation with key
// exchange and rekeying, and host key verification policies.
//
// The entry point is Open, which dials a server and returns a Session
// once the initial key exchange completes:
//
//	session, err := transport.Open("example.com", &transport.Options{
//		HostKeyVerification: transport.VerifyVery,
//		KnownHostsPath:      "/home/user/.ssh/known_hosts",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//
// The session's message pump separates concerns by message type:
// transport control (disconnect, ignore, debug, key exchange traffic) is
// consumed internally and never reaches the caller, while application
// messages are returned from NextMessage and Poll. Application packets
// that arrive while a key exchange is in flight are parked on a deferred
// queue and delivered afterwards in arrival order.
//
// Rekeying is automatic: SendMessage triggers a new key exchange once
// either direction crosses its byte or packet threshold, and a server
// initiated KEXINIT is answered transparently during any read. Keys
// switch atomically at the NEWKEYS boundary in each direction.
//
// Host key trust is pluggable through the HostKeyVerification option:
// lenient (trust on first use against a known-hosts file), strict
// (previously recorded keys only), none, or any custom HostKeyVerifier.
package transport
