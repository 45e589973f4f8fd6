package transport

import (
	"fmt"
	"net"
)

// PeerIdentity is the stable descriptor of the remote endpoint used for
// host key verification and diagnostics. Computed once per session.
type PeerIdentity struct {
	Host string
	Port int
	IP   string
}

// newPeerIdentity captures the peer descriptor from the configured host
// and the resolved remote address of the connection.
func newPeerIdentity(host string, port int, remote net.Addr) *PeerIdentity {
	id := &PeerIdentity{Host: host, Port: port}
	if tcp, ok := remote.(*net.TCPAddr); ok {
		id.IP = tcp.IP.String()
	}
	return id
}

// Canonical returns the known-hosts style name for the peer: the host
// (bracketed with the port suffix when the port is non-default), followed
// by a comma and the resolved IP in the same form when it differs from
// the host string.
func (id *PeerIdentity) Canonical() string {
	out := id.qualify(id.Host)
	if id.IP != "" && id.IP != id.Host {
		out += "," + id.qualify(id.IP)
	}
	return out
}

// HostPattern returns just the host portion in known-hosts form.
func (id *PeerIdentity) HostPattern() string {
	return id.qualify(id.Host)
}

func (id *PeerIdentity) qualify(name string) string {
	if id.Port == DefaultPort {
		return name
	}
	return fmt.Sprintf("[%s]:%d", name, id.Port)
}

// String implements fmt.Stringer.
func (id *PeerIdentity) String() string {
	return id.Canonical()
}
