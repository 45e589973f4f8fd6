package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// SocketFactory opens the byte stream a session runs over. The default
// is a direct TCP connection; callers may substitute a proxying or
// tunneling factory through Options.Proxy.
type SocketFactory interface {
	Open(host string, port int) (net.Conn, error)
}

// directFactory dials TCP directly, honoring the connect timeout.
type directFactory struct {
	timeout time.Duration
}

func (f *directFactory) Open(host string, port int) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, f.timeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s after %v", ErrConnectTimeout, addr, f.timeout)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, addr, err)
	}
	return conn, nil
}
