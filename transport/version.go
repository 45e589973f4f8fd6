package transport

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/flux-johnm/net-ssh/wire"
)

// exchangeVersions runs the pre-packet identification exchange from RFC
// 4253 section 4.2: send our identification string, then read lines until
// the server's identification appears, skipping any banner lines before
// it. Returns the server's identification without the line terminator.
//
// Lines are read one byte at a time so nothing past the identification
// line is consumed; the packet stream owns the socket from the first
// frame onward.
func exchangeVersions(rw io.ReadWriter, clientVersion string, logger logrus.FieldLogger) (string, error) {
	if _, err := io.WriteString(rw, clientVersion+"\r\n"); err != nil {
		return "", fmt.Errorf("%w: sending version: %v", ErrHandshakeFailed, err)
	}

	for i := 0; i < wire.MaxBannerLines; i++ {
		line, err := readBannerLine(rw)
		if err != nil {
			return "", fmt.Errorf("%w: reading version: %v", ErrHandshakeFailed, err)
		}
		if strings.HasPrefix(line, "SSH-") {
			if !strings.HasPrefix(line, "SSH-2.0-") && !strings.HasPrefix(line, "SSH-1.99-") {
				return "", fmt.Errorf("%w: unsupported protocol version %q", ErrHandshakeFailed, line)
			}
			logger.WithFields(logrus.Fields{
				"function":       "exchangeVersions",
				"server_version": line,
			}).Debug("Version exchange complete")
			return line, nil
		}
		logger.WithFields(logrus.Fields{
			"function": "exchangeVersions",
			"banner":   line,
		}).Debug("Server banner line")
	}
	return "", fmt.Errorf("%w: no identification string in server banner", ErrHandshakeFailed)
}

func readBannerLine(r io.Reader) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		if buf[0] == '\n' {
			break
		}
		line = append(line, buf[0])
		if len(line) > wire.MaxBannerLineSize {
			return "", fmt.Errorf("banner line exceeds %d bytes", wire.MaxBannerLineSize)
		}
	}
	return strings.TrimSuffix(string(line), "\r"), nil
}
