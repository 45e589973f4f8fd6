package transport

import (
	cryptorand "crypto/rand"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flux-johnm/net-ssh/crypto"
)

// DefaultPort is the standard SSH port.
const DefaultPort = 22

// defaultClientVersion is the identification string sent during the
// version exchange.
const defaultClientVersion = "SSH-2.0-GoNetSSH_0.3.0"

// Default rekey thresholds per direction. Either limit being crossed
// makes RekeyNeeded report true.
const (
	DefaultRekeyBytesLimit   = 1 << 30
	DefaultRekeyPacketsLimit = 1 << 31
)

// Options configures a session. The zero value (or nil) selects every
// default: port 22, no connect timeout, a direct TCP socket, lenient
// host key verification and the compiled-in algorithm preferences.
type Options struct {
	// Port overrides the default SSH port.
	Port int

	// Timeout bounds the connect phase only. Zero means no timeout.
	Timeout time.Duration

	// Proxy substitutes the socket factory used to open the connection.
	Proxy SocketFactory

	// HostKeyVerification selects the paranoia policy: nil or true for
	// lenient, false for no verification, VerifyVery for strict, or any
	// HostKeyVerifier implementation to be used as-is. Anything else
	// fails construction with ErrInvalidArgument.
	HostKeyVerification any

	// KnownHostsPath backs the built-in strict and lenient verifiers.
	// Empty means no trust file: strict rejects everything, lenient
	// accepts without persisting.
	KnownHostsPath string

	// Logger receives trace, debug and negotiation logging. Nil selects
	// the standard logrus logger.
	Logger logrus.FieldLogger

	// Preferences overrides the algorithm preference lists.
	Preferences *AlgorithmPreferences

	// RekeyBytesLimit and RekeyPacketsLimit set the per-direction rekey
	// thresholds. Zero selects the defaults.
	RekeyBytesLimit   uint64
	RekeyPacketsLimit uint64

	// ClientVersion overrides the identification string.
	ClientVersion string

	// Random sources cookies, padding and ephemeral keys. Nil selects
	// crypto/rand.
	Random io.Reader
}

func (o *Options) withDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Port == 0 {
		out.Port = DefaultPort
	}
	if out.Logger == nil {
		out.Logger = logrus.StandardLogger()
	}
	if out.Preferences == nil {
		out.Preferences = DefaultPreferences()
	}
	if out.RekeyBytesLimit == 0 {
		out.RekeyBytesLimit = DefaultRekeyBytesLimit
	}
	if out.RekeyPacketsLimit == 0 {
		out.RekeyPacketsLimit = DefaultRekeyPacketsLimit
	}
	if out.ClientVersion == "" {
		out.ClientVersion = defaultClientVersion
	}
	if out.Random == nil {
		out.Random = cryptorand.Reader
	}
	if out.Proxy == nil {
		out.Proxy = &directFactory{timeout: out.Timeout}
	}
	return &out
}

// AlgorithmPreferences holds the client's per-category preference lists.
// Negotiation picks the first name in each list that the server also
// supports.
type AlgorithmPreferences struct {
	Kex         []string
	HostKey     []string
	Ciphers     []string
	MACs        []string
	Compression []string
}

// DefaultPreferences returns the compiled-in preference lists, drawn from
// the crypto catalog.
func DefaultPreferences() *AlgorithmPreferences {
	return &AlgorithmPreferences{
		Kex:         crypto.SupportedKexAlgorithms(),
		HostKey:     []string{crypto.HostKeyED25519},
		Ciphers:     crypto.SupportedCiphers(),
		MACs:        crypto.SupportedMACs(),
		Compression: []string{crypto.CompressionNone, crypto.CompressionZlib},
	}
}
