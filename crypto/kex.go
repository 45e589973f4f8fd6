package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"github.com/flux-johnm/net-ssh/wire"
)

// Key exchange catalog names.
const (
	KexCurve25519SHA256       = "curve25519-sha256"
	KexCurve25519SHA256LibSSH = "curve25519-sha256@libssh.org"
)

// ErrKexProtocol indicates the peer sent an unexpected message during a
// key exchange.
var ErrKexProtocol = errors.New("crypto: key exchange protocol violation")

// Magics collects the handshake inputs bound into the exchange hash:
// both version strings (without line terminators) and both raw KEXINIT
// payloads, type byte included.
type Magics struct {
	ClientVersion string
	ServerVersion string
	ClientKexInit []byte
	ServerKexInit []byte
}

// KexResult is the outcome of one key exchange cycle.
type KexResult struct {
	// HostKeyBlob is the server's host key in wire encoding, already
	// checked against the signature over the exchange hash. Trust
	// verification against a known-hosts policy is the caller's job.
	HostKeyBlob []byte

	// SharedSecret is the derived secret K in mpint encoding, ready for
	// the key derivation function.
	SharedSecret []byte

	// ExchangeHash is H. The first exchange hash of a connection becomes
	// the session identifier.
	ExchangeHash []byte
}

// KexTransport is the slice of the packet stream a key exchange drives:
// writing kex messages and reading the next kex-range packet. Transport
// control arriving mid-exchange is handled by the caller's read loop, not
// seen here.
type KexTransport interface {
	WriteKexMessage(msg wire.Message) error
	ReadKexMessage() (*wire.Packet, error)
}

// KexAlgorithm runs the client side of one key exchange.
type KexAlgorithm interface {
	Name() string
	Client(conn KexTransport, random io.Reader, magics *Magics) (*KexResult, error)
}

// SupportedKexAlgorithms lists kex names in preference order.
func SupportedKexAlgorithms() []string {
	return []string{KexCurve25519SHA256, KexCurve25519SHA256LibSSH}
}

// NewKexAlgorithm constructs the named key exchange.
func NewKexAlgorithm(name string) (KexAlgorithm, error) {
	switch name {
	case KexCurve25519SHA256, KexCurve25519SHA256LibSSH:
		return &curve25519SHA256{name: name}, nil
	default:
		return nil, fmt.Errorf("%w: kex %q", ErrUnknownAlgorithm, name)
	}
}

// curve25519SHA256 implements curve25519-sha256 (RFC 8731).
type curve25519SHA256 struct {
	name string
}

func (k *curve25519SHA256) Name() string { return k.name }

func (k *curve25519SHA256) Client(conn KexTransport, random io.Reader, magics *Magics) (*KexResult, error) {
	var priv [32]byte
	if _, err := io.ReadFull(random, priv[:]); err != nil {
		return nil, fmt.Errorf("crypto: ephemeral key: %w", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("crypto: ephemeral key: %w", err)
	}

	if err := conn.WriteKexMessage(&wire.KexECDHInit{ClientPublicKey: pub}); err != nil {
		return nil, err
	}

	pkt, err := conn.ReadKexMessage()
	if err != nil {
		return nil, err
	}
	if pkt.Type != wire.MsgKexECDHReply {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrKexProtocol, wire.MsgKexECDHReply, pkt.Type)
	}
	reply, err := wire.ParseKexECDHReply(pkt.Payload)
	if err != nil {
		return nil, err
	}

	// X25519 rejects the low-order points that would yield an all-zero
	// secret.
	shared, err := curve25519.X25519(priv[:], reply.ServerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKexProtocol, err)
	}

	secretBuf := wire.NewBuffer()
	secretBuf.PutMPInt(shared)
	secret := secretBuf.Bytes()

	exchangeHash := ComputeExchangeHash(magics, reply.HostKeyBlob, pub, reply.ServerPublicKey, secret)

	hostKey, err := ParseHostKey(reply.HostKeyBlob)
	if err != nil {
		return nil, err
	}
	if err := hostKey.VerifySignature(exchangeHash, reply.Signature); err != nil {
		return nil, err
	}

	return &KexResult{
		HostKeyBlob:  reply.HostKeyBlob,
		SharedSecret: secret,
		ExchangeHash: exchangeHash,
	}, nil
}

// ComputeExchangeHash builds H for an ECDH exchange (RFC 5656 section 4):
// SHA256 over the version strings, both KEXINIT payloads, the host key
// blob, both ephemeral public keys and the mpint-encoded shared secret.
func ComputeExchangeHash(magics *Magics, hostKeyBlob, clientPub, serverPub, encodedSecret []byte) []byte {
	b := wire.NewBuffer()
	b.PutText(magics.ClientVersion)
	b.PutText(magics.ServerVersion)
	b.PutString(magics.ClientKexInit)
	b.PutString(magics.ServerKexInit)
	b.PutString(hostKeyBlob)
	b.PutString(clientPub)
	b.PutString(serverPub)
	b.PutRaw(encodedSecret)

	sum := sha256.Sum256(b.Bytes())
	return sum[:]
}
