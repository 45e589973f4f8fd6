package crypto

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/flux-johnm/net-ssh/wire"
)

var (
	// ErrUnknownAlgorithm indicates a name outside the supported catalog.
	ErrUnknownAlgorithm = errors.New("crypto: unknown algorithm")
	// ErrBadPacket indicates a frame that failed MAC verification or
	// carries an impossible length or padding field.
	ErrBadPacket = errors.New("crypto: bad packet")
)

// KeyMaterial holds the derived secrets for one direction of the stream.
type KeyMaterial struct {
	IV           []byte
	Key          []byte
	IntegrityKey []byte
}

// PacketCipher frames, encrypts and authenticates packets for a single
// direction. One instance serves exactly one direction; the transport
// swaps instances atomically at a rekey boundary.
//
// Inbound frames are opened in two steps so the stream can assemble
// partial frames in non-blocking mode: OpenLength decrypts the first
// block and yields the packet length, OpenRest decrypts the remainder and
// verifies the MAC. Calls must stay strictly sequential per direction
// because stream ciphers advance their keystream.
type PacketCipher interface {
	// BlockSize is the framing granularity in bytes, at least 8.
	BlockSize() int

	// MACSize is the length of the MAC trailer, zero for no MAC.
	MACSize() int

	// SealPacket encodes payload into a complete wire frame: length,
	// padding byte, payload, random padding, MAC trailer.
	SealPacket(seqNum uint32, payload []byte, random io.Reader) ([]byte, error)

	// OpenLength decrypts the first cipher block of an inbound frame and
	// returns the packet length field plus the decrypted block.
	OpenLength(seqNum uint32, block []byte) (uint32, []byte, error)

	// OpenRest decrypts the remainder of the frame (rest holds the
	// remaining ciphertext followed by the MAC trailer), verifies the MAC
	// and returns the payload with length, padding byte and padding
	// stripped.
	OpenRest(seqNum uint32, firstPlain, rest []byte) ([]byte, error)
}

// buildPlainFrame lays out length, padding byte, payload and random
// padding per RFC 4253 section 6.
func buildPlainFrame(payload []byte, blockSize int, random io.Reader) ([]byte, error) {
	padLen := blockSize - (5+len(payload))%blockSize
	if padLen < wire.MinPaddingSize {
		padLen += blockSize
	}
	packetLen := 1 + len(payload) + padLen

	frame := make([]byte, 4+packetLen)
	binary.BigEndian.PutUint32(frame, uint32(packetLen))
	frame[4] = byte(padLen)
	copy(frame[5:], payload)
	if _, err := io.ReadFull(random, frame[5+len(payload):]); err != nil {
		return nil, fmt.Errorf("crypto: padding: %w", err)
	}
	return frame, nil
}

// extractPayload strips framing from a decrypted frame.
func extractPayload(frame []byte) ([]byte, error) {
	if len(frame) < 5 {
		return nil, fmt.Errorf("%w: frame too short", ErrBadPacket)
	}
	packetLen := binary.BigEndian.Uint32(frame)
	padLen := int(frame[4])
	if padLen < wire.MinPaddingSize || uint32(padLen+1) > packetLen {
		return nil, fmt.Errorf("%w: padding length %d", ErrBadPacket, padLen)
	}
	if uint32(len(frame)) != 4+packetLen {
		return nil, fmt.Errorf("%w: length field %d does not match frame", ErrBadPacket, packetLen)
	}
	payload := make([]byte, int(packetLen)-1-padLen)
	copy(payload, frame[5:])
	return payload, nil
}

// noneCipher is the pre-negotiation state: plaintext framing, no MAC.
type noneCipher struct{}

func (noneCipher) BlockSize() int { return wire.MinBlockSize }
func (noneCipher) MACSize() int   { return 0 }

func (noneCipher) SealPacket(seqNum uint32, payload []byte, random io.Reader) ([]byte, error) {
	return buildPlainFrame(payload, wire.MinBlockSize, random)
}

func (noneCipher) OpenLength(seqNum uint32, block []byte) (uint32, []byte, error) {
	if len(block) < 4 {
		return 0, nil, fmt.Errorf("%w: short length block", ErrBadPacket)
	}
	plain := make([]byte, len(block))
	copy(plain, block)
	return binary.BigEndian.Uint32(plain), plain, nil
}

func (noneCipher) OpenRest(seqNum uint32, firstPlain, rest []byte) ([]byte, error) {
	frame := make([]byte, 0, len(firstPlain)+len(rest))
	frame = append(frame, firstPlain...)
	frame = append(frame, rest...)
	return extractPayload(frame)
}

// ctrCipher combines a counter-mode stream cipher with an encrypt-then-
// nothing SSH MAC (MAC over the plaintext frame, appended after the
// ciphertext).
type ctrCipher struct {
	stream    stdcipher.Stream
	mac       hash.Hash
	blockSize int
}

func (c *ctrCipher) BlockSize() int { return c.blockSize }
func (c *ctrCipher) MACSize() int   { return c.mac.Size() }

func (c *ctrCipher) computeMAC(seqNum uint32, frame []byte) []byte {
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], seqNum)
	c.mac.Reset()
	c.mac.Write(seq[:])
	c.mac.Write(frame)
	return c.mac.Sum(nil)
}

func (c *ctrCipher) SealPacket(seqNum uint32, payload []byte, random io.Reader) ([]byte, error) {
	frame, err := buildPlainFrame(payload, c.blockSize, random)
	if err != nil {
		return nil, err
	}
	tag := c.computeMAC(seqNum, frame)
	c.stream.XORKeyStream(frame, frame)
	return append(frame, tag...), nil
}

func (c *ctrCipher) OpenLength(seqNum uint32, block []byte) (uint32, []byte, error) {
	if len(block) != c.blockSize {
		return 0, nil, fmt.Errorf("%w: length block of %d bytes", ErrBadPacket, len(block))
	}
	plain := make([]byte, len(block))
	c.stream.XORKeyStream(plain, block)
	return binary.BigEndian.Uint32(plain), plain, nil
}

func (c *ctrCipher) OpenRest(seqNum uint32, firstPlain, rest []byte) ([]byte, error) {
	macSize := c.MACSize()
	if len(rest) < macSize {
		return nil, fmt.Errorf("%w: missing MAC trailer", ErrBadPacket)
	}
	ciphertext := rest[:len(rest)-macSize]
	tag := rest[len(rest)-macSize:]

	frame := make([]byte, len(firstPlain)+len(ciphertext))
	copy(frame, firstPlain)
	c.stream.XORKeyStream(frame[len(firstPlain):], ciphertext)

	expected := c.computeMAC(seqNum, frame)
	if subtle.ConstantTimeCompare(tag, expected) != 1 {
		return nil, fmt.Errorf("%w: MAC mismatch", ErrBadPacket)
	}
	return extractPayload(frame)
}

type cipherSpec struct {
	keySize   int
	ivSize    int
	blockSize int
}

var cipherSpecs = map[string]cipherSpec{
	CipherNone:   {keySize: 0, ivSize: 0, blockSize: wire.MinBlockSize},
	CipherAES128: {keySize: 16, ivSize: aes.BlockSize, blockSize: aes.BlockSize},
	CipherAES256: {keySize: 32, ivSize: aes.BlockSize, blockSize: aes.BlockSize},
}

type macSpec struct {
	keySize int
	new     func(key []byte) hash.Hash
}

var macSpecs = map[string]macSpec{
	MACNone: {keySize: 0},
	MACSHA256: {
		keySize: sha256.Size,
		new:     func(key []byte) hash.Hash { return hmac.New(sha256.New, key) },
	},
}

// Catalog names.
const (
	CipherNone   = "none"
	CipherAES128 = "aes128-ctr"
	CipherAES256 = "aes256-ctr"

	MACNone   = "none"
	MACSHA256 = "hmac-sha2-256"
)

// SupportedCiphers lists cipher names in no particular order.
func SupportedCiphers() []string {
	return []string{CipherAES128, CipherAES256}
}

// SupportedMACs lists MAC names in no particular order.
func SupportedMACs() []string {
	return []string{MACSHA256}
}

// CipherKeySizes returns the key, IV and block sizes for a cipher name.
func CipherKeySizes(name string) (keySize, ivSize, blockSize int, err error) {
	spec, ok := cipherSpecs[name]
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: cipher %q", ErrUnknownAlgorithm, name)
	}
	return spec.keySize, spec.ivSize, spec.blockSize, nil
}

// MACKeySize returns the integrity key size for a MAC name.
func MACKeySize(name string) (int, error) {
	spec, ok := macSpecs[name]
	if !ok {
		return 0, fmt.Errorf("%w: mac %q", ErrUnknownAlgorithm, name)
	}
	return spec.keySize, nil
}

// NewPacketCipher constructs the packet cipher for one direction from
// negotiated algorithm names and derived key material.
func NewPacketCipher(cipherName, macName string, km KeyMaterial) (PacketCipher, error) {
	if cipherName == CipherNone {
		if macName != MACNone {
			return nil, fmt.Errorf("%w: cipher none with mac %q", ErrUnknownAlgorithm, macName)
		}
		return noneCipher{}, nil
	}

	spec, ok := cipherSpecs[cipherName]
	if !ok {
		return nil, fmt.Errorf("%w: cipher %q", ErrUnknownAlgorithm, cipherName)
	}
	mspec, ok := macSpecs[macName]
	if !ok || mspec.new == nil {
		return nil, fmt.Errorf("%w: mac %q", ErrUnknownAlgorithm, macName)
	}
	if len(km.Key) != spec.keySize || len(km.IV) != spec.ivSize {
		return nil, fmt.Errorf("%w: key material sized %d/%d for %q", ErrBadPacket, len(km.Key), len(km.IV), cipherName)
	}
	if len(km.IntegrityKey) != mspec.keySize {
		return nil, fmt.Errorf("%w: integrity key sized %d for %q", ErrBadPacket, len(km.IntegrityKey), macName)
	}

	block, err := aes.NewCipher(km.Key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes: %w", err)
	}
	return &ctrCipher{
		stream:    stdcipher.NewCTR(block, km.IV),
		mac:       mspec.new(km.IntegrityKey),
		blockSize: spec.blockSize,
	}, nil
}

// NonePacketCipher returns the plaintext framing cipher both directions
// start in before the first key exchange completes.
func NonePacketCipher() PacketCipher {
	return noneCipher{}
}
