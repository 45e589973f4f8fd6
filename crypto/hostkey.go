package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/flux-johnm/net-ssh/wire"
)

// HostKeyED25519 is the only host key algorithm in the catalog.
const HostKeyED25519 = "ssh-ed25519"

// ErrSignatureInvalid indicates a host key signature that does not verify.
var ErrSignatureInvalid = errors.New("crypto: invalid host key signature")

// HostKey is a parsed server host key.
type HostKey struct {
	Algorithm string
	Public    ed25519.PublicKey
}

// ParseHostKey decodes a wire-format host key blob.
func ParseHostKey(blob []byte) (*HostKey, error) {
	r := wire.NewReader(blob)
	algo, err := r.Text()
	if err != nil {
		return nil, fmt.Errorf("crypto: host key algorithm: %w", err)
	}
	if algo != HostKeyED25519 {
		return nil, fmt.Errorf("%w: host key %q", ErrUnknownAlgorithm, algo)
	}
	key, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("crypto: host key material: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("crypto: ed25519 host key is %d bytes", len(key))
	}
	return &HostKey{Algorithm: algo, Public: ed25519.PublicKey(key)}, nil
}

// VerifySignature checks a wire-format signature blob over data.
func (k *HostKey) VerifySignature(data, sigBlob []byte) error {
	r := wire.NewReader(sigBlob)
	algo, err := r.Text()
	if err != nil {
		return fmt.Errorf("crypto: signature algorithm: %w", err)
	}
	if algo != k.Algorithm {
		return fmt.Errorf("%w: signature algorithm %q for %q key", ErrSignatureInvalid, algo, k.Algorithm)
	}
	sig, err := r.String()
	if err != nil {
		return fmt.Errorf("crypto: signature material: %w", err)
	}
	if !ed25519.Verify(k.Public, data, sig) {
		return ErrSignatureInvalid
	}
	return nil
}

// MarshalHostKey encodes an ed25519 public key as a wire-format blob.
func MarshalHostKey(pub ed25519.PublicKey) []byte {
	b := wire.NewBuffer()
	b.PutText(HostKeyED25519)
	b.PutString(pub)
	return b.Bytes()
}

// MarshalSignature encodes an ed25519 signature as a wire-format blob.
func MarshalSignature(sig []byte) []byte {
	b := wire.NewBuffer()
	b.PutText(HostKeyED25519)
	b.PutString(sig)
	return b.Bytes()
}

// Fingerprint returns the OpenSSH-style SHA256 fingerprint of a host key
// blob.
func Fingerprint(blob []byte) string {
	sum := sha256.Sum256(blob)
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:])
}
