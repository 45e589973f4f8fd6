package transport

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/flux-johnm/net-ssh/crypto"
	"github.com/flux-johnm/net-ssh/knownhosts"
)

// VerifyVery is the Options.HostKeyVerification sentinel selecting the
// strict verifier.
const VerifyVery = "very"

// HostKeyVerifier is the pluggable trust policy consulted after every key
// exchange. A nil return accepts the key; any error rejects it and is
// fatal to the session.
type HostKeyVerifier interface {
	Verify(peer *PeerIdentity, hostKeyBlob []byte) error
}

// resolveVerifier maps the dynamic paranoia option onto a verifier.
// Called before any socket I/O so a bad option never opens a connection.
func resolveVerifier(policy any, knownHostsPath string, logger logrus.FieldLogger) (HostKeyVerifier, error) {
	store := knownhosts.NewStore(knownHostsPath)
	switch v := policy.(type) {
	case nil:
		return &LenientVerifier{Store: store, Logger: logger}, nil
	case bool:
		if v {
			return &LenientVerifier{Store: store, Logger: logger}, nil
		}
		return NullVerifier{}, nil
	case string:
		if v == VerifyVery {
			return &StrictVerifier{Store: store}, nil
		}
		return nil, fmt.Errorf("%w: unrecognized host key verification policy %q", ErrInvalidArgument, v)
	case HostKeyVerifier:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: host key verification policy %T does not implement HostKeyVerifier", ErrInvalidArgument, policy)
	}
}

// NullVerifier accepts every host key. No verification.
type NullVerifier struct{}

// Verify implements HostKeyVerifier.
func (NullVerifier) Verify(peer *PeerIdentity, hostKeyBlob []byte) error {
	return nil
}

// LenientVerifier accepts a key that matches the stored entry or belongs
// to a host with no entry; new hosts are recorded with a warning. A key
// that contradicts an existing entry is rejected.
type LenientVerifier struct {
	Store  *knownhosts.Store
	Logger logrus.FieldLogger
}

// Verify implements HostKeyVerifier.
func (v *LenientVerifier) Verify(peer *PeerIdentity, hostKeyBlob []byte) error {
	hostKey, err := crypto.ParseHostKey(hostKeyBlob)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHostKeyMismatch, err)
	}

	result, err := v.Store.Check(peer.HostPattern(), hostKey.Algorithm, hostKeyBlob)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHostKeyMismatch, err)
	}
	switch result {
	case knownhosts.Match:
		return nil
	case knownhosts.Mismatch:
		return fmt.Errorf("%w: key for %s does not match the known-hosts entry", ErrHostKeyMismatch, peer.Canonical())
	default:
		if v.Logger != nil {
			v.Logger.WithFields(logrus.Fields{
				"function":    "LenientVerifier.Verify",
				"peer":        peer.Canonical(),
				"fingerprint": crypto.Fingerprint(hostKeyBlob),
			}).Warn("Accepting previously unknown host key")
		}
		if err := v.Store.Add(peer.HostPattern(), hostKey.Algorithm, hostKeyBlob); err != nil {
			return fmt.Errorf("%w: recording key: %v", ErrHostKeyMismatch, err)
		}
		return nil
	}
}

// StrictVerifier accepts only a key that matches an existing known-hosts
// entry. Unknown hosts and mismatched keys are both rejected.
type StrictVerifier struct {
	Store *knownhosts.Store
}

// Verify implements HostKeyVerifier.
func (v *StrictVerifier) Verify(peer *PeerIdentity, hostKeyBlob []byte) error {
	hostKey, err := crypto.ParseHostKey(hostKeyBlob)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHostKeyMismatch, err)
	}

	result, err := v.Store.Check(peer.HostPattern(), hostKey.Algorithm, hostKeyBlob)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHostKeyMismatch, err)
	}
	switch result {
	case knownhosts.Match:
		return nil
	case knownhosts.Mismatch:
		return fmt.Errorf("%w: key for %s does not match the known-hosts entry", ErrHostKeyMismatch, peer.Canonical())
	default:
		return fmt.Errorf("%w: no known-hosts entry for %s", ErrHostKeyMismatch, peer.Canonical())
	}
}
