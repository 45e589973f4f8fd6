package transport

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flux-johnm/net-ssh/crypto"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testHostKeyBlob(t *testing.T) []byte {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return crypto.MarshalHostKey(pub)
}

type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(peer *PeerIdentity, hostKeyBlob []byte) error { return nil }

// TestResolveVerifier tests the mapping from the dynamic paranoia option
// to a verifier, including rejection of unusable values.
func TestResolveVerifier(t *testing.T) {
	custom := acceptAllVerifier{}

	tests := []struct {
		name    string
		policy  any
		want    any
		wantErr error
	}{
		{name: "nil selects lenient", policy: nil, want: &LenientVerifier{}},
		{name: "true selects lenient", policy: true, want: &LenientVerifier{}},
		{name: "false selects null", policy: false, want: NullVerifier{}},
		{name: "very selects strict", policy: VerifyVery, want: &StrictVerifier{}},
		{name: "custom verifier passes through", policy: custom, want: custom},
		{name: "unknown string rejected", policy: "paranoid", wantErr: ErrInvalidArgument},
		{name: "arbitrary value rejected", policy: 42, wantErr: ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := resolveVerifier(tt.policy, "", testLogger())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, v)
		})
	}
}

// TestNullVerifier tests that the null policy accepts anything.
func TestNullVerifier(t *testing.T) {
	peer := &PeerIdentity{Host: "example.com", Port: 22}
	assert.NoError(t, NullVerifier{}.Verify(peer, testHostKeyBlob(t)))
	assert.NoError(t, NullVerifier{}.Verify(peer, []byte("not even a key")))
}

// TestLenientVerifier tests trust on first use: an unknown host is
// recorded and accepted, the same key matches afterwards, and a changed
// key is rejected.
func TestLenientVerifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	verifier, err := resolveVerifier(nil, path, testLogger())
	require.NoError(t, err)

	peer := &PeerIdentity{Host: "example.com", Port: 22, IP: "93.184.216.34"}
	blob := testHostKeyBlob(t)

	require.NoError(t, verifier.Verify(peer, blob), "first contact records the key")
	require.NoError(t, verifier.Verify(peer, blob), "recorded key matches")

	err = verifier.Verify(peer, testHostKeyBlob(t))
	assert.ErrorIs(t, err, ErrHostKeyMismatch, "changed key must be rejected")
}

// TestLenientVerifierRejectsGarbage tests that an unparseable blob never
// verifies.
func TestLenientVerifierRejectsGarbage(t *testing.T) {
	verifier := &LenientVerifier{Store: nil, Logger: testLogger()}
	err := verifier.Verify(&PeerIdentity{Host: "example.com", Port: 22}, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrHostKeyMismatch)
}

// TestStrictVerifier tests that strict accepts only previously recorded
// keys.
func TestStrictVerifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	peer := &PeerIdentity{Host: "example.com", Port: 2222}
	blob := testHostKeyBlob(t)

	strict, err := resolveVerifier(VerifyVery, path, testLogger())
	require.NoError(t, err)

	err = strict.Verify(peer, blob)
	assert.ErrorIs(t, err, ErrHostKeyMismatch, "unknown host must be rejected")

	// Record the key through the lenient policy, then strict must accept.
	lenient, err := resolveVerifier(nil, path, testLogger())
	require.NoError(t, err)
	require.NoError(t, lenient.Verify(peer, blob))

	assert.NoError(t, strict.Verify(peer, blob))

	err = strict.Verify(peer, testHostKeyBlob(t))
	assert.ErrorIs(t, err, ErrHostKeyMismatch, "changed key must be rejected")
}
