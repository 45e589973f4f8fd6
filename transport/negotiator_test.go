package transport

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flux-johnm/net-ssh/crypto"
	"github.com/flux-johnm/net-ssh/wire"
)

// TestSelectAlgorithms tests first-match negotiation per category.
func TestSelectAlgorithms(t *testing.T) {
	prefs := &AlgorithmPreferences{
		Kex:         []string{"curve25519-sha256", "curve25519-sha256@libssh.org"},
		HostKey:     []string{"ssh-ed25519"},
		Ciphers:     []string{"aes256-ctr", "aes128-ctr"},
		MACs:        []string{"hmac-sha2-256"},
		Compression: []string{"none", "zlib"},
	}
	peer := &wire.KexInit{
		KexAlgorithms:           []string{"curve25519-sha256@libssh.org", "curve25519-sha256"},
		ServerHostKeyAlgorithms: []string{"rsa-sha2-512", "ssh-ed25519"},
		CiphersClientToServer:   []string{"aes128-ctr", "aes256-ctr"},
		CiphersServerToClient:   []string{"aes128-ctr"},
		MACsClientToServer:      []string{"hmac-sha2-256"},
		MACsServerToClient:      []string{"hmac-sha2-512", "hmac-sha2-256"},
		CompressionClientServer: []string{"none"},
		CompressionServerClient: []string{"zlib", "none"},
	}

	set, err := selectAlgorithms(prefs, peer)
	require.NoError(t, err)

	// The client's preference order wins, not the server's.
	assert.Equal(t, "curve25519-sha256", set.Kex)
	assert.Equal(t, "ssh-ed25519", set.HostKey)
	assert.Equal(t, "aes256-ctr", set.CipherClientToServer)
	assert.Equal(t, "aes128-ctr", set.CipherServerToClient)
	assert.Equal(t, "hmac-sha2-256", set.MACClientToServer)
	assert.Equal(t, "hmac-sha2-256", set.MACServerToClient)
	assert.Equal(t, "none", set.CompressionClientServer)
	assert.Equal(t, "none", set.CompressionServerClient)
}

// TestSelectAlgorithmsNoCommon tests failure when a category has no
// overlap.
func TestSelectAlgorithmsNoCommon(t *testing.T) {
	prefs := DefaultPreferences()
	peer := &wire.KexInit{
		KexAlgorithms:           []string{"diffie-hellman-group14-sha256"},
		ServerHostKeyAlgorithms: []string{"ssh-ed25519"},
		CiphersClientToServer:   prefs.Ciphers,
		CiphersServerToClient:   prefs.Ciphers,
		MACsClientToServer:      prefs.MACs,
		MACsServerToClient:      prefs.MACs,
		CompressionClientServer: prefs.Compression,
		CompressionServerClient: prefs.Compression,
	}

	_, err := selectAlgorithms(prefs, peer)
	assert.ErrorIs(t, err, ErrKeyExchangeFailed)
}

// TestNegotiatorAllow tests message gating per phase: before the first
// exchange completes only transport control and kex-range types pass.
func TestNegotiatorAllow(t *testing.T) {
	n := &Negotiator{}

	tests := []struct {
		name  string
		phase Phase
		typ   wire.MessageType
		want  bool
	}{
		{"disconnect while idle", PhaseIdle, wire.MsgDisconnect, true},
		{"debug while pending", PhasePending, wire.MsgDebug, true},
		{"kexinit while pending", PhasePending, wire.MsgKexInit, true},
		{"ecdh reply while pending", PhasePending, wire.MsgKexECDHReply, true},
		{"service request while idle", PhaseIdle, wire.MsgServiceRequest, false},
		{"service accept while pending", PhasePending, wire.MsgServiceAccept, false},
		{"application type while pending", PhasePending, wire.MessageType(90), false},
		{"application type once initialized", PhaseInitialized, wire.MessageType(90), true},
		{"service accept once initialized", PhaseInitialized, wire.MsgServiceAccept, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n.phase = tt.phase
			assert.Equal(t, tt.want, n.Allow(tt.typ))
		})
	}
}

// TestNegotiatorStartCoalesces tests that a second Start while pending
// sends no second proposal.
func TestNegotiatorStartCoalesces(t *testing.T) {
	ca, cb := newConnPair(t)
	stream := NewPacketStream(ca, rand.Reader, testLogger(), DefaultRekeyBytesLimit, DefaultRekeyPacketsLimit)
	peerStream := NewPacketStream(cb, rand.Reader, testLogger(), DefaultRekeyBytesLimit, DefaultRekeyPacketsLimit)

	n := NewNegotiator(NegotiatorConfig{
		Stream:      stream,
		Preferences: DefaultPreferences(),
		Verifier:    NullVerifier{},
		Peer:        &PeerIdentity{Host: "example.com", Port: 22},
		Logger:      testLogger(),
		Random:      rand.Reader,
	})

	assert.Equal(t, PhaseIdle, n.Phase())
	require.NoError(t, n.Start())
	assert.Equal(t, PhasePending, n.Phase())
	require.NoError(t, n.Start())
	require.NoError(t, n.Start())

	pkt, err := peerStream.NextPacket(ReadBlock)
	require.NoError(t, err)
	assert.Equal(t, wire.MsgKexInit, pkt.Type)

	pkt, err = peerStream.NextPacket(ReadNonblock)
	require.NoError(t, err)
	assert.Nil(t, pkt, "coalesced starts must not send a second proposal")
}

// TestPhaseString tests the diagnostic names.
func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "pending", PhasePending.String())
	assert.Equal(t, "initialized", PhaseInitialized.String())
}

// TestBuildDirectionState tests key derivation plumbing from a kex
// result into a usable cipher.
func TestBuildDirectionState(t *testing.T) {
	result := &crypto.KexResult{
		SharedSecret: []byte{0, 0, 0, 1, 42},
		ExchangeHash: make([]byte, 32),
	}
	sessionID := make([]byte, 32)

	cipher, comp, err := buildDirectionState("aes128-ctr", "hmac-sha2-256", "none", result, sessionID, true)
	require.NoError(t, err)
	assert.Equal(t, 16, cipher.BlockSize())
	assert.Equal(t, 32, cipher.MACSize())
	assert.NotNil(t, comp)

	_, _, err = buildDirectionState("chacha20-poly1305", "hmac-sha2-256", "none", result, sessionID, true)
	assert.ErrorIs(t, err, ErrKeyExchangeFailed)
}
