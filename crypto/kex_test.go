package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"

	"github.com/flux-johnm/net-ssh/wire"
)

// scriptedKexServer implements KexTransport as the server side of a
// curve25519 exchange, computing its reply from the client's init.
type scriptedKexServer struct {
	t      *testing.T
	signer ed25519.PrivateKey
	magics *Magics

	reply *wire.Packet
}

func (s *scriptedKexServer) WriteKexMessage(msg wire.Message) error {
	payload, err := msg.Marshal()
	require.NoError(s.t, err)

	pkt, err := wire.ParsePacket(payload)
	require.NoError(s.t, err)
	require.Equal(s.t, wire.MsgKexECDHInit, pkt.Type)

	init, err := wire.ParseKexECDHInit(pkt.Payload)
	require.NoError(s.t, err)

	var priv [32]byte
	_, err = rand.Read(priv[:])
	require.NoError(s.t, err)
	serverPub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	require.NoError(s.t, err)
	shared, err := curve25519.X25519(priv[:], init.ClientPublicKey)
	require.NoError(s.t, err)

	secretBuf := wire.NewBuffer()
	secretBuf.PutMPInt(shared)

	hostKeyBlob := MarshalHostKey(s.signer.Public().(ed25519.PublicKey))
	h := ComputeExchangeHash(s.magics, hostKeyBlob, init.ClientPublicKey, serverPub, secretBuf.Bytes())
	sig := MarshalSignature(ed25519.Sign(s.signer, h))

	replyPayload, err := (&wire.KexECDHReply{
		HostKeyBlob:     hostKeyBlob,
		ServerPublicKey: serverPub,
		Signature:       sig,
	}).Marshal()
	require.NoError(s.t, err)

	s.reply, err = wire.ParsePacket(replyPayload)
	require.NoError(s.t, err)
	return nil
}

func (s *scriptedKexServer) ReadKexMessage() (*wire.Packet, error) {
	require.NotNil(s.t, s.reply, "client read before sending its init")
	return s.reply, nil
}

func testMagics() *Magics {
	return &Magics{
		ClientVersion: "SSH-2.0-GoNetSSH_test",
		ServerVersion: "SSH-2.0-TestServer",
		ClientKexInit: []byte{byte(wire.MsgKexInit), 1, 2, 3},
		ServerKexInit: []byte{byte(wire.MsgKexInit), 4, 5, 6},
	}
}

// TestCurve25519Exchange tests a complete client exchange against a
// scripted server: shared secret agreement and host key signature
// verification.
func TestCurve25519Exchange(t *testing.T) {
	_, signer, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	kex, err := NewKexAlgorithm(KexCurve25519SHA256)
	require.NoError(t, err)
	assert.Equal(t, KexCurve25519SHA256, kex.Name())

	server := &scriptedKexServer{t: t, signer: signer, magics: testMagics()}
	result, err := kex.Client(server, rand.Reader, testMagics())
	require.NoError(t, err)

	assert.NotEmpty(t, result.SharedSecret)
	assert.Len(t, result.ExchangeHash, 32)

	hostKey, err := ParseHostKey(result.HostKeyBlob)
	require.NoError(t, err)
	assert.Equal(t, HostKeyED25519, hostKey.Algorithm)
}

// TestCurve25519RejectsBadSignature tests that a signature from the
// wrong key fails the exchange.
func TestCurve25519RejectsBadSignature(t *testing.T) {
	_, signer, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	kex, err := NewKexAlgorithm(KexCurve25519SHA256LibSSH)
	require.NoError(t, err)

	// The server signs with magics that differ from the client's view,
	// so the exchange hashes diverge and the signature cannot verify.
	skewed := testMagics()
	skewed.ServerVersion = "SSH-2.0-Imposter"
	server := &scriptedKexServer{t: t, signer: signer, magics: skewed}

	_, err = kex.Client(server, rand.Reader, testMagics())
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

// TestNewKexAlgorithmUnknown tests catalog lookup failure.
func TestNewKexAlgorithmUnknown(t *testing.T) {
	_, err := NewKexAlgorithm("diffie-hellman-group1-sha1")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

// TestDeriveKeyProperties tests determinism, direction separation and
// length extension of the key derivation function.
func TestDeriveKeyProperties(t *testing.T) {
	secret := []byte{0, 0, 0, 4, 9, 9, 9, 9}
	hash := make([]byte, 32)
	session := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i)
		session[i] = byte(i * 2)
	}

	a := DeriveKey(secret, hash, session, KeyTagClientKey, 16)
	b := DeriveKey(secret, hash, session, KeyTagClientKey, 16)
	assert.Equal(t, a, b, "derivation must be deterministic")

	c := DeriveKey(secret, hash, session, KeyTagServerKey, 16)
	assert.NotEqual(t, a, c, "directions must derive distinct keys")

	long := DeriveKey(secret, hash, session, KeyTagClientKey, 96)
	assert.Len(t, long, 96)
	assert.Equal(t, a, long[:16], "extension must preserve the prefix")

	km := DeriveDirectionKeys(secret, hash, session, true, 16, 16, 32)
	assert.Len(t, km.Key, 16)
	assert.Len(t, km.IV, 16)
	assert.Len(t, km.IntegrityKey, 32)
	assert.Equal(t, a, km.Key)
}

// TestHostKeyFingerprint tests the fingerprint format.
func TestHostKeyFingerprint(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	fp := Fingerprint(MarshalHostKey(pub))
	assert.Contains(t, fp, "SHA256:")
	assert.Equal(t, fp, Fingerprint(MarshalHostKey(pub)))
}
