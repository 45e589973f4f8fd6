package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/flux-johnm/net-ssh/crypto"
	"github.com/flux-johnm/net-ssh/wire"
)

// Phase is the negotiation state: idle before the first proposal,
// pending while a key exchange cycle is in flight, initialized once keys
// are in place. A rekey moves initialized back to pending and around
// again.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseInitialized
)

// String returns a diagnostic name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseInitialized:
		return "initialized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// AlgorithmSet is the outcome of one negotiation cycle.
type AlgorithmSet struct {
	Kex                     string
	HostKey                 string
	CipherClientToServer    string
	CipherServerToClient    string
	MACClientToServer       string
	MACServerToClient       string
	CompressionClientServer string
	CompressionServerClient string
}

// NegotiatorConfig wires a negotiator to its session.
type NegotiatorConfig struct {
	Stream        *PacketStream
	Preferences   *AlgorithmPreferences
	Verifier      HostKeyVerifier
	Peer          *PeerIdentity
	Logger        logrus.FieldLogger
	Random        io.Reader
	ClientVersion string
	ServerVersion string

	// Defer receives packets read off the socket mid-exchange that are
	// not transport control; the session queues them for later delivery.
	Defer func(*wire.Packet)
}

// Negotiator runs the key exchange handshake over the packet stream and
// tracks the negotiation phase. Exactly one negotiation can be pending
// at a time; starting another while pending is a coalesced no-op.
type Negotiator struct {
	stream   *PacketStream
	prefs    *AlgorithmPreferences
	verifier HostKeyVerifier
	peer     *PeerIdentity
	logger   logrus.FieldLogger
	random   io.Reader

	clientVersion string
	serverVersion string
	deferPacket   func(*wire.Packet)

	phase       Phase
	ourKexInit  []byte
	sessionID   []byte
	current     *AlgorithmSet
	hostKeyBlob []byte
}

// NewNegotiator creates an idle negotiator.
func NewNegotiator(cfg NegotiatorConfig) *Negotiator {
	return &Negotiator{
		stream:        cfg.Stream,
		prefs:         cfg.Preferences,
		verifier:      cfg.Verifier,
		peer:          cfg.Peer,
		logger:        cfg.Logger,
		random:        cfg.Random,
		clientVersion: cfg.ClientVersion,
		serverVersion: cfg.ServerVersion,
		deferPacket:   cfg.Defer,
	}
}

// Phase returns the current negotiation phase.
func (n *Negotiator) Phase() Phase { return n.phase }

// Pending reports whether a negotiation cycle is in flight.
func (n *Negotiator) Pending() bool { return n.phase == PhasePending }

// Initialized reports whether the current cycle has completed.
func (n *Negotiator) Initialized() bool { return n.phase == PhaseInitialized }

// Algorithms returns the most recently negotiated set, nil before the
// first cycle completes.
func (n *Negotiator) Algorithms() *AlgorithmSet { return n.current }

// SessionID returns the session identifier fixed by the first exchange.
func (n *Negotiator) SessionID() []byte { return n.sessionID }

// HostKeyFingerprint returns the fingerprint of the verified host key,
// empty before the first cycle completes.
func (n *Negotiator) HostKeyFingerprint() string {
	if n.hostKeyBlob == nil {
		return ""
	}
	return crypto.Fingerprint(n.hostKeyBlob)
}

// Allow reports whether a message type may be delivered to the caller in
// the current phase. Until a cycle completes, only transport-control and
// kex-range types pass; application types must queue.
func (n *Negotiator) Allow(t wire.MessageType) bool {
	if n.phase == PhaseInitialized {
		return true
	}
	return t <= wire.MsgDebug || (t >= wire.MsgKexInit && t <= 49)
}

// Start sends our KEXINIT and moves to pending. A no-op while a cycle is
// already pending, which coalesces concurrent rekey requests.
func (n *Negotiator) Start() error {
	if n.phase == PhasePending {
		return nil
	}

	proposal := &wire.KexInit{
		KexAlgorithms:           n.prefs.Kex,
		ServerHostKeyAlgorithms: n.prefs.HostKey,
		CiphersClientToServer:   n.prefs.Ciphers,
		CiphersServerToClient:   n.prefs.Ciphers,
		MACsClientToServer:      n.prefs.MACs,
		MACsServerToClient:      n.prefs.MACs,
		CompressionClientServer: n.prefs.Compression,
		CompressionServerClient: n.prefs.Compression,
	}
	if _, err := io.ReadFull(n.random, proposal.Cookie[:]); err != nil {
		return fmt.Errorf("%w: cookie: %v", ErrKeyExchangeFailed, err)
	}
	payload, err := proposal.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}
	if err := n.stream.SendPacket(proposal); err != nil {
		return err
	}

	n.ourKexInit = payload
	n.phase = PhasePending
	n.logger.WithFields(logrus.Fields{
		"function": "Negotiator.Start",
		"peer":     n.peer.Canonical(),
	}).Debug("Sent key exchange proposal")
	return nil
}

// AcceptKexInit ingests the peer's proposal and drives the exchange to
// completion: algorithm selection, the key exchange itself, host key
// verification, NEWKEYS in both directions and the key switch. On return
// the phase is initialized.
func (n *Negotiator) AcceptKexInit(pkt *wire.Packet) error {
	if n.phase != PhasePending {
		// Peer-initiated (re)key: answer with our own proposal first.
		if err := n.Start(); err != nil {
			return err
		}
	}

	peerProposal, err := wire.ParseKexInit(pkt.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptPacket, err)
	}
	peerPayload, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}

	set, err := selectAlgorithms(n.prefs, peerProposal)
	if err != nil {
		return err
	}

	kexAlg, err := crypto.NewKexAlgorithm(set.Kex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}
	magics := &crypto.Magics{
		ClientVersion: n.clientVersion,
		ServerVersion: n.serverVersion,
		ClientKexInit: n.ourKexInit,
		ServerKexInit: peerPayload,
	}

	result, err := kexAlg.Client(kexConn{n}, n.random, magics)
	if err != nil {
		return n.classifyKexError(err)
	}

	if err := n.verifier.Verify(n.peer, result.HostKeyBlob); err != nil {
		if errors.Is(err, ErrHostKeyMismatch) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrHostKeyMismatch, err)
	}

	sessionID := n.sessionID
	if sessionID == nil {
		sessionID = result.ExchangeHash
	}

	outCipher, outComp, err := buildDirectionState(set.CipherClientToServer, set.MACClientToServer, set.CompressionClientServer, result, sessionID, true)
	if err != nil {
		return err
	}
	inCipher, inComp, err := buildDirectionState(set.CipherServerToClient, set.MACServerToClient, set.CompressionServerClient, result, sessionID, false)
	if err != nil {
		return err
	}

	// Our NEWKEYS marks the outbound switch; everything after it is
	// sealed under the new keys.
	if err := n.stream.SendPacket(&wire.NewKeys{}); err != nil {
		return err
	}
	if err := n.stream.SetOutboundState(outCipher, outComp); err != nil {
		return err
	}

	if err := n.awaitNewKeys(); err != nil {
		return err
	}
	if err := n.stream.SetInboundState(inCipher, inComp); err != nil {
		return err
	}

	n.sessionID = sessionID
	n.current = set
	n.hostKeyBlob = result.HostKeyBlob
	n.ourKexInit = nil
	n.phase = PhaseInitialized

	n.logger.WithFields(logrus.Fields{
		"function":    "Negotiator.AcceptKexInit",
		"peer":        n.peer.Canonical(),
		"kex":         set.Kex,
		"host_key":    set.HostKey,
		"cipher_out":  set.CipherClientToServer,
		"cipher_in":   set.CipherServerToClient,
		"mac_out":     set.MACClientToServer,
		"mac_in":      set.MACServerToClient,
		"fingerprint": n.HostKeyFingerprint(),
	}).Info("Key exchange complete")
	return nil
}

func (n *Negotiator) classifyKexError(err error) error {
	var disconnect *DisconnectError
	switch {
	case errors.As(err, &disconnect):
		return err
	case errors.Is(err, crypto.ErrSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrHostKeyMismatch, err)
	case errors.Is(err, ErrConnectionFailed), errors.Is(err, ErrCorruptPacket):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}
}

// awaitNewKeys reads until the peer's NEWKEYS arrives, deferring
// application traffic still sealed under the old keys.
func (n *Negotiator) awaitNewKeys() error {
	for {
		pkt, err := n.readDuringKex()
		if err != nil {
			return err
		}
		if pkt.Type == wire.MsgNewKeys {
			return nil
		}
		return fmt.Errorf("%w: expected %s, got %s", ErrKeyExchangeFailed, wire.MsgNewKeys, pkt.Type)
	}
}

// readDuringKex reads the next kex-relevant packet, consuming chatter and
// deferring application traffic to the session queue.
func (n *Negotiator) readDuringKex() (*wire.Packet, error) {
	for {
		pkt, err := n.stream.NextPacket(ReadBlock)
		if err != nil {
			return nil, err
		}
		switch pkt.Type {
		case wire.MsgDisconnect:
			d, perr := wire.ParseDisconnect(pkt.Payload)
			if perr != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorruptPacket, perr)
			}
			return nil, &DisconnectError{Reason: d.ReasonCode, Description: d.Description}
		case wire.MsgIgnore:
			n.logger.WithField("function", "Negotiator.readDuringKex").Trace("Ignoring SSH_MSG_IGNORE")
		case wire.MsgDebug:
			d, perr := wire.ParseDebug(pkt.Payload)
			if perr == nil {
				n.logger.WithFields(logrus.Fields{
					"function": "Negotiator.readDuringKex",
					"message":  d.Message,
				}).Debug("Server debug message")
			}
		case wire.MsgUnimplemented:
			n.logger.WithField("function", "Negotiator.readDuringKex").Debug("Server reports unimplemented message")
		case wire.MsgKexInit:
			return nil, fmt.Errorf("%w: KEXINIT while an exchange is pending", ErrKeyExchangeFailed)
		default:
			if pkt.Type >= wire.MsgNewKeys && pkt.Type <= 49 {
				return pkt, nil
			}
			n.deferPacket(pkt)
		}
	}
}

// kexConn is the KexTransport view the key exchange algorithm drives.
type kexConn struct {
	n *Negotiator
}

func (c kexConn) WriteKexMessage(msg wire.Message) error {
	return c.n.stream.SendPacket(msg)
}

func (c kexConn) ReadKexMessage() (*wire.Packet, error) {
	pkt, err := c.n.readDuringKex()
	if err != nil {
		return nil, err
	}
	if pkt.Type == wire.MsgNewKeys {
		return nil, fmt.Errorf("%w: NEWKEYS before the exchange finished", ErrKeyExchangeFailed)
	}
	return pkt, nil
}

// selectAlgorithms picks, per category, the first name in the client's
// preference order that the server also lists.
func selectAlgorithms(prefs *AlgorithmPreferences, peer *wire.KexInit) (*AlgorithmSet, error) {
	set := &AlgorithmSet{}
	picks := []struct {
		category string
		ours     []string
		theirs   []string
		dst      *string
	}{
		{"kex", prefs.Kex, peer.KexAlgorithms, &set.Kex},
		{"host key", prefs.HostKey, peer.ServerHostKeyAlgorithms, &set.HostKey},
		{"cipher client-to-server", prefs.Ciphers, peer.CiphersClientToServer, &set.CipherClientToServer},
		{"cipher server-to-client", prefs.Ciphers, peer.CiphersServerToClient, &set.CipherServerToClient},
		{"mac client-to-server", prefs.MACs, peer.MACsClientToServer, &set.MACClientToServer},
		{"mac server-to-client", prefs.MACs, peer.MACsServerToClient, &set.MACServerToClient},
		{"compression client-to-server", prefs.Compression, peer.CompressionClientServer, &set.CompressionClientServer},
		{"compression server-to-client", prefs.Compression, peer.CompressionServerClient, &set.CompressionServerClient},
	}
	for _, p := range picks {
		name, err := firstMatch(p.category, p.ours, p.theirs)
		if err != nil {
			return nil, err
		}
		*p.dst = name
	}
	return set, nil
}

func firstMatch(category string, ours, theirs []string) (string, error) {
	for _, name := range ours {
		for _, peer := range theirs {
			if name == peer {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no common %s algorithm (client %v, server %v)", ErrKeyExchangeFailed, category, ours, theirs)
}

// buildDirectionState derives keys and constructs the cipher and
// compressor for one direction.
func buildDirectionState(cipherName, macName, compName string, result *crypto.KexResult, sessionID []byte, clientToServer bool) (crypto.PacketCipher, crypto.Compressor, error) {
	keySize, ivSize, _, err := crypto.CipherKeySizes(cipherName)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}
	macKeySize, err := crypto.MACKeySize(macName)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}

	km := crypto.DeriveDirectionKeys(result.SharedSecret, result.ExchangeHash, sessionID, clientToServer, keySize, ivSize, macKeySize)
	cipher, err := crypto.NewPacketCipher(cipherName, macName, km)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}
	comp, err := crypto.NewCompressor(compName)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}
	return cipher, comp, nil
}
