package transport

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/flux-johnm/net-ssh/wire"
)

// Session is an established SSH transport connection: the socket, the
// packet stream over it and the negotiation state machine. It owns the
// message pump that separates transport control from application traffic
// and defers application packets that arrive mid-exchange.
//
// A session is not safe for concurrent use; callers drive it from one
// goroutine.
type Session struct {
	conn       *PacketStream
	negotiator *Negotiator
	logger     logrus.FieldLogger
	peer       *PeerIdentity

	serverVersion string
	queue         []*wire.Packet
	closed        bool
}

// Open dials the host, runs the version exchange and the initial key
// exchange, and returns a session ready for application traffic. The
// connection is torn down on any failure.
func Open(host string, opts *Options) (*Session, error) {
	o := opts.withDefaults()
	logger := o.Logger

	// Resolve the trust policy first so a bad option never opens a
	// connection.
	verifier, err := resolveVerifier(o.HostKeyVerification, o.KnownHostsPath, logger)
	if err != nil {
		return nil, err
	}

	conn, err := o.Proxy.Open(host, o.Port)
	if err != nil {
		return nil, err
	}

	serverVersion, err := exchangeVersions(conn, o.ClientVersion, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	stream := NewPacketStream(conn, o.Random, logger, o.RekeyBytesLimit, o.RekeyPacketsLimit)
	peer := newPeerIdentity(host, o.Port, conn.RemoteAddr())

	s := &Session{
		conn:          stream,
		logger:        logger,
		peer:          peer,
		serverVersion: serverVersion,
	}
	s.negotiator = NewNegotiator(NegotiatorConfig{
		Stream:        stream,
		Preferences:   o.Preferences,
		Verifier:      verifier,
		Peer:          peer,
		Logger:        logger,
		Random:        o.Random,
		ClientVersion: o.ClientVersion,
		ServerVersion: serverVersion,
		Defer:         s.Push,
	})

	if err := s.negotiator.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	if err := s.Wait(s.negotiator.Initialized); err != nil {
		stream.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"function": "Open",
		"peer":     peer.Canonical(),
		"server":   serverVersion,
	}).Info("Session established")
	return s, nil
}

// pollStep advances the pump by at most one packet: first the deferred
// queue if permitted, then one socket read. Transport control is consumed
// in place; a returned packet is application traffic for the caller.
// progressed reports whether anything was processed at all, so callers
// polling for a condition can re-check it after every step.
func (s *Session) pollStep(mode ReadMode, consumeQueue bool) (pkt *wire.Packet, progressed bool, err error) {
	if s.closed {
		return nil, false, ErrSessionClosed
	}

	if consumeQueue && len(s.queue) > 0 && s.negotiator.Allow(s.queue[0].Type) {
		pkt = s.queue[0]
		s.queue = s.queue[1:]
		return pkt, true, nil
	}

	pkt, err = s.conn.NextPacket(mode)
	if err != nil {
		return nil, false, err
	}
	if pkt == nil {
		return nil, false, nil
	}

	switch pkt.Type {
	case wire.MsgDisconnect:
		d, perr := wire.ParseDisconnect(pkt.Payload)
		if perr != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrCorruptPacket, perr)
		}
		return nil, true, &DisconnectError{Reason: d.ReasonCode, Description: d.Description}
	case wire.MsgIgnore:
		return nil, true, nil
	case wire.MsgDebug:
		if d, perr := wire.ParseDebug(pkt.Payload); perr == nil {
			entry := s.logger.WithFields(logrus.Fields{
				"function": "Session.pollStep",
				"message":  d.Message,
			})
			if d.AlwaysDisplay {
				entry.Info("Server debug message")
			} else {
				entry.Debug("Server debug message")
			}
		}
		return nil, true, nil
	case wire.MsgUnimplemented:
		s.logger.WithField("function", "Session.pollStep").Debug("Server reports unimplemented message")
		return nil, true, nil
	case wire.MsgKexInit:
		// Peer-initiated exchange or the reply to ours. The negotiator
		// runs the whole cycle; application traffic it reads meanwhile
		// lands back on our queue.
		if err := s.negotiator.AcceptKexInit(pkt); err != nil {
			return nil, true, err
		}
		return nil, true, nil
	case wire.MsgNewKeys:
		return nil, true, fmt.Errorf("%w: NEWKEYS outside a key exchange", ErrKeyExchangeFailed)
	default:
		if !s.negotiator.Allow(pkt.Type) {
			s.queue = append(s.queue, pkt)
			return nil, true, nil
		}
		return pkt, true, nil
	}
}

// Poll returns the next application message, or nil in ReadNonblock mode
// when none is ready. Transport control is handled internally and never
// surfaces here.
func (s *Session) Poll(mode ReadMode) (*wire.Packet, error) {
	for {
		pkt, progressed, err := s.pollStep(mode, true)
		if err != nil {
			return nil, err
		}
		if pkt != nil {
			return pkt, nil
		}
		if mode == ReadNonblock && !progressed {
			return nil, nil
		}
	}
}

// NextMessage blocks until an application message arrives.
func (s *Session) NextMessage() (*wire.Packet, error) {
	return s.Poll(ReadBlock)
}

// Wait pumps the session until cond reports true, re-checking after every
// processed packet. Application traffic read meanwhile is parked on the
// deferred queue in arrival order. A nil cond drains whatever is ready
// without blocking.
func (s *Session) Wait(cond func() bool) error {
	if cond == nil {
		for {
			pkt, progressed, err := s.pollStep(ReadNonblock, false)
			if err != nil {
				return err
			}
			if pkt != nil {
				s.queue = append(s.queue, pkt)
			}
			if !progressed {
				return nil
			}
		}
	}

	for !cond() {
		pkt, _, err := s.pollStep(ReadBlock, false)
		if err != nil {
			return err
		}
		if pkt != nil {
			s.queue = append(s.queue, pkt)
		}
	}
	return nil
}

// Push parks a packet at the tail of the deferred queue. Delivery order
// among pushed packets is preserved.
func (s *Session) Push(pkt *wire.Packet) {
	s.queue = append(s.queue, pkt)
}

// QueueLen reports how many packets are parked on the deferred queue.
func (s *Session) QueueLen() int {
	return len(s.queue)
}

// SendMessage seals and writes a message immediately, then triggers a
// rekey if the traffic counters crossed their thresholds.
func (s *Session) SendMessage(msg wire.Message) error {
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.conn.SendPacket(msg); err != nil {
		return err
	}
	return s.RekeyAsNeeded()
}

// EnqueueMessage seals a message and buffers it for a later Flush.
func (s *Session) EnqueueMessage(msg wire.Message) error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.conn.EnqueuePacket(msg)
}

// Flush writes all buffered outbound frames.
func (s *Session) Flush() error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.conn.Flush()
}

// Rekey starts a key exchange cycle and blocks until it completes. A
// no-op while a cycle is already pending, so concurrent triggers
// coalesce into one exchange.
func (s *Session) Rekey() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.negotiator.Pending() {
		return nil
	}
	if err := s.negotiator.Start(); err != nil {
		return err
	}
	return s.Wait(s.negotiator.Initialized)
}

// RekeyAsNeeded rekeys only when the stream's traffic counters have
// crossed a threshold.
func (s *Session) RekeyAsNeeded() error {
	if !s.conn.RekeyNeeded() {
		return nil
	}
	return s.Rekey()
}

// Close flushes pending writes and releases the socket. Idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// PeerIdentity returns the remote endpoint descriptor captured at open.
func (s *Session) PeerIdentity() *PeerIdentity { return s.peer }

// ServerVersion returns the server's identification string.
func (s *Session) ServerVersion() string { return s.serverVersion }

// Algorithms returns the currently negotiated algorithm set.
func (s *Session) Algorithms() *AlgorithmSet { return s.negotiator.Algorithms() }

// HostKeyFingerprint returns the fingerprint of the verified host key.
func (s *Session) HostKeyFingerprint() string { return s.negotiator.HostKeyFingerprint() }
