package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flux-johnm/net-ssh/crypto"
	"github.com/flux-johnm/net-ssh/wire"
)

// ReadMode selects how a read behaves when no frame is ready.
type ReadMode int

const (
	// ReadBlock waits indefinitely for a complete frame.
	ReadBlock ReadMode = iota
	// ReadNonblock returns immediately with no packet when the socket has
	// nothing ready.
	ReadNonblock
)

// nonblockPollInterval is the read deadline used in nonblock mode. The
// runtime treats an already-expired deadline as "fail without reading",
// so a small positive window is needed to pick up data that is ready.
const nonblockPollInterval = time.Millisecond

// direction is the cipher, compression and accounting state for one
// direction of the stream.
type direction struct {
	cipher  crypto.PacketCipher
	comp    crypto.Compressor
	seqNum  uint32
	bytes   uint64
	packets uint64
}

func (d *direction) exceeded(bytesLimit, packetsLimit uint64) bool {
	return d.bytes > bytesLimit || d.packets > packetsLimit
}

// PacketStream owns the raw socket and turns it into a sequence of typed
// packets: length-prefixed framing, per-direction encryption, MAC and
// compression, and rekey-threshold accounting.
//
// Inbound frames are assembled incrementally so ReadNonblock can return
// mid-frame and resume on the next call. Cipher state for a direction
// changes only between frames; SetInboundState refuses to swap keys while
// a frame is partially assembled.
type PacketStream struct {
	conn   net.Conn
	random io.Reader
	logger logrus.FieldLogger

	rekeyBytesLimit   uint64
	rekeyPacketsLimit uint64

	in  direction
	out direction

	pending [][]byte // sealed frames awaiting a flush

	// inbound reassembly state
	rbuf       []byte
	firstPlain []byte
	packetLen  uint32
}

// NewPacketStream wraps an established connection. Both directions start
// in the plaintext "none" state used before the first key exchange.
func NewPacketStream(conn net.Conn, random io.Reader, logger logrus.FieldLogger, rekeyBytesLimit, rekeyPacketsLimit uint64) *PacketStream {
	none, _ := crypto.NewCompressor(crypto.CompressionNone)
	return &PacketStream{
		conn:              conn,
		random:            random,
		logger:            logger,
		rekeyBytesLimit:   rekeyBytesLimit,
		rekeyPacketsLimit: rekeyPacketsLimit,
		in:                direction{cipher: crypto.NonePacketCipher(), comp: none},
		out:               direction{cipher: crypto.NonePacketCipher(), comp: none},
	}
}

// NextPacket deframes, decrypts and decodes one message. In ReadNonblock
// mode a nil packet with a nil error means no complete frame is ready.
func (s *PacketStream) NextPacket(mode ReadMode) (*wire.Packet, error) {
	blockSize := s.in.cipher.BlockSize()

	if s.firstPlain == nil {
		ok, err := s.fill(mode, blockSize)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		length, plain, err := s.in.cipher.OpenLength(s.in.seqNum, s.rbuf[:blockSize])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPacket, err)
		}
		if length < 5 || length > wire.MaxPacketSize || (4+int(length))%blockSize != 0 {
			return nil, fmt.Errorf("%w: packet length %d", ErrCorruptPacket, length)
		}
		s.packetLen = length
		s.firstPlain = plain
		s.rbuf = s.rbuf[:0]
	}

	rest := 4 + int(s.packetLen) - blockSize + s.in.cipher.MACSize()
	ok, err := s.fill(mode, rest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	payload, err := s.in.cipher.OpenRest(s.in.seqNum, s.firstPlain, s.rbuf[:rest])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPacket, err)
	}

	s.in.seqNum++
	s.in.bytes += uint64(4 + s.packetLen + uint32(s.in.cipher.MACSize()))
	s.in.packets++
	s.firstPlain = nil
	s.rbuf = s.rbuf[:0]

	payload, err = s.in.comp.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPacket, err)
	}
	pkt, err := wire.ParsePacket(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPacket, err)
	}

	s.logger.WithFields(logrus.Fields{
		"function": "PacketStream.NextPacket",
		"type":     pkt.Type.String(),
		"length":   len(pkt.Payload),
	}).Trace("Received packet")
	return pkt, nil
}

// fill grows the reassembly buffer to need bytes, returning false without
// error when nonblock mode runs out of ready data.
func (s *PacketStream) fill(mode ReadMode, need int) (bool, error) {
	for len(s.rbuf) < need {
		var deadline time.Time
		if mode == ReadNonblock {
			deadline = time.Now().Add(nonblockPollInterval)
		}
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return false, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}

		buf := make([]byte, need-len(s.rbuf))
		n, err := s.conn.Read(buf)
		s.rbuf = append(s.rbuf, buf[:n]...)
		if err != nil {
			var netErr net.Error
			if mode == ReadNonblock && errors.As(err, &netErr) && netErr.Timeout() {
				if len(s.rbuf) >= need {
					break
				}
				return false, nil
			}
			if errors.Is(err, io.EOF) {
				return false, fmt.Errorf("%w: connection closed by peer", ErrConnectionFailed)
			}
			return false, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
	}
	return true, nil
}

// EnqueuePacket seals a message into a frame and buffers it for a later
// Flush, so control and data writes can batch into one socket write.
func (s *PacketStream) EnqueuePacket(msg wire.Message) error {
	payload, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	payload, err = s.out.comp.Compress(payload)
	if err != nil {
		return err
	}
	frame, err := s.out.cipher.SealPacket(s.out.seqNum, payload, s.random)
	if err != nil {
		return err
	}

	s.out.seqNum++
	s.out.bytes += uint64(len(frame))
	s.out.packets++
	s.pending = append(s.pending, frame)
	return nil
}

// Flush writes every buffered frame in order.
func (s *PacketStream) Flush() error {
	for len(s.pending) > 0 {
		frame := s.pending[0]
		if _, err := s.conn.Write(frame); err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		s.pending = s.pending[1:]
	}
	return nil
}

// SendPacket seals and writes a message immediately, flushing anything
// already buffered first to preserve order.
func (s *PacketStream) SendPacket(msg wire.Message) error {
	if err := s.EnqueuePacket(msg); err != nil {
		return err
	}
	return s.Flush()
}

// RekeyNeeded reports whether either direction has crossed its byte or
// packet threshold since the last key change.
func (s *PacketStream) RekeyNeeded() bool {
	return s.in.exceeded(s.rekeyBytesLimit, s.rekeyPacketsLimit) ||
		s.out.exceeded(s.rekeyBytesLimit, s.rekeyPacketsLimit)
}

// SetInboundState swaps the inbound cipher and compressor at a key
// change boundary and resets the rekey counters. Refused mid-frame: a
// frame must never mix old and new key material.
func (s *PacketStream) SetInboundState(cipher crypto.PacketCipher, comp crypto.Compressor) error {
	if s.firstPlain != nil || len(s.rbuf) > 0 {
		return fmt.Errorf("%w: inbound key change mid-frame", ErrKeyExchangeFailed)
	}
	s.in.cipher = cipher
	s.in.comp = comp
	s.in.bytes = 0
	s.in.packets = 0
	return nil
}

// SetOutboundState swaps the outbound cipher and compressor at a key
// change boundary and resets the rekey counters. Buffered frames sealed
// under the old keys are written out first.
func (s *PacketStream) SetOutboundState(cipher crypto.PacketCipher, comp crypto.Compressor) error {
	if err := s.Flush(); err != nil {
		return err
	}
	s.out.cipher = cipher
	s.out.comp = comp
	s.out.bytes = 0
	s.out.packets = 0
	return nil
}

// Close releases the socket. Buffered frames are flushed best-effort
// before the close.
func (s *PacketStream) Close() error {
	if err := s.Flush(); err != nil {
		s.logger.WithFields(logrus.Fields{
			"function": "PacketStream.Close",
			"error":    err.Error(),
		}).Debug("Flush before close failed")
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}
