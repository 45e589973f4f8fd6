package wire

import (
	"errors"
	"fmt"
)

// MessageType identifies an SSH transport message by its leading payload byte.
type MessageType byte

// Transport-layer message numbers (RFC 4253 section 12, RFC 5656).
const (
	MsgDisconnect     MessageType = 1
	MsgIgnore         MessageType = 2
	MsgUnimplemented  MessageType = 3
	MsgDebug          MessageType = 4
	MsgServiceRequest MessageType = 5
	MsgServiceAccept  MessageType = 6
	MsgKexInit        MessageType = 20
	MsgNewKeys        MessageType = 21
	MsgKexECDHInit    MessageType = 30
	MsgKexECDHReply   MessageType = 31
)

// Disconnect reason codes (RFC 4253 section 11.1).
const (
	DisconnectProtocolError             uint32 = 2
	DisconnectKeyExchangeFailed         uint32 = 3
	DisconnectHostKeyNotVerifiable      uint32 = 9
	DisconnectByApplication             uint32 = 11
	DisconnectProtocolVersionNotSupport uint32 = 15
)

// String returns the protocol name of the message type.
func (t MessageType) String() string {
	switch t {
	case MsgDisconnect:
		return "SSH_MSG_DISCONNECT"
	case MsgIgnore:
		return "SSH_MSG_IGNORE"
	case MsgUnimplemented:
		return "SSH_MSG_UNIMPLEMENTED"
	case MsgDebug:
		return "SSH_MSG_DEBUG"
	case MsgServiceRequest:
		return "SSH_MSG_SERVICE_REQUEST"
	case MsgServiceAccept:
		return "SSH_MSG_SERVICE_ACCEPT"
	case MsgKexInit:
		return "SSH_MSG_KEXINIT"
	case MsgNewKeys:
		return "SSH_MSG_NEWKEYS"
	case MsgKexECDHInit:
		return "SSH_MSG_KEX_ECDH_INIT"
	case MsgKexECDHReply:
		return "SSH_MSG_KEX_ECDH_REPLY"
	default:
		return fmt.Sprintf("SSH_MSG_%d", byte(t))
	}
}

// Message is any value that can be encoded as a full packet payload,
// message-type byte included.
type Message interface {
	Marshal() ([]byte, error)
}

// Packet is one decoded transport message: the type byte plus the raw
// payload that follows it. Control types are interpreted by the session
// pump; everything else passes through opaquely.
type Packet struct {
	Type    MessageType
	Payload []byte
}

// Marshal re-encodes the packet as a payload.
func (p *Packet) Marshal() ([]byte, error) {
	out := make([]byte, 1+len(p.Payload))
	out[0] = byte(p.Type)
	copy(out[1:], p.Payload)
	return out, nil
}

// ParsePacket splits a raw payload into its type byte and body.
func ParsePacket(payload []byte) (*Packet, error) {
	if len(payload) < 1 {
		return nil, errors.New("wire: empty packet payload")
	}
	body := make([]byte, len(payload)-1)
	copy(body, payload[1:])
	return &Packet{Type: MessageType(payload[0]), Payload: body}, nil
}

// Disconnect is SSH_MSG_DISCONNECT: the remote is tearing the connection
// down and no further messages follow in either direction.
type Disconnect struct {
	ReasonCode  uint32
	Description string
	Language    string
}

// Marshal encodes the message, type byte included.
func (m *Disconnect) Marshal() ([]byte, error) {
	b := NewBuffer()
	b.PutByte(byte(MsgDisconnect))
	b.PutUint32(m.ReasonCode)
	b.PutText(m.Description)
	b.PutText(m.Language)
	return b.Bytes(), nil
}

// ParseDisconnect decodes a SSH_MSG_DISCONNECT body.
func ParseDisconnect(body []byte) (*Disconnect, error) {
	r := NewReader(body)
	m := &Disconnect{}
	var err error
	if m.ReasonCode, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("wire: disconnect reason: %w", err)
	}
	if m.Description, err = r.Text(); err != nil {
		return nil, fmt.Errorf("wire: disconnect description: %w", err)
	}
	// The language tag is absent in some implementations.
	if r.Remaining() > 0 {
		if m.Language, err = r.Text(); err != nil {
			return nil, fmt.Errorf("wire: disconnect language: %w", err)
		}
	}
	return m, nil
}

// Ignore is SSH_MSG_IGNORE, discarded on receipt.
type Ignore struct {
	Data []byte
}

// Marshal encodes the message, type byte included.
func (m *Ignore) Marshal() ([]byte, error) {
	b := NewBuffer()
	b.PutByte(byte(MsgIgnore))
	b.PutString(m.Data)
	return b.Bytes(), nil
}

// ParseIgnore decodes a SSH_MSG_IGNORE body.
func ParseIgnore(body []byte) (*Ignore, error) {
	r := NewReader(body)
	data, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("wire: ignore data: %w", err)
	}
	return &Ignore{Data: data}, nil
}

// Unimplemented is SSH_MSG_UNIMPLEMENTED, referencing the sequence number
// of the packet the remote could not interpret.
type Unimplemented struct {
	SequenceNumber uint32
}

// Marshal encodes the message, type byte included.
func (m *Unimplemented) Marshal() ([]byte, error) {
	b := NewBuffer()
	b.PutByte(byte(MsgUnimplemented))
	b.PutUint32(m.SequenceNumber)
	return b.Bytes(), nil
}

// ParseUnimplemented decodes a SSH_MSG_UNIMPLEMENTED body.
func ParseUnimplemented(body []byte) (*Unimplemented, error) {
	r := NewReader(body)
	seq, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("wire: unimplemented sequence: %w", err)
	}
	return &Unimplemented{SequenceNumber: seq}, nil
}

// Debug is SSH_MSG_DEBUG. AlwaysDisplay asks the receiver to surface the
// message to the user rather than a debug log.
type Debug struct {
	AlwaysDisplay bool
	Message       string
	Language      string
}

// Marshal encodes the message, type byte included.
func (m *Debug) Marshal() ([]byte, error) {
	b := NewBuffer()
	b.PutByte(byte(MsgDebug))
	b.PutBool(m.AlwaysDisplay)
	b.PutText(m.Message)
	b.PutText(m.Language)
	return b.Bytes(), nil
}

// ParseDebug decodes a SSH_MSG_DEBUG body.
func ParseDebug(body []byte) (*Debug, error) {
	r := NewReader(body)
	m := &Debug{}
	var err error
	if m.AlwaysDisplay, err = r.Bool(); err != nil {
		return nil, fmt.Errorf("wire: debug flag: %w", err)
	}
	if m.Message, err = r.Text(); err != nil {
		return nil, fmt.Errorf("wire: debug message: %w", err)
	}
	if r.Remaining() > 0 {
		if m.Language, err = r.Text(); err != nil {
			return nil, fmt.Errorf("wire: debug language: %w", err)
		}
	}
	return m, nil
}

// ServiceRequest is SSH_MSG_SERVICE_REQUEST.
type ServiceRequest struct {
	Service string
}

// Marshal encodes the message, type byte included.
func (m *ServiceRequest) Marshal() ([]byte, error) {
	b := NewBuffer()
	b.PutByte(byte(MsgServiceRequest))
	b.PutText(m.Service)
	return b.Bytes(), nil
}

// ParseServiceRequest decodes a SSH_MSG_SERVICE_REQUEST body.
func ParseServiceRequest(body []byte) (*ServiceRequest, error) {
	r := NewReader(body)
	svc, err := r.Text()
	if err != nil {
		return nil, fmt.Errorf("wire: service request: %w", err)
	}
	return &ServiceRequest{Service: svc}, nil
}

// ServiceAccept is SSH_MSG_SERVICE_ACCEPT.
type ServiceAccept struct {
	Service string
}

// Marshal encodes the message, type byte included.
func (m *ServiceAccept) Marshal() ([]byte, error) {
	b := NewBuffer()
	b.PutByte(byte(MsgServiceAccept))
	b.PutText(m.Service)
	return b.Bytes(), nil
}

// ParseServiceAccept decodes a SSH_MSG_SERVICE_ACCEPT body.
func ParseServiceAccept(body []byte) (*ServiceAccept, error) {
	r := NewReader(body)
	svc, err := r.Text()
	if err != nil {
		return nil, fmt.Errorf("wire: service accept: %w", err)
	}
	return &ServiceAccept{Service: svc}, nil
}

// KexInit is SSH_MSG_KEXINIT: one side's algorithm proposal for a key
// exchange cycle. Both proposals together determine the negotiated set.
type KexInit struct {
	Cookie                  [16]byte
	KexAlgorithms           []string
	ServerHostKeyAlgorithms []string
	CiphersClientToServer   []string
	CiphersServerToClient   []string
	MACsClientToServer      []string
	MACsServerToClient      []string
	CompressionClientServer []string
	CompressionServerClient []string
	LanguagesClientToServer []string
	LanguagesServerToClient []string
	FirstKexPacketFollows   bool
}

// Marshal encodes the proposal, type byte included.
func (m *KexInit) Marshal() ([]byte, error) {
	b := NewBuffer()
	b.PutByte(byte(MsgKexInit))
	b.PutRaw(m.Cookie[:])
	b.PutNameList(m.KexAlgorithms)
	b.PutNameList(m.ServerHostKeyAlgorithms)
	b.PutNameList(m.CiphersClientToServer)
	b.PutNameList(m.CiphersServerToClient)
	b.PutNameList(m.MACsClientToServer)
	b.PutNameList(m.MACsServerToClient)
	b.PutNameList(m.CompressionClientServer)
	b.PutNameList(m.CompressionServerClient)
	b.PutNameList(m.LanguagesClientToServer)
	b.PutNameList(m.LanguagesServerToClient)
	b.PutBool(m.FirstKexPacketFollows)
	b.PutUint32(0) // reserved
	return b.Bytes(), nil
}

// ParseKexInit decodes a SSH_MSG_KEXINIT body.
func ParseKexInit(body []byte) (*KexInit, error) {
	r := NewReader(body)
	m := &KexInit{}
	if r.Remaining() < len(m.Cookie) {
		return nil, fmt.Errorf("wire: kexinit cookie: %w", ErrTruncated)
	}
	for i := range m.Cookie {
		m.Cookie[i], _ = r.Byte()
	}
	lists := []*[]string{
		&m.KexAlgorithms, &m.ServerHostKeyAlgorithms,
		&m.CiphersClientToServer, &m.CiphersServerToClient,
		&m.MACsClientToServer, &m.MACsServerToClient,
		&m.CompressionClientServer, &m.CompressionServerClient,
		&m.LanguagesClientToServer, &m.LanguagesServerToClient,
	}
	for i, dst := range lists {
		v, err := r.NameList()
		if err != nil {
			return nil, fmt.Errorf("wire: kexinit name-list %d: %w", i, err)
		}
		*dst = v
	}
	var err error
	if m.FirstKexPacketFollows, err = r.Bool(); err != nil {
		return nil, fmt.Errorf("wire: kexinit follows flag: %w", err)
	}
	if _, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("wire: kexinit reserved: %w", err)
	}
	return m, nil
}

// NewKeys is SSH_MSG_NEWKEYS: the sender switches to the freshly
// negotiated keys for everything after this packet.
type NewKeys struct{}

// Marshal encodes the message, type byte included.
func (m *NewKeys) Marshal() ([]byte, error) {
	return []byte{byte(MsgNewKeys)}, nil
}

// KexECDHInit is SSH_MSG_KEX_ECDH_INIT carrying the client's ephemeral
// public key (RFC 5656 section 4).
type KexECDHInit struct {
	ClientPublicKey []byte
}

// Marshal encodes the message, type byte included.
func (m *KexECDHInit) Marshal() ([]byte, error) {
	b := NewBuffer()
	b.PutByte(byte(MsgKexECDHInit))
	b.PutString(m.ClientPublicKey)
	return b.Bytes(), nil
}

// ParseKexECDHInit decodes a SSH_MSG_KEX_ECDH_INIT body.
func ParseKexECDHInit(body []byte) (*KexECDHInit, error) {
	r := NewReader(body)
	pub, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("wire: ecdh init: %w", err)
	}
	return &KexECDHInit{ClientPublicKey: pub}, nil
}

// KexECDHReply is SSH_MSG_KEX_ECDH_REPLY carrying the server host key,
// the server's ephemeral public key and the signature over the exchange
// hash.
type KexECDHReply struct {
	HostKeyBlob     []byte
	ServerPublicKey []byte
	Signature       []byte
}

// Marshal encodes the message, type byte included.
func (m *KexECDHReply) Marshal() ([]byte, error) {
	b := NewBuffer()
	b.PutByte(byte(MsgKexECDHReply))
	b.PutString(m.HostKeyBlob)
	b.PutString(m.ServerPublicKey)
	b.PutString(m.Signature)
	return b.Bytes(), nil
}

// ParseKexECDHReply decodes a SSH_MSG_KEX_ECDH_REPLY body.
func ParseKexECDHReply(body []byte) (*KexECDHReply, error) {
	r := NewReader(body)
	m := &KexECDHReply{}
	var err error
	if m.HostKeyBlob, err = r.String(); err != nil {
		return nil, fmt.Errorf("wire: ecdh reply host key: %w", err)
	}
	if m.ServerPublicKey, err = r.String(); err != nil {
		return nil, fmt.Errorf("wire: ecdh reply public key: %w", err)
	}
	if m.Signature, err = r.String(); err != nil {
		return nil, fmt.Errorf("wire: ecdh reply signature: %w", err)
	}
	return m, nil
}
