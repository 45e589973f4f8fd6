package wire

import (
	"bytes"
	"testing"
)

// TestDisconnectRoundTrip tests encode/decode of SSH_MSG_DISCONNECT,
// including the reason code and description the session error surfaces.
func TestDisconnectRoundTrip(t *testing.T) {
	msg := &Disconnect{
		ReasonCode:  DisconnectByApplication,
		Description: "shutting down",
		Language:    "en",
	}
	payload, err := msg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if payload[0] != byte(MsgDisconnect) {
		t.Fatalf("type byte = %d, want %d", payload[0], MsgDisconnect)
	}

	got, err := ParseDisconnect(payload[1:])
	if err != nil {
		t.Fatalf("ParseDisconnect() error: %v", err)
	}
	if got.ReasonCode != msg.ReasonCode || got.Description != msg.Description {
		t.Errorf("got %+v, want %+v", got, msg)
	}
}

// TestDisconnectWithoutLanguage tests that a missing language tag is
// tolerated; several servers omit it.
func TestDisconnectWithoutLanguage(t *testing.T) {
	b := NewBuffer()
	b.PutUint32(DisconnectProtocolError)
	b.PutText("bad packet")

	got, err := ParseDisconnect(b.Bytes())
	if err != nil {
		t.Fatalf("ParseDisconnect() error: %v", err)
	}
	if got.ReasonCode != DisconnectProtocolError || got.Description != "bad packet" {
		t.Errorf("unexpected result: %+v", got)
	}
}

// TestDebugRoundTrip tests encode/decode of SSH_MSG_DEBUG.
func TestDebugRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Debug
	}{
		{name: "always display", msg: &Debug{AlwaysDisplay: true, Message: "notice"}},
		{name: "debug only", msg: &Debug{Message: "trace detail", Language: "en"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.msg.Marshal()
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			got, err := ParseDebug(payload[1:])
			if err != nil {
				t.Fatalf("ParseDebug() error: %v", err)
			}
			if got.AlwaysDisplay != tt.msg.AlwaysDisplay || got.Message != tt.msg.Message {
				t.Errorf("got %+v, want %+v", got, tt.msg)
			}
		})
	}
}

// TestUnimplementedRoundTrip tests encode/decode of SSH_MSG_UNIMPLEMENTED.
func TestUnimplementedRoundTrip(t *testing.T) {
	payload, err := (&Unimplemented{SequenceNumber: 7}).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	got, err := ParseUnimplemented(payload[1:])
	if err != nil {
		t.Fatalf("ParseUnimplemented() error: %v", err)
	}
	if got.SequenceNumber != 7 {
		t.Errorf("SequenceNumber = %d, want 7", got.SequenceNumber)
	}
}

// TestKexInitRoundTrip tests that a full algorithm proposal survives
// encode/decode with every name-list intact.
func TestKexInitRoundTrip(t *testing.T) {
	msg := &KexInit{
		KexAlgorithms:           []string{"curve25519-sha256"},
		ServerHostKeyAlgorithms: []string{"ssh-ed25519"},
		CiphersClientToServer:   []string{"aes128-ctr", "aes256-ctr"},
		CiphersServerToClient:   []string{"aes128-ctr", "aes256-ctr"},
		MACsClientToServer:      []string{"hmac-sha2-256"},
		MACsServerToClient:      []string{"hmac-sha2-256"},
		CompressionClientServer: []string{"none", "zlib"},
		CompressionServerClient: []string{"none", "zlib"},
	}
	copy(msg.Cookie[:], bytes.Repeat([]byte{0xab}, 16))

	payload, err := msg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	got, err := ParseKexInit(payload[1:])
	if err != nil {
		t.Fatalf("ParseKexInit() error: %v", err)
	}

	if got.Cookie != msg.Cookie {
		t.Error("cookie mismatch")
	}
	if len(got.CiphersClientToServer) != 2 || got.CiphersClientToServer[1] != "aes256-ctr" {
		t.Errorf("ciphers = %v", got.CiphersClientToServer)
	}
	if len(got.CompressionServerClient) != 2 || got.CompressionServerClient[0] != "none" {
		t.Errorf("compression = %v", got.CompressionServerClient)
	}
	if got.FirstKexPacketFollows {
		t.Error("FirstKexPacketFollows should be false")
	}
}

// TestKexInitTruncated tests that a short proposal fails cleanly.
func TestKexInitTruncated(t *testing.T) {
	if _, err := ParseKexInit([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated kexinit")
	}
}

// TestKexECDHRoundTrip tests encode/decode of the ECDH exchange pair.
func TestKexECDHRoundTrip(t *testing.T) {
	initPayload, err := (&KexECDHInit{ClientPublicKey: bytes.Repeat([]byte{1}, 32)}).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	gotInit, err := ParseKexECDHInit(initPayload[1:])
	if err != nil {
		t.Fatalf("ParseKexECDHInit() error: %v", err)
	}
	if len(gotInit.ClientPublicKey) != 32 {
		t.Errorf("client key length = %d", len(gotInit.ClientPublicKey))
	}

	reply := &KexECDHReply{
		HostKeyBlob:     []byte("host-key-blob"),
		ServerPublicKey: bytes.Repeat([]byte{2}, 32),
		Signature:       []byte("signature-blob"),
	}
	replyPayload, err := reply.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	gotReply, err := ParseKexECDHReply(replyPayload[1:])
	if err != nil {
		t.Fatalf("ParseKexECDHReply() error: %v", err)
	}
	if !bytes.Equal(gotReply.HostKeyBlob, reply.HostKeyBlob) ||
		!bytes.Equal(gotReply.ServerPublicKey, reply.ServerPublicKey) ||
		!bytes.Equal(gotReply.Signature, reply.Signature) {
		t.Errorf("reply mismatch: %+v", gotReply)
	}
}

// TestPacketOpaque tests that unknown message types pass through Packet
// without interpretation.
func TestPacketOpaque(t *testing.T) {
	raw := []byte{90, 1, 2, 3, 4}
	pkt, err := ParsePacket(raw)
	if err != nil {
		t.Fatalf("ParsePacket() error: %v", err)
	}
	if pkt.Type != MessageType(90) || !bytes.Equal(pkt.Payload, []byte{1, 2, 3, 4}) {
		t.Errorf("packet = %+v", pkt)
	}

	back, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Equal(back, raw) {
		t.Errorf("Marshal() = %v, want %v", back, raw)
	}

	if _, err := ParsePacket(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
