// Package wire implements the SSH binary wire encoding used by the
// transport layer: the primitive field codec (bytes, booleans, uint32s,
// strings, name-lists and mpints) and the typed transport-level messages
// built on top of it (DISCONNECT, IGNORE, UNIMPLEMENTED, DEBUG, KEXINIT,
// NEWKEYS and the ECDH key-exchange pair).
//
// Message types outside the transport-control range are carried as opaque
// Packet values and never interpreted here.
//
// Example:
//
//	msg := &wire.Debug{AlwaysDisplay: true, Message: "hello"}
//	payload, err := msg.Marshal()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pkt, err := wire.ParsePacket(payload)
package wire
