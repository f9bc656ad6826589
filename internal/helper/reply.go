package helper

import (
	"net"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	minIPHeaderLen = 20
	maxIPHeaderLen = 60
	icmpHeaderLen  = 8
	protocolICMP   = 1
)

// buildEchoRequest marshals a 64-byte ICMP echo request (8-byte header plus
// zero payload) with the given identifier and sequence. Marshal computes the
// RFC 1071 checksum.
func buildEchoRequest(id, seq uint16) ([]byte, error) {
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   int(id),
			Seq:  int(seq),
			Data: make([]byte, packetSize-icmpHeaderLen),
		},
	}
	return msg.Marshal(nil)
}

// matchEchoReply decides whether a raw packet is the reply to our request.
// A packet is accepted only when every criterion holds: enough bytes for an
// IP header, a sane declared header length, IP version 4, ICMP protocol,
// enough remaining bytes for the ICMP header, echo-reply type with code 0,
// our identifier, our sequence, and a source equal to the probed target.
// Anything else (replies to other processes, other sequences, truncated or
// spoofed packets) is rejected so the caller keeps waiting.
func matchEchoReply(packet []byte, id, seq uint16, target net.IP) (ttl int, ok bool) {
	if len(packet) < minIPHeaderLen {
		return 0, false
	}

	hdr, err := ipv4.ParseHeader(packet)
	if err != nil {
		return 0, false
	}
	if hdr.Len < minIPHeaderLen || hdr.Len > maxIPHeaderLen {
		return 0, false
	}
	if hdr.Version != ipv4.Version {
		return 0, false
	}
	if hdr.Protocol != protocolICMP {
		return 0, false
	}
	if len(packet) < hdr.Len+icmpHeaderLen {
		return 0, false
	}
	if !hdr.Src.Equal(target) {
		return 0, false
	}

	msg, err := icmp.ParseMessage(protocolICMP, packet[hdr.Len:])
	if err != nil {
		return 0, false
	}
	if msg.Type != ipv4.ICMPTypeEchoReply || msg.Code != 0 {
		return 0, false
	}
	echo, ok := msg.Body.(*icmp.Echo)
	if !ok {
		return 0, false
	}
	if echo.ID != int(id) || echo.Seq != int(seq) {
		return 0, false
	}

	return hdr.TTL, true
}
