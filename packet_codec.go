package pcap

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// A Packet encodes as a protobuf message:
//
//	message Packet {
//	  sint64 seconds = 1;
//	  sint64 microseconds = 2;
//	  uint32 length = 3;
//	  uint32 captured_length = 4;
//	  bytes body = 5;
//	}
const (
	fieldSeconds        protowire.Number = 1
	fieldMicroseconds   protowire.Number = 2
	fieldLength         protowire.Number = 3
	fieldCapturedLength protowire.Number = 4
	fieldBody           protowire.Number = 5
)

// MarshalBinary encode the header and body
func (p *Packet) MarshalBinary() ([]byte, error) {
	return p.AppendBinary(make([]byte, 0, len(p.body)+32))
}

// AppendBinary append the encoded packet to b
func (p *Packet) AppendBinary(b []byte) ([]byte, error) {
	b = protowire.AppendTag(b, fieldSeconds, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(p.header.Timestamp.Seconds))
	b = protowire.AppendTag(b, fieldMicroseconds, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(p.header.Timestamp.Microseconds))
	b = protowire.AppendTag(b, fieldLength, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.header.Length))
	b = protowire.AppendTag(b, fieldCapturedLength, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.header.CapturedLength))
	b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
	b = protowire.AppendBytes(b, p.body)
	return b, nil
}

// UnmarshalBinary decode a packet written by MarshalBinary. Unknown fields
// are skipped. The body must hold exactly the captured length.
func (p *Packet) UnmarshalBinary(data []byte) error {
	var (
		h    PacketHeader
		body = []byte{}
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case typ == protowire.VarintType && num >= fieldSeconds && num <= fieldCapturedLength:
			var v uint64
			v, n = protowire.ConsumeVarint(data)
			if n < 0 {
				break
			}
			if err := h.setField(num, v); err != nil {
				return err
			}
		case typ == protowire.BytesType && num == fieldBody:
			var v []byte
			v, n = protowire.ConsumeBytes(data)
			if n < 0 {
				break
			}
			body = make([]byte, len(v))
			copy(body, v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrCorrupt, num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	if uint64(len(body)) != uint64(h.CapturedLength) {
		return fmt.Errorf("%w: body has %d bytes, captured length is %d", ErrCorrupt, len(body), h.CapturedLength)
	}
	p.header, p.body = h, body
	return nil
}

func (h *PacketHeader) setField(num protowire.Number, v uint64) error {
	switch num {
	case fieldSeconds:
		h.Timestamp.Seconds = protowire.DecodeZigZag(v)
	case fieldMicroseconds:
		h.Timestamp.Microseconds = protowire.DecodeZigZag(v)
	case fieldLength, fieldCapturedLength:
		if v > math.MaxUint32 {
			return fmt.Errorf("%w: field %d value %d out of range", ErrCorrupt, num, v)
		}
		if num == fieldLength {
			h.Length = uint32(v)
		} else {
			h.CapturedLength = uint32(v)
		}
	}
	return nil
}
