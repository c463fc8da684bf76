// ABOUTME: OSC binary decoder
// ABOUTME: Walks bundles recursively and hands message bodies to go-osc
package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"

	gosc "github.com/hypebeast/go-osc/osc"
)

var bundleTag = []byte("#bundle\x00")

// bundleHeaderSize is the tag plus the 64-bit time tag
const bundleHeaderSize = 16

// Decode parses one datagram into a packet tree. Nesting depth is limited
// only by the datagram size, since every group costs at least 20 bytes.
func Decode(data []byte) (Packet, error) {
	return decodeAt(data, 0)
}

func decodeAt(data []byte, offset int) (Packet, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Offset: offset, Reason: "empty packet"}
	}

	switch {
	case data[0] == '/':
		return decodeMessage(data, offset)
	case bytes.HasPrefix(data, bundleTag):
		return decodeGroup(data, offset)
	default:
		return nil, &DecodeError{Offset: offset, Reason: fmt.Sprintf("unexpected leading byte 0x%02x", data[0])}
	}
}

func decodeGroup(data []byte, offset int) (*Group, error) {
	if len(data) < bundleHeaderSize {
		return nil, &DecodeError{Offset: offset, Reason: "truncated bundle header"}
	}

	group := &Group{TimeTag: binary.BigEndian.Uint64(data[8:16])}

	pos := bundleHeaderSize
	for pos < len(data) {
		if len(data)-pos < 4 {
			return nil, &DecodeError{Offset: offset + pos, Reason: "truncated bundle element size"}
		}
		size := int(int32(binary.BigEndian.Uint32(data[pos : pos+4])))
		pos += 4

		if size <= 0 || size%4 != 0 {
			return nil, &DecodeError{Offset: offset + pos - 4, Reason: fmt.Sprintf("invalid bundle element size %d", size)}
		}
		if size > len(data)-pos {
			return nil, &DecodeError{Offset: offset + pos - 4, Reason: fmt.Sprintf("bundle element size %d exceeds remaining %d bytes", size, len(data)-pos)}
		}

		child, err := decodeAt(data[pos:pos+size], offset+pos)
		if err != nil {
			return nil, err
		}
		group.Packets = append(group.Packets, child)
		pos += size
	}

	return group, nil
}

func decodeMessage(data []byte, offset int) (msg *Message, err error) {
	if bytes.IndexByte(data, 0) < 0 {
		return nil, &DecodeError{Offset: offset, Reason: "unterminated address"}
	}

	// go-osc trusts blob lengths from the wire and can panic on hostile input
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = &DecodeError{Offset: offset, Reason: fmt.Sprintf("malformed message: %v", r)}
		}
	}()

	parsed, perr := gosc.ParsePacket(string(data))
	if perr != nil {
		return nil, &DecodeError{Offset: offset, Reason: perr.Error()}
	}

	m, ok := parsed.(*gosc.Message)
	if !ok || m == nil {
		return nil, &DecodeError{Offset: offset, Reason: "not a message"}
	}

	return &Message{Address: m.Address, Args: m.Arguments}, nil
}
