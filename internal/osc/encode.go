// ABOUTME: OSC binary encoder
// ABOUTME: Messages are serialized by go-osc, groups are framed here to keep element order
package osc

import (
	"encoding/binary"
	"fmt"

	gosc "github.com/hypebeast/go-osc/osc"
)

// Marshal serializes a packet tree into one datagram payload
func Marshal(p Packet) ([]byte, error) {
	switch v := p.(type) {
	case *Message:
		return marshalMessage(v)
	case *Group:
		return marshalGroup(v)
	default:
		return nil, fmt.Errorf("osc: cannot marshal %T", p)
	}
}

func marshalMessage(m *Message) ([]byte, error) {
	if len(m.Address) == 0 || m.Address[0] != '/' {
		return nil, fmt.Errorf("osc: invalid address %q", m.Address)
	}

	data, err := gosc.NewMessage(m.Address, m.Args...).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("osc: marshal %s: %w", m.Address, err)
	}
	return data, nil
}

func marshalGroup(g *Group) ([]byte, error) {
	timeTag := g.TimeTag
	if timeTag == 0 {
		timeTag = TimeTagImmediate
	}

	buf := make([]byte, bundleHeaderSize, 64)
	copy(buf, bundleTag)
	binary.BigEndian.PutUint64(buf[8:16], timeTag)

	for _, child := range g.Packets {
		data, err := Marshal(child)
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}

	if len(buf) > MaxDatagramSize {
		return nil, fmt.Errorf("osc: group of %d bytes exceeds datagram size", len(buf))
	}
	return buf, nil
}
