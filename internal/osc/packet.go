// ABOUTME: OSC packet tree for the mtrack wire protocol
// ABOUTME: A packet is either a single message or a group (bundle) of packets
package osc

import (
	"errors"
	"fmt"
)

// TimeTagImmediate is the OSC time tag meaning "apply now".
const TimeTagImmediate uint64 = 1

// MaxDatagramSize is the largest UDP payload we will read or write.
const MaxDatagramSize = 65507

// ErrDecode is wrapped by every DecodeError
var ErrDecode = errors.New("osc: decode failed")

// DecodeError describes malformed wire input
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("osc: decode failed at byte %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// Packet is the decoded wire form: *Message or *Group
type Packet interface {
	packet()
}

// Message is an address pattern plus an ordered argument list
type Message struct {
	Address string
	Args    []any
}

// Group is an OSC bundle. Packets keep their wire order, and may themselves be groups.
type Group struct {
	TimeTag uint64
	Packets []Packet
}

func (*Message) packet() {}
func (*Group) packet()   {}

// NewMessage creates a message with the given arguments
func NewMessage(address string, args ...any) *Message {
	return &Message{Address: address, Args: args}
}

// NewGroup creates an immediate group holding packets in order
func NewGroup(packets ...Packet) *Group {
	return &Group{TimeTag: TimeTagImmediate, Packets: packets}
}

// Strings returns the string-typed arguments in order, skipping everything else
func (m *Message) Strings() []string {
	var out []string
	for _, arg := range m.Args {
		if s, ok := arg.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Walk calls fn for every message in p, depth first, in wire order.
func Walk(p Packet, fn func(*Message)) {
	switch v := p.(type) {
	case *Message:
		fn(v)
	case *Group:
		for _, child := range v.Packets {
			Walk(child, fn)
		}
	}
}
