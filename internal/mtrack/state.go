// ABOUTME: Playback state snapshot and inbound message handling
// ABOUTME: Apply folds decoded OSC packets into a new PlaybackState
package mtrack

import (
	"log"
	"strings"

	"github.com/mtrack-remote/mtrack-remote-go/internal/osc"
)

// Inbound addresses
const (
	AddrCurrentSong = "/mtrack/playlist/current_song"
	AddrSetlist     = "/mtrack/playlist/current"
	AddrElapsed     = "/mtrack/playlist/current_song/elapsed"
	AddrStatus      = "/mtrack/status"
)

// StatusPlaying is the only status value that means playback is running
const StatusPlaying = "Playing"

// PlaybackState is the most recent view of the engine
type PlaybackState struct {
	IsPlaying   bool     `json:"is_playing"`
	Elapsed     string   `json:"elapsed"`
	CurrentSong string   `json:"current_song"`
	Setlist     []string `json:"setlist"`
}

// Clone returns a deep copy
func (s PlaybackState) Clone() PlaybackState {
	if s.Setlist != nil {
		s.Setlist = append([]string(nil), s.Setlist...)
	}
	return s
}

// Apply returns s updated by p. Groups apply their packets in order.
func Apply(s PlaybackState, p osc.Packet) PlaybackState {
	switch v := p.(type) {
	case *osc.Message:
		return applyMessage(s, v)
	case *osc.Group:
		for _, child := range v.Packets {
			s = Apply(s, child)
		}
	}
	return s
}

func applyMessage(s PlaybackState, m *osc.Message) PlaybackState {
	text := strings.Join(m.Strings(), "")

	switch m.Address {
	case AddrCurrentSong:
		s.CurrentSong = text
	case AddrSetlist:
		s.Setlist = splitSetlist(m)
	case AddrElapsed:
		s.Elapsed = text
	case AddrStatus:
		s.IsPlaying = text == StatusPlaying
	default:
		log.Printf("mtrack: ignoring %s %v", m.Address, m.Args)
	}
	return s
}

// splitSetlist always builds a fresh slice so snapshots never share backing arrays
func splitSetlist(m *osc.Message) []string {
	parts := m.Strings()
	if len(parts) == 0 {
		return []string{}
	}
	return strings.Split(strings.Join(parts, ""), "\n")
}
