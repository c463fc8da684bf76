// ABOUTME: High-level mtrack remote library API
// ABOUTME: Controls an mtrack engine over OSC without the web or terminal front-ends
// Package mtrack provides a small client for controlling the mtrack
// playback engine over UDP/OSC.
//
// A Client owns one connection: it binds a local UDP port for the engine's
// replies, sends transport commands, and keeps the latest playback state the
// engine has reported.
//
// Example:
//
//	client, err := mtrack.Dial(mtrack.Config{
//	    Addr:       "192.168.1.20:43234",
//	    ListenPort: 43236,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Refresh(ctx)
//	err = client.Play(ctx)
//	state, err := client.State()
package mtrack
