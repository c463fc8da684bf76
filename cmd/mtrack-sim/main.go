// ABOUTME: Entry point for the mtrack emulator
// ABOUTME: Runs a fake mtrack engine so the remote can be exercised without stage hardware
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/mtrack-remote/mtrack-remote-go/internal/config"
	"github.com/mtrack-remote/mtrack-remote-go/internal/mtracksim"
)

var (
	listen  = flag.String("listen", fmt.Sprintf("127.0.0.1:%d", config.DefaultMtrackPort), "UDP address to answer OSC on")
	setlist = flag.StringSlice("setlist", nil, "Comma-separated song names (default: built-in setlist)")
)

func main() {
	flag.Parse()

	engine, err := mtracksim.New(mtracksim.Config{
		ListenAddr: *listen,
		Setlist:    *setlist,
	})
	if err != nil {
		log.Fatalf("Emulator error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down...", sig)
		cancel()
	}()

	log.Printf("Press Ctrl-C to stop")
	if err := engine.Serve(ctx); err != nil {
		log.Fatalf("Emulator error: %v", err)
	}

	log.Printf("Emulator stopped")
}
