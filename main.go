// ABOUTME: Entry point for the mtrack remote
// ABOUTME: Parses CLI flags, sets up logging, and runs the remote application
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/mtrack-remote/mtrack-remote-go/internal/app"
	"github.com/mtrack-remote/mtrack-remote-go/internal/config"
	"github.com/mtrack-remote/mtrack-remote-go/internal/remote"
	"github.com/mtrack-remote/mtrack-remote-go/internal/version"
)

var (
	mtrackAddr  = flag.String("mtrack", "", "mtrack OSC address host:port (overrides config file)")
	listenPort  = flag.Int("listen-port", 0, "Local UDP port for mtrack replies (overrides config file)")
	configPath  = flag.String("config", "", "Config file path (default: user config dir)")
	httpAddr    = flag.String("http", ":8080", "Web remote listen address (empty disables)")
	name        = flag.String("name", "", "mDNS instance name (default: hostname)")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, stream logs to stdout")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement of the web remote")
	logFile     = flag.String("log-file", "mtrack-remote.log", "Log file path")
	poll        = flag.Duration("poll", remote.DefaultInterval, "State poll interval")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	path := *configPath
	if path == "" {
		path, err = config.DefaultPath()
		if err != nil {
			log.Printf("No user config dir (%v), running without a config file", err)
		}
	}

	if !useTUI {
		log.Printf("Starting %s", version.String())
		log.Printf("Config: %s", path)
		log.Printf("Logging to: %s", *logFile)
		log.Printf("Press Ctrl-C to stop")
	}

	a := app.New(app.Config{
		ConfigPath:   path,
		MtrackAddr:   *mtrackAddr,
		ListenPort:   *listenPort,
		HTTPAddr:     *httpAddr,
		Name:         *name,
		PollInterval: *poll,
		UseTUI:       useTUI,
		EnableMDNS:   !*noMDNS,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Received interrupt signal")
		a.Stop()
	}()

	if err := a.Start(); err != nil {
		log.Printf("Remote error: %v", err)
		_ = f.Close()
		if useTUI {
			fmt.Fprintf(os.Stderr, "mtrack-remote: %v\n", err)
		}
		os.Exit(1)
	}
}
