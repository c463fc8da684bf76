// ABOUTME: Main remote application orchestration
// ABOUTME: Coordinates config, connection manager, poller, web remote, TUI, and discovery
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mtrack-remote/mtrack-remote-go/internal/config"
	"github.com/mtrack-remote/mtrack-remote-go/internal/connection"
	"github.com/mtrack-remote/mtrack-remote-go/internal/discovery"
	"github.com/mtrack-remote/mtrack-remote-go/internal/remote"
	"github.com/mtrack-remote/mtrack-remote-go/internal/ui"
	"github.com/mtrack-remote/mtrack-remote-go/internal/version"
	"github.com/mtrack-remote/mtrack-remote-go/internal/web"
)

// Config holds application configuration
type Config struct {
	// ConfigPath is the JSON config file; empty runs from defaults without saving
	ConfigPath string

	// MtrackAddr and ListenPort override the file when set
	MtrackAddr string
	ListenPort int

	// HTTPAddr is the web remote listen address; empty disables it
	HTTPAddr string

	// Name is the mDNS instance name (default: hostname)
	Name string

	PollInterval time.Duration
	UseTUI       bool
	EnableMDNS   bool
}

// App is the running remote
type App struct {
	config Config

	manager *connection.Manager
	remote  *remote.Remote
	web     *web.Server
	watcher *config.Watcher
	mdns    *discovery.Manager
	tui     *ui.TUI

	ready  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the application
func New(cfg Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		config:  cfg,
		manager: connection.NewManager(),
		ready:   make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// loadConfig reads the config file (creating it if missing) and applies flag overrides
func (a *App) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if a.config.ConfigPath != "" {
		loaded, created, err := config.Ensure(a.config.ConfigPath)
		if err != nil {
			return cfg, err
		}
		if created {
			log.Printf("App: wrote default config to %s", a.config.ConfigPath)
		}
		cfg = loaded
	}

	if a.config.MtrackAddr != "" {
		cfg.MtrackAddr = a.config.MtrackAddr
	}
	if a.config.ListenPort != 0 {
		cfg.ListenPort = a.config.ListenPort
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Start runs the remote until Stop is called, the TUI quits, or a server fails
func (a *App) Start() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log.Printf("App: %s starting, mtrack at %s, listening on UDP %d", version.String(), cfg.MtrackAddr, cfg.ListenPort)

	a.manager.OnError = func(err error) {
		log.Printf("App: transport: %v", err)
	}
	a.remote = remote.New(a.manager, cfg, remote.Options{
		Interval:   a.config.PollInterval,
		ConfigPath: a.config.ConfigPath,
	})

	if a.config.ConfigPath != "" {
		if err := a.startWatcher(); err != nil {
			log.Printf("App: config watch disabled: %v", err)
		}
	}

	errChan := make(chan error, 2)

	if a.config.HTTPAddr != "" {
		a.web = web.New(web.Config{Addr: a.config.HTTPAddr}, a.remote)
		if err := a.web.Listen(); err != nil {
			a.cancel()
			if a.watcher != nil {
				a.watcher.Close()
			}
			a.wg.Wait()
			return err
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.web.Serve(a.ctx); err != nil {
				errChan <- err
			}
		}()

		if a.config.EnableMDNS {
			a.mdns = discovery.NewManager(discovery.Config{
				ServiceName: a.config.Name,
				Port:        a.web.Port(),
			})
			if err := a.mdns.Advertise(); err != nil {
				log.Printf("App: mDNS advertisement failed: %v", err)
			}
		}
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- a.remote.Run(a.ctx)
	}()

	var tuiQuit <-chan struct{}
	tuiDone := make(chan error, 1)
	if a.config.UseTUI {
		a.tui = ui.New(a.remote)
		updates, unsubscribe := a.remote.Subscribe()
		go a.tui.Follow(updates)
		go func() {
			tuiDone <- a.tui.Run()
			unsubscribe()
		}()
		tuiQuit = a.tui.QuitChan()
	}

	close(a.ready)

	var startErr error
	select {
	case <-a.ctx.Done():
		log.Printf("App: shutting down...")
	case <-tuiQuit:
		log.Printf("App: TUI quit requested, shutting down...")
	case err := <-tuiDone:
		if err != nil {
			startErr = fmt.Errorf("TUI failed: %w", err)
		}
	case err := <-errChan:
		log.Printf("App: server error: %v", err)
		startErr = err
	}

	a.cancel()

	if a.tui != nil {
		a.tui.Stop()
	}
	if a.mdns != nil {
		a.mdns.Stop()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}

	if err := <-runDone; err != nil {
		log.Printf("App: release: %v", err)
		if startErr == nil {
			startErr = err
		}
	}
	a.wg.Wait()

	log.Printf("App: stopped")
	return startErr
}

// startWatcher applies config files written by other tools while running
func (a *App) startWatcher() error {
	w, err := config.Watch(a.config.ConfigPath)
	if err != nil {
		return err
	}
	a.watcher = w

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case cfg := <-w.Updates():
				if err := cfg.Validate(); err != nil {
					log.Printf("App: ignoring invalid config change: %v", err)
					continue
				}
				if err := a.remote.ApplyConfig(a.ctx, cfg); err != nil {
					log.Printf("App: apply config: %v", err)
				}
			case <-a.ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Ready is closed once every component has started
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// WebPort returns the bound web remote port, or 0 when disabled. Valid after Ready.
func (a *App) WebPort() int {
	if a.web == nil {
		return 0
	}
	return a.web.Port()
}

// Stop stops the application
func (a *App) Stop() {
	a.cancel()
}
