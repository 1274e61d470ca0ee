// keychord - global keyboard chord daemon
// Runs configured actions when a key combination is held down.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"keychord/internal/api"
	"keychord/internal/autostart"
	"keychord/internal/binder"
	"keychord/internal/config"
	"keychord/internal/hotkey"
	"keychord/internal/network"
	"keychord/internal/osutils"
	"keychord/internal/tray"
)

var (
	version    = "0.1.0"
	configPath = flag.String("config", "", "Path to the config file (default: per-user config dir)")
	showVer    = flag.Bool("version", false, "Show version")
	checkOnly  = flag.Bool("check", false, "Validate the config file and exit")
	noTray     = flag.Bool("no-tray", false, "Run without the system tray icon")
	autoStart  = flag.String("autostart", "", "Start at login: enable, disable or status")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("keychord version %s\n", version)
		return
	}

	if *autoStart != "" {
		handleAutostart(*autoStart)
		return
	}

	cfgMgr, err := config.NewManager(*configPath)
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	if *checkOnly {
		if err := cfgMgr.Load(); err != nil {
			log.Fatalf("Config %s is invalid: %v", cfgMgr.Path(), err)
		}
		fmt.Printf("%s: %d chords OK\n", cfgMgr.Path(), len(cfgMgr.Get().Chords))
		return
	}

	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}
	runService(cfgMgr)
}

func handleAutostart(mode string) {
	switch mode {
	case "enable":
		var args []string
		if *configPath != "" {
			args = append(args, "-config", *configPath)
		}
		entry, err := autostart.Current(args...)
		if err != nil {
			log.Fatalf("Failed to enable autostart: %v", err)
		}
		if err := autostart.Enable(entry); err != nil {
			log.Fatalf("Failed to enable autostart: %v", err)
		}
		fmt.Printf("Autostart enabled: %s\n", entry.CommandLine())
	case "disable":
		if err := autostart.Disable(); err != nil {
			log.Fatalf("Failed to disable autostart: %v", err)
		}
		fmt.Println("Autostart disabled")
	case "status":
		fmt.Printf("Autostart enabled: %v\n", autostart.IsEnabled())
	default:
		log.Fatalf("Unknown -autostart mode %q (want enable, disable or status)", mode)
	}
}

func runService(cfgMgr *config.Manager) {
	log.Println("keychord service starting...")
	cfg := cfgMgr.Get()

	// Forward local key events to another daemon
	var forwarder *network.Forwarder
	opts := []hotkey.Option{hotkey.WithPlatformHook(cfg.General.PlatformHook)}
	if cfg.General.ForwardTo != "" {
		forwarder = network.NewForwarder(cfg.General.ForwardTo, cfg.General.APIToken)
		opts = append(opts, hotkey.WithTap(forwarder.SendKey))
		forwarder.Start()
	}

	engine := hotkey.NewEngine(opts...)

	var apiServer *api.Server
	if cfg.General.ListenAddr != "" {
		apiServer = api.NewServer(engine, cfg.General.APIToken)
		if port, err := osutils.ExposedPort(cfg.General.ListenAddr); err == nil && port > 0 {
			if cfg.General.APIToken == "" {
				log.Printf("Warning: API on %s accepts key events from the network without a token", cfg.General.ListenAddr)
			}
			if runtime.GOOS == "windows" {
				go func() {
					if err := osutils.EnsureFirewallRule(port); err != nil {
						log.Printf("Firewall warning: %v", err)
					}
				}()
			}
		}
		if urls, err := network.WebSocketURLs(cfg.General.ListenAddr); err == nil {
			for _, u := range urls {
				log.Printf("Remote key sources can connect to %s", u)
			}
		}
		go func() {
			if err := apiServer.Start(cfg.General.ListenAddr); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	var notifier binder.Notifier
	if apiServer != nil {
		notifier = apiServer
	}
	b := binder.New(engine, notifier)

	log.Printf("Bound %d chords", b.Apply(cfg))
	cfgMgr.OnChange(func(c *config.Config) {
		log.Printf("Config changed, bound %d chords", b.Apply(c))
	})
	cfgMgr.Watch()

	shutdown := func() {
		log.Println("Shutting down...")
		if forwarder != nil {
			forwarder.Close()
		}
		if apiServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := apiServer.Shutdown(ctx); err != nil {
				log.Printf("API shutdown error: %v", err)
			}
			cancel()
		}
		if err := engine.Close(); err != nil {
			log.Printf("Hotkey engine close error: %v", err)
		}
		b.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *noTray || !cfg.General.Tray {
		log.Println("keychord service running. Press Ctrl+C to stop.")
		<-sigCh
		shutdown()
		return
	}

	t := tray.New("keychord", "keychord - global chords")
	pauseItem := t.AddCheckbox("Pause chords", "Stop running chord actions", engine.Paused(), func(checked bool) {
		engine.SetPaused(checked)
		log.Printf("Chords paused: %v", checked)
	})
	t.AddItem("Reload config", "Read the config file again", func() {
		if err := cfgMgr.Load(); err != nil {
			log.Printf("Reload failed: %v", err)
		}
	})
	t.AddSeparator()
	t.AddItem("Quit", "", t.Stop)

	// Pause can also be toggled over the API
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.SetChecked(pauseItem, engine.Paused())
			case <-done:
				return
			}
		}
	}()

	go func() {
		<-sigCh
		t.Stop()
	}()

	t.OnExit(func() {
		close(done)
		shutdown()
	})

	log.Println("keychord service running. Press Ctrl+C to stop.")
	t.Run()
}
