package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/yourusername/healthwatch/api"
	"github.com/yourusername/healthwatch/cmd"
	"github.com/yourusername/healthwatch/core"
)

// GlobalOptions represents command line global options
type GlobalOptions struct {
	ConfigPath string
	Port       int
	Help       bool
	Version    bool
	Quiet      bool
}

// parseCommandLine parses command line arguments
func parseCommandLine() (command string, options GlobalOptions) {
	args := os.Args[1:]

	if len(args) == 0 {
		options.Help = true
		return
	}

	command = args[0]

	i := 1
	for i < len(args) {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				options.ConfigPath = args[i+1]
				i++
			}
		case "-p":
			if i+1 < len(args) {
				if port, err := strconv.Atoi(args[i+1]); err == nil {
					options.Port = port
				}
				i++
			}
		case "-h", "--help":
			options.Help = true
		case "-v", "--version":
			options.Version = true
		case "-q", "--quiet":
			options.Quiet = true
		}
		i++
	}

	if options.ConfigPath == "" {
		home, _ := os.UserHomeDir()
		options.ConfigPath = home + "/.healthwatch/config.yaml"
	}

	return command, options
}

// handleStart starts the engine: scheduler, self-monitor, config watcher
// and the API server, then blocks until a stop signal arrives
func handleStart(options GlobalOptions) {
	config, err := cmd.LoadConfig(options.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if options.Port > 0 {
		config.Web.Port = options.Port
	}

	app, err := core.NewApp(config)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	if err := app.Initialize(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	daemon := core.NewDaemonManager(core.ResolveDataDir(config))
	if running, pid, _ := daemon.IsRunning(); running {
		fmt.Printf("healthwatch is already running (PID: %d)\n", pid)
		fmt.Println("use 'healthwatch stop' to stop it first")
		return
	}
	if err := daemon.WritePID(); err != nil {
		log.Printf("Warning: Failed to write PID file: %v", err)
	}

	if err := app.Start(); err != nil {
		daemon.RemovePID()
		log.Fatalf("Failed to start engine: %v", err)
	}

	watcher, err := core.NewConfigWatcher(os.ExpandEnv(options.ConfigPath), cmd.ReloadConfig, app.ApplyConfig)
	if err != nil {
		log.Printf("Warning: config hot-reload disabled: %v", err)
	} else {
		watcher.Start()
	}

	var server *api.Server
	if config.Web.Enabled {
		server = api.NewServer(app, config.Web.Port)
		server.Start()
		if !options.Quiet {
			server.PrintStartupInfo()
		}
	}

	if !options.Quiet {
		fmt.Printf("healthwatch started (%d checks, config: %s)\n", len(config.Checks), options.ConfigPath)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, core.ReloadSignal())

	for {
		sig := <-sigChan
		if sig == core.ReloadSignal() {
			// Manual reload for hosts where the file watcher cannot help
			config, err := cmd.ReloadConfig(options.ConfigPath)
			if err != nil {
				log.Printf("Warning: signal-triggered reload failed, keeping previous policy: %v", err)
				continue
			}
			if err := core.ValidateConfig(config); err != nil {
				log.Printf("Warning: reloaded config invalid, keeping previous policy: %v", err)
				continue
			}
			app.ApplyConfig(config)
			continue
		}
		break
	}

	fmt.Println("\nshutting down...")
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Warning: API server shutdown: %v", err)
		}
		cancel()
	}
	if watcher != nil {
		watcher.Stop()
	}
	app.Stop()
	daemon.RemovePID()
}

// handleStop stops a running engine via its PID file
func handleStop(options GlobalOptions) {
	config, err := cmd.LoadConfig(options.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	daemon := core.NewDaemonManager(core.ResolveDataDir(config))
	running, pid, err := daemon.IsRunning()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if !running {
		fmt.Println("healthwatch is not running")
		return
	}

	if err := daemon.Stop(); err != nil {
		fmt.Printf("Failed to stop (PID: %d): %v\n", pid, err)
		return
	}
	fmt.Printf("healthwatch stopped (PID: %d)\n", pid)
}

// handleStatus shows whether the engine runs and what is currently failing
func handleStatus(options GlobalOptions) {
	config, err := cmd.LoadConfig(options.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dataDir := core.ResolveDataDir(config)
	daemon := core.NewDaemonManager(dataDir)
	running, pid, _ := daemon.IsRunning()
	if running {
		fmt.Printf("status:  running (PID: %d)\n", pid)
	} else {
		fmt.Println("status:  stopped")
	}
	fmt.Printf("config:  %s\n", options.ConfigPath)
	fmt.Printf("data:    %s\n", dataDir)
	fmt.Printf("checks:  %d configured\n", len(config.Checks))

	storage := core.NewStorage(dataDir, config.Storage)
	if err := storage.Initialize(); err != nil {
		fmt.Printf("storage: unavailable (%v)\n", err)
		return
	}
	defer storage.Close()

	incidents, err := storage.ListIncidents(core.IncidentActive, 50)
	if err != nil {
		fmt.Printf("storage: query failed (%v)\n", err)
		return
	}
	if len(incidents) == 0 {
		fmt.Println("incidents: none active")
		return
	}
	fmt.Printf("incidents: %d active\n", len(incidents))
	for _, inc := range incidents {
		fmt.Printf("  [%s] %s  since %s  (%d failures)\n",
			inc.Severity, inc.CheckName, inc.FirstSeen.Format(time.RFC3339), inc.FailureCount)
	}
}

func main() {
	command, options := parseCommandLine()

	if options.Version || command == "version" {
		fmt.Printf("healthwatch v%s\n", core.Version)
		return
	}
	if options.Help || command == "help" || command == "" {
		cmd.PrintUsage(core.Version)
		return
	}

	switch command {
	case "start":
		handleStart(options)
	case "stop":
		handleStop(options)
	case "status":
		handleStatus(options)
	default:
		fmt.Printf("unknown command: %s\n\n", command)
		cmd.PrintUsage(core.Version)
		os.Exit(1)
	}
}
