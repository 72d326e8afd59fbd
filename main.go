package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/wardenproxy/warden/warden-srv/block"
	"github.com/wardenproxy/warden/warden-srv/cache"
	"github.com/wardenproxy/warden/warden-srv/config"
	"github.com/wardenproxy/warden/warden-srv/logger"
	"github.com/wardenproxy/warden/warden-srv/proxy"
	"github.com/wardenproxy/warden/warden-srv/stats"
)

var version string

func main() {
	cfg, configPath := parseFlagsAndConfig()
	blockSet, patterns := loadBlocklists(cfg)
	runProxy(cfg, configPath, blockSet, patterns)
}

// parseFlagsAndConfig handles CLI flags, environment, logging, and config
// loading. The CLI contract (§6) is a single positional argument — the
// listen port — kept alongside the teacher's richer flag set; a
// non-integer positional argument is logged and the default port is kept.
func parseFlagsAndConfig() (cfg *config.Config, configPath string) {
	versionFlag := flag.Bool("version", false, "Print version and exit")
	versionShortFlag := flag.Bool("v", false, "Print version and exit (shorthand)")
	configPathPtr := flag.String("config", "", "Path to configuration file (supports .json and .hcl formats)")
	envfile := flag.String("envfile", "", "Path to env file to load environment variables")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *versionFlag || *versionShortFlag {
		if version == "" {
			version = "dev"
		}
		fmt.Println("warden version:", version)
		os.Exit(0)
	}

	if *envfile != "" {
		if err := loadEnvFile(*envfile); err != nil {
			logger.Fatal("Failed to load envfile: %v", err)
		}
		logger.Info("Loaded environment variables from %s", *envfile)
	}

	if *debugMode {
		logger.SetLevel(logger.DEBUG)
		logger.Debug("Debug logging enabled")
	}

	logger.Info("Starting warden proxy server")

	cfg, err := config.LoadConfig(*configPathPtr)
	if err != nil {
		logger.Warn("Could not load config file: %v. Using defaults.", err)
		cfg, err = config.LoadConfig("")
		if err != nil {
			logger.Fatal("Failed to load configuration: %v", err)
		}
	}

	if port := flag.Arg(0); port != "" {
		if _, convErr := strconv.Atoi(port); convErr != nil {
			logger.Error("Listen port argument %q is not an integer; keeping %s", port, cfg.ListenAddress)
		} else {
			cfg.ListenAddress = ":" + port
		}
	}

	logger.Debug("Configuration loaded successfully")
	logger.Debug("Listen address: %s", cfg.ListenAddress)
	logger.Debug("Max workers: %d", cfg.MaxWorkers)

	return cfg, *configPathPtr
}

// loadBlocklists reads cfg.BlocklistFile and cfg.BlocklistPatternsFile at
// startup (§6 "Blocklist file"). A missing file is logged and tolerated.
func loadBlocklists(cfg *config.Config) (*block.Set, *block.PatternMatcher) {
	blockSet := &block.Set{}

	if cfg.BlocklistFile != "" {
		count := 0
		if err := forEachNonEmptyLine(cfg.BlocklistFile, func(line string) {
			if _, ok := blockSet.Add(line); ok {
				count++
			}
		}); err != nil {
			logger.Warn("Could not read blocklist file %s: %v", cfg.BlocklistFile, err)
		} else {
			logger.Info("Loaded %d entries from %s", count, cfg.BlocklistFile)
		}
	}

	var patterns *block.PatternMatcher
	if cfg.BlocklistPatternsFile != "" {
		var lines []string
		if err := forEachNonEmptyLine(cfg.BlocklistPatternsFile, func(line string) {
			lines = append(lines, line)
		}); err != nil {
			logger.Warn("Could not read blocklist patterns file %s: %v", cfg.BlocklistPatternsFile, err)
		} else {
			patterns = block.NewPatternMatcher(lines)
			logger.Info("Loaded %d wildcard patterns from %s", len(lines), cfg.BlocklistPatternsFile)
		}
	}

	return blockSet, patterns
}

func forEachNonEmptyLine(path string, fn func(string)) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			fn(line)
		}
	}
	return scanner.Err()
}

// runProxy starts and manages the dispatcher, including signal handling,
// config reload on SIGHUP, and the admin console (§6).
func runProxy(cfg *config.Config, configPath string, blockSet *block.Set, patterns *block.PatternMatcher) {
	c := cache.New(cfg.Cache.MaxTotalBytes, cfg.Cache.MaxEntryBytes, cfg.Cache.Capacity)
	collector, err := stats.NewCollector(cfg.Statistics)
	if err != nil {
		logger.Warn("Could not initialize statistics collector: %v. Using dummy collector.", err)
		collector = stats.NewDummyCollector()
	}
	defer collector.Close()

	dispatcher := proxy.NewDispatcher(cfg, blockSet, patterns, c, collector)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	shutdownChan := make(chan struct{})
	adminDone := make(chan struct{})

	start := func(d *proxy.Dispatcher) {
		go func() {
			logger.Info("Starting dispatcher...")
			if err := d.Start(); err != nil {
				logger.Error("Dispatcher error: %v", err)
			}
			shutdownChan <- struct{}{}
		}()
	}

	start(dispatcher)
	go runAdminConsole(blockSet, adminDone)

	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("Received SIGHUP: reloading configuration...")
				newCfg, err := config.LoadConfig(configPath)
				if err != nil {
					logger.Error("Failed to reload config: %v (keeping current config)", err)
					continue
				}
				if !config.HasChanged(cfg, newCfg) {
					logger.Info("Config unchanged after reload; not restarting dispatcher.")
					continue
				}
				logger.Info("Config changed. Restarting dispatcher...")
				if err := dispatcher.Stop(); err != nil {
					logger.Error("Error stopping dispatcher for reload: %v", err)
				}
				<-shutdownChan
				cfg = newCfg
				dispatcher = proxy.NewDispatcher(cfg, blockSet, patterns, c, collector)
				start(dispatcher)
				logger.Info("Dispatcher restarted with new configuration.")
			case syscall.SIGINT, syscall.SIGTERM:
				logger.Info("Received signal %v, shutting down...", sig)
				if err := dispatcher.Stop(); err != nil {
					logger.Error("Error during shutdown: %v", err)
				}
				logger.Info("Shutdown complete")
				return
			}
		case <-adminDone:
			logger.Info("Admin console requested shutdown")
			if err := dispatcher.Stop(); err != nil {
				logger.Error("Error during shutdown: %v", err)
			}
			logger.Info("Shutdown complete")
			return
		}
	}
}

// runAdminConsole implements the stdin admin loop (§6): an empty line
// prints a notice, "exit" (case-insensitive) closes done to request
// shutdown, and any other line is normalized and added to blockSet.
func runAdminConsole(blockSet *block.Set, done chan<- struct{}) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			fmt.Println("No input entered.")
		case strings.EqualFold(line, "exit"):
			close(done)
			return
		default:
			if _, ok := blockSet.Add(line); !ok {
				fmt.Println("Invalid hostname or URL.")
			}
		}
	}
}

// loadEnvFile reads a .env-style file and sets environment variables
func loadEnvFile(path string) error {
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		absPath, err := filepath.Abs(cleanPath)
		if err != nil {
			return fmt.Errorf("invalid file path: %w", err)
		}
		cleanPath = absPath
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Error("Error closing env file: %v", closeErr)
		}
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if setErr := os.Setenv(key, val); setErr != nil {
			logger.Error("Error setting environment variable %s: %v", key, setErr)
		}
	}
	return scanner.Err()
}
