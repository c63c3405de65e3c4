// Package main provides the WebForge application: a coding agent that
// treats a live web page as a workspace, editing its markup, styles, and
// scripts through a versioned virtual filesystem. It runs an interactive
// chat panel by default and a scripted headless mode for CI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/webforge/pkg/agent"
	appconfig "github.com/entrhq/webforge/pkg/config"
	"github.com/entrhq/webforge/pkg/executor/headless"
	"github.com/entrhq/webforge/pkg/executor/panel"
	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/host/browser"
	"github.com/entrhq/webforge/pkg/logging"
	"github.com/entrhq/webforge/pkg/page"
	"github.com/entrhq/webforge/pkg/scripts"
	"github.com/entrhq/webforge/pkg/vfs"
)

const version = "0.1.0" // Version of the WebForge agent

// shutdownTimeout bounds how long in-flight agent runs get to wind down
// after the executor returns.
const shutdownTimeout = 5 * time.Second

// Config holds the application configuration
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	URL          string
	Detached     bool
	Prompt       string
	RunManifest  string
	Instructions string
	ConfigPath   string
	ShowVersion  bool
}

func main() {
	// Parse command line flags
	config := parseFlags()

	// Show version if requested
	if config.ShowVersion {
		fmt.Printf("WebForge v%s\n", version)
		return
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Create context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		// Headless mode owns stdout for its event stream, so the
		// notice goes to stderr in every mode.
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	// Run the application
	if runErr := run(ctx, config); runErr != nil {
		cancel()
		log.Fatalf("Application error: %v", runErr)
	}
}

// parseFlags parses command line flags and environment variables
func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.Provider, "provider", "", "LLM provider: anthropic or openai (default: config file, then anthropic)")
	flag.StringVar(&config.APIKey, "api-key", "", "API key (or set ANTHROPIC_API_KEY / OPENAI_API_KEY)")
	flag.StringVar(&config.BaseURL, "base-url", "", "API base URL for compatible gateways (or set ANTHROPIC_BASE_URL / OPENAI_BASE_URL)")
	flag.StringVar(&config.Model, "model", "", "LLM model (default: panel settings, then config file, then the provider default)")
	flag.StringVar(&config.URL, "url", "", "Page URL to open")
	flag.BoolVar(&config.Detached, "detached", false, "Serve an in-memory page instead of driving a browser")
	flag.StringVar(&config.Prompt, "prompt", "", "Run this one task headlessly and stream events as JSON lines")
	flag.StringVar(&config.RunManifest, "run", "", "Path to a YAML run manifest for a scripted headless run")
	flag.StringVar(&config.Instructions, "instructions", "", "Custom instructions appended to the agent's system prompt (optional)")
	flag.StringVar(&config.ConfigPath, "config", "", "Path to the config file (default: ~/.webforge/config.json)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "WebForge - a coding agent for live web pages\n\n")
		fmt.Fprintf(os.Stderr, "Usage: webforge [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY    Anthropic API key\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY       OpenAI API key (for -provider openai)\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Panel Mode (default)\n")
		fmt.Fprintf(os.Stderr, "  webforge -url https://shop.example/cart\n")
		fmt.Fprintf(os.Stderr, "  webforge -url https://shop.example/cart -detached\n")
		fmt.Fprintf(os.Stderr, "  webforge -url https://shop.example/cart -provider openai -model gpt-4o\n")
		fmt.Fprintf(os.Stderr, "\n  # Headless Mode (CI/CD)\n")
		fmt.Fprintf(os.Stderr, "  webforge -run nightly.yaml\n")
		fmt.Fprintf(os.Stderr, "  webforge -url https://news.example/ -prompt \"Collapse the cookie banner\"\n")
	}

	flag.Parse()
	return config
}

// validate checks that the configuration is valid
func (c *Config) validate() error {
	if c.RunManifest != "" && c.Prompt != "" {
		return fmt.Errorf("-run and -prompt are mutually exclusive")
	}

	// A manifest carries its own URL; every other mode needs one up front.
	if c.RunManifest == "" && c.URL == "" {
		return fmt.Errorf("a page URL is required (use -url, or -run with a manifest that names one)")
	}

	return nil
}

// run executes the main application logic
func run(ctx context.Context, config *Config) error {
	// Initialize global configuration (storage path, browser, provider defaults)
	if err := appconfig.Initialize(config.ConfigPath); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	logger, logErr := logging.NewLogger("main")
	if logErr != nil {
		logger.Warnf("file logging unavailable: %v", logErr)
	}
	defer logger.Close()

	// A scripted run resolves its manifest first: it names the page to
	// open and the turn budget for the manager.
	manifest, err := resolveManifest(config)
	if err != nil {
		return err
	}
	pageURL := config.URL
	if manifest != nil {
		pageURL = manifest.URL
	}

	// Open the store. Pages, scripts, settings, and chat transcripts all
	// live in the one database, detached or not.
	dbPath, err := appconfig.GetStorage().GetDatabasePath()
	if err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}
	storage, err := host.OpenSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer storage.Close()

	// The panel's saved model setting applies only when no -model flag
	// was given, so a flag always wins.
	model := config.Model
	if model == "" {
		if override := agent.ModelOverride(ctx, storage); override != "" {
			logger.Infof("using model override from settings: %s", override)
			model = override
		}
	}

	provider, err := appconfig.BuildProvider(config.Provider, model, config.BaseURL, config.APIKey)
	if err != nil {
		return err
	}

	// Start the page host: Chromium via Playwright, or the in-memory
	// host for detached runs.
	pages, err := openHost(config)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := pages.Shutdown(); shutdownErr != nil {
			logger.Warnf("host shutdown: %v", shutdownErr)
		}
	}()

	store := vfs.NewDomainStore(storage)
	workerOpts := []page.Option{page.WithRegistry(pages.Registry())}

	// The hub's injector lazily attaches a worker when a request names a
	// tab nothing serves yet. The closure is how the injector reaches the
	// hub it is an option of.
	var hub *fabric.Hub
	hub = fabric.NewHub(fabric.WithInjector(func(injectCtx context.Context, tabID int) error {
		return page.Injector(hub, store, pages, workerOpts...)(injectCtx, tabID)
	}))

	keepAlive := fabric.NewKeepAlive(func() {
		logger.Debugf("keep-alive heartbeat")
	})

	// Create the agent manager and register its request handlers.
	managerOpts := []agent.ManagerOption{
		agent.WithPageDirectory(pages),
		agent.WithKeepAlive(keepAlive),
	}
	if config.Instructions != "" {
		managerOpts = append(managerOpts, agent.WithCustomInstructions(config.Instructions))
	}
	if manifest != nil && manifest.MaxTurns > 0 {
		managerOpts = append(managerOpts, agent.WithMaxTurns(manifest.MaxTurns))
	}
	manager := agent.NewManager(provider, hub, store, managerOpts...)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start agent manager: %w", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if shutdownErr := manager.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warnf("agent shutdown: %v", shutdownErr)
		}
	}()

	// Reconcile stored user scripts into the host's registry and keep
	// them reconciled as the agent edits them.
	reconciler := scripts.NewManager(store, pages.Registry())
	if err := reconciler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start script manager: %w", err)
	}
	defer reconciler.Stop()

	// Mirror storage writes to connected clients as STORAGE_CHANGED events.
	stopRelay := hub.StartStorageRelay(storage)
	defer stopRelay()

	// Open the tab and attach its worker now, so styles and stored
	// scripts inject at load rather than on the first filesystem request.
	tabID, err := pages.OpenTab(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", pageURL, err)
	}
	pg, ok := pages.Page(tabID)
	if !ok {
		return fmt.Errorf("tab %d has no live page", tabID)
	}
	worker, err := page.New(hub, store, pg, workerOpts...)
	if err != nil {
		return fmt.Errorf("failed to attach page worker: %w", err)
	}
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start page worker: %w", err)
	}
	defer worker.Stop()

	// Headless mode: submit the manifest's task and stream events to
	// stdout as JSON lines.
	if manifest != nil {
		executor, execErr := headless.NewExecutor(hub, tabID, manifest)
		if execErr != nil {
			return execErr
		}
		return executor.Run(ctx)
	}

	// Display welcome message
	fmt.Printf("WebForge v%s - Page Agent\n", version)
	fmt.Printf("Page: %s (tab %d)\n", pageURL, tabID)
	fmt.Println("\nStarting panel...")

	// Run the interactive panel
	if err := panel.NewExecutor(hub, tabID).Run(ctx); err != nil {
		return fmt.Errorf("executor error: %w", err)
	}

	return nil
}

// resolveManifest builds the headless run manifest, if any: loaded from
// -run (with -url overriding its page), or synthesized from -prompt.
// Panel mode returns nil.
func resolveManifest(config *Config) (*headless.Manifest, error) {
	switch {
	case config.RunManifest != "":
		manifest, err := headless.LoadManifest(config.RunManifest)
		if err != nil {
			return nil, err
		}
		if config.URL != "" {
			manifest.URL = config.URL
		}
		return manifest, nil

	case config.Prompt != "":
		manifest := headless.DefaultManifest()
		manifest.URL = config.URL
		manifest.Task = config.Prompt
		if err := manifest.Validate(); err != nil {
			return nil, fmt.Errorf("invalid prompt run: %w", err)
		}
		return manifest, nil
	}

	return nil, nil
}

// openHost starts the configured page host.
func openHost(config *Config) (pageHost, error) {
	if config.Detached {
		return newDetachedHost(), nil
	}

	opts := []browser.Option{}
	if browserCfg := appconfig.GetBrowser(); browserCfg != nil {
		opts = append(opts, browser.WithHeadless(browserCfg.IsHeadless()))
		opts = append(opts, browser.WithViewport(browserCfg.Viewport()))
	}

	h := browser.New(opts...)
	if err := h.Start(); err != nil {
		return nil, fmt.Errorf("failed to start browser host: %w", err)
	}
	return h, nil
}
