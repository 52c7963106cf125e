package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/CursedScorpio/fleetdeck/internal/api"
	"github.com/CursedScorpio/fleetdeck/internal/config"
	"github.com/CursedScorpio/fleetdeck/internal/fleet"
	"github.com/CursedScorpio/fleetdeck/internal/logging"
	"github.com/CursedScorpio/fleetdeck/internal/platform"
	"github.com/CursedScorpio/fleetdeck/internal/ui"
)

const Version = "0.3.1"

// init sets up color profile for consistent terminal colors across environments
func init() {
	initColorProfile()
}

// initColorProfile configures lipgloss color profile based on terminal
// capabilities. Prefers TrueColor, falls back to ANSI256.
func initColorProfile() {
	// FLEETDECK_COLOR: truecolor, 256, 16, none
	if colorEnv := os.Getenv("FLEETDECK_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	if colorTerm := os.Getenv("COLORTERM"); colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	termName := os.Getenv("TERM")
	trueColorTerms := []string{
		"xterm-256color",
		"screen-256color",
		"tmux-256color",
		"xterm-direct",
		"alacritty",
		"kitty",
		"wezterm",
	}
	for _, t := range trueColorTerms {
		if strings.Contains(termName, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}

	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("fleetdeck v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "list", "ls":
			handleList(args[1:])
			return
		case "status":
			handleStatus(args[1:])
			return
		case "start":
			handleStart(args[1:])
			return
		case "stop":
			handleStop(args[1:])
			return
		case "config":
			handleConfig(args[1:])
			return
		case "update":
			handleUpdate(args[1:])
			return
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: the fleetdeck dashboard needs a terminal.")
		fmt.Fprintln(os.Stderr, "For scripting, use the CLI commands:")
		fmt.Fprintln(os.Stderr, "  fleetdeck list --json")
		fmt.Fprintln(os.Stderr, "  fleetdeck status <id> --json")
		os.Exit(1)
	}

	runTUI()
}

func runTUI() {
	cfgPath, err := config.Path()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	_ = config.CreateExample()

	cfg, cfgErr := config.Load(cfgPath)

	// Structured logging goes to a rotated file only in debug mode; the
	// in-memory ring always runs so crashes can be dumped.
	baseDir, _ := config.Dir()
	logCfg := logging.Config{
		Level:               cfg.Logs.Level,
		Format:              cfg.Logs.Format,
		MaxSizeMB:           cfg.Logs.MaxSizeMB,
		MaxBackups:          cfg.Logs.Backups,
		RingLines:           cfg.Logs.RingLines,
		SummaryIntervalSecs: cfg.Logs.SummaryIntervalSecs,
	}
	if os.Getenv("FLEETDECK_DEBUG") != "" && baseDir != "" {
		logCfg.Dir = baseDir
		logCfg.Level = "debug"
	}
	logging.Init(logCfg)
	defer logging.Shutdown()

	mainLog := logging.ForComponent(logging.CompUI)
	if cfgErr != nil {
		mainLog.Warn("config_parse_failed", slog.String("error", cfgErr.Error()))
	}

	ui.InitTheme(cfg.ResolveTheme())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// SIGUSR1 dumps recent log lines for post-mortem debugging.
	usr1Chan := make(chan os.Signal, 1)
	signal.Notify(usr1Chan, syscall.SIGUSR1)
	go func() {
		for range usr1Chan {
			dumpRecent(baseDir, mainLog)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			mainLog.Error("panic", slog.Any("value", r))
			dumpRecent(baseDir, mainLog)
			panic(r)
		}
	}()

	client := api.New(api.Config{
		BaseURL:           cfg.Server.URL,
		Timeout:           cfg.Server.Timeout(),
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
	})

	store := fleet.NewStore()
	intervals := cfg.Intervals()
	syncer := fleet.NewSynchronizer(store, client, intervals)
	tabs := fleet.NewTabManager(store, client)
	chat := fleet.NewChatSelector(store, client, intervals.Chat)

	feed := api.NewEventFeed(client, func(ev api.Event) {
		syncer.HandleEvent(ev.Kind, ev.ID)
	})
	feed.Start(ctx)
	defer feed.Stop()

	if warning := platform.CheckFsnotifySupport(filepath.Dir(cfgPath)); warning != "" {
		mainLog.Warn("fsnotify_unreliable", slog.String("detail", warning))
	}

	var watcher *config.Watcher
	if w, err := config.NewWatcher(cfgPath); err == nil {
		watcher = w
		watcher.Start()
		defer watcher.Close()
	} else {
		mainLog.Warn("config_watch_unavailable", slog.String("error", err.Error()))
	}

	home := ui.NewHome(ui.Options{
		Ctx:        ctx,
		Store:      store,
		Syncer:     syncer,
		Tabs:       tabs,
		Chat:       chat,
		Client:     client,
		CfgWatcher: watcher,
		Thresholds: cfg.Thresholds(),
	})

	p := tea.NewProgram(home, tea.WithAltScreen())

	// A ctx cancel from SIGINT/SIGTERM must also end the program loop.
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	mainLog.Info("dashboard_started",
		slog.String("version", Version),
		slog.String("backend", cfg.Server.URL))

	_, runErr := p.Run()

	chat.Stop()
	syncer.StopAll()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func dumpRecent(baseDir string, log *slog.Logger) {
	if baseDir == "" {
		return
	}
	path := filepath.Join(baseDir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
	if err := logging.DumpRecent(path); err != nil {
		log.Error("crash_dump_failed", slog.String("error", err.Error()))
		return
	}
	log.Info("crash_dump_written", slog.String("path", path))
}

func printHelp() {
	fmt.Println("fleetdeck - control dashboard for the viewer fleet")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fleetdeck              Launch the dashboard")
	fmt.Println("  fleetdeck list         List boxes and viewers")
	fmt.Println("  fleetdeck status <id>  Show one box or viewer")
	fmt.Println("  fleetdeck start <id>   Start a box")
	fmt.Println("  fleetdeck stop <id>    Stop a box or viewer")
	fmt.Println("  fleetdeck config       Print the config file path")
	fmt.Println("  fleetdeck update       Check for and install a newer release")
	fmt.Println("  fleetdeck version      Print the version")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --json                 Machine-readable output (list, status)")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  FLEETDECK_DIR          Config/state directory (default ~/.fleetdeck)")
	fmt.Println("  FLEETDECK_DEBUG        Write debug logs to the state directory")
	fmt.Println("  FLEETDECK_COLOR        truecolor, 256, 16, or none")
}
