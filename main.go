package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jesspatton/livetest/analysis"
	"github.com/jesspatton/livetest/controller"
	"github.com/jesspatton/livetest/detector"
	"github.com/jesspatton/livetest/engine"
	"github.com/jesspatton/livetest/filesystem"
	"github.com/jesspatton/livetest/logger"
	"github.com/jesspatton/livetest/metrics"
	"github.com/jesspatton/livetest/reporter"
	"github.com/jesspatton/livetest/runner"
	"github.com/jesspatton/livetest/session"
	"github.com/jesspatton/livetest/ui"
)

var version = "dev" // injected via ldflags at build time

// exitTimeout bounds teardown after ctrl+c or a signal.
const exitTimeout = 30 * time.Second

// CLI is the command line. Flags override the project file.
type CLI struct {
	Src []string `arg:"" optional:"" help:"Test files, directories or glob patterns."`

	Browsers    []string      `short:"b" sep:"," help:"Browsers every test runs on."`
	Concurrency int           `short:"c" help:"Runs in flight per browser."`
	Test        string        `short:"t" help:"Run only the test with this name."`
	TestGrep    string        `short:"T" name:"test-grep" help:"Run only tests whose name matches this pattern."`
	Command     string        `help:"Command template running one test (<path>, <name>, <browser>)."`
	Role        string        `help:"Command run before every test under the role guard."`
	Reporters   []string      `short:"r" sep:"," help:"Reporters as name or name:file."`
	Hostname    string        `help:"Hostname the engine proxy listens on."`
	Ports       []int         `sep:"," help:"Two proxy ports."`
	LockWindow  time.Duration `name:"lock-window" help:"Ignore repeated changes of a file within this window."`
	Config      string        `type:"existingdir" help:"Directory to look up .livetest.yaml from."`
	UI          string        `name:"ui" enum:"plain,tui" default:"plain" env:"LIVETEST_UI" help:"Status view (plain or tui)."`
	LogFile     string        `name:"log-file" help:"Write logs to this file."`
	LogLevel    string        `name:"log-level" default:"warn" env:"LOG_LEVEL" help:"debug, info, warn or error."`
	MetricsAddr string        `name:"metrics-addr" help:"Serve /metrics and /status on this address."`

	Version kong.VersionFlag `help:"Print version."`
}

// apply overrides cfg with the flags that were set.
func (c *CLI) apply(cfg *runner.Config) {
	if len(c.Src) > 0 {
		cfg.Src = c.Src
		for i, s := range cfg.Src {
			if abs, err := absPath(s); err == nil {
				cfg.Src[i] = abs
			}
		}
	}
	if len(c.Browsers) > 0 {
		cfg.Browsers = c.Browsers
	}
	if c.Concurrency > 0 {
		cfg.Concurrency = c.Concurrency
	}
	if c.Test != "" {
		cfg.Filter.Test = c.Test
	}
	if c.TestGrep != "" {
		cfg.Filter.TestGrep = c.TestGrep
	}
	if c.Command != "" {
		cfg.Command = c.Command
	}
	if c.Role != "" {
		cfg.Role = c.Role
	}
	if len(c.Reporters) > 0 {
		cfg.Reporters = c.Reporters
	}
	if c.Hostname != "" {
		cfg.Hostname = c.Hostname
	}
	if len(c.Ports) > 0 {
		cfg.Ports = c.Ports
	}
	if c.LockWindow > 0 {
		cfg.LockWindow = c.LockWindow
	}
}

func (c *CLI) loadConfig() (runner.Config, error) {
	dir := c.Config
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return runner.Config{}, err
		}
		dir = wd
	}
	cfg, err := runner.LoadConfig(dir)
	if err != nil {
		return runner.Config{}, err
	}
	c.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return runner.Config{}, err
	}
	if len(cfg.Src) == 0 {
		return runner.Config{}, errors.New("no test sources: pass them as arguments or set src")
	}
	if len(cfg.Browsers) == 0 {
		return runner.Config{}, errors.New("no browsers: pass --browsers or set browsers")
	}
	return cfg, nil
}

// Run starts the orchestrator and blocks until it exits.
func (c *CLI) Run() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	logW, closeLog, err := logger.OpenFile(c.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closeLog()
	if c.LogFile == "" && c.UI == "plain" {
		logW = os.Stderr
	}
	log := logger.Init(logW, c.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := runner.NewFactory(cfg, log)(ctx, cfg.EngineOptions())
	if err != nil {
		return err
	}

	// The view is where the report and status lines go
	var (
		view   io.Writer = os.Stdout
		status reporter.Sink
		bridge *ui.Bridge
		raw    *rawInput
	)
	if c.UI == "tui" {
		bridge = ui.NewBridge()
		defer bridge.Close()
		view, status = bridge, bridge
	} else {
		raw = openRawInput(os.Stdin)
		defer raw.restore()
		if raw.active() {
			view = newCRLFWriter(os.Stdout)
		}
		status = reporter.NewPlain(view)
	}

	onAbort := func() { log.Debug("test run aborted", "component", "main") }
	if bridge != nil {
		onAbort = func() {
			log.Debug("test run aborted", "component", "main")
			bridge.Abort()
		}
	}
	out := reporter.NewAbortWriter(view, onAbort)
	reporters, closeReporters, err := buildReporters(cfg.Reporters, out)
	if err != nil {
		_ = eng.Close()
		return err
	}
	defer closeReporters()
	if bridge != nil {
		reporters = append(reporters, bridge)
	}

	watcher, err := filesystem.NewWatcher(log)
	if err != nil {
		_ = eng.Close()
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	cache := analysis.NewModuleCache()
	ign := filesystem.NewIgnorer(cfg.Dir, cfg.Vendor)
	det := detector.New(watcher, cache, ign,
		detector.WithLockWindow(cfg.LockWindow),
		detector.WithLogger(log),
	)
	defer det.Close()

	sources := cfg.ResolveSources()
	mgr := session.New(eng, cache, session.Config{
		Sources:     sources,
		Browsers:    cfg.Browsers,
		Concurrency: cfg.Concurrency,
		Filter:      cfg.BuildFilter(),
		Reporters:   reporters,
		Output:      out,
	}, log)

	sink := reporter.Multi{out, status}
	ctrl := controller.New(mgr, sink, log)
	mgr.SetListener(ctrl)
	det.OnChange(ctrl.OnChange)

	files, err := filesystem.ExpandSources(sources, ign)
	if err != nil {
		log.Warn("expand sources", "component", "main", "err", err)
	}
	for _, f := range files {
		det.AddWatch(f)
	}

	if c.MetricsAddr != "" {
		router := metrics.NewRouter(metrics.Sources{
			Status:  func() any { return ctrl.Status() },
			Watched: det.Watched,
		})
		go func() {
			if err := metrics.Serve(ctx, c.MetricsAddr, router, log); err != nil {
				log.Error("metrics server failed", "component", "main", "err", err)
			}
		}()
	}

	exit := func() {
		exitCtx, cancel := context.WithTimeout(context.Background(), exitTimeout)
		defer cancel()
		if err := ctrl.Exit(exitCtx); err != nil {
			log.Warn("exit", "component", "main", "err", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			exit()
		case <-ctrl.Done():
		}
	}()

	sink.Emit(reporter.Event{Kind: reporter.Intro})
	if err := ctrl.Run(false); engine.IsFatal(err) {
		exit()
		return err
	}

	if bridge != nil {
		return runTUI(ctrl, cfg.Dir, det.Watched, bridge, exit)
	}

	if raw.active() {
		go readCommands(ctx, raw.r, ctrl, exit)
	}
	<-ctrl.Done()
	return nil
}

func runTUI(ctrl *controller.Controller, root string, watched func() []string, bridge *ui.Bridge, exit func()) error {
	model := ui.NewModel(ui.Options{
		Root:     root,
		Commands: ctrl,
		Watched:  watched,
		Bridge:   bridge,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	go func() {
		<-ctrl.Done()
		p.Quit()
	}()

	_, err := p.Run()
	bridge.Close()
	// The program can end without going through ctrl+c
	exit()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// buildReporters creates the configured engine reporters. Reporters without
// a file write to out.
func buildReporters(specs []string, out io.Writer) ([]engine.Reporter, func(), error) {
	var (
		reporters []engine.Reporter
		files     []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	for _, spec := range specs {
		name, path := runner.ParseReporterSpec(spec)
		w := out
		if path != "" {
			f, err := os.Create(path)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("reporter %s: %w", name, err)
			}
			files = append(files, f)
			w = f
		}
		r, err := runner.NewReporter(name, w)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		reporters = append(reporters, r)
	}
	return reporters, closeAll, nil
}

// main is the entry point of the application.
func main() {
	var cli CLI
	parser := kong.Parse(&cli,
		kong.Name("livetest"),
		kong.Description("Watch test sources and rerun them in long-lived browsers.\n\nKeys: ctrl+s stop, ctrl+r restart, ctrl+w toggle watching, ctrl+c exit."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	parser.FatalIfErrorf(cli.Run())
}
