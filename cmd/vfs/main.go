package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/config"
	"github.com/esm-dev/modern-monaco-sub001/pkg/gc"
	"github.com/esm-dev/modern-monaco-sub001/pkg/metrics"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vfs"
	"github.com/esm-dev/modern-monaco-sub001/pkg/watch"
	"github.com/esm-dev/modern-monaco-sub001/pkg/workspace"
)

const usage = `Usage: vfs [flags] <command> [args]

Commands:
  init [-force]          Write a default configuration file
  serve                  Open the workspaces, log changes and serve metrics until interrupted
  ls [path]              List a directory
  stat <path>            Show the metadata of a path
  cat <path>             Print a file
  put <path> [file]      Write a file from a local file or stdin
  mkdir <path>           Create a directory and its parents
  rm [-r] <path>         Delete a file or directory
  mv [-f] <from> <to>    Rename a file or directory
  cp [-f] <from> <to>    Copy a file or directory
  walk [path]            List every descendant of a directory
  glob <pattern>         List files matching a glob pattern
  gc [-dry-run]          Delete blobs that no file owns

Flags:
`

func main() {
	configFile := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/vfs/config.yaml)")
	wsName := flag.String("workspace", "", "Workspace to operate on (default: the first configured workspace)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if args[0] == "init" {
		runInit(*configFile, args[1:])
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsServer := config.InitializeMetrics(cfg)

	router, reg, err := config.InitializeRouter(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize workspaces: %v", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Error("Failed to close stores: %v", err)
		}
	}()
	if metricsServer != nil {
		config.RegisterHealthChecks(metricsServer, reg)
	}

	if *wsName != "" {
		if _, ok := router.Workspace(*wsName); !ok {
			logger.Error("Unknown workspace %q (configured: %s)", *wsName, strings.Join(router.Names(), ", "))
			os.Exit(1)
		}
	}

	collectors, err := config.InitializeCollectors(cfg, reg, router)
	if err != nil {
		log.Fatalf("Failed to initialize garbage collectors: %v", err)
	}

	app := &cli{router: router, collectors: collectors, workspace: *wsName, out: os.Stdout, in: os.Stdin}

	switch args[0] {
	case "serve":
		err = app.serve(ctx, cancel, metricsServer)
	case "gc":
		err = app.gc(ctx, args[1:])
	default:
		err = app.run(ctx, args[0], args[1:])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "vfs %s: %v\n", args[0], err)
		_ = reg.Close()
		logger.Sync()
		os.Exit(1)
	}
}

func runInit(configFile string, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	_ = fs.Parse(args)

	path := configFile
	var err error
	if path == "" {
		path, err = config.InitConfig(*force)
	} else {
		err = config.InitConfigToPath(path, *force)
	}
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	fmt.Printf("Configuration written to %s\n", path)
}

// cli runs one command against the router.
type cli struct {
	router     *workspace.Router
	collectors []*gc.Collector
	workspace  string
	out        io.Writer
	in         io.Reader
}

// path scopes p to the selected workspace.
func (c *cli) path(p string) string {
	if c.workspace == "" {
		return p
	}
	return workspace.AddWorkspacePrefix(p, c.workspace)
}

func (c *cli) pattern(p string) string {
	if c.workspace == "" {
		return p
	}
	return workspace.PrefixRoot + "/" + c.workspace + "/" + strings.TrimPrefix(p, "/")
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "ls":
		return c.ls(ctx, optionalArg(args, "/"))
	case "stat":
		if len(args) != 1 {
			return errors.New("expected <path>")
		}
		return c.stat(ctx, args[0])
	case "cat":
		if len(args) != 1 {
			return errors.New("expected <path>")
		}
		data, err := c.router.ReadFile(ctx, c.path(args[0]))
		if err != nil {
			return err
		}
		_, err = c.out.Write(data)
		return err
	case "put":
		return c.put(ctx, args)
	case "mkdir":
		if len(args) != 1 {
			return errors.New("expected <path>")
		}
		return c.router.CreateDirectory(ctx, c.path(args[0]))
	case "rm":
		fs := flag.NewFlagSet("rm", flag.ContinueOnError)
		recursive := fs.Bool("r", false, "Delete directories recursively")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("expected <path>")
		}
		return c.router.Delete(ctx, c.path(fs.Arg(0)), vfs.DeleteOptions{Recursive: *recursive})
	case "mv", "cp":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		force := fs.Bool("f", false, "Overwrite an existing destination")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 2 {
			return errors.New("expected <from> <to>")
		}
		from, to := c.path(fs.Arg(0)), c.path(fs.Arg(1))
		if command == "mv" {
			return c.router.Rename(ctx, from, to, vfs.RenameOptions{Overwrite: *force})
		}
		return c.router.Copy(ctx, from, to, vfs.CopyOptions{Overwrite: *force})
	case "walk":
		entries, err := c.router.Walk(ctx, c.path(optionalArg(args, "/")))
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(c.out, "%-9s %s\n", e.Type, e.Path)
		}
		return nil
	case "glob":
		if len(args) != 1 {
			return errors.New("expected <pattern>")
		}
		matches, err := c.router.Glob(ctx, c.pattern(args[0]))
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Fprintln(c.out, m)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (c *cli) ls(ctx context.Context, p string) error {
	entries, err := c.router.ReadDirectory(ctx, c.path(p))
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name
		if e.Type == metadata.FileTypeDirectory {
			name += "/"
		}
		fmt.Fprintln(c.out, name)
	}
	return nil
}

func (c *cli) stat(ctx context.Context, p string) error {
	stat, err := c.router.Stat(ctx, c.path(p))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "type:    %s\n", stat.Type)
	fmt.Fprintf(c.out, "size:    %d\n", stat.Size)
	fmt.Fprintf(c.out, "version: %d\n", stat.Version)
	fmt.Fprintf(c.out, "ctime:   %s\n", time.UnixMilli(stat.Ctime).Format(time.RFC3339))
	fmt.Fprintf(c.out, "mtime:   %s\n", stat.ModTime().Format(time.RFC3339))
	return nil
}

func (c *cli) put(ctx context.Context, args []string) error {
	var src io.Reader
	switch len(args) {
	case 1:
		src = c.in
	case 2:
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	default:
		return errors.New("expected <path> [file]")
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	return c.router.WriteFile(ctx, c.path(args[0]), data, vfs.WriteOptions{})
}

// serve keeps the workspaces open, logging every change, until SIGINT or
// SIGTERM.
func (c *cli) serve(ctx context.Context, cancel context.CancelFunc, metricsServer *metrics.Server) error {
	fmt.Println("vfs - virtual file store")
	logger.Info("Workspaces: %s", strings.Join(c.router.Names(), ", "))

	var unwatch []func()
	for _, name := range c.router.Names() {
		unwatch = append(unwatch, c.router.Watch(workspace.AddWorkspacePrefix("/", name), vfs.WatchOptions{Recursive: true}, logEvent(name)))
	}
	defer func() {
		for _, stop := range unwatch {
			stop()
		}
	}()

	for _, collector := range c.collectors {
		collector.Start()
	}
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		for _, collector := range c.collectors {
			if err := collector.Stop(stopCtx); err != nil {
				logger.Warn("Garbage collector did not stop: %v", err)
			}
		}
	}()

	metricsDone := make(chan error, 1)
	if metricsServer != nil {
		go func() {
			metricsDone <- metricsServer.Start(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, closing workspaces...")
		cancel()
		if metricsServer != nil {
			if err := <-metricsDone; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	case err := <-metricsDone:
		return err
	}
}

// gc runs one collection per workspace, or only for the selected one.
func (c *cli) gc(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gc", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report orphaned blobs without deleting them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, collector := range c.collectors {
		if c.workspace != "" && collector.Name() != c.workspace {
			continue
		}
		run := collector.RunNow
		if *dryRun {
			run = collector.DryRun
		}
		stats, err := run(ctx)
		if err != nil {
			return fmt.Errorf("workspace %s: %w", collector.Name(), err)
		}
		fmt.Fprintf(c.out, "%s: %s\n", collector.Name(), stats.Summary())
	}
	return nil
}

func logEvent(name string) watch.Handler {
	return func(ev watch.Event) {
		origin := "external"
		if workspace.FromEditor(ev) {
			origin = "editor"
		}
		logger.Info("[%s] %s %s (%s)", name, ev.Kind, ev.Path, origin)
	}
}

func optionalArg(args []string, def string) string {
	if len(args) > 0 {
		return args[0]
	}
	return def
}
