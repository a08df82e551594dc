package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/viant/entangle/service"
	"github.com/viant/entangle/watch"
)

func main() {
	startGops()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "tangle":
		tangleCmd(os.Args[2:])
	case "stitch":
		stitchCmd(os.Args[2:])
	case "sync":
		syncCmd(os.Args[2:])
	case "watch":
		watchCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: entangle <command> [options]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  tangle  Expand documents into target files (one-way)")
	fmt.Fprintln(os.Stderr, "  stitch  Fold target edits back into documents (one-way)")
	fmt.Fprintln(os.Stderr, "  sync    Run one bidirectional pass with conflict detection")
	fmt.Fprintln(os.Stderr, "  watch   Watch documents and targets, syncing continuously")
}

// commonFlags registers the flags every command shares.
type commonFlags struct {
	configPath *string
	docs       *string
	targetRoot *string
	stateDSN   *string
	include    *string
	exclude    *string
	quiet      *bool
}

func registerCommon(flags *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: flags.String("config", "", "project config yaml (optional)"),
		docs:       flags.String("docs", "", "comma-separated documents or directories (default: .)"),
		targetRoot: flags.String("target-root", "", "directory relative targets land in (default: document root)"),
		stateDSN:   flags.String("state", "", "state database path (default: <root>/.entangle.db)"),
		include:    flags.String("include", "", "comma-separated document include patterns"),
		exclude:    flags.String("exclude", "", "comma-separated exclude patterns"),
		quiet:      flags.Bool("quiet", false, "suppress progress output"),
	}
}

func (c *commonFlags) service() (*service.Service, func(string, ...any)) {
	var config *service.Config
	if *c.configPath != "" {
		loaded, err := service.LoadConfig(*c.configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		config = loaded
	} else {
		config = &service.Config{}
	}
	if docs := splitCSV(*c.docs); len(docs) > 0 {
		config.Documents = absAll(docs)
	}
	if len(config.Documents) == 0 {
		config.Documents = absAll([]string{"."})
	}
	if *c.targetRoot != "" {
		config.TargetRoot = absPath(*c.targetRoot)
	}
	if config.TargetRoot == "" {
		config.TargetRoot = documentRoot(config.Documents[0])
	}
	if *c.stateDSN != "" {
		config.State.DSN = absPath(*c.stateDSN)
	}
	if config.State.DSN == "" {
		config.State.DSN = filepath.Join(config.TargetRoot, ".entangle.db")
	}
	if include := splitCSV(*c.include); len(include) > 0 {
		config.Include = include
	}
	if exclude := splitCSV(*c.exclude); len(exclude) > 0 {
		config.Exclude = exclude
	}
	svc, err := service.New(config)
	if err != nil {
		log.Fatalf("service init: %v", err)
	}
	logf := log.Printf
	if *c.quiet {
		logf = func(string, ...any) {}
	}
	return svc, logf
}

func tangleCmd(args []string) {
	flags := flag.NewFlagSet("tangle", flag.ExitOnError)
	common := registerCommon(flags)
	force := flags.Bool("force", false, "overwrite targets with unrecorded content")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, logf := common.service()
	defer func() { _ = svc.Close() }()
	report, err := svc.Tangle(ctx, service.TangleRequest{Force: *force, Logf: logf})
	if err != nil {
		log.Fatalf("tangle: %v", err)
	}
	exitWithReport(report)
}

func stitchCmd(args []string) {
	flags := flag.NewFlagSet("stitch", flag.ExitOnError)
	common := registerCommon(flags)
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, logf := common.service()
	defer func() { _ = svc.Close() }()
	report, err := svc.Stitch(ctx, service.StitchRequest{Logf: logf})
	if err != nil {
		log.Fatalf("stitch: %v", err)
	}
	exitWithReport(report)
}

func syncCmd(args []string) {
	flags := flag.NewFlagSet("sync", flag.ExitOnError)
	common := registerCommon(flags)
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, logf := common.service()
	defer func() { _ = svc.Close() }()
	report, err := svc.Sync(ctx, service.SyncRequest{Logf: logf})
	if err != nil {
		log.Fatalf("sync: %v", err)
	}
	exitWithReport(report)
}

func watchCmd(args []string) {
	flags := flag.NewFlagSet("watch", flag.ExitOnError)
	common := registerCommon(flags)
	debounceMS := flags.Int("debounce", 0, "debounce window in milliseconds")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, logf := common.service()
	defer func() { _ = svc.Close() }()
	if *debounceMS > 0 {
		svc.Config().DebounceMS = *debounceMS
	}
	watcher, err := watch.New(svc, watch.WithLogf(logf))
	if err != nil {
		log.Fatalf("watch: %v", err)
	}
	defer func() { _ = watcher.Close() }()
	log.Printf("entangle: watching %s", strings.Join(svc.Config().Documents, ", "))
	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("watch: %v", err)
	}
}

// exitWithReport prints conflicts and per-document failures, exiting non-zero
// when any occurred.
func exitWithReport(report *service.PassReport) {
	failed := false
	for _, conflict := range report.Conflicts() {
		fmt.Fprintln(os.Stderr, conflict.Error())
		failed = true
	}
	for _, doc := range report.Documents {
		if doc.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", doc.Path, doc.Err)
			failed = true
		}
		for _, target := range doc.Targets {
			if target.Err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", target.Path, target.Err)
				failed = true
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func absAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, path := range paths {
		out[i] = absPath(path)
	}
	return out
}

// documentRoot returns the directory a document path lives in; directories
// pass through.
func documentRoot(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

func startGops() {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Printf("gops: %v", err)
	}
}
