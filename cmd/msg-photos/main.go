package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/msg-photos/pkg/config"
	"github.com/Sriram-PR/msg-photos/pkg/exifmeta"
	"github.com/Sriram-PR/msg-photos/pkg/fetch"
	"github.com/Sriram-PR/msg-photos/pkg/models"
	"github.com/Sriram-PR/msg-photos/pkg/orchestrate"
	"github.com/Sriram-PR/msg-photos/pkg/parse"
	"github.com/Sriram-PR/msg-photos/pkg/storage"
	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

const version = "1.0.0"

const treeFilename = "tree.txt"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		runExport(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("msg-photos %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `msg-photos - Download photos from an exported message archive

Usage:
  msg-photos <command> [options]

Commands:
  export      Download all photos and stamp them with their send time
  validate    Validate configuration file
  version     Show version info

Run 'msg-photos <command> -h' for command-specific help.`)
}

// exportFlags holds the CLI overrides for the export subcommand
type exportFlags struct {
	configFile     string
	messagesDir    string
	outputDir      string
	workers        int
	filenameFormat string
	logLevel       string
	stateDir       string
	report         bool
	manifest       bool
	tree           bool
	verify         bool
}

// newExportFlagSet registers the export flags on a new FlagSet bound to f
func newExportFlagSet(f *exportFlags, handling flag.ErrorHandling) *flag.FlagSet {
	fs := flag.NewFlagSet("export", handling)
	fs.StringVar(&f.configFile, "config", "", "Path to YAML config file (optional)")
	fs.StringVar(&f.messagesDir, "messages", "", "Exported messages directory")
	fs.StringVar(&f.outputDir, "out", "", "Output directory (default \"out\")")
	fs.IntVar(&f.workers, "workers", 0, "Concurrent downloads (default 16)")
	fs.StringVar(&f.filenameFormat, "filename-format", "", "File naming: 'timestamp' or 'index'")
	fs.StringVar(&f.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	fs.StringVar(&f.stateDir, "state-dir", "", "Directory for the results ledger (in-memory if empty)")
	fs.BoolVar(&f.report, "report", false, "Write a TSV report of every download")
	fs.BoolVar(&f.manifest, "manifest", false, "Write a YAML manifest of the run")
	fs.BoolVar(&f.tree, "tree", false, "Write tree.txt listing the output directory")
	fs.BoolVar(&f.verify, "verify", false, "Re-read timestamps after rewriting them")
	return fs
}

func runExport(args []string) {
	var f exportFlags
	fs := newExportFlagSet(&f, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: msg-photos export [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  msg-photos export -messages ./messages -out ./photos\n")
		fmt.Fprintf(os.Stderr, "  msg-photos export -config export.yaml -workers 8 -report\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(f.logLevel)

	appCfg, err := buildConfig(f, fs)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	warnings, err := appCfg.Validate()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, stopping dispatch...", sig)
		cancel()
	}()

	os.Exit(doExport(ctx, appCfg, log.WithField("component", "export"), os.Stdout))
}

// buildConfig loads the optional config file and applies the flags that were set explicitly
func buildConfig(f exportFlags, fs *flag.FlagSet) (*config.AppConfig, error) {
	appCfg := &config.AppConfig{}
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
		appCfg = loaded
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "messages":
			appCfg.MessagesDir = f.messagesDir
		case "out":
			appCfg.OutputDir = f.outputDir
		case "workers":
			appCfg.NumWorkers = f.workers
		case "filename-format":
			appCfg.FilenameFormat = f.filenameFormat
		case "state-dir":
			appCfg.StateDir = f.stateDir
		case "report":
			appCfg.WriteReport = f.report
		case "manifest":
			appCfg.WriteManifest = f.manifest
		case "tree":
			appCfg.WriteTree = f.tree
		case "verify":
			appCfg.VerifyMetadata = f.verify
		}
	})
	return appCfg, nil
}

// doExport runs one export with a validated config.
// Returns exit code: 1 only for run-level failures, never for individual downloads.
func doExport(ctx context.Context, appCfg *config.AppConfig, log *logrus.Entry, stdout io.Writer) int {
	names, err := parse.ResolveConversationNames(appCfg.MessagesDir, appCfg.IndexFilename, log.WithField("component", "names"))
	if err != nil {
		log.Errorf("Cannot resolve conversation names: %v", err)
		return 1
	}

	if err := os.MkdirAll(appCfg.OutputDir, 0755); err != nil {
		log.Errorf("Cannot create output directory '%s': %v", appCfg.OutputDir, err)
		return 1
	}

	runKey := filepath.Base(filepath.Clean(appCfg.MessagesDir))
	store, err := storage.NewBadgerStore(ctx, appCfg.StateDir, runKey, log.WithField("component", "ledger"))
	if err != nil {
		log.Errorf("Cannot open results ledger: %v", err)
		return 1
	}
	defer store.Close()

	fetchLog := log.WithField("component", "fetch")
	fetcher := fetch.NewFetcher(fetch.NewClient(appCfg.HTTPClientSettings, fetchLog), appCfg, fetchLog)
	rewriter := exifmeta.NewRewriter(log.WithField("component", "exif"))
	corpus := parse.NewCorpus(appCfg.MessagesDir, appCfg.IndexFilename, log.WithField("component", "corpus"))

	orch := orchestrate.NewOrchestrator(appCfg, names, fetcher, rewriter, store, log.WithField("component", "orchestrator"))
	summary := orch.Run(ctx, corpus.Records())

	stats := corpus.Stats()
	log.WithFields(logrus.Fields{
		"documents":        stats.Documents,
		"records":          stats.Records,
		"skipped_records":  stats.SkippedRecord,
		"failed_documents": stats.FailedDocs,
	}).Info("Corpus parsed")
	checkLedger(store, summary, log)

	if appCfg.WriteReport {
		if err := store.WriteReport(outputPath(appCfg, appCfg.ReportFilename)); err != nil {
			log.Errorf("Failed to write report: %v", err)
		}
	}
	if appCfg.WriteManifest {
		path := outputPath(appCfg, appCfg.ManifestFilename)
		if err := orchestrate.WriteManifest(path, orchestrate.BuildManifest(appCfg, summary)); err != nil {
			log.Errorf("Failed to write manifest: %v", err)
		} else {
			log.Infof("Wrote manifest: %s", path)
		}
	}
	if appCfg.WriteTree {
		if err := utils.WriteOutputTree(appCfg.OutputDir, outputPath(appCfg, treeFilename), log); err != nil {
			log.Errorf("Failed to write output tree: %v", err)
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("Export interrupted; output may be incomplete")
	}
	fmt.Fprintf(stdout, "Finished in %v\n", summary.Elapsed)
	return 0
}

// checkLedger logs the ledger totals and reports whether they agree with the run summary
func checkLedger(store storage.ResultStore, summary orchestrate.Summary, log *logrus.Entry) bool {
	counts, err := store.CountByStatus()
	if err != nil {
		log.Errorf("Cannot read results ledger: %v", err)
		return false
	}

	fields := logrus.Fields{"recorded": store.ResultCount()}
	for _, status := range models.AllDownloadStatuses() {
		fields[status.String()] = counts[status]
	}
	log.WithFields(fields).Info("Results ledger")

	ok := store.ResultCount() == summary.Dispatched
	for _, status := range models.AllDownloadStatuses() {
		if counts[status] != summary.Counts[status] {
			ok = false
		}
	}
	if !ok {
		log.Warnf("Results ledger disagrees with run summary (%d recorded, %d dispatched)", store.ResultCount(), summary.Dispatched)
	}
	return ok
}

// outputPath places relative report file names inside the output directory
func outputPath(appCfg *config.AppConfig, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(appCfg.OutputDir, name)
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: msg-photos validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}

	fmt.Fprintf(stdout, "OK: messages_dir=%s out_dir=%s num_workers=%d filename_format=%s\n",
		appCfg.MessagesDir, appCfg.OutputDir, appCfg.NumWorkers, appCfg.FilenameFormat)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}
