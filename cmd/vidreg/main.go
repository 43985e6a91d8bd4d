// Package main provides the CLI entry point for vidreg.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vidreg/vidreg"
	"github.com/vidreg/vidreg/internal/config"
	"github.com/vidreg/vidreg/internal/discovery"
	"github.com/vidreg/vidreg/internal/logging"
	"github.com/vidreg/vidreg/internal/util"
)

const (
	appName    = "vidreg"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "read":
		err = runRead(os.Args[2:])
	case "tar":
		err = runTar(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("%s version %s\n", appName, appVersion)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - random-access video frame reader

Usage:
  %s <command> [options]

Commands:
  read      Scan a directory of videos and read a sample frame from each
  tar       Open every video entry in a tar archive and report its metadata
  version   Print version information
  help      Show this help message

Run '%s read --help' or '%s tar --help' for command options.
`, appName, appName, appName, appName)
}

// minLogDirSpaceBytes is the threshold below which runRead/runTar warn
// that the log directory's filesystem is nearly full, rather than
// letting log writes fail mid-run with no explanation.
const minLogDirSpaceBytes = 100 * 1024 * 1024

// warnIfLowDiskSpace reports a Warning through rep when the filesystem
// backing logDir has less than minLogDirSpaceBytes free. A space of 0
// (unreadable filesystem, e.g. in a container without statfs support)
// is not treated as low space, since it's indistinguishable from "not
// determinable" here.
func warnIfLowDiskSpace(rep vidreg.Reporter, logDir string) {
	avail := util.GetAvailableSpace(logDir)
	if avail == 0 {
		return
	}
	if avail < minLogDirSpaceBytes {
		rep.Warning(fmt.Sprintf("low disk space at log directory %s: %d MB free", logDir, avail/(1024*1024)))
	}
}

func newLoggerAndReporters(logDir string, verbose, noLog bool, args []string) (*logging.Logger, vidreg.Reporter, error) {
	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}
	logger, err := logging.Setup(logDir, verbose, noLog, args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	term := vidreg.NewTerminalReporter(verbose)
	rep := term
	if logger != nil {
		rep = vidreg.NewCompositeReporter(term, vidreg.NewLogReporter(logger.Writer()))
	}
	return logger, rep, nil
}

func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	return fs
}

func reportHardware(rep vidreg.Reporter) {
	rep.Hardware(vidreg.HardwareSummary{
		Hostname:      util.Hostname(),
		LogicalCores:  util.LogicalCores(),
		PhysicalCores: util.LogicalCores(),
	})
}

// sequentialSampler yields one work item per video: the single frame
// index configured at construction. A trivial, deterministic stand-in
// for the ML-framework samplers this CLI does not otherwise depend on.
type sequentialSampler struct {
	n     int
	frame int
	pos   int
}

func (s *sequentialSampler) Next() (int, []int, bool) {
	if s.pos >= s.n {
		return 0, nil, false
	}
	idx := s.pos
	s.pos++
	return idx, []int{s.frame}, true
}

func runRead(args []string) error {
	fs := newFlagSet("read", `Scan a directory of videos and read one sample frame from each.

Usage:
  vidreg read [options]

Required:
  -i, --input <PATH>       Directory containing video files

Options:
  -l, --log-dir <PATH>     Log directory (defaults to ~/.local/state/vidreg/logs)
  -v, --verbose            Enable verbose output
  --container <NAME>       Pixel backend: raw, numpy, or pytorch (default numpy)
  --max-thread <N>         Prefetch worker bound (default: hardware concurrency)
  --max-prefetch <N>       Prefetch queue depth (default 128)
  --max-awake <N>          Bound on simultaneously-awake handles (0 = unbounded)
  --frame <N>              Frame index to read from every video (default 0)
  --no-log                 Disable log file creation
`)

	var inputPath, logDir, container string
	var verbose, noLog bool
	var maxThread, maxPrefetch, frame int
	var maxAwake int64

	fs.StringVar(&inputPath, "i", "", "")
	fs.StringVar(&inputPath, "input", "", "")
	fs.StringVar(&logDir, "l", "", "")
	fs.StringVar(&logDir, "log-dir", "", "")
	fs.BoolVar(&verbose, "v", false, "")
	fs.BoolVar(&verbose, "verbose", false, "")
	fs.StringVar(&container, "container", config.DefaultDataContainer, "")
	fs.IntVar(&maxThread, "max-thread", config.DefaultMaxThread, "")
	fs.IntVar(&maxPrefetch, "max-prefetch", config.DefaultMaxPrefetch, "")
	fs.Int64Var(&maxAwake, "max-awake", config.DefaultMaxAwakeHandles, "")
	fs.IntVar(&frame, "frame", 0, "")
	fs.BoolVar(&noLog, "no-log", false, "")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if inputPath == "" {
		return errors.New("input path is required (-i/--input)")
	}

	inputPath, err := filepath.Abs(inputPath)
	if err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}

	cfg := config.NewConfig(inputPath, logDir)
	cfg.DataContainer = container
	cfg.MaxThread = maxThread
	cfg.MaxPrefetch = maxPrefetch
	cfg.MaxAwakeHandles = maxAwake
	cfg.Verbose = verbose
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, rep, err := newLoggerAndReporters(cfg.LogDir, cfg.Verbose, noLog, os.Args)
	if err != nil {
		return err
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	if cfg.LogDir == "" {
		cfg.LogDir = logging.DefaultLogDir()
	}
	warnIfLowDiskSpace(rep, cfg.LogDir)

	reportHardware(rep)

	resolvedThread := cfg.ResolvedMaxThread(util.LogicalCores())
	rep.RegistryReady(vidreg.RegistrySummary{
		DataContainer:   cfg.DataContainer,
		MaxThread:       resolvedThread,
		MaxPrefetch:     cfg.MaxPrefetch,
		MaxAwakeHandles: cfg.MaxAwakeHandles,
	})

	files, err := discovery.FindVideoFiles(inputPath)
	if err != nil {
		return fmt.Errorf("failed to discover video files: %w", err)
	}
	rep.BatchStarted(vidreg.BatchStartInfo{TotalFiles: len(files), Source: inputPath})

	var opts []vidreg.RegistryOption
	if cfg.MaxAwakeHandles > 0 {
		opts = append(opts, vidreg.WithMaxAwakeHandles(cfg.MaxAwakeHandles))
	}
	reg, err := vidreg.NewRegistry(cfg.DataContainer, opts...)
	if err != nil {
		return err
	}

	sampler := &sequentialSampler{n: len(files), frame: frame}
	it, err := vidreg.NewDatasetIterator(files, sampler, reg, resolvedThread, cfg.MaxPrefetch)
	if err != nil {
		return err
	}
	defer it.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		it.Stop()
	}()

	start := time.Now()
	opened, skipped := 0, 0
	for i, path := range files {
		_, err := it.Next()
		if errors.Is(err, vidreg.ErrDone) {
			break
		}
		if err != nil {
			skipped++
			rep.VideoSkipped(vidreg.VideoSkippedInfo{Path: path, Reason: err.Error()})
			continue
		}
		opened++
		rep.VideoOpened(vidreg.VideoOpenedInfo{Path: path})
		stats := it.Stats()
		rep.IteratorProgress(vidreg.IteratorSnapshot{
			ItemsDelivered: i + 1,
			QueueDepth:     stats.QueueDepth,
			RunningWorkers: stats.RunningWorkers,
			TargetWorkers:  stats.TargetWorkers,
		})
	}

	rep.BatchComplete(vidreg.BatchSummary{
		TotalFiles:    len(files),
		OpenedCount:   opened,
		SkippedCount:  skipped,
		TotalDuration: time.Since(start),
	})
	rep.OperationComplete(fmt.Sprintf("read %d of %d videos", opened, len(files)))
	return nil
}

func runTar(args []string) error {
	fs := newFlagSet("tar", `Open every video entry in a tar archive and report its metadata.

Usage:
  vidreg tar [options]

Required:
  -i, --input <PATH>       Path to the tar archive

Options:
  -l, --log-dir <PATH>     Log directory (defaults to ~/.local/state/vidreg/logs)
  -v, --verbose            Enable verbose output
  --container <NAME>       Pixel backend: raw, numpy, or pytorch (default numpy)
  --probe-threads <N>      Parallel metadata-probe concurrency (-1 = auto)
  --no-log                 Disable log file creation
`)

	var inputPath, logDir, container string
	var verbose, noLog bool
	var probeThreads int

	fs.StringVar(&inputPath, "i", "", "")
	fs.StringVar(&inputPath, "input", "", "")
	fs.StringVar(&logDir, "l", "", "")
	fs.StringVar(&logDir, "log-dir", "", "")
	fs.BoolVar(&verbose, "v", false, "")
	fs.BoolVar(&verbose, "verbose", false, "")
	fs.StringVar(&container, "container", config.DefaultDataContainer, "")
	fs.IntVar(&probeThreads, "probe-threads", config.DefaultArchiveProbeThreads, "")
	fs.BoolVar(&noLog, "no-log", false, "")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if inputPath == "" {
		return errors.New("input path is required (-i/--input)")
	}

	inputPath, err := filepath.Abs(inputPath)
	if err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}

	cfg := config.NewConfig(inputPath, logDir)
	cfg.DataContainer = container
	cfg.ArchiveProbeThreads = probeThreads
	cfg.Verbose = verbose
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, rep, err := newLoggerAndReporters(cfg.LogDir, cfg.Verbose, noLog, os.Args)
	if err != nil {
		return err
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	if cfg.LogDir == "" {
		cfg.LogDir = logging.DefaultLogDir()
	}
	warnIfLowDiskSpace(rep, cfg.LogDir)

	reportHardware(rep)
	rep.BatchStarted(vidreg.BatchStartInfo{TotalFiles: 0, Source: inputPath})

	reg, err := vidreg.NewRegistry(cfg.DataContainer)
	if err != nil {
		return err
	}

	start := time.Now()
	handles, err := vidreg.OpenVideoTar(inputPath, nil, cfg.ArchiveProbeThreads, reg)
	if err != nil {
		rep.Error(vidreg.ReporterError{Title: "archive open failed", Message: err.Error()})
		return err
	}

	for i, h := range handles {
		rate := h.AverageFrameRate()
		rep.VideoOpened(vidreg.VideoOpenedInfo{
			Path:      fmt.Sprintf("entry %d: %s", i, h.Path()),
			NumFrames: h.NumFrames(),
			Width:     h.Width(),
			Height:    h.Height(),
			FrameRate: rate.String(),
		})
		_ = h.Sleep()
	}

	rep.BatchComplete(vidreg.BatchSummary{
		TotalFiles:    len(handles),
		OpenedCount:   len(handles),
		TotalDuration: time.Since(start),
	})
	rep.OperationComplete(fmt.Sprintf("opened %d videos from %s", len(handles), inputPath))
	return nil
}
