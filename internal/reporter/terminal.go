package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu       sync.Mutex
	progress *progressbar.ProgressBar
	verbose  bool
	cyan     *color.Color
	green    *color.Color
	yellow   *color.Color
	red      *color.Color
	magenta  *color.Color
	bold     *color.Color
	dim      *color.Color
}

// NewTerminalReporter creates a new terminal reporter with verbose mode disabled.
func NewTerminalReporter() *TerminalReporter {
	return NewTerminalReporterVerbose(false)
}

// NewTerminalReporterVerbose creates a new terminal reporter with configurable verbose mode.
func NewTerminalReporterVerbose(verbose bool) *TerminalReporter {
	return &TerminalReporter{
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
}

// labelWidth is the global width for all labels to ensure consistent alignment.
const labelWidth = 18

func (r *TerminalReporter) printLabel(label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", labelWidth, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("HARDWARE")
	r.printLabel("Hostname:", summary.Hostname)
	r.printLabel("Cores:", fmt.Sprintf("%d logical, %d physical", summary.LogicalCores, summary.PhysicalCores))
}

func (r *TerminalReporter) RegistryReady(summary RegistrySummary) {
	fmt.Println()
	_, _ = r.cyan.Println("REGISTRY")
	r.printLabel("Container:", summary.DataContainer)
	r.printLabel("Max thread:", fmt.Sprintf("%d", summary.MaxThread))
	r.printLabel("Max prefetch:", fmt.Sprintf("%d", summary.MaxPrefetch))
	if summary.MaxAwakeHandles > 0 {
		r.printLabel("Max awake:", fmt.Sprintf("%d", summary.MaxAwakeHandles))
	} else {
		r.printLabel("Max awake:", "unbounded")
	}
}

func (r *TerminalReporter) VideoOpened(info VideoOpenedInfo) {
	fmt.Printf("  %s %s %s\n", r.green.Sprint("✓"), info.Path,
		r.dim.Sprintf("(%d frames, %dx%d, %s fps)", info.NumFrames, info.Width, info.Height, info.FrameRate))
}

func (r *TerminalReporter) VideoSkipped(info VideoSkippedInfo) {
	fmt.Printf("  %s %s %s\n", r.yellow.Sprint("✗"), info.Path, r.dim.Sprint(info.Reason))
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
}

func (r *TerminalReporter) IteratorProgress(snapshot IteratorSnapshot) {
	r.mu.Lock()
	if r.progress == nil {
		r.progress = progressbar.NewOptions(
			-1,
			progressbar.OptionSetDescription(""),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "Prefetching [",
				BarEnd:        "]",
			}),
		)
	}
	_ = r.progress.Add(1)
	desc := fmt.Sprintf("delivered %d, queue %d, workers %d/%.1f",
		snapshot.ItemsDelivered, snapshot.QueueDepth, snapshot.RunningWorkers, snapshot.TargetWorkers)
	r.progress.Describe(desc)
	r.mu.Unlock()
}

func (r *TerminalReporter) BatchStarted(info BatchStartInfo) {
	fmt.Println()
	_, _ = r.cyan.Println("SCAN")
	fmt.Printf("  Source: %s\n", r.bold.Sprint(info.Source))
	fmt.Printf("  Files: %d\n", info.TotalFiles)
}

func (r *TerminalReporter) BatchComplete(summary BatchSummary) {
	r.finishProgress()

	fmt.Println()
	_, _ = r.cyan.Println("SCAN COMPLETE")
	r.printLabel("Opened:", r.green.Sprintf("%d", summary.OpenedCount))
	r.printLabel("Skipped:", r.yellow.Sprintf("%d", summary.SkippedCount))
	r.printLabel("Total:", fmt.Sprintf("%d", summary.TotalFiles))
	r.printLabel("Time:", summary.TotalDuration.String())
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	fmt.Println()
	fmt.Printf("%s %s\n", r.green.Add(color.Bold).Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	fmt.Printf("  %s %s\n", r.dim.Sprint("›"), r.dim.Sprint(message))
}
