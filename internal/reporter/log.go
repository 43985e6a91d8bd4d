package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// LogReporter writes registry/iterator lifecycle events to a log file.
type LogReporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewLogReporter creates a new log reporter that writes to the given writer.
func NewLogReporter(w io.Writer) *LogReporter {
	return &LogReporter{w: w}
}

func (r *LogReporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(r.w, "%s [%s] %s\n", timestamp, level, msg)
}

func (r *LogReporter) Hardware(summary HardwareSummary) {
	r.log("INFO", "=== HARDWARE ===")
	r.log("INFO", "Hostname: %s", summary.Hostname)
	r.log("INFO", "Cores: %d logical, %d physical", summary.LogicalCores, summary.PhysicalCores)
}

func (r *LogReporter) RegistryReady(summary RegistrySummary) {
	r.log("INFO", "=== REGISTRY ===")
	r.log("INFO", "Data container: %s", summary.DataContainer)
	r.log("INFO", "max_thread=%d max_prefetch=%d max_awake_handles=%d",
		summary.MaxThread, summary.MaxPrefetch, summary.MaxAwakeHandles)
}

func (r *LogReporter) VideoOpened(info VideoOpenedInfo) {
	r.log("INFO", "opened %s: %d frames, %dx%d, %s fps", info.Path, info.NumFrames, info.Width, info.Height, info.FrameRate)
}

func (r *LogReporter) VideoSkipped(info VideoSkippedInfo) {
	r.log("WARN", "skipped %s: %s", info.Path, info.Reason)
}

func (r *LogReporter) IteratorProgress(snapshot IteratorSnapshot) {
	r.log("INFO", "delivered=%d queue=%d workers=%d target=%.2f",
		snapshot.ItemsDelivered, snapshot.QueueDepth, snapshot.RunningWorkers, snapshot.TargetWorkers)
}

func (r *LogReporter) BatchStarted(info BatchStartInfo) {
	r.log("INFO", "=== SCAN STARTED ===")
	r.log("INFO", "Source: %s (%d files)", info.Source, info.TotalFiles)
}

func (r *LogReporter) BatchComplete(summary BatchSummary) {
	r.log("INFO", "=== SCAN COMPLETE ===")
	r.log("INFO", "%d opened, %d skipped, of %d (%s)",
		summary.OpenedCount, summary.SkippedCount, summary.TotalFiles, summary.TotalDuration)
}

func (r *LogReporter) Warning(message string) {
	r.log("WARN", "%s", message)
}

func (r *LogReporter) Error(err ReporterError) {
	r.log("ERROR", "%s: %s", err.Title, err.Message)
	if err.Context != "" {
		r.log("ERROR", "  Context: %s", err.Context)
	}
	if err.Suggestion != "" {
		r.log("ERROR", "  Suggestion: %s", err.Suggestion)
	}
}

func (r *LogReporter) OperationComplete(message string) {
	r.log("INFO", "=== COMPLETE === %s", message)
}

func (r *LogReporter) Verbose(message string) {
	r.log("DEBUG", "%s", message)
}
