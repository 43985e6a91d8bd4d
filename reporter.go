// This file re-exports the internal Reporter interface and associated
// types so callers can receive registry/iterator lifecycle events
// directly, without importing the internal package.

package vidreg

import (
	"io"

	"github.com/vidreg/vidreg/internal/reporter"
)

// Reporter defines the interface for progress reporting during a scan
// or dataset iteration. Implement this to receive detailed events.
type Reporter = reporter.Reporter

// NullReporter is a no-op Reporter that discards every event.
type NullReporter = reporter.NullReporter

// HardwareSummary reports the host running the scan.
type HardwareSummary = reporter.HardwareSummary

// RegistrySummary reports how a registry was configured at startup.
type RegistrySummary = reporter.RegistrySummary

// VideoOpenedInfo reports a single successfully probed video.
type VideoOpenedInfo = reporter.VideoOpenedInfo

// VideoSkippedInfo reports a video that failed to open, and why.
type VideoSkippedInfo = reporter.VideoSkippedInfo

// IteratorSnapshot reports the prefetch iterator's live scheduling state.
type IteratorSnapshot = reporter.IteratorSnapshot

// BatchStartInfo reports the set of files about to be scanned.
type BatchStartInfo = reporter.BatchStartInfo

// BatchSummary reports the outcome of a full directory/archive scan.
type BatchSummary = reporter.BatchSummary

// ReporterError carries a user-facing error report.
type ReporterError = reporter.ReporterError

// NewLogReporter creates a Reporter that writes timestamped lines to w.
func NewLogReporter(w io.Writer) Reporter {
	return reporter.NewLogReporter(w)
}

// NewTerminalReporter creates a Reporter that prints colorized output
// to the terminal.
func NewTerminalReporter(verbose bool) Reporter {
	return reporter.NewTerminalReporterVerbose(verbose)
}

// NewCompositeReporter fans every event out to each of reporters, in order.
func NewCompositeReporter(reporters ...Reporter) Reporter {
	return reporter.NewCompositeReporter(reporters...)
}
